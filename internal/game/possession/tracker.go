// Package possession enforces the touch rules of a rally: the per-team touch
// limit, the forced pass on the last touch, and the ban on the same
// participant touching twice in a row.
//
// The tracker knows nothing about geometry so it can be driven with
// synthetic touch sequences.
package possession

import (
	"fmt"

	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// DefaultMaxTouches is the classic three-touch rule
const DefaultMaxTouches = 3

// Outcome is the result of registering a touch
type Outcome uint8

const (
	Accepted          Outcome = iota
	RejectedSameAgent         // toucher is not allowed to touch again yet
	Fault                     // team exceeded its touch limit; opponent scores
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case RejectedSameAgent:
		return "rejected_same_agent"
	case Fault:
		return "fault"
	default:
		return "unknown"
	}
}

// RepeatRule selects how repeated touches by one participant are judged
type RepeatRule uint8

const (
	// RepeatWithinPossession rejects anyone who already touched during the
	// current team's sequence, not only the last toucher.
	RepeatWithinPossession RepeatRule = iota
	// RepeatConsecutive only rejects the immediate last toucher.
	RepeatConsecutive
)

// ParseRepeatRule maps a config string onto a RepeatRule. The empty string
// selects RepeatWithinPossession.
func ParseRepeatRule(s string) (RepeatRule, error) {
	switch s {
	case "", "possession":
		return RepeatWithinPossession, nil
	case "consecutive":
		return RepeatConsecutive, nil
	default:
		return RepeatWithinPossession, fmt.Errorf("unknown repeat rule %q (want possession or consecutive)", s)
	}
}

// Config tunes the tracker
type Config struct {
	MaxTouches int
	Repeat     RepeatRule
}

// DefaultConfig returns the standard rules
func DefaultConfig() Config {
	return Config{MaxTouches: DefaultMaxTouches, Repeat: RepeatWithinPossession}
}

// Touch is one entry of the rally history
type Touch struct {
	ToucherID string    `json:"toucherId"`
	Name      string    `json:"name"`
	Team      team.Team `json:"team"`
	Time      float64   `json:"time"`
	Position  vec.Vec3  `json:"position"`
}

// Tracker holds the possession state of one ball
type Tracker struct {
	cfg Config

	currentTeam team.Team
	count       int
	lastToucher string
	history     []Touch
}

// NewTracker creates a tracker with the ball on the given team's side
func NewTracker(cfg Config, start team.Team) *Tracker {
	if cfg.MaxTouches <= 0 {
		cfg.MaxTouches = DefaultMaxTouches
	}
	return &Tracker{
		cfg:         cfg,
		currentTeam: start,
		history:     make([]Touch, 0, 16),
	}
}

// RegisterTouch applies the touch rules. Only Accepted touches change state;
// a Fault leaves the tracker untouched so the caller can score and Reset.
func (t *Tracker) RegisterTouch(touch Touch) Outcome {
	if t.isRepeat(touch) {
		return RejectedSameAgent
	}

	if touch.Team != t.currentTeam {
		t.currentTeam = touch.Team
		t.count = 1
	} else {
		if t.count+1 > t.cfg.MaxTouches {
			return Fault
		}
		t.count++
	}

	t.lastToucher = touch.ToucherID
	t.history = append(t.history, touch)
	return Accepted
}

func (t *Tracker) isRepeat(touch Touch) bool {
	if touch.ToucherID == "" {
		return false
	}
	if touch.ToucherID == t.lastToucher {
		return true
	}
	if t.cfg.Repeat != RepeatWithinPossession || touch.Team != t.currentTeam {
		return false
	}
	// the current team's sequence is the tail of the history
	for _, h := range t.history[len(t.history)-t.count:] {
		if h.ToucherID == touch.ToucherID {
			return true
		}
	}
	return false
}

// MustPassToOpponent is true once the current team has used its last touch
func (t *Tracker) MustPassToOpponent() bool {
	return t.count == t.cfg.MaxTouches
}

// Reset clears the rally. The ball starts on the given team's side.
func (t *Tracker) Reset(start team.Team) {
	t.currentTeam = start
	t.count = 0
	t.lastToucher = ""
	t.history = t.history[:0]
}

// CurrentTeam returns the team holding possession
func (t *Tracker) CurrentTeam() team.Team { return t.currentTeam }

// Count returns the touches used by the current team
func (t *Tracker) Count() int { return t.count }

// MaxTouches returns the configured touch limit
func (t *Tracker) MaxTouches() int { return t.cfg.MaxTouches }

// LastToucher returns the ID of the last accepted toucher
func (t *Tracker) LastToucher() string { return t.lastToucher }

// History returns a copy of the accepted touches of this rally
func (t *Tracker) History() []Touch {
	out := make([]Touch, len(t.history))
	copy(out, t.history)
	return out
}
