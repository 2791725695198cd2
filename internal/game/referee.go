package game

import (
	"log"
	"sort"
	"sync"

	"volley-club/internal/game/possession"
	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// MaxPointHistory caps the point records kept in memory
const MaxPointHistory = 256

// PointRecord is one awarded point
type PointRecord struct {
	Rally   int       `json:"rally"`
	Winner  team.Team `json:"winner"`
	Reason  string    `json:"reason"`
	Landing *vec.Vec3 `json:"landing,omitempty"`
	Score   [2]int    `json:"score"`
	At      float64   `json:"at"`
}

// ContributionEntry ranks an agent by accepted touches
type ContributionEntry struct {
	Name    string    `json:"name"`
	Team    team.Team `json:"team"`
	Touches int       `json:"touches"`
	Rank    int       `json:"rank"`
}

// Referee is the built-in match flow: it scores grounded balls and faults,
// then restarts the rally with the winning team serving.
type Referee struct {
	mu      sync.RWMutex
	match   *Match
	score   [2]int
	history []PointRecord
	touches map[string]*ContributionEntry

	onPoint func(PointRecord)
}

// NewReferee creates a referee for m
func NewReferee(m *Match) *Referee {
	return &Referee{
		match:   m,
		history: make([]PointRecord, 0, 32),
		touches: make(map[string]*ContributionEntry),
	}
}

// OnPoint registers a callback fired after every awarded point
func (r *Referee) OnPoint(fn func(PointRecord)) {
	r.onPoint = fn
}

// OnFault awards the point to the opponent of the faulting team
func (r *Referee) OnFault(t team.Team) {
	r.award(t.Opponent(), "fault", nil)
}

// OnBallGrounded awards the point by landing side: a ball down on the Blue
// side (x > 0) is Red's point, anything else is Blue's.
func (r *Referee) OnBallGrounded(p vec.Vec3) {
	winner := team.Blue
	if p.X > 0 {
		winner = team.Red
	}
	reason := "grounded"
	if !r.match.validator.InBounds(p) {
		reason = "out"
	}
	r.award(winner, reason, &p)
}

func (r *Referee) award(winner team.Team, reason string, landing *vec.Vec3) {
	m := r.match

	r.mu.Lock()
	for _, t := range m.ball.possession.History() {
		r.creditTouch(t)
	}
	r.score[winner]++
	rec := PointRecord{
		Rally:   m.rally,
		Winner:  winner,
		Reason:  reason,
		Landing: landing,
		Score:   r.score,
		At:      m.clock,
	}
	if len(r.history) >= MaxPointHistory {
		r.history = append(r.history[:0], r.history[1:]...)
	}
	r.history = append(r.history, rec)
	r.mu.Unlock()

	m.emit(EventTypePoint, "", PointPayload{Winner: winner, Reason: reason, Red: rec.Score[team.Red], Blue: rec.Score[team.Blue]})
	log.Printf("🏆 Point %s (%s) - Red %d : %d Blue", winner, reason, rec.Score[team.Red], rec.Score[team.Blue])

	if r.onPoint != nil {
		r.onPoint(rec)
	}
	m.ResetRally(winner)
}

func (r *Referee) creditTouch(t possession.Touch) {
	e, ok := r.touches[t.Name]
	if !ok {
		e = &ContributionEntry{Name: t.Name, Team: t.Team}
		r.touches[t.Name] = e
	}
	e.Touches++
}

// Score returns the points of both teams
func (r *Referee) Score() (red, blue int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.score[team.Red], r.score[team.Blue]
}

// History returns a copy of the awarded points, oldest first
func (r *Referee) History() []PointRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PointRecord, len(r.history))
	copy(out, r.history)
	return out
}

// TopContributors ranks participants by accepted touches in finished rallies
func (r *Referee) TopContributors(limit int) []ContributionEntry {
	r.mu.RLock()
	out := make([]ContributionEntry, 0, len(r.touches))
	for _, e := range r.touches {
		out = append(out, *e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Touches != out[j].Touches {
			return out[i].Touches > out[j].Touches
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Reset clears the score
func (r *Referee) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.score = [2]int{}
	r.history = r.history[:0]
	r.touches = make(map[string]*ContributionEntry)
}
