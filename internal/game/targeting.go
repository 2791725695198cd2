package game

import (
	"math"
	"math/rand"

	"github.com/paulmach/orb/planar"

	"volley-club/internal/game/court"
	"volley-club/internal/game/possession"
)

// TargetSelector picks who receives a throw or serve
type TargetSelector struct {
	rng *rand.Rand
}

// NewTargetSelector uses rng for the random choices
func NewTargetSelector(rng *rand.Rand) *TargetSelector {
	return &TargetSelector{rng: rng}
}

// SelectRecipient chooses among everyone except source. On a forced pass
// only opponents qualify and the farthest one is chosen so the return is
// not easy; otherwise the choice is uniform.
func (s *TargetSelector) SelectRecipient(source *Agent, roster *Roster, pos *possession.Tracker) (Candidate, error) {
	candidates := roster.Candidates(source)

	if pos != nil && pos.MustPassToOpponent() {
		opponents := candidates[:0]
		for _, c := range candidates {
			if c.Team != source.Team {
				opponents = append(opponents, c)
			}
		}
		if len(opponents) == 0 {
			return Candidate{}, ErrNoValidTarget
		}
		return farthest(source, opponents), nil
	}

	if len(candidates) == 0 {
		return Candidate{}, ErrNoValidTarget
	}
	return candidates[s.rng.Intn(len(candidates))], nil
}

// SelectServiceRecipient only considers the opposing team and prefers the
// candidate nearest the court centerline; ties are broken at random.
func (s *TargetSelector) SelectServiceRecipient(source *Agent, roster *Roster) (Candidate, error) {
	var best []Candidate
	bestOffset := math.Inf(1)
	for _, c := range roster.Candidates(source) {
		if c.Team == source.Team {
			continue
		}
		offset := math.Abs(c.Position.Z)
		switch {
		case offset < bestOffset-1e-6:
			best = append(best[:0], c)
			bestOffset = offset
		case math.Abs(offset-bestOffset) <= 1e-6:
			best = append(best, c)
		}
	}

	switch len(best) {
	case 0:
		return Candidate{}, ErrNoValidTarget
	case 1:
		return best[0], nil
	default:
		return best[s.rng.Intn(len(best))], nil
	}
}

func farthest(source *Agent, cs []Candidate) Candidate {
	from := court.Point(source.Position)
	best := cs[0]
	bestDist := -1.0
	for _, c := range cs {
		if d := planar.Distance(from, court.Point(c.Position)); d > bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
