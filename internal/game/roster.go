package game

import (
	"fmt"

	"volley-club/internal/game/team"
)

// MaxRosterSize limits agents per match
const MaxRosterSize = 24

// Roster owns the match participants. Iteration order is insertion order so
// ties and sensing order are deterministic.
type Roster struct {
	agents   []*Agent
	byName   map[string]*Agent
	operator *Operator
}

// NewRoster creates an empty roster
func NewRoster() *Roster {
	return &Roster{
		agents: make([]*Agent, 0, 8),
		byName: make(map[string]*Agent),
	}
}

// Add inserts an agent
func (r *Roster) Add(a *Agent) error {
	if a.Name == "" {
		return fmt.Errorf("agent name is empty")
	}
	if _, ok := r.byName[a.Name]; ok {
		return fmt.Errorf("agent %q already in roster", a.Name)
	}
	if len(r.agents) >= MaxRosterSize {
		return fmt.Errorf("roster is full (%d agents)", MaxRosterSize)
	}
	r.agents = append(r.agents, a)
	r.byName[a.Name] = a
	return nil
}

// Remove takes an agent out of the roster
func (r *Roster) Remove(name string) (*Agent, bool) {
	a, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	delete(r.byName, name)
	for i, x := range r.agents {
		if x == a {
			r.agents = append(r.agents[:i], r.agents[i+1:]...)
			break
		}
	}
	return a, true
}

// Find returns an agent by name, or nil
func (r *Roster) Find(name string) *Agent {
	return r.byName[name]
}

// Contains reports whether a is still in the roster
func (r *Roster) Contains(a *Agent) bool {
	if a == nil {
		return false
	}
	return r.byName[a.Name] == a
}

// Agents returns the agents in insertion order. The slice must not be modified.
func (r *Roster) Agents() []*Agent {
	return r.agents
}

// TeamMembers returns the agents of one team
func (r *Roster) TeamMembers(t team.Team) []*Agent {
	var out []*Agent
	for _, a := range r.agents {
		if a.Team == t {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of agents
func (r *Roster) Len() int {
	return len(r.agents)
}

// SetOperator installs (or with nil, removes) the manual participant
func (r *Roster) SetOperator(o *Operator) {
	r.operator = o
}

// Operator returns the manual participant, or nil
func (r *Roster) Operator() *Operator {
	return r.operator
}

// Candidates lists every possible recipient except source
func (r *Roster) Candidates(source *Agent) []Candidate {
	out := make([]Candidate, 0, len(r.agents)+1)
	for _, a := range r.agents {
		if a == source {
			continue
		}
		out = append(out, agentCandidate(a))
	}
	if r.operator != nil {
		out = append(out, operatorCandidate(r.operator))
	}
	return out
}

// AverageCatchHeight is the mean catch point height over all agents, or
// fallback for an empty roster
func (r *Roster) AverageCatchHeight(fallback float64) float64 {
	if len(r.agents) == 0 {
		return fallback
	}
	sum := 0.0
	for _, a := range r.agents {
		sum += a.CatchPoint().Y
	}
	return sum / float64(len(r.agents))
}
