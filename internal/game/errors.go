package game

import (
	"errors"
	"fmt"
	"log"
)

var (
	// ErrNoValidTarget means recipient selection ran out of candidates
	ErrNoValidTarget = errors.New("no valid target")

	// ErrInvalidGeometry means the launch solve fell back to a best-effort velocity
	ErrInvalidGeometry = errors.New("invalid launch geometry")

	// ErrBoundaryViolation means a position is not legal for the team
	ErrBoundaryViolation = errors.New("boundary violation")

	// ErrUnknownAgent means no agent with that name is in the roster
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrNotServing means the request needs an agent that can serve
	ErrNotServing = errors.New("no agent available to serve")

	// ErrInvalidStrike means a strike carried non-finite vectors
	ErrInvalidStrike = errors.New("invalid strike")

	// ErrNoOperator means the manual participant is disabled
	ErrNoOperator = errors.New("operator disabled")
)

// lifecycleFault reports wiring bugs: a ball-holding state without a ball,
// or a token held by an agent that left the roster. Debug builds panic;
// release builds log and put the agent back to Idle.
func (m *Match) lifecycleFault(a *Agent, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if debugAssertions {
		panic("lifecycle fault: " + msg)
	}
	log.Printf("🚨 Lifecycle fault: %s", msg)
	m.emit(EventTypeAnomaly, "", AnomalyPayload{Kind: "lifecycle", Detail: msg})
	m.stats.LifecycleFaults++
	if a != nil && m.roster.Contains(a) {
		m.transition(a, State{Kind: StateIdle})
	}
}
