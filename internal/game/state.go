package game

import (
	"volley-club/internal/game/vec"
)

// StateKind tags the agent's current behavior
type StateKind uint8

const (
	StateIdle StateKind = iota
	StateMovingToTarget
	StatePreparingAction
	StatePerformingAction
	StateServing
	StateReturningHome
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateMovingToTarget:
		return "moving_to_target"
	case StatePreparingAction:
		return "preparing_action"
	case StatePerformingAction:
		return "performing_action"
	case StateServing:
		return "serving"
	case StateReturningHome:
		return "returning_home"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state name
func (k StateKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// holdsBall reports whether the state owns the ball while active
func (k StateKind) holdsBall() bool {
	return k == StatePreparingAction || k == StatePerformingAction || k == StateServing
}

// ServePhase sequences the Serving state
type ServePhase uint8

const (
	ServePrep ServePhase = iota
	ServeToss
	ServeFollowThrough
)

func (p ServePhase) String() string {
	switch p {
	case ServePrep:
		return "prep"
	case ServeToss:
		return "toss"
	default:
		return "follow_through"
	}
}

// State is the single live state of an agent. Only the fields relevant to
// Kind are meaningful; Timer counts elapsed seconds in the state or phase.
type State struct {
	Kind   StateKind
	Target vec.Vec3 // MovingToTarget destination
	Timer  float64
	Phase  ServePhase
	Speed  float64 // current movement speed, cue sent on change
	Cued   bool    // serve wind-up cue already sent
}

type stepFunc func(m *Match, a *Agent, dt float64)

// stepTable dispatches one tick of behavior per state kind
var stepTable = [...]stepFunc{
	StateIdle:             stepIdle,
	StateMovingToTarget:   stepMovingToTarget,
	StatePreparingAction:  stepPreparingAction,
	StatePerformingAction: stepPerformingAction,
	StateServing:          stepServing,
	StateReturningHome:    stepReturningHome,
}

// stepAgent advances one agent by dt
func (m *Match) stepAgent(a *Agent, dt float64) {
	if int(a.state.Kind) >= len(stepTable) {
		m.lifecycleFault(a, "agent %s in unknown state %d", a.Name, a.state.Kind)
		return
	}
	stepTable[a.state.Kind](m, a, dt)
}

// transition replaces the agent's state. The exit hook always gives back the
// arbitration token and, unless the next state keeps holding it, the ball.
func (m *Match) transition(a *Agent, next State) {
	prev := a.state
	m.exitState(a, prev, next)
	a.state = next
	m.enterState(a, prev)

	if prev.Kind != next.Kind {
		m.emit(EventTypeStateChange, a.ID, StateChangePayload{
			AgentID: a.ID,
			Name:    a.Name,
			From:    prev.Kind.String(),
			To:      next.Kind.String(),
		})
	}
}

func (m *Match) exitState(a *Agent, prev, next State) {
	m.arbitrator.release(a)

	if a.ball != nil && !next.Kind.holdsBall() {
		m.releaseBall(a)
	}
}

func (m *Match) enterState(a *Agent, prev State) {
	switch a.state.Kind {
	case StateIdle:
		m.anim.PlayIdle(a.ID)
	case StateMovingToTarget:
		a.state.Speed = m.moveSpeed(vec.PlanarDist(a.Position, a.state.Target))
		m.anim.PlayMove(a.ID, a.state.Speed)
	case StatePreparingAction:
		if a.ball == nil {
			m.attachBall(a)
		}
		m.anim.PlayWindUp(a.ID)
	case StateServing:
		m.enterServing(a)
	case StateReturningHome:
		a.state.Speed = m.cfg.Agent.WalkSpeed
		m.anim.PlayMove(a.ID, a.state.Speed)
	}
}

func (m *Match) moveSpeed(dist float64) float64 {
	if dist > m.cfg.Agent.RunThreshold {
		return m.cfg.Agent.RunSpeed
	}
	return m.cfg.Agent.WalkSpeed
}
