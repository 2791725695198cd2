package game

import (
	"sync"

	"volley-club/internal/game/physics"
	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// Physics is the rigid-body integrator the match reads from and commands.
// *physics.World satisfies it.
type Physics interface {
	Position(id physics.EntityID) vec.Vec3
	Velocity(id physics.EntityID) vec.Vec3
	SetVelocity(id physics.EntityID, v vec.Vec3)
	SetPosition(id physics.EntityID, p vec.Vec3)
	SetGravityEnabled(id physics.EntityID, on bool)
	GravityMagnitude() float64
	FindEntitiesNear(p vec.Vec3, radius float64, tag physics.Tag) []physics.EntityID
}

// PhysicsWorld can also create bodies; the match spawns its own.
type PhysicsWorld interface {
	Physics
	AddBody(tag physics.Tag, pos vec.Vec3, gravity bool, drag, radius float64) physics.EntityID
}

// Animator receives fire-and-forget animation cues
type Animator interface {
	PlayIdle(agentID string)
	PlayMove(agentID string, speed float64)
	PlayWindUp(agentID string)
	PlayServeToss(agentID string)
}

// MatchFlow is told about rally-ending outcomes
type MatchFlow interface {
	OnFault(t team.Team)
	OnBallGrounded(point vec.Vec3)
}

// NopAnimator ignores every cue
type NopAnimator struct{}

func (NopAnimator) PlayIdle(string)          {}
func (NopAnimator) PlayMove(string, float64) {}
func (NopAnimator) PlayWindUp(string)        {}
func (NopAnimator) PlayServeToss(string)     {}

// AnimationTracker remembers the last cue per agent so snapshots can show it,
// then forwards to an optional downstream animator.
type AnimationTracker struct {
	mu   sync.RWMutex
	last map[string]string
	next Animator
}

// NewAnimationTracker wraps next, which may be nil
func NewAnimationTracker(next Animator) *AnimationTracker {
	return &AnimationTracker{last: make(map[string]string), next: next}
}

func (t *AnimationTracker) set(id, anim string) {
	t.mu.Lock()
	t.last[id] = anim
	t.mu.Unlock()
}

func (t *AnimationTracker) PlayIdle(id string) {
	t.set(id, "idle")
	if t.next != nil {
		t.next.PlayIdle(id)
	}
}

func (t *AnimationTracker) PlayMove(id string, speed float64) {
	t.set(id, "move")
	if t.next != nil {
		t.next.PlayMove(id, speed)
	}
}

func (t *AnimationTracker) PlayWindUp(id string) {
	t.set(id, "windup")
	if t.next != nil {
		t.next.PlayWindUp(id)
	}
}

func (t *AnimationTracker) PlayServeToss(id string) {
	t.set(id, "toss")
	if t.next != nil {
		t.next.PlayServeToss(id)
	}
}

// Last returns the most recent cue for an agent
func (t *AnimationTracker) Last(id string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last[id]
}
