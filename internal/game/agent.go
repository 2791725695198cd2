package game

import (
	"math"

	"github.com/google/uuid"

	"volley-club/internal/game/physics"
	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// Agent is one autonomous player. Permission flags are unexported: only the
// arbitrator and the possession path change them.
type Agent struct {
	ID       string
	Name     string
	Team     team.Team
	Position vec.Vec3
	Yaw      float64 // radians, 0 = facing +Z
	Home     vec.Vec3
	HomeYaw  float64
	Entity   physics.EntityID

	catchHeight float64
	mayCatch    bool
	cooldown    float64
	lastThrower string
	ball        *BallState
	state       State
}

// NewAgent creates an idle agent standing at home, facing the net
func NewAgent(name string, t team.Team, home vec.Vec3, catchHeight float64) *Agent {
	yaw := vec.New(-t.Sign(), 0, 0).Yaw()
	return &Agent{
		ID:          uuid.NewString(),
		Name:        name,
		Team:        t,
		Position:    home,
		Yaw:         yaw,
		Home:        home,
		HomeYaw:     yaw,
		catchHeight: catchHeight,
		mayCatch:    true,
	}
}

// CatchPoint is where the agent wants to receive the ball
func (a *Agent) CatchPoint() vec.Vec3 {
	return a.Position.Add(vec.Up.Scale(a.catchHeight))
}

// Forward is the planar facing direction
func (a *Agent) Forward() vec.Vec3 {
	return vec.New(math.Sin(a.Yaw), 0, math.Cos(a.Yaw))
}

// State returns a copy of the current state
func (a *Agent) State() State { return a.state }

// MayCatch reports whether the agent is currently allowed to catch
func (a *Agent) MayCatch() bool { return a.mayCatch }

// Cooldown returns the remaining catch cooldown in seconds
func (a *Agent) Cooldown() float64 { return a.cooldown }


// HasBall reports whether the agent holds the ball
func (a *Agent) HasBall() bool { return a.ball != nil }

// faceTowards turns toward a planar direction by at most maxStep radians
func (a *Agent) faceTowards(dir vec.Vec3, maxStep float64) {
	if dir.PlanarLen() < 1e-6 {
		return
	}
	a.Yaw = turnTowards(a.Yaw, dir.Yaw(), maxStep)
}

// turnTowards rotates cur toward target along the shorter arc
func turnTowards(cur, target, maxStep float64) float64 {
	diff := angleDiff(cur, target)
	if math.Abs(diff) <= maxStep {
		return target
	}
	return wrapAngle(cur + math.Copysign(maxStep, diff))
}

// angleDiff is target-cur wrapped to [-pi, pi]
func angleDiff(cur, target float64) float64 {
	return wrapAngle(target - cur)
}

func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Operator is the manual participant. It is never driven by the state
// machine; its touches arrive as external strikes.
type Operator struct {
	ID          string
	Name        string
	Team        team.Team
	Position    vec.Vec3
	Entity      physics.EntityID
	catchHeight float64
	mayCatch    bool
}

// NewOperator creates the manual participant
func NewOperator(cfg OperatorConfig) *Operator {
	return &Operator{
		ID:          uuid.NewString(),
		Name:        cfg.Name,
		Team:        cfg.Team,
		Position:    cfg.Position,
		catchHeight: cfg.AnchorHeight + cfg.CatchOffset,
		mayCatch:    true,
	}
}

// CatchPoint is where throws to the operator are aimed
func (o *Operator) CatchPoint() vec.Vec3 {
	return o.Position.Add(vec.Up.Scale(o.catchHeight))
}

// MayCatch reports whether throws may currently target the operator
func (o *Operator) MayCatch() bool { return o.mayCatch }

// Candidate is a possible recipient: an agent or the operator
type Candidate struct {
	ID         string
	Name       string
	Team       team.Team
	Position   vec.Vec3
	CatchPoint vec.Vec3
	Agent      *Agent
	Operator   *Operator
}

func agentCandidate(a *Agent) Candidate {
	return Candidate{ID: a.ID, Name: a.Name, Team: a.Team, Position: a.Position, CatchPoint: a.CatchPoint(), Agent: a}
}

func operatorCandidate(o *Operator) Candidate {
	return Candidate{ID: o.ID, Name: o.Name, Team: o.Team, Position: o.Position, CatchPoint: o.CatchPoint(), Operator: o}
}
