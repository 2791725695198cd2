package game

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"volley-club/internal/game/court"
	"volley-club/internal/game/physics"
	"volley-club/internal/game/possession"
	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// BallState is the match's single ball
type BallState struct {
	Entity   physics.EntityID
	Launches int

	possession *possession.Tracker
	holder     *Agent
}

// Possession returns the rule tracker of the ball
func (b *BallState) Possession() *possession.Tracker { return b.possession }

// Holder returns the agent holding the ball, or nil
func (b *BallState) Holder() *Agent { return b.holder }

// MatchStats counts notable outcomes for metrics
type MatchStats struct {
	Arbitrations    map[ArbitrationOutcome]uint64
	Touches         map[possession.Outcome]uint64
	InvalidGeometry uint64
	NoValidTarget   uint64
	LifecycleFaults uint64
}

// EventSink receives match events as they happen
type EventSink func(t EventType, sourceID string, payload interface{})

// Match is the context every component works through: it owns the roster,
// the ball and its possession, the arbitrator and the simulation clock.
// It is single threaded; the engine steps it under its lock.
type Match struct {
	ID  string
	cfg MatchConfig

	roster     *Roster
	ball       BallState
	validator  *court.Validator
	arbitrator *CatchArbitrator
	selector   *TargetSelector

	physics Physics
	anim    Animator
	flow    MatchFlow
	events  EventSink
	rng     *rand.Rand

	clock float64
	tick  uint64
	stats MatchStats

	rally       int
	rallyActive bool
	server      *Agent
	serveTimer  float64
	serveIdx    [2]int
}

// MatchOption customizes a match at construction
type MatchOption func(*Match)

// WithAnimator routes animation cues to a
func WithAnimator(a Animator) MatchOption {
	return func(m *Match) { m.anim = a }
}

// WithMatchFlow replaces the built-in referee
func WithMatchFlow(f MatchFlow) MatchOption {
	return func(m *Match) { m.flow = f }
}

// WithEventSink receives every match event
func WithEventSink(s EventSink) MatchOption {
	return func(m *Match) { m.events = s }
}

// NewMatch spawns the roster and ball in world and prepares the first serve.
// Without WithMatchFlow, a Referee keeps score and restarts rallies.
func NewMatch(cfg MatchConfig, world PhysicsWorld, opts ...MatchOption) (*Match, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("match config: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	m := &Match{
		ID:        uuid.NewString(),
		cfg:       cfg,
		roster:    NewRoster(),
		validator: court.NewValidator(cfg.Court),
		physics:   world,
		anim:      NopAnimator{},
		rng:       rng,
		stats: MatchStats{
			Arbitrations: make(map[ArbitrationOutcome]uint64),
			Touches:      make(map[possession.Outcome]uint64),
		},
	}
	m.arbitrator = newCatchArbitrator(m)
	m.selector = NewTargetSelector(rng)

	for _, e := range cfg.Roster {
		if !m.validator.CanOccupy(e.Team, e.Home) {
			return nil, fmt.Errorf("agent %s home %+v: %w", e.Name, e.Home, ErrBoundaryViolation)
		}
		a := NewAgent(e.Name, e.Team, e.Home, cfg.Agent.CatchHeight)
		a.Entity = world.AddBody(physics.TagAgent, a.Position, false, 0, 0.3)
		if err := m.roster.Add(a); err != nil {
			return nil, err
		}
	}

	if cfg.Operator.Enabled {
		op := NewOperator(cfg.Operator)
		op.Entity = world.AddBody(physics.TagOperator, op.Position, false, 0, 0.3)
		m.roster.SetOperator(op)
	}

	start := team.Red
	spawn := vec.New(0, cfg.Ball.SpawnHeight, 0)
	if first := m.pickServer(team.Red); first != nil {
		m.server = first
		start = first.Team
		spawn = first.Position.Add(vec.Up.Scale(cfg.Ball.SpawnHeight))
	}
	m.ball = BallState{possession: possession.NewTracker(cfg.Ball.PossessionConfig(), start)}
	m.ball.Entity = world.AddBody(physics.TagBall, spawn, false, cfg.Ball.Drag, cfg.Ball.Radius)

	for _, o := range opts {
		o(m)
	}
	if m.flow == nil {
		m.flow = NewReferee(m)
	}
	return m, nil
}

// Begin schedules the opening serve when auto-serve is on
func (m *Match) Begin() {
	if m.cfg.Service.AutoServe && m.server != nil {
		m.serveTimer = m.cfg.Service.ServeDelay
	}
}

// Step advances every agent by dt. The physics world is stepped by the caller.
func (m *Match) Step(dt float64) {
	m.clock += dt
	m.tick++

	m.arbitrator.checkHolder()

	for _, a := range m.roster.Agents() {
		if a.cooldown > 0 {
			a.cooldown -= dt
		}
	}

	for _, a := range m.roster.Agents() {
		m.stepAgent(a, dt)
	}

	for _, a := range m.roster.Agents() {
		m.physics.SetPosition(a.Entity, a.Position)
	}

	if m.serveTimer > 0 {
		m.serveTimer -= dt
		if m.serveTimer <= 0 && m.server != nil {
			m.serveTimer = 0
			if err := m.RequestServe(m.server.Name); err != nil {
				log.Printf("⚠️ Scheduled serve failed: %v", err)
			}
		}
	}
}

// registerTouch feeds the possession tracker and records the outcome
func (m *Match) registerTouch(id, name string, t team.Team, at vec.Vec3) possession.Outcome {
	p := m.ball.possession
	outcome := p.RegisterTouch(possession.Touch{
		ToucherID: id,
		Name:      name,
		Team:      t,
		Time:      m.clock,
		Position:  at,
	})
	m.stats.Touches[outcome]++

	m.emit(EventTypeTouch, id, TouchPayload{
		ToucherID: id,
		Name:      name,
		Team:      t,
		Outcome:   outcome.String(),
		Count:     p.Count(),
	})
	switch outcome {
	case possession.Accepted:
		log.Printf("🤲 %s touches (%s %d/%d)", name, p.CurrentTeam(), p.Count(), p.MaxTouches())
	case possession.RejectedSameAgent:
		log.Printf("🚫 %s may not touch again this possession", name)
	case possession.Fault:
		log.Printf("❌ %s exceeds %d touches", t, p.MaxTouches())
	}
	return outcome
}

// NotifyExternalStrike tells the match the ball was hit from outside the
// state machine. The physics body is expected to carry pos and vel already.
// striker is the operator when it made the hit, else nil.
func (m *Match) NotifyExternalStrike(pos, vel vec.Vec3, striker *Operator) error {
	if !pos.IsFinite() || !vel.IsFinite() {
		return ErrInvalidStrike
	}
	if h := m.ball.holder; h != nil {
		m.transition(h, State{Kind: StateIdle})
	}
	m.rallyActive = true

	src := ""
	if striker != nil {
		src = striker.ID
		if m.registerTouch(striker.ID, striker.Name, striker.Team, pos) == possession.Fault {
			m.flow.OnFault(striker.Team)
			return nil
		}
	}
	m.emit(EventTypeStrike, src, StrikePayload{Position: pos, Velocity: vel, Operator: striker != nil})
	log.Printf("💥 Strike at (%.1f, %.1f, %.1f) v=%.1f m/s", pos.X, pos.Y, pos.Z, vel.Len())

	m.arbitrator.RestoreCatching()
	m.arbitrator.OnExternalStrike(pos, vel)
	return nil
}

// StrikeBall moves the ball, launches it and notifies the match. byOperator
// attributes the hit to the operator.
func (m *Match) StrikeBall(pos, vel vec.Vec3, byOperator bool) error {
	if !pos.IsFinite() || !vel.IsFinite() {
		return ErrInvalidStrike
	}
	var striker *Operator
	if byOperator {
		if striker = m.roster.Operator(); striker == nil {
			return ErrNoOperator
		}
	}
	if h := m.ball.holder; h != nil {
		m.transition(h, State{Kind: StateIdle})
	}
	m.physics.SetPosition(m.ball.Entity, pos)
	m.physics.SetGravityEnabled(m.ball.Entity, true)
	m.physics.SetVelocity(m.ball.Entity, vel)
	return m.NotifyExternalStrike(pos, vel, striker)
}

// RequestServe starts a new rally served by the named agent
func (m *Match) RequestServe(name string) error {
	a := m.roster.Find(name)
	if a == nil {
		return fmt.Errorf("serve by %q: %w", name, ErrUnknownAgent)
	}

	if h := m.ball.holder; h != nil && h != a {
		m.transition(h, State{Kind: StateIdle})
	}
	if h := m.arbitrator.holder; h != nil {
		m.transition(h, State{Kind: StateIdle})
	}

	m.ball.possession.Reset(a.Team)
	m.arbitrator.clear()
	m.arbitrator.RestoreCatching()
	m.serveTimer = 0
	m.server = a
	m.rally++
	m.rallyActive = true

	m.transition(a, State{Kind: StateServing, Phase: ServePrep})

	m.emit(EventTypeRallyStart, a.ID, RallyStartPayload{Rally: m.rally, Server: a.Name, Team: a.Team})
	log.Printf("🏐 Rally %d: %s serves for %s", m.rally, a.Name, a.Team)
	return nil
}

// ResetRally ends the current rally: everyone idles, catching is restored,
// the ball waits above the next server and the serve is scheduled.
func (m *Match) ResetRally(serving team.Team) {
	for _, a := range m.roster.Agents() {
		if a.state.Kind != StateIdle || a.ball != nil {
			m.transition(a, State{Kind: StateIdle})
		}
	}
	m.arbitrator.clear()
	m.arbitrator.RestoreCatching()
	m.ball.possession.Reset(serving)
	m.rallyActive = false

	m.server = m.pickServer(serving)
	spawn := vec.New(0, m.cfg.Ball.SpawnHeight, 0)
	if m.server != nil {
		spawn = m.server.Position.Add(vec.Up.Scale(m.cfg.Ball.SpawnHeight))
	}
	m.physics.SetGravityEnabled(m.ball.Entity, false)
	m.physics.SetVelocity(m.ball.Entity, vec.Vec3{})
	m.physics.SetPosition(m.ball.Entity, spawn)

	m.serveTimer = 0
	if m.cfg.Service.AutoServe && m.server != nil {
		m.serveTimer = m.cfg.Service.ServeDelay
	}
}

// pickServer rotates through the members of t
func (m *Match) pickServer(t team.Team) *Agent {
	members := m.roster.TeamMembers(t)
	if len(members) == 0 {
		members = m.roster.Agents()
	}
	if len(members) == 0 {
		return nil
	}
	a := members[m.serveIdx[t]%len(members)]
	m.serveIdx[t]++
	return a
}

// BallGrounded is called by the physics layer when the ball hits the floor
func (m *Match) BallGrounded(p vec.Vec3) {
	if !m.rallyActive {
		return
	}
	m.rallyActive = false
	m.emit(EventTypeGrounded, "", GroundedPayload{Point: p, InBounds: m.validator.InBounds(p)})
	m.flow.OnBallGrounded(p)
}

// MoveOperator repositions the manual participant
func (m *Match) MoveOperator(p vec.Vec3) error {
	op := m.roster.Operator()
	if op == nil {
		return ErrNoOperator
	}
	if !p.IsFinite() {
		return ErrInvalidStrike
	}
	op.Position = p
	m.physics.SetPosition(op.Entity, p)
	return nil
}

// RemoveAgent takes an agent out of the match, releasing what it held
func (m *Match) RemoveAgent(name string) error {
	a := m.roster.Find(name)
	if a == nil {
		return fmt.Errorf("remove %q: %w", name, ErrUnknownAgent)
	}
	m.transition(a, State{Kind: StateIdle})
	m.roster.Remove(name)
	if m.server == a {
		m.server = m.pickServer(a.Team)
	}
	return nil
}

func (m *Match) atHome(a *Agent) bool {
	return vec.PlanarDist(a.Position, a.Home) <= m.cfg.Agent.MinReturnDistance &&
		abs(angleDiff(a.Yaw, a.HomeYaw)) < yawTolerance
}

func (m *Match) emit(t EventType, source string, payload interface{}) {
	if m.events != nil {
		m.events(t, source, payload)
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Accessors

func (m *Match) RallyActive() bool       { return m.rallyActive }
func (m *Match) Server() *Agent          { return m.server }
func (m *Match) BallPosition() vec.Vec3  { return m.physics.Position(m.ball.Entity) }
func (m *Match) BallVelocity() vec.Vec3  { return m.physics.Velocity(m.ball.Entity) }
func (m *Match) ServeCountdown() float64 { return m.serveTimer }
