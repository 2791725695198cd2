package game

import (
	"fmt"
	"log"
	"math"

	"volley-club/internal/game/ballistics"
	"volley-club/internal/game/physics"
	"volley-club/internal/game/possession"
	"volley-club/internal/game/vec"
)

// yawTolerance is how close to the home heading counts as facing home
const yawTolerance = 5 * math.Pi / 180

// ============================================================================
// STATE STEPS
// ============================================================================

func stepIdle(m *Match, a *Agent, dt float64) {
	if m.senseTick() && m.senseBall(a) {
		m.tryCatch(a)
		return
	}

	cfg := m.cfg.Agent
	if !cfg.AutoReturnHome || m.atHome(a) {
		a.state.Timer = 0
		return
	}
	a.state.Timer += dt
	if a.state.Timer >= cfg.ReturnToHomeDelay {
		m.transition(a, State{Kind: StateReturningHome})
	}
}

func stepMovingToTarget(m *Match, a *Agent, dt float64) {
	if m.senseTick() && m.senseBall(a) {
		m.tryCatch(a)
		return
	}

	cfg := m.cfg.Agent
	if m.arbitrator.stale(m.arbitrator.prediction) {
		m.transition(a, State{Kind: StateIdle})
		return
	}

	dest := m.validator.Clamp(a.Team, a.state.Target).WithY(a.Position.Y)
	dist := vec.PlanarDist(a.Position, dest)
	if dist < cfg.StoppingDistance {
		m.transition(a, State{Kind: StateIdle})
		return
	}

	if speed := m.moveSpeed(dist); speed != a.state.Speed {
		a.state.Speed = speed
		m.anim.PlayMove(a.ID, speed)
	}

	next := vec.MoveTowards(a.Position, dest, a.state.Speed*dt)
	if !m.validator.CanOccupy(a.Team, next) || vec.PlanarDist(next, a.Home) > cfg.MaxMoveDistance {
		m.transition(a, State{Kind: StateIdle})
		return
	}
	a.faceTowards(next.Sub(a.Position), cfg.RotationSpeed*dt)
	a.Position = next
}

func stepPreparingAction(m *Match, a *Agent, dt float64) {
	if a.ball == nil {
		m.lifecycleFault(a, "%s preparing without the ball", a.Name)
		return
	}
	m.holdBall(a.CatchPoint())

	a.state.Timer += dt
	if a.state.Timer >= m.cfg.Agent.WindUp {
		m.transition(a, State{Kind: StatePerformingAction})
	}
}

func stepPerformingAction(m *Match, a *Agent, dt float64) {
	if a.ball == nil {
		m.lifecycleFault(a, "%s performing without the ball", a.Name)
		return
	}

	to, err := m.selector.SelectRecipient(a, m.roster, m.ball.possession)
	if err != nil {
		m.noValidTarget(a, err)
		return
	}
	m.launch(a, a.CatchPoint(), to, m.cfg.Agent.ThrowAngle, 1)
	m.afterAction(a)
}

func stepServing(m *Match, a *Agent, dt float64) {
	if a.ball == nil && a.state.Phase != ServeFollowThrough {
		m.lifecycleFault(a, "%s serving without the ball", a.Name)
		return
	}

	svc := m.cfg.Service
	a.state.Timer += dt
	switch a.state.Phase {
	case ServePrep:
		m.holdBall(m.serveHoldPoint(a))
		if a.state.Timer >= svc.PrepTime {
			m.physics.SetGravityEnabled(m.ball.Entity, true)
			m.physics.SetVelocity(m.ball.Entity, vec.Up.Scale(svc.TossSpeed))
			m.anim.PlayServeToss(a.ID)
			a.state.Phase = ServeToss
			a.state.Timer = 0
		}

	case ServeToss:
		if !a.state.Cued && a.state.Timer >= svc.AnimationDelay {
			a.state.Cued = true
			m.anim.PlayWindUp(a.ID)
		}
		if a.state.Timer >= svc.HitDelay() {
			m.serveHit(a)
		}

	case ServeFollowThrough:
		if a.state.Timer >= svc.FollowThrough {
			m.transition(a, State{Kind: StateIdle})
		}
	}
}

func stepReturningHome(m *Match, a *Agent, dt float64) {
	cfg := m.cfg.Agent
	dist := vec.PlanarDist(a.Position, a.Home)

	if dist > cfg.MinReturnDistance {
		speed := cfg.WalkSpeed
		if dist < 1 {
			speed *= 0.5
		}
		if speed != a.state.Speed {
			a.state.Speed = speed
			m.anim.PlayMove(a.ID, speed)
		}
		next := vec.MoveTowards(a.Position, a.Home.WithY(a.Position.Y), speed*dt)
		a.faceTowards(next.Sub(a.Position), cfg.RotationSpeed*dt)
		a.Position = next
		return
	}

	a.Yaw = turnTowards(a.Yaw, a.HomeYaw, cfg.RotationSpeed*dt)
	if math.Abs(angleDiff(a.Yaw, a.HomeYaw)) < yawTolerance {
		a.Yaw = a.HomeYaw
		m.transition(a, State{Kind: StateIdle})
	}
}

// ============================================================================
// SENSING AND CATCHING
// ============================================================================

func (m *Match) senseTick() bool {
	return m.cfg.SenseEvery <= 1 || m.tick%uint64(m.cfg.SenseEvery) == 0
}

// senseBall checks the catch envelope: ball nearby, free, moving toward the
// agent's catch point, close in the plane and at a catchable height.
func (m *Match) senseBall(a *Agent) bool {
	cfg := m.cfg.Agent
	if a.ball != nil || !a.mayCatch || a.cooldown > 0 || m.ball.holder != nil {
		return false
	}

	found := false
	for _, id := range m.physics.FindEntitiesNear(a.Position, cfg.DetectionRadius, physics.TagBall) {
		if id == m.ball.Entity {
			found = true
			break
		}
	}
	if !found {
		return false
	}

	bp := m.physics.Position(m.ball.Entity)
	bv := m.physics.Velocity(m.ball.Entity)
	if bv.Len() <= cfg.MinApproachSpeed {
		return false
	}
	toAgent := a.CatchPoint().Sub(bp)
	if toAgent.Len() > 1e-6 && bv.Normalize().Dot(toAgent.Normalize()) <= cfg.ApproachDot {
		return false
	}
	if vec.PlanarDist(a.Position, bp) >= cfg.CatchRadius {
		return false
	}
	h := bp.Y - a.Position.Y
	return math.Abs(h-cfg.CatchHeight) <= cfg.VerticalRange
}

// tryCatch registers the touch; an accepted touch takes the ball
func (m *Match) tryCatch(a *Agent) {
	bp := m.physics.Position(m.ball.Entity)
	outcome := m.registerTouch(a.ID, a.Name, a.Team, bp)

	switch outcome {
	case possession.Accepted:
		if h := m.arbitrator.holder; h != nil && h != a {
			m.transition(h, State{Kind: StateIdle})
		}
		m.transition(a, State{Kind: StatePreparingAction})
	case possession.RejectedSameAgent:
		a.cooldown = m.cfg.Agent.RejectCooldown
	case possession.Fault:
		m.flow.OnFault(a.Team)
	}
}

// ============================================================================
// BALL OWNERSHIP
// ============================================================================

func (m *Match) attachBall(a *Agent) {
	if h := m.ball.holder; h != nil && h != a {
		m.releaseBall(h)
	}
	a.ball = &m.ball
	m.ball.holder = a
	m.physics.SetGravityEnabled(m.ball.Entity, false)
	m.physics.SetVelocity(m.ball.Entity, vec.Vec3{})
	m.physics.SetPosition(m.ball.Entity, a.CatchPoint())
}

// releaseBall drops a's reference; a ball not yet launched falls freely
func (m *Match) releaseBall(a *Agent) {
	if a.ball == nil {
		return
	}
	if a.ball.holder == a {
		a.ball.holder = nil
		m.physics.SetGravityEnabled(a.ball.Entity, true)
	}
	a.ball = nil
}

func (m *Match) holdBall(p vec.Vec3) {
	m.physics.SetPosition(m.ball.Entity, p)
	m.physics.SetVelocity(m.ball.Entity, vec.Vec3{})
}

// ============================================================================
// THROWING AND SERVING
// ============================================================================

// launch solves and applies the velocity from start to the recipient's catch
// point, then hands catching rights to the recipient
func (m *Match) launch(a *Agent, start vec.Vec3, to Candidate, angleDeg, power float64) vec.Vec3 {
	d := vec.PlanarDist(start, to.CatchPoint)
	v, err := m.solveLaunch(start, to.CatchPoint, angleDeg, power)
	fallback := err != nil
	if fallback {
		m.stats.InvalidGeometry++
		log.Printf("⚠️ %s → %s: %v", a.Name, to.Name, err)
		m.emit(EventTypeAnomaly, a.ID, AnomalyPayload{Kind: "invalid_geometry", Detail: err.Error()})
	}

	m.ball.holder = nil
	a.ball = nil
	m.physics.SetPosition(m.ball.Entity, start)
	m.physics.SetGravityEnabled(m.ball.Entity, true)
	m.physics.SetVelocity(m.ball.Entity, v)
	m.ball.Launches++
	a.cooldown = m.cfg.Agent.CatchCooldown

	m.emit(EventTypeThrow, a.ID, ThrowPayload{
		From:     a.Name,
		To:       to.Name,
		Start:    start,
		Target:   to.CatchPoint,
		Velocity: v,
		Fallback: fallback,
	})
	log.Printf("🏐 %s → %s (%.1f m, %.1f m/s)", a.Name, to.Name, d, v.Len())

	m.arbitrator.HandOff(a, to, start, v)
	return v
}

// solveLaunch returns the drag-compensated launch velocity from start to
// target. On ErrInvalidGeometry the returned velocity is the solver fallback.
func (m *Match) solveLaunch(start, target vec.Vec3, angleDeg, power float64) (vec.Vec3, error) {
	comp := ballistics.DragCompensation(m.cfg.Ball.Drag, vec.PlanarDist(start, target)) * power
	v, err := ballistics.SolveLaunchVelocity(start, target, m.physics.GravityMagnitude(), angleDeg, comp)
	if err != nil {
		return v, fmt.Errorf("%w: %v, using fallback velocity", ErrInvalidGeometry, err)
	}
	return v, nil
}

func (m *Match) afterAction(a *Agent) {
	if m.cfg.Agent.AutoReturnHome {
		m.transition(a, State{Kind: StateReturningHome})
		return
	}
	m.transition(a, State{Kind: StateIdle})
}

func (m *Match) noValidTarget(a *Agent, err error) {
	m.stats.NoValidTarget++
	log.Printf("⚠️ %s has nobody to pass to: %v", a.Name, err)
	m.emit(EventTypeAnomaly, a.ID, AnomalyPayload{Kind: "no_valid_target", Detail: err.Error()})
	m.transition(a, State{Kind: StateIdle})
}

// enterServing steps behind the baseline, faces the net and takes the ball
func (m *Match) enterServing(a *Agent) {
	g := m.validator.Geometry()
	spot := vec.New(g.Baseline(a.Team)+a.Team.Sign()*m.cfg.Service.DistanceBack, a.Position.Y, a.Home.Z)
	a.Position = m.validator.Clamp(a.Team, spot)
	a.Yaw = vec.New(-a.Team.Sign(), 0, 0).Yaw()
	m.physics.SetPosition(a.Entity, a.Position)

	m.attachBall(a)
	m.holdBall(m.serveHoldPoint(a))
}

func (m *Match) serveHoldPoint(a *Agent) vec.Vec3 {
	svc := m.cfg.Service
	return a.Position.Add(vec.Up.Scale(svc.HoldUp)).Add(a.Forward().Scale(svc.HoldForward))
}

// serveHit strikes the tossed ball toward the opposing team
func (m *Match) serveHit(a *Agent) {
	svc := m.cfg.Service
	start := m.physics.Position(m.ball.Entity)
	if hit := a.CatchPoint(); start.Sub(hit).Len() <= svc.HitPointTolerance {
		start = hit
	}

	to, err := m.selector.SelectServiceRecipient(a, m.roster)
	if err != nil {
		m.noValidTarget(a, err)
		return
	}

	if outcome := m.registerTouch(a.ID, a.Name, a.Team, start); outcome != possession.Accepted {
		log.Printf("⚠️ Serve touch by %s was %s", a.Name, outcome)
	}

	v := m.launch(a, start, to, svc.Angle, svc.PowerMultiplier)
	m.emit(EventTypeServe, a.ID, ServePayload{Server: a.Name, Receiver: to.Name, Velocity: v})

	a.state.Phase = ServeFollowThrough
	a.state.Timer = 0
}
