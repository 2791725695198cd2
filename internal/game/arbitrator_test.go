package game

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"volley-club/internal/game/ballistics"
	"volley-club/internal/game/possession"
	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

func prediction(m *Match, p, origin vec.Vec3) LandingPrediction {
	return LandingPrediction{Point: p, Origin: origin, Height: p.Y, Valid: true, At: m.clock}
}

// TestAssignClosestEligibleAgent verifies the nearest eligible agent gets the token
func TestAssignClosestEligibleAgent(t *testing.T) {
	m, _ := newTestMatch(t, nil)
	origin := vec.New(-5, 2, 0)

	got, outcome := m.arbitrator.AssignClosestEligibleAgent(prediction(m, vec.New(3, 0, -1), origin))
	if outcome != OutcomeAssigned {
		t.Fatalf("Expected assigned, got %s", outcome)
	}
	if got == nil || got.Name != "blue-2" {
		t.Fatalf("Expected blue-2 to chase, got %v", got)
	}
	if got.state.Kind != StateMovingToTarget {
		t.Errorf("Expected moving_to_target, got %s", got.state.Kind)
	}
	if got.state.Target != vec.New(3, 0, -1) {
		t.Errorf("Expected target (3,0,-1), got %+v", got.state.Target)
	}
	if m.arbitrator.Holder() != got {
		t.Error("Arbitrator holder does not match the assigned agent")
	}
}

// TestSingleChaser verifies a new assignment idles the previous chaser
func TestSingleChaser(t *testing.T) {
	m, _ := newTestMatch(t, nil)
	origin := vec.New(-5, 2, 0)

	points := []vec.Vec3{
		vec.New(3, 0, -1),
		vec.New(3, 0, 2),
		vec.New(7, 0, 0.5),
		vec.New(3, 0, -1),
	}
	for i, p := range points {
		m.arbitrator.AssignClosestEligibleAgent(prediction(m, p, origin))

		moving := agentsIn(m, StateMovingToTarget)
		if len(moving) != 1 {
			t.Fatalf("Assignment %d: expected exactly one chaser, got %d", i, len(moving))
		}
		if moving[0] != m.arbitrator.Holder() {
			t.Errorf("Assignment %d: chaser %s does not hold the token", i, moving[0].Name)
		}
	}
}

// TestAssignOutcomes verifies every way an assignment can fail leaves nobody chasing
func TestAssignOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MatchConfig)
		pred   func(m *Match) LandingPrediction
		want   ArbitrationOutcome
	}{
		{
			name: "invalid prediction",
			pred: func(m *Match) LandingPrediction {
				p := prediction(m, vec.New(3, 0, -1), vec.New(-5, 2, 0))
				p.Valid = false
				return p
			},
			want: OutcomeInvalidPrediction,
		},
		{
			name: "stale prediction",
			pred: func(m *Match) LandingPrediction {
				p := prediction(m, vec.New(3, 0, -1), vec.New(-5, 2, 0))
				p.At = m.clock - m.cfg.Ball.PredictionValidity - 1
				return p
			},
			want: OutcomeStalePrediction,
		},
		{
			name: "out of bounds from the opponent",
			pred: func(m *Match) LandingPrediction {
				return prediction(m, vec.New(10.5, 0, 0), vec.New(-5, 2, 0))
			},
			want: OutcomeNoEligibleAgent,
		},
		{
			name: "out of bounds chase allowed",
			mutate: func(c *MatchConfig) {
				c.Arbitration.ChaseOutOfBoundsFromOpponent = true
			},
			pred: func(m *Match) LandingPrediction {
				return prediction(m, vec.New(10.5, 0, 0), vec.New(-5, 2, 0))
			},
			want: OutcomeAssigned,
		},
		{
			name: "out of bounds from own side",
			pred: func(m *Match) LandingPrediction {
				return prediction(m, vec.New(10.5, 0, 0), vec.New(5, 2, 0))
			},
			want: OutcomeAssigned,
		},
		{
			name: "beyond chase radius",
			mutate: func(c *MatchConfig) {
				c.Arbitration.ChaseRadius = 1
			},
			pred: func(m *Match) LandingPrediction {
				return prediction(m, vec.New(3, 0, -1), vec.New(-5, 2, 0))
			},
			want: OutcomeOutOfRange,
		},
		{
			name: "nobody may stand there",
			pred: func(m *Match) LandingPrediction {
				return prediction(m, vec.New(0, 0, 0), vec.New(-5, 2, 0))
			},
			want: OutcomeNoEligibleAgent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &eventRecorder{}
			m, _ := newTestMatch(t, tt.mutate, WithEventSink(rec.sink))

			got, outcome := m.arbitrator.AssignClosestEligibleAgent(tt.pred(m))
			if outcome != tt.want {
				t.Fatalf("Expected %s, got %s", tt.want, outcome)
			}
			if m.stats.Arbitrations[tt.want] != 1 {
				t.Errorf("Expected 1 %s in stats, got %d", tt.want, m.stats.Arbitrations[tt.want])
			}

			if tt.want == OutcomeAssigned {
				if got == nil || got.Team != team.Blue {
					t.Errorf("Expected a Blue chaser, got %v", got)
				}
				return
			}
			if got != nil || m.arbitrator.Holder() != nil {
				t.Error("Expected no chaser")
			}
			if n := len(agentsIn(m, StateMovingToTarget)); n != 0 {
				t.Errorf("Expected nobody moving, got %d", n)
			}
			if n := len(rec.ofType(EventTypeConcede)); n != 1 {
				t.Errorf("Expected 1 concede event, got %d", n)
			}
		})
	}
}

// TestIneligibleAgentsNeverChase verifies agents without catching rights or
// already holding the ball are skipped
func TestIneligibleAgentsNeverChase(t *testing.T) {
	origin := vec.New(-5, 2, 0)
	target := vec.New(3, 0, -1)

	t.Run("may not catch", func(t *testing.T) {
		m, _ := newTestMatch(t, nil)
		mustAgent(t, m, "blue-2").mayCatch = false

		got, outcome := m.arbitrator.AssignClosestEligibleAgent(prediction(m, target, origin))
		if outcome != OutcomeAssigned || got.Name != "blue-1" {
			t.Fatalf("Expected blue-1 assigned, got %v (%s)", got, outcome)
		}
	})

	t.Run("nobody may catch", func(t *testing.T) {
		m, _ := newTestMatch(t, nil)
		for _, a := range m.roster.Agents() {
			a.mayCatch = false
		}
		if _, outcome := m.arbitrator.AssignClosestEligibleAgent(prediction(m, target, origin)); outcome != OutcomeNoEligibleAgent {
			t.Fatalf("Expected no_eligible_agent, got %s", outcome)
		}
	})

	t.Run("holding the ball", func(t *testing.T) {
		m, _ := newTestMatch(t, nil)
		holder := mustAgent(t, m, "blue-2")
		m.transition(holder, State{Kind: StatePreparingAction})

		got, outcome := m.arbitrator.AssignClosestEligibleAgent(prediction(m, target, origin))
		if outcome != OutcomeAssigned || got.Name != "blue-1" {
			t.Fatalf("Expected blue-1 assigned, got %v (%s)", got, outcome)
		}
		if holder.state.Kind != StatePreparingAction {
			t.Errorf("Ball holder was disturbed: %s", holder.state.Kind)
		}
	})
}

// TestStalePredictionStopsChase verifies a chaser gives up once its prediction expires
func TestStalePredictionStopsChase(t *testing.T) {
	m, _ := newTestMatch(t, nil)

	chaser, outcome := m.arbitrator.AssignClosestEligibleAgent(prediction(m, vec.New(8, 0, -4), vec.New(-5, 2, 0)))
	if outcome != OutcomeAssigned {
		t.Fatalf("Expected assigned, got %s", outcome)
	}

	m.clock += m.cfg.Ball.PredictionValidity + 0.5
	m.stepAgent(chaser, 0.01)

	if chaser.state.Kind != StateIdle {
		t.Errorf("Expected idle after stale prediction, got %s", chaser.state.Kind)
	}
	if m.arbitrator.Holder() != nil {
		t.Error("Token not released after stale prediction")
	}
}

// TestPredictFallsBackToGround verifies the fallback height and the invalid case
func TestPredictFallsBackToGround(t *testing.T) {
	m, _ := newTestMatch(t, nil)
	g := m.physics.GravityMagnitude()

	// never rises to 3 m, but crosses the fallback height
	start := vec.New(0, 1, 0)
	vel := vec.New(2, 1, 0)
	p := m.arbitrator.Predict(start, vel, 3)
	if !p.Valid {
		t.Fatal("Expected a valid fallback prediction")
	}
	if p.Height != m.cfg.Ball.FallbackGroundHeight {
		t.Errorf("Expected fallback height %v, got %v", m.cfg.Ball.FallbackGroundHeight, p.Height)
	}
	want, _ := ballistics.PredictLandingAtHeight(start, vel, g, m.cfg.Ball.FallbackGroundHeight)
	if p.Point != want {
		t.Errorf("Expected %+v, got %+v", want, p.Point)
	}

	// already below the fallback height and falling
	start = vec.New(1, 0.2, 1)
	p = m.arbitrator.Predict(start, vec.New(0, -1, 0), 3)
	if p.Valid {
		t.Error("Expected an invalid prediction")
	}
	if p.Point != start {
		t.Errorf("Expected invalid prediction at start, got %+v", p.Point)
	}
}

// TestHandOffRestrictsCatching verifies only the recipient may catch a throw
func TestHandOffRestrictsCatching(t *testing.T) {
	m, _ := newTestMatch(t, func(c *MatchConfig) { c.Operator.Enabled = true })
	thrower := mustAgent(t, m, "red-1")
	recipient := mustAgent(t, m, "blue-2")

	start := thrower.CatchPoint()
	to := agentCandidate(recipient)
	vel, err := ballistics.SolveLaunchVelocity(start, to.CatchPoint, m.physics.GravityMagnitude(), 45, 1)
	if err != nil {
		t.Fatalf("SolveLaunchVelocity failed: %v", err)
	}

	m.arbitrator.HandOff(thrower, to, start, vel)

	for _, a := range m.roster.Agents() {
		if a.mayCatch != (a == recipient) {
			t.Errorf("%s: expected mayCatch=%v, got %v", a.Name, a == recipient, a.mayCatch)
		}
		want := ""
		if a == recipient {
			want = thrower.ID
		}
		if a.lastThrower != want {
			t.Errorf("%s: expected last thrower %q, got %q", a.Name, want, a.lastThrower)
		}
	}
	if m.roster.Operator().MayCatch() {
		t.Error("Operator may catch a throw aimed at an agent")
	}
	if recipient.cooldown < m.cfg.Agent.RecipientCooldown {
		t.Errorf("Expected recipient cooldown >= %v, got %v", m.cfg.Agent.RecipientCooldown, recipient.cooldown)
	}
	if m.arbitrator.Holder() != recipient {
		t.Fatalf("Expected recipient to chase, got %v", m.arbitrator.Holder())
	}
	if d := m.arbitrator.Prediction().Point.Sub(to.CatchPoint).Len(); d > 1e-6 {
		t.Errorf("Expected landing at the catch point, off by %v", d)
	}

	m.arbitrator.RestoreCatching()
	for _, a := range m.roster.Agents() {
		if !a.mayCatch || a.lastThrower != "" {
			t.Errorf("%s not restored", a.Name)
		}
	}
}

// TestStrikeBall verifies external strikes predict and assign, and reject bad input
func TestStrikeBall(t *testing.T) {
	t.Run("assigns the nearest receiver", func(t *testing.T) {
		rec := &eventRecorder{}
		m, world := newTestMatch(t, nil, WithEventSink(rec.sink))

		if err := m.StrikeBall(vec.New(-5, 2, 0), vec.New(8, 5, 0.5), false); err != nil {
			t.Fatalf("StrikeBall failed: %v", err)
		}
		if !m.rallyActive {
			t.Error("Expected an active rally after the strike")
		}
		if h := m.arbitrator.Holder(); h == nil || h.Name != "blue-1" {
			t.Errorf("Expected blue-1 to chase, got %v", h)
		}
		if !world.Body(m.ball.Entity).Gravity {
			t.Error("Expected the struck ball to be free")
		}
		if n := len(rec.ofType(EventTypeStrike)); n != 1 {
			t.Errorf("Expected 1 strike event, got %d", n)
		}
		if m.ball.possession.Count() != 0 {
			t.Errorf("Expected no touch for an anonymous strike, got %d", m.ball.possession.Count())
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		m, _ := newTestMatch(t, nil)
		nan := vec.New(math.NaN(), 0, 0)
		if err := m.StrikeBall(nan, vec.New(1, 1, 0), false); !errors.Is(err, ErrInvalidStrike) {
			t.Errorf("Expected ErrInvalidStrike, got %v", err)
		}
		if err := m.StrikeBall(vec.New(0, 2, 0), vec.New(1, 1, 0), true); !errors.Is(err, ErrNoOperator) {
			t.Errorf("Expected ErrNoOperator, got %v", err)
		}
	})

	t.Run("operator touch counts", func(t *testing.T) {
		m, _ := newTestMatch(t, func(c *MatchConfig) { c.Operator.Enabled = true })
		op := m.roster.Operator()

		if err := m.StrikeBall(op.CatchPoint(), vec.New(-8, 5, 0), true); err != nil {
			t.Fatalf("StrikeBall failed: %v", err)
		}
		p := m.ball.possession
		if p.CurrentTeam() != team.Blue || p.Count() != 1 || p.LastToucher() != op.ID {
			t.Errorf("Expected one Blue touch by the operator, got %s %d %q", p.CurrentTeam(), p.Count(), p.LastToucher())
		}
	})

	t.Run("operator fault ends the rally", func(t *testing.T) {
		flow := &recordingFlow{}
		m, _ := newTestMatch(t, func(c *MatchConfig) { c.Operator.Enabled = true }, WithMatchFlow(flow))
		for _, name := range []string{"blue-1", "blue-2", "blue-3"} {
			a := mustAgent(t, m, name)
			if out := m.registerTouch(a.ID, a.Name, a.Team, a.CatchPoint()); out != possession.Accepted {
				t.Fatalf("Touch by %s: expected accepted, got %s", name, out)
			}
		}

		op := m.roster.Operator()
		if err := m.StrikeBall(op.CatchPoint(), vec.New(-8, 5, 0), true); err != nil {
			t.Fatalf("StrikeBall failed: %v", err)
		}
		if len(flow.faults) != 1 || flow.faults[0] != team.Blue {
			t.Fatalf("Expected one Blue fault, got %v", flow.faults)
		}
		if m.arbitrator.Holder() != nil {
			t.Error("Expected no chaser after a fault")
		}
	})
}

// TestRandomStrikesKeepOneChaser verifies arbitrary strike sequences never
// leave two agents chasing at once
func TestRandomStrikesKeepOneChaser(t *testing.T) {
	m, world := newTestMatch(t, nil)
	rng := rand.New(rand.NewSource(7))
	dt := 1.0 / 60

	for i := 0; i < 200; i++ {
		pos := vec.New(rng.Float64()*16-8, 0.5+rng.Float64()*2, rng.Float64()*8-4)
		vel := vec.New(rng.Float64()*20-10, rng.Float64()*8, rng.Float64()*6-3)
		if err := m.StrikeBall(pos, vel, false); err != nil {
			t.Fatalf("Strike %d failed: %v", i, err)
		}

		for j := 0; j < 1+rng.Intn(20); j++ {
			world.Step(dt)
			m.Step(dt)

			moving := agentsIn(m, StateMovingToTarget)
			if len(moving) > 1 {
				t.Fatalf("Strike %d: %d agents chasing", i, len(moving))
			}
			if len(moving) == 1 && moving[0] != m.arbitrator.Holder() {
				t.Fatalf("Strike %d: %s chases without the token", i, moving[0].Name)
			}
			holders := 0
			for _, a := range m.roster.Agents() {
				if a.ball != nil {
					holders++
				}
			}
			if holders > 1 {
				t.Fatalf("Strike %d: %d agents hold the ball", i, holders)
			}
		}
	}
}
