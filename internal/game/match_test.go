package game

import (
	"errors"
	"math"
	"testing"

	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// cueRecorder keeps the animation cues of every agent in order
type cueRecorder struct {
	cues map[string][]string
}

func newCueRecorder() *cueRecorder {
	return &cueRecorder{cues: make(map[string][]string)}
}

func (c *cueRecorder) add(id, cue string) { c.cues[id] = append(c.cues[id], cue) }

func (c *cueRecorder) PlayIdle(id string)            { c.add(id, "idle") }
func (c *cueRecorder) PlayMove(id string, _ float64) { c.add(id, "move") }
func (c *cueRecorder) PlayWindUp(id string)          { c.add(id, "windup") }
func (c *cueRecorder) PlayServeToss(id string)       { c.add(id, "toss") }

// TestNewMatchRejectsBadConfig verifies construction validates the config and homes
func TestNewMatchRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MatchConfig)
		target error
	}{
		{"zero gravity", func(c *MatchConfig) { c.Gravity = 0 }, nil},
		{"no touches", func(c *MatchConfig) { c.Ball.MaxTouches = 0 }, nil},
		{"misspelled repeat rule", func(c *MatchConfig) { c.Ball.RepeatRule = "consecutve" }, nil},
		{"home across the net", func(c *MatchConfig) {
			c.Roster = append(c.Roster, RosterEntry{Name: "red-4", Team: team.Red, Home: vec.New(2, 0, 0)})
		}, ErrBoundaryViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewMatch(cfg, newWorld())
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
		})
	}
}

// TestNewMatchSpawns verifies agents face the net and the ball waits above the first server
func TestNewMatchSpawns(t *testing.T) {
	m, world := newTestMatch(t, func(c *MatchConfig) { c.Operator.Enabled = true })

	if m.roster.Len() != 6 {
		t.Fatalf("Expected 6 agents, got %d", m.roster.Len())
	}
	if world.Len() != 8 {
		t.Errorf("Expected 8 bodies (6 agents, operator, ball), got %d", world.Len())
	}
	for _, a := range m.roster.Agents() {
		if fwd := a.Forward(); fwd.X*-a.Team.Sign() < 0.99 {
			t.Errorf("%s does not face the net: forward %+v", a.Name, fwd)
		}
	}
	if m.server == nil || m.server.Name != "red-1" {
		t.Fatalf("Expected red-1 to serve first, got %v", m.server)
	}
	want := m.server.Position.Add(vec.Up.Scale(m.cfg.Ball.SpawnHeight))
	if got := m.BallPosition(); got != want {
		t.Errorf("Expected ball at %+v, got %+v", want, got)
	}
}

// TestServeSequence verifies the serve timeline from request to follow-through
func TestServeSequence(t *testing.T) {
	cues := newCueRecorder()
	rec := &eventRecorder{}
	m, world := newTestMatch(t, func(c *MatchConfig) {
		c.Service.PowerMultiplier = 1
	}, WithAnimator(cues), WithEventSink(rec.sink))

	if err := m.RequestServe("nobody"); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("Expected ErrUnknownAgent, got %v", err)
	}
	if err := m.RequestServe("red-1"); err != nil {
		t.Fatalf("RequestServe failed: %v", err)
	}
	server := mustAgent(t, m, "red-1")

	if server.state.Kind != StateServing || !server.HasBall() {
		t.Fatalf("Expected serving with the ball, got %s ball=%v", server.state.Kind, server.HasBall())
	}
	g := m.validator.Geometry()
	if server.Position.X != g.Baseline(team.Red)-m.cfg.Service.DistanceBack {
		t.Errorf("Expected server behind the baseline, got x=%v", server.Position.X)
	}
	if !m.rallyActive || m.rally != 1 {
		t.Errorf("Expected rally 1 active, got %d active=%v", m.rally, m.rallyActive)
	}

	dt := 1.0 / 60
	elapsed := 0.0
	for ; elapsed < 2 && m.ball.Launches == 0; elapsed += dt {
		world.Step(dt)
		m.Step(dt)
		if elapsed < m.cfg.Service.PrepTime-dt && m.ball.Holder() != server {
			t.Fatal("Server lost the ball during preparation")
		}
	}

	svc := m.cfg.Service
	if m.ball.Launches != 1 {
		t.Fatalf("Serve never launched")
	}
	if want := svc.PrepTime + svc.HitDelay(); math.Abs(elapsed-want) > 3*dt {
		t.Errorf("Expected hit about %.2fs after the request, got %.2fs", want, elapsed)
	}
	if got := cues.cues[server.ID]; len(got) < 2 || got[0] != "toss" || got[1] != "windup" {
		t.Errorf("Expected toss then windup cues, got %v", got)
	}

	p := m.ball.possession
	if p.CurrentTeam() != team.Red || p.Count() != 1 || p.LastToucher() != server.ID {
		t.Errorf("Expected the serve touch, got %s %d %q", p.CurrentTeam(), p.Count(), p.LastToucher())
	}
	serves := rec.ofType(EventTypeServe)
	if len(serves) != 1 || serves[0].Payload.(ServePayload).Receiver != "blue-3" {
		t.Fatalf("Expected a serve to blue-3, got %v", serves)
	}
	if h := m.arbitrator.Holder(); h == nil || h.Name != "blue-3" {
		t.Errorf("Expected blue-3 to chase the serve, got %v", h)
	}
	if server.state.Phase != ServeFollowThrough {
		t.Errorf("Expected follow-through, got %s", server.state.Phase)
	}

	run(m, world, svc.FollowThrough+dt, dt, nil)
	if server.state.Kind == StateServing {
		t.Error("Server still serving after the follow-through")
	}
}

// TestRequestServeInterruptsRally verifies a serve request resets the rally
func TestRequestServeInterruptsRally(t *testing.T) {
	m, _ := newTestMatch(t, nil)
	catcher := mustAgent(t, m, "blue-1")
	m.transition(catcher, State{Kind: StatePreparingAction})
	m.registerTouch(catcher.ID, catcher.Name, catcher.Team, catcher.CatchPoint())

	if err := m.RequestServe("blue-2"); err != nil {
		t.Fatalf("RequestServe failed: %v", err)
	}
	if catcher.HasBall() || catcher.state.Kind != StateIdle {
		t.Errorf("Previous holder not idled: %s", catcher.state.Kind)
	}
	if m.ball.Holder() == nil || m.ball.Holder().Name != "blue-2" {
		t.Errorf("Expected blue-2 to hold the ball")
	}
	if p := m.ball.possession; p.CurrentTeam() != team.Blue || p.Count() != 0 {
		t.Errorf("Expected fresh Blue possession, got %s %d", p.CurrentTeam(), p.Count())
	}
}

// TestScheduledServe verifies Begin schedules the opening serve
func TestScheduledServe(t *testing.T) {
	m, world := newTestMatch(t, func(c *MatchConfig) { c.Service.AutoServe = true })
	m.Begin()

	run(m, world, m.cfg.Service.ServeDelay-0.1, 0.01, nil)
	if m.rally != 0 {
		t.Fatalf("Serve started early")
	}
	run(m, world, 0.2, 0.01, nil)
	if m.rally != 1 || m.server.state.Kind != StateServing {
		t.Errorf("Expected rally 1 served by %s, got rally %d state %s", m.server.Name, m.rally, m.server.state.Kind)
	}
}

// TestMoveOperator verifies the operator follows requests and rejects bad input
func TestMoveOperator(t *testing.T) {
	m, world := newTestMatch(t, nil)
	if err := m.MoveOperator(vec.New(1, 0, 1)); !errors.Is(err, ErrNoOperator) {
		t.Errorf("Expected ErrNoOperator, got %v", err)
	}

	m, world = newTestMatch(t, func(c *MatchConfig) { c.Operator.Enabled = true })
	p := vec.New(6, 0, -1)
	if err := m.MoveOperator(p); err != nil {
		t.Fatalf("MoveOperator failed: %v", err)
	}
	op := m.roster.Operator()
	if op.Position != p || world.Position(op.Entity) != p {
		t.Errorf("Expected operator at %+v, got %+v", p, op.Position)
	}
	if err := m.MoveOperator(vec.New(math.Inf(1), 0, 0)); !errors.Is(err, ErrInvalidStrike) {
		t.Errorf("Expected ErrInvalidStrike, got %v", err)
	}
}
