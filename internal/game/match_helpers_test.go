package game

import (
	"testing"

	"volley-club/internal/game/physics"
	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// recordingFlow captures rally-ending callbacks instead of scoring them
type recordingFlow struct {
	faults   []team.Team
	grounded []vec.Vec3
}

func (f *recordingFlow) OnFault(t team.Team)       { f.faults = append(f.faults, t) }
func (f *recordingFlow) OnBallGrounded(p vec.Vec3) { f.grounded = append(f.grounded, p) }

// recordedEvent is one event seen by the test sink
type recordedEvent struct {
	Type    EventType
	Source  string
	Payload interface{}
}

type eventRecorder struct {
	events []recordedEvent
}

func (r *eventRecorder) sink(t EventType, source string, payload interface{}) {
	r.events = append(r.events, recordedEvent{Type: t, Source: source, Payload: payload})
}

func (r *eventRecorder) ofType(t EventType) []recordedEvent {
	var out []recordedEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// testConfig is the default 3v3 match with a fixed seed and no automatic serve
func testConfig() MatchConfig {
	cfg := DefaultMatchConfig()
	cfg.Seed = 1
	cfg.Service.AutoServe = false
	cfg.Launcher.Enabled = false
	return cfg
}

// newTestMatch builds a match on a fresh world. mutate may adjust the config.
func newTestMatch(t *testing.T, mutate func(*MatchConfig), opts ...MatchOption) (*Match, *physics.World) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	world := newWorld()
	m, err := NewMatch(cfg, world, opts...)
	if err != nil {
		t.Fatalf("NewMatch failed: %v", err)
	}
	world.OnGround(func(id physics.EntityID, p vec.Vec3) {
		if id == m.ball.Entity {
			m.BallGrounded(p)
		}
	})
	return m, world
}

func newWorld() *physics.World {
	return physics.NewWorld(physics.DefaultConfig())
}

// run steps world and match together for the given simulated seconds
func run(m *Match, world *physics.World, seconds, dt float64, until func() bool) {
	for elapsed := 0.0; elapsed < seconds; elapsed += dt {
		world.Step(dt)
		m.Step(dt)
		if until != nil && until() {
			return
		}
	}
}

func mustAgent(t *testing.T, m *Match, name string) *Agent {
	t.Helper()
	a := m.roster.Find(name)
	if a == nil {
		t.Fatalf("agent %s not in roster", name)
	}
	return a
}

func agentsIn(m *Match, kind StateKind) []*Agent {
	var out []*Agent
	for _, a := range m.roster.Agents() {
		if a.state.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}
