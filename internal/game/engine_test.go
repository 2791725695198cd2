package game

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"volley-club/internal/game/vec"
)

func engineConfig() MatchConfig {
	cfg := DefaultMatchConfig()
	cfg.Seed = 42
	return cfg
}

// TestNewEngine verifies engine creation and its argument checks
func TestNewEngine(t *testing.T) {
	if _, err := NewEngine(engineConfig(), 0); err == nil {
		t.Error("Expected an error for a zero tick rate")
	}
	bad := engineConfig()
	bad.Gravity = -1
	if _, err := NewEngine(bad, 60); err == nil {
		t.Error("Expected an error for negative gravity")
	}

	engine, err := NewEngine(engineConfig(), 60)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if engine.TickRate() != 60 {
		t.Errorf("Expected tick rate 60, got %d", engine.TickRate())
	}
	snap := engine.GetSnapshot()
	if snap == nil {
		t.Fatal("GetSnapshot returned nil")
	}
	if len(snap.Agents) != 6 {
		t.Errorf("Expected 6 agents in the first snapshot, got %d", len(snap.Agents))
	}
	if snap.Server != "red-1" || snap.ServeIn != engineConfig().Service.ServeDelay {
		t.Errorf("Expected red-1 to serve in %v, got %q in %v", engineConfig().Service.ServeDelay, snap.Server, snap.ServeIn)
	}
}

// TestEngineStartStop verifies the engine can start and stop cleanly
func TestEngineStartStop(t *testing.T) {
	engine, err := NewEngine(engineConfig(), 60)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	engine.Start()
	engine.Start()
	time.Sleep(100 * time.Millisecond)
	engine.Stop()
	engine.Stop()

	if snap := engine.GetSnapshot(); snap.TickNumber == 0 {
		t.Error("Expected the engine to tick while running")
	}
}

// TestEngineServeIsReceived verifies a default serve lands in the receiving
// half and the receiver is sent to meet it
func TestEngineServeIsReceived(t *testing.T) {
	engine, err := NewEngine(engineConfig(), 60)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	var serve *ServePayload
	engine.OnEvent(func(ev Event) {
		if ev.Type == EventTypeServe && serve == nil {
			serve = &ServePayload{}
			if err := json.Unmarshal(ev.Payload, serve); err != nil {
				t.Errorf("Serve payload: %v", err)
			}
		}
	})

	dt := 1.0 / 60
	for i := 0; i < 6*60 && serve == nil; i++ {
		engine.Advance(dt)
	}
	if serve == nil {
		t.Fatal("Expected a serve within 6 seconds")
	}

	engine.WithMatch(func(m *Match) {
		holder := m.arbitrator.Holder()
		if holder == nil {
			t.Fatal("Expected a chaser for the default serve")
		}
		if holder.Name != serve.Receiver {
			t.Errorf("Expected receiver %s to chase, got %s", serve.Receiver, holder.Name)
		}
		p := m.arbitrator.Prediction()
		if !p.Valid || !m.validator.InBounds(p.Point) || m.validator.SideOf(p.Point) != holder.Team {
			t.Errorf("Expected a landing inside the %s half, got %+v", holder.Team, p.Point)
		}
	})

	if n := engine.Stats().Arbitrations[OutcomeAssigned]; n == 0 {
		t.Error("Expected the serve to be assigned")
	}
}

// TestEngineLongServeIsConceded verifies a full rally: scheduled serve,
// flight, grounding and the awarded point. A 1.2 serve power carries the ball
// past the Blue baseline, so nobody chases it.
func TestEngineLongServeIsConceded(t *testing.T) {
	cfg := engineConfig()
	cfg.Service.PowerMultiplier = 1.2
	engine, err := NewEngine(cfg, 60)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	var points []Event
	engine.OnEvent(func(ev Event) {
		if ev.Type == EventTypePoint {
			points = append(points, ev)
		}
	})

	dt := 1.0 / 60
	for i := 0; i < 6*60; i++ {
		engine.Advance(dt)

		engine.WithMatch(func(m *Match) {
			moving := agentsIn(m, StateMovingToTarget)
			if len(moving) > 1 || (len(moving) == 1 && moving[0] != m.arbitrator.Holder()) {
				t.Fatalf("Tick %d: chaser without exclusive token", i)
			}
		})
	}

	red, blue := engine.Score()
	if red != 1 || blue != 0 {
		t.Fatalf("Expected 1:0, got %d:%d", red, blue)
	}
	hist := engine.Referee().History()
	if len(hist) != 1 || hist[0].Reason != "out" {
		t.Errorf("Expected one point for an out ball, got %+v", hist)
	}
	if len(points) != 1 {
		t.Fatalf("Expected 1 point event, got %d", len(points))
	}
	var pp PointPayload
	if err := json.Unmarshal(points[0].Payload, &pp); err != nil {
		t.Fatalf("Point payload: %v", err)
	}
	if pp.Red != 1 || pp.Reason != "out" {
		t.Errorf("Unexpected point payload %+v", pp)
	}

	stats := engine.Stats()
	if stats.LifecycleFaults != 0 {
		t.Errorf("Expected no lifecycle faults, got %d", stats.LifecycleFaults)
	}
	if stats.Arbitrations[OutcomeNoEligibleAgent] == 0 {
		t.Error("Expected the out-of-bounds serve to be conceded")
	}

	snap := engine.GetSnapshot()
	if snap.RallyActive || snap.Red != 1 || snap.Server == "" {
		t.Errorf("Unexpected snapshot after the point: active=%v red=%d server=%q", snap.RallyActive, snap.Red, snap.Server)
	}
}

// TestEngineCommands verifies the externally callable operations
func TestEngineCommands(t *testing.T) {
	cfg := engineConfig()
	cfg.Service.AutoServe = false
	engine, err := NewEngine(cfg, 30)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	var starts []Event
	engine.OnEvent(func(ev Event) {
		if ev.Type == EventTypeRallyStart {
			starts = append(starts, ev)
		}
	})

	if err := engine.RequestServe(""); err != nil {
		t.Fatalf("RequestServe failed: %v", err)
	}
	if len(starts) != 1 {
		t.Fatalf("Expected 1 rally start, got %d", len(starts))
	}
	var rs RallyStartPayload
	if err := json.Unmarshal(starts[0].Payload, &rs); err != nil || rs.Server != "red-1" {
		t.Errorf("Expected red-1 to serve, got %+v (%v)", rs, err)
	}

	engine.ResetRally()
	engine.Advance(1.0 / 30)
	if snap := engine.GetSnapshot(); snap.RallyActive || snap.Ball.Holder != "" {
		t.Errorf("Expected a reset rally, got active=%v holder=%q", snap.RallyActive, snap.Ball.Holder)
	}

	if err := engine.MoveOperator(vec.New(5, 0, 0)); !errors.Is(err, ErrNoOperator) {
		t.Errorf("Expected ErrNoOperator, got %v", err)
	}
	if err := engine.StrikeBall(vec.New(-5, 2, 0), vec.New(8, 5, 0.5), false); err != nil {
		t.Fatalf("StrikeBall failed: %v", err)
	}
	if s := engine.Stats(); s.Arbitrations[OutcomeAssigned] != 1 {
		t.Errorf("Expected 1 assignment, got %d", s.Arbitrations[OutcomeAssigned])
	}

	// Stats returns a copy
	s := engine.Stats()
	s.Arbitrations[OutcomeAssigned] = 99
	if engine.Stats().Arbitrations[OutcomeAssigned] != 1 {
		t.Error("Stats leaked the live map")
	}
}

// TestEngineTickHook verifies the tick hook sees every tick
func TestEngineTickHook(t *testing.T) {
	engine, err := NewEngine(engineConfig(), 60)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	ticks := 0
	engine.OnTick(func(d time.Duration) {
		if d < 0 {
			t.Errorf("Negative tick duration %v", d)
		}
		ticks++
	})
	for i := 0; i < 10; i++ {
		engine.Advance(1.0 / 60)
	}
	if ticks != 10 {
		t.Errorf("Expected 10 ticks, got %d", ticks)
	}
	if snap := engine.GetSnapshot(); snap.TickNumber != 10 {
		t.Errorf("Expected snapshot tick 10, got %d", snap.TickNumber)
	}
}
