package config

import (
	"os"
	"path/filepath"
	"testing"

	"volley-club/internal/game"
	"volley-club/internal/game/team"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

// TestDefaultIsValid verifies the built-in defaults pass validation
func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if cfg.Simulation.TickRate != 60 {
		t.Errorf("Expected 60 TPS, got %d", cfg.Simulation.TickRate)
	}
	if cfg.EventLog.RateLimit != game.MaxEventsPerSec {
		t.Errorf("Expected event rate %d, got %d", game.MaxEventsPerSec, cfg.EventLog.RateLimit)
	}
}

// TestLoadFileKeepsDefaults verifies a partial tuning file only changes the
// keys it names
func TestLoadFileKeepsDefaults(t *testing.T) {
	path := writeTuning(t, `
match:
  gravity: 12.5
  agent:
    run_speed: 7
  arbitration:
    chase_out_of_bounds_from_opponent: true
  service:
    power_multiplier: 1.2
  operator:
    enabled: true
    team: red
    position: {x: -5, y: 0, z: 1}
simulation:
  tick_rate: 30
server:
  port: 8080
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	def := Default()
	if cfg.Match.Gravity != 12.5 {
		t.Errorf("Expected gravity 12.5, got %v", cfg.Match.Gravity)
	}
	if cfg.Match.Agent.RunSpeed != 7 {
		t.Errorf("Expected run speed 7, got %v", cfg.Match.Agent.RunSpeed)
	}
	if cfg.Match.Agent.WalkSpeed != def.Match.Agent.WalkSpeed {
		t.Errorf("Expected default walk speed %v, got %v", def.Match.Agent.WalkSpeed, cfg.Match.Agent.WalkSpeed)
	}
	if !cfg.Match.Arbitration.ChaseOutOfBoundsFromOpponent {
		t.Error("Expected out-of-bounds chasing enabled")
	}
	if cfg.Match.Service.PowerMultiplier != 1.2 {
		t.Errorf("Expected serve power 1.2, got %v", cfg.Match.Service.PowerMultiplier)
	}
	if cfg.Match.Service.Angle != def.Match.Service.Angle {
		t.Errorf("Expected default serve angle, got %v", cfg.Match.Service.Angle)
	}
	if cfg.Match.Arbitration.ChaseRadius != def.Match.Arbitration.ChaseRadius {
		t.Errorf("Expected default chase radius, got %v", cfg.Match.Arbitration.ChaseRadius)
	}
	op := cfg.Match.Operator
	if !op.Enabled || op.Team != team.Red || op.Position.X != -5 || op.Position.Z != 1 {
		t.Errorf("Unexpected operator %+v", op)
	}
	if op.Name != def.Match.Operator.Name || op.AnchorHeight != def.Match.Operator.AnchorHeight {
		t.Errorf("Operator defaults lost: %+v", op)
	}
	if len(cfg.Match.Roster) != len(def.Match.Roster) {
		t.Errorf("Expected default roster of %d, got %d", len(def.Match.Roster), len(cfg.Match.Roster))
	}
	if cfg.Match.Court != def.Match.Court {
		t.Errorf("Expected default court, got %+v", cfg.Match.Court)
	}
	if cfg.Simulation.TickRate != 30 || cfg.Server.Port != 8080 {
		t.Errorf("Expected 30 TPS on port 8080, got %d on %d", cfg.Simulation.TickRate, cfg.Server.Port)
	}
	if cfg.Server.BroadcastHz != def.Server.BroadcastHz {
		t.Errorf("Expected default broadcast rate, got %d", cfg.Server.BroadcastHz)
	}
}

// TestLoadFileRoster verifies a tuning file can replace the roster
func TestLoadFileRoster(t *testing.T) {
	path := writeTuning(t, `
match:
  roster:
    - {name: left, team: red, home: {x: -4, y: 0, z: 0}}
    - {name: right, team: blue, home: {x: 4, y: 0, z: 0}}
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(cfg.Match.Roster) != 2 {
		t.Fatalf("Expected 2 roster entries, got %d", len(cfg.Match.Roster))
	}
	if r := cfg.Match.Roster[1]; r.Name != "right" || r.Team != team.Blue || r.Home.X != 4 {
		t.Errorf("Unexpected entry %+v", r)
	}
}

// TestLoadFileErrors verifies bad files are reported
func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", "match: [unclosed"},
		{"unknown team", "match:\n  operator:\n    team: green\n"},
		{"zero gravity", "match:\n  gravity: 0\n"},
		{"bad court", "match:\n  court:\n    half_length: -1\n"},
		{"zero tick rate", "simulation:\n  tick_rate: 0\n"},
		{"misspelled repeat rule", "match:\n  ball:\n    repeat_rule: consecutve\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(writeTuning(t, tt.body)); err == nil {
				t.Error("Expected an error")
			}
		})
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

// TestLoadEnvOverrides verifies the environment wins over the tuning file
func TestLoadEnvOverrides(t *testing.T) {
	path := writeTuning(t, "server:\n  port: 8080\nsimulation:\n  tick_rate: 30\n")
	t.Setenv(ConfigPathEnv, path)
	t.Setenv("PORT", "9090")
	t.Setenv("AUTO_LAUNCH", "true")
	t.Setenv("MATCH_SEED", "7")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("EVENT_LOG", "rally.jsonl.zst")
	t.Setenv("REQUEST_LOGGING", "not-a-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected env port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Simulation.TickRate != 30 {
		t.Errorf("Expected file tick rate 30, got %d", cfg.Simulation.TickRate)
	}
	if !cfg.Match.Launcher.Enabled || cfg.Match.Seed != 7 {
		t.Errorf("Expected launcher on with seed 7, got %v / %d", cfg.Match.Launcher.Enabled, cfg.Match.Seed)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("Unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.EventLog.Path != "rally.jsonl.zst" {
		t.Errorf("Expected event log path from env, got %q", cfg.EventLog.Path)
	}
	if !cfg.Server.RequestLogging {
		t.Error("An unparsable bool should keep the default")
	}
}
