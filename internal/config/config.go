// Package config provides centralized configuration management.
// Defaults live here and in the game package; a YAML tuning file and the
// environment override them, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"volley-club/internal/game"
)

// ConfigPathEnv names the environment variable pointing at the tuning file
const ConfigPathEnv = "VOLLEY_CONFIG"

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimulationConfig controls how the engine is driven
type SimulationConfig struct {
	TickRate int `yaml:"tick_rate"` // ticks per second
}

// DefaultSimulation returns the default simulation settings.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{TickRate: 60}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	DebugAddr      string   `yaml:"debug_addr"` // metrics + pprof, keep on localhost
	RateLimit      float64  `yaml:"rate_limit"` // requests per second per IP
	RateBurst      int      `yaml:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	BroadcastHz    int      `yaml:"broadcast_hz"` // spectator snapshot rate
	MaxSpectators  int      `yaml:"max_spectators"`
	RequestLogging bool     `yaml:"request_logging"`
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		DebugAddr:      "127.0.0.1:6060",
		RateLimit:      20,
		RateBurst:      40,
		AllowedOrigins: []string{"*"},
		BroadcastHz:    10,
		MaxSpectators:  100,
		RequestLogging: true,
	}
}

// ServerFromEnv applies environment overrides to the server configuration.
func ServerFromEnv(cfg ServerConfig) ServerConfig {
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.DebugAddr = addr
	}
	if r := getEnvFloat("RATE_LIMIT", 0); r > 0 {
		cfg.RateLimit = r
	}
	if b := getEnvInt("RATE_BURST", 0); b > 0 {
		cfg.RateBurst = b
	}
	if o := os.Getenv("ALLOWED_ORIGINS"); o != "" {
		cfg.AllowedOrigins = strings.Split(o, ",")
	}
	if hz := getEnvInt("BROADCAST_HZ", 0); hz > 0 {
		cfg.BroadcastHz = hz
	}
	if ms := getEnvInt("MAX_SPECTATORS", 0); ms > 0 {
		cfg.MaxSpectators = ms
	}
	cfg.RequestLogging = getEnvBool("REQUEST_LOGGING", cfg.RequestLogging)
	return cfg
}

// =============================================================================
// EVENT LOG CONFIGURATION
// =============================================================================

// EventLogConfig controls the rally event log
type EventLogConfig struct {
	Path      string `yaml:"path"`       // empty disables file output; ".zst" compresses
	RateLimit int    `yaml:"rate_limit"` // events per second across all sources
}

// DefaultEventLog returns the default event log settings.
func DefaultEventLog() EventLogConfig {
	return EventLogConfig{RateLimit: game.MaxEventsPerSec}
}

// EventLogFromEnv applies environment overrides to the event log configuration.
func EventLogFromEnv(cfg EventLogConfig) EventLogConfig {
	if p := os.Getenv("EVENT_LOG"); p != "" {
		cfg.Path = p
	}
	if r := getEnvInt("EVENT_RATE_LIMIT", 0); r > 0 {
		cfg.RateLimit = r
	}
	return cfg
}

// =============================================================================
// MATCH OVERRIDES
// =============================================================================

// MatchFromEnv applies the few match knobs worth changing without a file.
func MatchFromEnv(cfg game.MatchConfig) game.MatchConfig {
	if s := getEnvInt("MATCH_SEED", 0); s != 0 {
		cfg.Seed = int64(s)
	}
	if g := getEnvFloat("GRAVITY", 0); g > 0 {
		cfg.Gravity = g
	}
	cfg.Service.AutoServe = getEnvBool("AUTO_SERVE", cfg.Service.AutoServe)
	cfg.Launcher.Enabled = getEnvBool("AUTO_LAUNCH", cfg.Launcher.Enabled)
	cfg.Operator.Enabled = getEnvBool("OPERATOR", cfg.Operator.Enabled)
	cfg.Arbitration.ChaseOutOfBoundsFromOpponent = getEnvBool("CHASE_OUT_OF_BOUNDS", cfg.Arbitration.ChaseOutOfBoundsFromOpponent)
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Match      game.MatchConfig `yaml:"match"`
	Simulation SimulationConfig `yaml:"simulation"`
	Server     ServerConfig     `yaml:"server"`
	EventLog   EventLogConfig   `yaml:"event_log"`
}

// Default returns the configuration with no overrides applied.
func Default() AppConfig {
	return AppConfig{
		Match:      game.DefaultMatchConfig(),
		Simulation: DefaultSimulation(),
		Server:     DefaultServer(),
		EventLog:   DefaultEventLog(),
	}
}

// LoadFile overlays a YAML tuning file on top of the defaults. Keys missing
// from the file keep their default values.
func LoadFile(path string) (AppConfig, error) {
	cfg := Default()
	if err := cfg.overlay(path); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Load returns defaults, then the VOLLEY_CONFIG file if set, then the
// environment overrides.
func Load() (AppConfig, error) {
	cfg := Default()
	if path := os.Getenv(ConfigPathEnv); path != "" {
		if err := cfg.overlay(path); err != nil {
			return cfg, err
		}
	}
	cfg.Match = MatchFromEnv(cfg.Match)
	cfg.Server = ServerFromEnv(cfg.Server)
	cfg.EventLog = EventLogFromEnv(cfg.EventLog)
	if tps := getEnvInt("TICK_RATE", 0); tps > 0 {
		cfg.Simulation.TickRate = tps
	}
	return cfg, cfg.Validate()
}

func (c *AppConfig) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("tuning yaml %s: %w", path, err)
	}
	return nil
}

// Validate rejects values the simulation or server cannot run with.
func (c AppConfig) Validate() error {
	if err := c.Match.Validate(); err != nil {
		return fmt.Errorf("match config: %w", err)
	}
	if c.Simulation.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive, got %d", c.Simulation.TickRate)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Server.BroadcastHz <= 0 {
		return fmt.Errorf("broadcast rate must be positive, got %d", c.Server.BroadcastHz)
	}
	if c.EventLog.RateLimit <= 0 {
		return fmt.Errorf("event rate limit must be positive, got %d", c.EventLog.RateLimit)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
