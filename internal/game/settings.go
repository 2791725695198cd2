package game

import (
	"fmt"

	"volley-club/internal/game/court"
	"volley-club/internal/game/possession"
	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// ============================================================================
// AGENT SETTINGS
// ============================================================================

// AgentConfig tunes every agent's sensing, movement and timers
type AgentConfig struct {
	// Catch envelope
	DetectionRadius  float64 `yaml:"detection_radius" json:"detectionRadius"`
	CatchRadius      float64 `yaml:"catch_radius" json:"catchRadius"`
	CatchHeight      float64 `yaml:"catch_height" json:"catchHeight"`
	VerticalRange    float64 `yaml:"vertical_range" json:"verticalRange"`
	MinApproachSpeed float64 `yaml:"min_approach_speed" json:"minApproachSpeed"`
	ApproachDot      float64 `yaml:"approach_dot" json:"approachDot"`

	// Movement
	WalkSpeed         float64 `yaml:"walk_speed" json:"walkSpeed"`
	RunSpeed          float64 `yaml:"run_speed" json:"runSpeed"`
	RunThreshold      float64 `yaml:"run_threshold" json:"runThreshold"`
	StoppingDistance  float64 `yaml:"stopping_distance" json:"stoppingDistance"`
	MaxMoveDistance   float64 `yaml:"max_move_distance" json:"maxMoveDistance"`
	RotationSpeed     float64 `yaml:"rotation_speed" json:"rotationSpeed"`
	MinReturnDistance float64 `yaml:"min_return_distance" json:"minReturnDistance"`
	ReturnToHomeDelay float64 `yaml:"return_to_home_delay" json:"returnToHomeDelay"`
	AutoReturnHome    bool    `yaml:"auto_return_home" json:"autoReturnHome"`

	// Action
	WindUp            float64 `yaml:"wind_up" json:"windUp"`
	ThrowAngle        float64 `yaml:"throw_angle" json:"throwAngle"`
	CatchCooldown     float64 `yaml:"catch_cooldown" json:"catchCooldown"`
	RecipientCooldown float64 `yaml:"recipient_cooldown" json:"recipientCooldown"`
	RejectCooldown    float64 `yaml:"reject_cooldown" json:"rejectCooldown"`
}

// DefaultAgentConfig returns the standard agent tuning
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		DetectionRadius:   5,
		CatchRadius:       1.5,
		CatchHeight:       1.5,
		VerticalRange:     1,
		MinApproachSpeed:  0.5,
		ApproachDot:       0.3,
		WalkSpeed:         4,
		RunSpeed:          6,
		RunThreshold:      3,
		StoppingDistance:  0.5,
		MaxMoveDistance:   20,
		RotationSpeed:     10,
		MinReturnDistance: 0.5,
		ReturnToHomeDelay: 2,
		AutoReturnHome:    true,
		WindUp:            0.05,
		ThrowAngle:        45,
		CatchCooldown:     0.5,
		RecipientCooldown: 0.1,
		RejectCooldown:    0.3,
	}
}

// ServiceConfig tunes the serve sequence
type ServiceConfig struct {
	DistanceBack      float64 `yaml:"distance_back" json:"distanceBack"`
	HoldUp            float64 `yaml:"hold_up" json:"holdUp"`
	HoldForward       float64 `yaml:"hold_forward" json:"holdForward"`
	PrepTime          float64 `yaml:"prep_time" json:"prepTime"`
	TossSpeed         float64 `yaml:"toss_speed" json:"tossSpeed"`
	AnimationDelay    float64 `yaml:"animation_delay" json:"animationDelay"`
	HitFrame          float64 `yaml:"hit_frame" json:"hitFrame"`
	AnimationFPS      float64 `yaml:"animation_fps" json:"animationFps"`
	HitPointTolerance float64 `yaml:"hit_point_tolerance" json:"hitPointTolerance"`
	Angle             float64 `yaml:"angle" json:"angle"`
	PowerMultiplier   float64 `yaml:"power_multiplier" json:"powerMultiplier"` // 1 lands on the receiver; 1.2 serves long
	FollowThrough     float64 `yaml:"follow_through" json:"followThrough"`
	AutoServe         bool    `yaml:"auto_serve" json:"autoServe"`
	ServeDelay        float64 `yaml:"serve_delay" json:"serveDelay"`
}

// DefaultServiceConfig returns the standard serve timings
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DistanceBack:      2,
		HoldUp:            1,
		HoldForward:       0.5,
		PrepTime:          0.5,
		TossSpeed:         4,
		AnimationDelay:    0.5,
		HitFrame:          18,
		AnimationFPS:      24,
		HitPointTolerance: 1,
		Angle:             30,
		PowerMultiplier:   1,
		FollowThrough:     0.5,
		AutoServe:         true,
		ServeDelay:        1.5,
	}
}

// HitDelay is the time from toss to contact
func (s ServiceConfig) HitDelay() float64 {
	if s.AnimationFPS <= 0 {
		return 0
	}
	return s.HitFrame / s.AnimationFPS
}

// BallConfig describes the ball and its rally rules
type BallConfig struct {
	Drag                 float64 `yaml:"drag" json:"drag"`
	Radius               float64 `yaml:"radius" json:"radius"`
	MaxTouches           int     `yaml:"max_touches" json:"maxTouches"`
	RepeatRule           string  `yaml:"repeat_rule" json:"repeatRule"`
	PredictionValidity   float64 `yaml:"prediction_validity" json:"predictionValidity"`
	FallbackGroundHeight float64 `yaml:"fallback_ground_height" json:"fallbackGroundHeight"`
	SpawnHeight          float64 `yaml:"spawn_height" json:"spawnHeight"`
}

// DefaultBallConfig returns a regulation ball
func DefaultBallConfig() BallConfig {
	return BallConfig{
		Drag:                 0.1,
		Radius:               0.105,
		MaxTouches:           possession.DefaultMaxTouches,
		RepeatRule:           "possession",
		PredictionValidity:   2,
		FallbackGroundHeight: 0.5,
		SpawnHeight:          1.5,
	}
}

// Validate rejects ball rules the tracker cannot run with
func (b BallConfig) Validate() error {
	if b.MaxTouches <= 0 {
		return fmt.Errorf("max touches must be positive, got %d", b.MaxTouches)
	}
	if _, err := possession.ParseRepeatRule(b.RepeatRule); err != nil {
		return err
	}
	if b.PredictionValidity <= 0 {
		return fmt.Errorf("prediction validity must be positive, got %v", b.PredictionValidity)
	}
	return nil
}

// PossessionConfig converts validated ball rules for the tracker
func (b BallConfig) PossessionConfig() possession.Config {
	repeat, _ := possession.ParseRepeatRule(b.RepeatRule)
	return possession.Config{MaxTouches: b.MaxTouches, Repeat: repeat}
}

// ArbitrationConfig tunes who chases a predicted landing point
type ArbitrationConfig struct {
	ChaseRadius                  float64 `yaml:"chase_radius" json:"chaseRadius"`
	ChaseOutOfBoundsFromOpponent bool    `yaml:"chase_out_of_bounds_from_opponent" json:"chaseOutOfBoundsFromOpponent"`
}

// DefaultArbitrationConfig returns the standard arbitration policy
func DefaultArbitrationConfig() ArbitrationConfig {
	return ArbitrationConfig{ChaseRadius: 20}
}

// OperatorConfig places the manual participant
type OperatorConfig struct {
	Enabled      bool      `yaml:"enabled" json:"enabled"`
	Name         string    `yaml:"name" json:"name"`
	Team         team.Team `yaml:"team" json:"team"`
	Position     vec.Vec3  `yaml:"position" json:"position"`
	AnchorHeight float64   `yaml:"anchor_height" json:"anchorHeight"`
	CatchOffset  float64   `yaml:"catch_offset" json:"catchOffset"`
}

// DefaultOperatorConfig returns a disabled operator on the Blue side
func DefaultOperatorConfig() OperatorConfig {
	return OperatorConfig{
		Name:         "operator",
		Team:         team.Blue,
		Position:     vec.New(5, 0, 0),
		AnchorHeight: 1.2,
		CatchOffset:  1,
	}
}

// LauncherConfig drives the automatic ball launcher
type LauncherConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Interval  float64  `yaml:"interval" json:"interval"`
	ConeDeg   float64  `yaml:"cone_deg" json:"coneDeg"`
	Force     float64  `yaml:"force" json:"force"`
	Origin    vec.Vec3 `yaml:"origin" json:"origin"`
	Direction vec.Vec3 `yaml:"direction" json:"direction"`
}

// DefaultLauncherConfig fires from the Red baseline toward Blue
func DefaultLauncherConfig() LauncherConfig {
	return LauncherConfig{
		Interval:  3,
		ConeDeg:   15,
		Force:     10,
		Origin:    vec.New(-8, 2, 0),
		Direction: vec.New(1, 0.8, 0),
	}
}

// RosterEntry is one agent to spawn
type RosterEntry struct {
	Name string    `yaml:"name" json:"name"`
	Team team.Team `yaml:"team" json:"team"`
	Home vec.Vec3  `yaml:"home" json:"home"`
}

// DefaultRoster puts three agents on each side, mirrored across the net
func DefaultRoster() []RosterEntry {
	homes := []vec.Vec3{vec.New(-3, 0, -2.5), vec.New(-3, 0, 2.5), vec.New(-7, 0, 0)}
	out := make([]RosterEntry, 0, 2*len(homes))
	for i, h := range homes {
		out = append(out, RosterEntry{Name: fmt.Sprintf("red-%d", i+1), Team: team.Red, Home: h})
	}
	for i, h := range homes {
		out = append(out, RosterEntry{Name: fmt.Sprintf("blue-%d", i+1), Team: team.Blue, Home: vec.New(-h.X, h.Y, -h.Z)})
	}
	return out
}

// ============================================================================
// MATCH SETTINGS
// ============================================================================

// MatchConfig is everything a match needs at construction
type MatchConfig struct {
	Court       court.Geometry    `yaml:"court" json:"court"`
	Gravity     float64           `yaml:"gravity" json:"gravity"`
	Agent       AgentConfig       `yaml:"agent" json:"agent"`
	Service     ServiceConfig     `yaml:"service" json:"service"`
	Ball        BallConfig        `yaml:"ball" json:"ball"`
	Arbitration ArbitrationConfig `yaml:"arbitration" json:"arbitration"`
	Operator    OperatorConfig    `yaml:"operator" json:"operator"`
	Launcher    LauncherConfig    `yaml:"launcher" json:"launcher"`
	Roster      []RosterEntry     `yaml:"roster" json:"roster"`
	SenseEvery  int               `yaml:"sense_every" json:"senseEvery"` // sensing pass cadence in ticks
	Seed        int64             `yaml:"seed" json:"seed"`              // 0 = time based
}

// DefaultMatchConfig returns a 3v3 match on a regulation court
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Court:       court.DefaultGeometry(),
		Gravity:     9.81,
		Agent:       DefaultAgentConfig(),
		Service:     DefaultServiceConfig(),
		Ball:        DefaultBallConfig(),
		Arbitration: DefaultArbitrationConfig(),
		Operator:    DefaultOperatorConfig(),
		Launcher:    DefaultLauncherConfig(),
		Roster:      DefaultRoster(),
		SenseEvery:  2,
	}
}

// Validate rejects values the simulation cannot run with
func (c MatchConfig) Validate() error {
	if err := c.Court.Validate(); err != nil {
		return err
	}
	if c.Gravity <= 0 {
		return fmt.Errorf("gravity must be positive, got %v", c.Gravity)
	}
	if err := c.Ball.Validate(); err != nil {
		return err
	}
	if c.Agent.WalkSpeed <= 0 || c.Agent.RunSpeed <= 0 {
		return fmt.Errorf("agent speeds must be positive")
	}
	if c.Agent.DetectionRadius <= 0 || c.Agent.CatchRadius <= 0 {
		return fmt.Errorf("agent radii must be positive")
	}
	if c.Launcher.Enabled && (c.Launcher.Interval <= 0 || c.Launcher.Force <= 0) {
		return fmt.Errorf("launcher interval and force must be positive")
	}
	return nil
}
