package game

import (
	"encoding/json"
	"time"

	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown     EventType = iota
	EventTypeTick                  // Tick boundary with RNG seed
	EventTypeRallyStart            // Serve requested
	EventTypeStrike                // External strike
	EventTypeTouch                 // Possession outcome
	EventTypeAssign                // Chaser assigned
	EventTypeConcede               // Nobody chases
	EventTypeThrow                 // Agent launched the ball
	EventTypeServe                 // Serve hit
	EventTypeGrounded              // Ball reached the floor
	EventTypePoint                 // Point awarded
	EventTypeStateChange           // Agent state transition
	EventTypeAnomaly               // Recoverable error or lifecycle fault
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8           `json:"version"`   // Schema version
	Type      EventType       `json:"type"`      // Event type
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic sequence
	TickNum   uint64          `json:"tickNum"`   // Simulation tick this occurred in
	SourceID  string          `json:"sourceId"`  // Source agent/operator (for rate limiting)
	Payload   json.RawMessage `json:"payload"`   // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeRallyStart:
		return "rally_start"
	case EventTypeStrike:
		return "strike"
	case EventTypeTouch:
		return "touch"
	case EventTypeAssign:
		return "assign"
	case EventTypeConcede:
		return "concede"
	case EventTypeThrow:
		return "throw"
	case EventTypeServe:
		return "serve"
	case EventTypeGrounded:
		return "grounded"
	case EventTypePoint:
		return "point"
	case EventTypeStateChange:
		return "state_change"
	case EventTypeAnomaly:
		return "anomaly"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type name so logs stay readable
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name
func (t *EventType) UnmarshalText(b []byte) error {
	s := string(b)
	for c := EventTypeTick; c <= EventTypeAnomaly; c++ {
		if c.String() == s {
			*t = c
			return nil
		}
	}
	*t = EventTypeUnknown
	return nil
}

// Typed payloads for different event types

// TickPayload contains tick boundary information for replay
type TickPayload struct {
	RNGSeed     int64   `json:"rngSeed"`
	AgentCount  int     `json:"agentCount"`
	DeltaTimeNs int64   `json:"deltaTimeNs"`
	Clock       float64 `json:"clock"`
}

// RallyStartPayload names the server
type RallyStartPayload struct {
	Rally  int       `json:"rally"`
	Server string    `json:"server"`
	Team   team.Team `json:"team"`
}

// StrikePayload describes an external hit
type StrikePayload struct {
	Position vec.Vec3 `json:"position"`
	Velocity vec.Vec3 `json:"velocity"`
	Operator bool     `json:"operator"`
}

// TouchPayload records a possession decision
type TouchPayload struct {
	ToucherID string    `json:"toucherId"`
	Name      string    `json:"name"`
	Team      team.Team `json:"team"`
	Outcome   string    `json:"outcome"`
	Count     int       `json:"count"`
}

// AssignPayload names the chaser
type AssignPayload struct {
	AgentID  string   `json:"agentId"`
	Name     string   `json:"name"`
	Landing  vec.Vec3 `json:"landing"`
	Distance float64  `json:"distance"`
}

// ConcedePayload explains why nobody chases
type ConcedePayload struct {
	Reason  string   `json:"reason"`
	Landing vec.Vec3 `json:"landing"`
}

// ThrowPayload describes a launch by an agent
type ThrowPayload struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Start    vec.Vec3 `json:"start"`
	Target   vec.Vec3 `json:"target"`
	Velocity vec.Vec3 `json:"velocity"`
	Fallback bool     `json:"fallback"`
}

// ServePayload describes a serve hit
type ServePayload struct {
	Server   string   `json:"server"`
	Receiver string   `json:"receiver"`
	Velocity vec.Vec3 `json:"velocity"`
}

// GroundedPayload is where the ball came down
type GroundedPayload struct {
	Point    vec.Vec3 `json:"point"`
	InBounds bool     `json:"inBounds"`
}

// PointPayload is an awarded point and the new score
type PointPayload struct {
	Winner team.Team `json:"winner"`
	Reason string    `json:"reason"`
	Red    int       `json:"red"`
	Blue   int       `json:"blue"`
}

// StateChangePayload is one agent transition
type StateChangePayload struct {
	AgentID string `json:"agentId"`
	Name    string `json:"name"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// AnomalyPayload carries a degraded outcome
type AnomalyPayload struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, sourceID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		SourceID:  sourceID,
		Payload:   EncodePayload(payload),
	}
}
