// Package physics is the in-process stand-in for the rigid-body integrator
// the match consumes. It only models what the match needs: constant vertical
// gravity with linear drag for free bodies, kinematic bodies that are placed
// directly, ground contact, and radius queries backed by a spatial grid.
package physics

import (
	"volley-club/internal/game/spatial"
	"volley-club/internal/game/vec"
)

// EntityID indexes a body in the world
type EntityID uint32

// Tag classifies bodies for spatial queries
type Tag uint8

const (
	TagAny Tag = iota
	TagBall
	TagAgent
	TagOperator
)

func (t Tag) String() string {
	switch t {
	case TagBall:
		return "ball"
	case TagAgent:
		return "agent"
	case TagOperator:
		return "operator"
	default:
		return "any"
	}
}

// Body is one simulated object
type Body struct {
	ID       EntityID
	Tag      Tag
	Position vec.Vec3
	Velocity vec.Vec3
	Gravity  bool    // free-falling under gravity (false = kinematic/held)
	Drag     float64 // linear drag coefficient, 1/s
	Radius   float64

	grounded bool
}

// Config describes the world
type Config struct {
	Gravity  float64 // magnitude, m/s^2, pulls toward -Y
	Ground   float64 // floor height
	MinX     float64 // indexed area, X/Z plane
	MinZ     float64
	Width    float64
	Depth    float64
	CellSize float64
}

// DefaultConfig covers an 18x9 court plus generous run-off
func DefaultConfig() Config {
	return Config{
		Gravity:  9.81,
		MinX:     -15,
		MinZ:     -10,
		Width:    30,
		Depth:    20,
		CellSize: 5,
	}
}

// GroundFunc is called once when a free body reaches the floor
type GroundFunc func(id EntityID, point vec.Vec3)

// World owns all bodies. It is not safe for concurrent use; the engine
// steps it from the tick goroutine under the engine lock.
type World struct {
	cfg    Config
	bodies []*Body
	grid   *spatial.SpatialGrid
	dirty  bool

	onGround GroundFunc
}

// NewWorld creates an empty world
func NewWorld(cfg Config) *World {
	if cfg.CellSize <= 0 {
		cfg.CellSize = 5
	}
	return &World{
		cfg:    cfg,
		bodies: make([]*Body, 0, 16),
		grid:   spatial.NewSpatialGrid(cfg.MinX, cfg.MinZ, cfg.Width, cfg.Depth, cfg.CellSize, 32),
	}
}

// OnGround registers the ground contact callback
func (w *World) OnGround(fn GroundFunc) {
	w.onGround = fn
}

// AddBody inserts a body and returns its ID
func (w *World) AddBody(tag Tag, pos vec.Vec3, gravity bool, drag, radius float64) EntityID {
	id := EntityID(len(w.bodies))
	w.bodies = append(w.bodies, &Body{
		ID:       id,
		Tag:      tag,
		Position: pos,
		Gravity:  gravity,
		Drag:     drag,
		Radius:   radius,
	})
	w.grid.Insert(uint32(id), pos.X, pos.Z)
	return id
}

// Body returns a body by ID, or nil
func (w *World) Body(id EntityID) *Body {
	if int(id) >= len(w.bodies) {
		return nil
	}
	return w.bodies[id]
}

// Position returns a body's position
func (w *World) Position(id EntityID) vec.Vec3 {
	if b := w.Body(id); b != nil {
		return b.Position
	}
	return vec.Vec3{}
}

// Velocity returns a body's velocity
func (w *World) Velocity(id EntityID) vec.Vec3 {
	if b := w.Body(id); b != nil {
		return b.Velocity
	}
	return vec.Vec3{}
}

// SetVelocity launches or stops a body
func (w *World) SetVelocity(id EntityID, v vec.Vec3) {
	if b := w.Body(id); b != nil {
		b.Velocity = v
		if v.Y > 0 {
			b.grounded = false
		}
	}
}

// SetPosition teleports a body
func (w *World) SetPosition(id EntityID, p vec.Vec3) {
	if b := w.Body(id); b != nil {
		b.Position = p
		w.dirty = true
		if p.Y > w.cfg.Ground+b.Radius {
			b.grounded = false
		}
	}
}

// SetGravityEnabled toggles free fall for a body
func (w *World) SetGravityEnabled(id EntityID, on bool) {
	if b := w.Body(id); b != nil {
		b.Gravity = on
	}
}

// GravityMagnitude returns g
func (w *World) GravityMagnitude() float64 {
	return w.cfg.Gravity
}

// FindEntitiesNear returns bodies whose center lies within radius of p.
// TagAny matches every body.
func (w *World) FindEntitiesNear(p vec.Vec3, radius float64, tag Tag) []EntityID {
	if w.dirty {
		w.reindex()
	}
	var out []EntityID
	for _, idx := range w.grid.QueryRadius(p.X, p.Z, radius) {
		b := w.bodies[idx]
		if tag != TagAny && b.Tag != tag {
			continue
		}
		if b.Position.Sub(p).Len() <= radius {
			out = append(out, b.ID)
		}
	}
	return out
}

// Step integrates free bodies by dt seconds and rebuilds the spatial index.
// Ground contacts are reported after all bodies have moved.
func (w *World) Step(dt float64) {
	type contact struct {
		id EntityID
		p  vec.Vec3
	}
	var contacts []contact

	for _, b := range w.bodies {
		if !b.Gravity {
			continue
		}
		b.Velocity.Y -= w.cfg.Gravity * dt
		if b.Drag > 0 {
			damp := 1 - b.Drag*dt
			if damp < 0 {
				damp = 0
			}
			b.Velocity = b.Velocity.Scale(damp)
		}
		b.Position = b.Position.Add(b.Velocity.Scale(dt))

		floor := w.cfg.Ground + b.Radius
		if b.Position.Y <= floor {
			b.Position.Y = floor
			if !b.grounded {
				b.grounded = true
				contacts = append(contacts, contact{b.ID, b.Position})
			}
			b.Velocity = vec.Vec3{}
		}
	}

	w.reindex()

	if w.onGround != nil {
		for _, c := range contacts {
			w.onGround(c.id, c.p)
		}
	}
}

func (w *World) reindex() {
	w.dirty = false
	w.grid.Clear()
	for _, b := range w.bodies {
		w.grid.Insert(uint32(b.ID), b.Position.X, b.Position.Z)
	}
}

// Len returns the number of bodies
func (w *World) Len() int {
	return len(w.bodies)
}
