package court

import (
	"math"

	"github.com/paulmach/orb"

	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// Validator answers position legality questions for a fixed geometry.
// The team regions are computed once; the validator is safe to share.
type Validator struct {
	geom   Geometry
	legal  [2]orb.Bound
	inPlay orb.Bound
}

// NewValidator precomputes the regions of a geometry
func NewValidator(g Geometry) *Validator {
	v := &Validator{geom: g, inPlay: g.Bounds()}
	for _, t := range team.All {
		v.legal[t] = g.LegalRegion(t)
	}
	return v
}

// Geometry returns the court description
func (v *Validator) Geometry() Geometry {
	return v.geom
}

// CanOccupy reports whether an agent of team t may stand at p: not across
// the net boundary and not beyond the tolerance past the outer lines.
func (v *Validator) CanOccupy(t team.Team, p vec.Vec3) bool {
	return v.legal[t].Contains(Point(p))
}

// Clamp moves p to the nearest point an agent of team t may occupy
func (v *Validator) Clamp(t team.Team, p vec.Vec3) vec.Vec3 {
	b := v.legal[t]
	p.X = math.Max(b.Min[0], math.Min(b.Max[0], p.X))
	p.Z = math.Max(b.Min[1], math.Min(b.Max[1], p.Z))
	return p
}

// InBounds reports whether p is inside the court lines
func (v *Validator) InBounds(p vec.Vec3) bool {
	return v.inPlay.Contains(Point(p))
}

// SideOf returns the team whose half contains p. The net line belongs to Red.
func (v *Validator) SideOf(p vec.Vec3) team.Team {
	if p.X > 0 {
		return team.Blue
	}
	return team.Red
}
