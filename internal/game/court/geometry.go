// Package court describes the playing surface and answers legality
// questions about positions on it. The net runs along x = 0; Red defends
// x < 0 and Blue defends x > 0. Z is the lateral axis.
package court

import (
	"fmt"

	"github.com/paulmach/orb"

	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// Geometry is the immutable court description
type Geometry struct {
	HalfLength  float64 `yaml:"half_length" json:"halfLength"`   // net to baseline
	HalfWidth   float64 `yaml:"half_width" json:"halfWidth"`     // centerline to sideline
	NetBoundary float64 `yaml:"net_boundary" json:"netBoundary"` // agents stay this far from the net line
	Tolerance   float64 `yaml:"tolerance" json:"tolerance"`      // allowed run-off beyond the lines
	NetHeight   float64 `yaml:"net_height" json:"netHeight"`
}

// DefaultGeometry is an 18 x 9 court with a 2.43 m net
func DefaultGeometry() Geometry {
	return Geometry{
		HalfLength:  9,
		HalfWidth:   4.5,
		NetBoundary: 0.5,
		Tolerance:   2,
		NetHeight:   2.43,
	}
}

// Validate rejects geometries that cannot describe a court
func (g Geometry) Validate() error {
	if g.HalfLength <= 0 || g.HalfWidth <= 0 {
		return fmt.Errorf("court: non-positive size %.2fx%.2f", g.HalfLength, g.HalfWidth)
	}
	if g.NetBoundary < 0 || g.NetBoundary >= g.HalfLength {
		return fmt.Errorf("court: net boundary %.2f outside (0, %.2f)", g.NetBoundary, g.HalfLength)
	}
	if g.Tolerance < 0 {
		return fmt.Errorf("court: negative tolerance %.2f", g.Tolerance)
	}
	return nil
}

// Bounds returns the in-bounds playing area (no tolerance) in the X/Z plane
func (g Geometry) Bounds() orb.Bound {
	return orb.Bound{
		Min: orb.Point{-g.HalfLength, -g.HalfWidth},
		Max: orb.Point{g.HalfLength, g.HalfWidth},
	}
}


// LegalRegion is where a team's agents may stand: their own half, kept
// NetBoundary away from the net, extended by Tolerance past the outer lines.
func (g Geometry) LegalRegion(t team.Team) orb.Bound {
	outer := g.HalfLength + g.Tolerance
	side := g.HalfWidth + g.Tolerance
	if t == team.Red {
		return orb.Bound{
			Min: orb.Point{-outer, -side},
			Max: orb.Point{-g.NetBoundary, side},
		}
	}
	return orb.Bound{
		Min: orb.Point{g.NetBoundary, -side},
		Max: orb.Point{outer, side},
	}
}

// Baseline returns the x coordinate of a team's end line
func (g Geometry) Baseline(t team.Team) float64 {
	return t.Sign() * g.HalfLength
}

// Point projects a world position onto the court plane
func Point(p vec.Vec3) orb.Point {
	return orb.Point{p.X, p.Z}
}
