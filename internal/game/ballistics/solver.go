// Package ballistics solves constant-gravity projectile motion in both
// directions: where a moving ball will cross a height, and what launch
// velocity delivers it to a target at a fixed angle.
//
// Every function is pure. Identical inputs always give identical outputs.
package ballistics

import (
	"errors"
	"math"

	"volley-club/internal/game/vec"
)

var (
	// ErrUnreachable means the ball never crosses the requested height in the future
	ErrUnreachable = errors.New("ballistics: target height unreachable")

	// ErrInvalidGeometry means no real launch speed exists for the requested angle
	ErrInvalidGeometry = errors.New("ballistics: invalid launch geometry")
)

const (
	// DragFactorPerMeter scales the drag coefficient per 10 m of horizontal distance
	DragFactorPerMeter = 0.2

	// MaxLaunchAngleDeg is where the widened-angle fallback stops searching
	MaxLaunchAngleDeg = 80.0

	// angleStepDeg is the increment used by the widened-angle fallback
	angleStepDeg = 5.0

	epsilon = 1e-9
)

// PredictLandingAtHeight returns where a ball launched from start with velocity
// crosses targetHeight on the way down (the larger positive root of the
// time-of-flight quadratic). ok is false when the height is never reached.
func PredictLandingAtHeight(start, velocity vec.Vec3, gravity, targetHeight float64) (vec.Vec3, bool) {
	t, ok := TimeToHeight(start.Y, velocity.Y, gravity, targetHeight)
	if !ok {
		return vec.Vec3{}, false
	}
	return vec.Vec3{
		X: start.X + velocity.X*t,
		Y: targetHeight,
		Z: start.Z + velocity.Z*t,
	}, true
}

// TimeToHeight solves 0.5*(-g)*t^2 + vy*t + (y0 - h) = 0 for the larger positive root
func TimeToHeight(y0, vy, gravity, h float64) (float64, bool) {
	a := -0.5 * gravity
	b := vy
	c := y0 - h

	if math.Abs(a) < epsilon {
		// no gravity: linear motion
		if math.Abs(b) < epsilon {
			return 0, false
		}
		t := -c / b
		return t, t > 0
	}

	disc := b*b - 4*a*c
	if disc < 0 || math.IsNaN(disc) {
		return 0, false
	}

	sq := math.Sqrt(disc)
	t1 := (-b + sq) / (2 * a)
	t2 := (-b - sq) / (2 * a)
	t := math.Max(t1, t2)
	if t <= 0 {
		return 0, false
	}
	return t, true
}

// PredictWithFallback predicts at targetHeight and retries at groundHeight.
// When both fail it returns start and false.
func PredictWithFallback(start, velocity vec.Vec3, gravity, targetHeight, groundHeight float64) (vec.Vec3, bool) {
	if p, ok := PredictLandingAtHeight(start, velocity, gravity, targetHeight); ok {
		return p, true
	}
	if p, ok := PredictLandingAtHeight(start, velocity, gravity, groundHeight); ok {
		return p, true
	}
	return start, false
}

// DragCompensation returns the speed multiplier that offsets linear drag over
// the given horizontal distance. A zero drag coefficient yields exactly 1.
func DragCompensation(drag, horizontalDistance float64) float64 {
	return 1 + drag*DragFactorPerMeter*horizontalDistance/10
}

// LaunchSpeed applies the range equation
// v0 = sqrt(g*d^2 / (2*cos^2(theta)*(d*tan(theta) - dh))).
// The arc must reach the target after its apex, which holds only when
// d*tan(theta) >= 2*dh; steeper uphill targets are ErrInvalidGeometry.
func LaunchSpeed(horizontalDistance, heightDelta, gravity, angleRad float64) (float64, error) {
	if !Descends(horizontalDistance, heightDelta, angleRad) {
		return 0, ErrInvalidGeometry
	}
	cos := math.Cos(angleRad)
	denom := 2 * cos * cos * (horizontalDistance*math.Tan(angleRad) - heightDelta)
	if denom <= epsilon || math.IsNaN(denom) {
		return 0, ErrInvalidGeometry
	}
	radicand := gravity * horizontalDistance * horizontalDistance / denom
	if radicand < 0 || math.IsNaN(radicand) || math.IsInf(radicand, 0) {
		return 0, ErrInvalidGeometry
	}
	return math.Sqrt(radicand), nil
}

// Descends reports whether an arc launched at angleRad meets a target
// horizontalDistance away and heightDelta above on its falling branch
func Descends(horizontalDistance, heightDelta, angleRad float64) bool {
	return horizontalDistance*math.Tan(angleRad) >= 2*heightDelta
}

// SolveLaunchVelocity returns the velocity that carries a ball from start to
// target at the given launch angle, scaled by dragCompensation.
//
// When the geometry has no real solution (target too high for the angle, or
// straight overhead) it returns the fallback velocity together with
// ErrInvalidGeometry. See Fallback.
func SolveLaunchVelocity(start, target vec.Vec3, gravity, angleDeg, dragCompensation float64) (vec.Vec3, error) {
	delta := target.Sub(start)
	d := delta.PlanarLen()
	dh := delta.Y
	theta := angleDeg * math.Pi / 180

	if d < epsilon {
		return Fallback(start, target, gravity, dragCompensation), ErrInvalidGeometry
	}

	v0, err := LaunchSpeed(d, dh, gravity, theta)
	if err != nil {
		return Fallback(start, target, gravity, dragCompensation), err
	}
	return compose(delta, v0*dragCompensation, theta), nil
}

// Fallback widens the launch angle in 5° steps up to MaxLaunchAngleDeg until
// the range equation has a solution that reaches the target on the way down.
// If none exists (target directly above, or too steep for any arc) it returns
// a vertical lob whose apex reaches the target height, with a small planar
// drift toward the target.
func Fallback(start, target vec.Vec3, gravity, dragCompensation float64) vec.Vec3 {
	delta := target.Sub(start)
	d := delta.PlanarLen()

	if d >= epsilon {
		for a := 45.0; a <= MaxLaunchAngleDeg; a += angleStepDeg {
			theta := a * math.Pi / 180
			if v0, err := LaunchSpeed(d, delta.Y, gravity, theta); err == nil {
				return compose(delta, v0*dragCompensation, theta)
			}
		}
	}

	apex := math.Max(delta.Y, 0.5)
	vy := math.Sqrt(2 * gravity * apex)
	flight := 2 * vy / gravity
	out := vec.Vec3{Y: vy}
	if d >= epsilon && flight > 0 {
		drift := delta.Planar().Scale(1 / flight)
		out.X, out.Z = drift.X, drift.Z
	}
	return out
}

func compose(delta vec.Vec3, speed, theta float64) vec.Vec3 {
	dir := delta.Planar().Normalize()
	h := dir.Scale(speed * math.Cos(theta))
	return vec.Vec3{X: h.X, Y: speed * math.Sin(theta), Z: h.Z}
}
