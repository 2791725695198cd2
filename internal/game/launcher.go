package game

import (
	"log"
	"math"

	"volley-club/internal/game/vec"
)

// BallLauncher fires the ball into play at a fixed interval whenever no
// rally is running. Each shot deviates from the configured direction by a
// random yaw inside the cone.
type BallLauncher struct {
	cfg   LauncherConfig
	timer float64
	shots int
}

// NewBallLauncher creates a launcher; it does nothing unless cfg.Enabled
func NewBallLauncher(cfg LauncherConfig) *BallLauncher {
	return &BallLauncher{cfg: cfg}
}

// Step advances the launch timer and fires when due. Returns true on a shot.
func (l *BallLauncher) Step(m *Match, dt float64) bool {
	if !l.cfg.Enabled || m.rallyActive || m.ball.holder != nil {
		l.timer = 0
		return false
	}
	l.timer += dt
	if l.timer < l.cfg.Interval {
		return false
	}
	l.timer = 0

	v := l.shotVelocity(m.rng.Float64()*2 - 1)
	if err := m.StrikeBall(l.cfg.Origin, v, false); err != nil {
		log.Printf("⚠️ Launcher shot failed: %v", err)
		return false
	}
	l.shots++
	return true
}

// shotVelocity rotates the launch direction about the vertical axis by
// spread*ConeDeg and scales it to Force
func (l *BallLauncher) shotVelocity(spread float64) vec.Vec3 {
	dir := l.cfg.Direction.Normalize()
	if dir.Len() == 0 {
		dir = vec.New(1, 1, 0).Normalize()
	}
	a := spread * l.cfg.ConeDeg * math.Pi / 180
	sin, cos := math.Sin(a), math.Cos(a)
	rotated := vec.New(dir.X*cos+dir.Z*sin, dir.Y, -dir.X*sin+dir.Z*cos)
	return rotated.Scale(l.cfg.Force)
}

// Shots returns how many balls were launched
func (l *BallLauncher) Shots() int { return l.shots }
