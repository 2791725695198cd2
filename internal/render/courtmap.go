// Package render draws a top-down map of the court for debugging.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"

	"volley-club/internal/game"
	"volley-club/internal/game/court"
	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// Options controls the map scale and overlays
type Options struct {
	PixelsPerMeter float64
	Margin         float64 // pixels around the run-off area
	Labels         bool
	Prediction     bool
}

// DefaultOptions returns a 40 px/m map with labels and the landing prediction
func DefaultOptions() Options {
	return Options{
		PixelsPerMeter: 40,
		Margin:         24,
		Labels:         true,
		Prediction:     true,
	}
}

var (
	colorBackground = color.RGBA{24, 28, 36, 255}
	colorRunOff     = color.RGBA{48, 64, 80, 255}
	colorFloor      = color.RGBA{214, 150, 86, 255}
	colorLines      = color.RGBA{250, 250, 255, 255}
	colorNet        = color.RGBA{20, 20, 20, 255}
	colorBall       = color.RGBA{255, 230, 40, 255}
	colorPrediction = color.RGBA{255, 60, 200, 255}
	colorOperator   = color.RGBA{120, 255, 140, 255}
	colorText       = color.RGBA{240, 240, 240, 255}
)

func teamColor(t team.Team) color.Color {
	if t == team.Red {
		return color.RGBA{220, 50, 50, 255}
	}
	return color.RGBA{50, 110, 230, 255}
}

// mapper converts court X/Z coordinates to pixels
type mapper struct {
	g    court.Geometry
	opts Options
}

func (m mapper) size() (int, int) {
	w := 2*(m.g.HalfLength+m.g.Tolerance)*m.opts.PixelsPerMeter + 2*m.opts.Margin
	h := 2*(m.g.HalfWidth+m.g.Tolerance)*m.opts.PixelsPerMeter + 2*m.opts.Margin
	return int(w), int(h)
}

func (m mapper) point(p vec.Vec3) (float64, float64) {
	x := m.opts.Margin + (p.X+m.g.HalfLength+m.g.Tolerance)*m.opts.PixelsPerMeter
	y := m.opts.Margin + (p.Z+m.g.HalfWidth+m.g.Tolerance)*m.opts.PixelsPerMeter
	return x, y
}

func (m mapper) meters(d float64) float64 {
	return d * m.opts.PixelsPerMeter
}

// Draw renders snap over the court described by g
func Draw(snap *game.MatchSnapshot, g court.Geometry, opts Options) image.Image {
	return draw(snap, g, opts).Image()
}

func draw(snap *game.MatchSnapshot, g court.Geometry, opts Options) *gg.Context {
	if opts.PixelsPerMeter <= 0 {
		opts.PixelsPerMeter = DefaultOptions().PixelsPerMeter
	}
	m := mapper{g: g, opts: opts}
	w, h := m.size()
	dc := gg.NewContext(w, h)

	dc.SetColor(colorBackground)
	dc.Clear()

	drawCourt(dc, m)
	if snap == nil {
		return dc
	}

	if opts.Prediction && snap.Ball.Prediction.Valid {
		px, py := m.point(snap.Ball.Prediction.Point)
		dc.SetColor(colorPrediction)
		dc.SetLineWidth(2)
		dc.DrawLine(px-6, py-6, px+6, py+6)
		dc.DrawLine(px-6, py+6, px+6, py-6)
		dc.Stroke()
	}

	for _, a := range snap.Agents {
		x, y := m.point(a.Position)
		dc.SetColor(teamColor(a.Team))
		dc.DrawCircle(x, y, m.meters(0.35))
		dc.Fill()
		if a.HasToken {
			dc.SetColor(colorPrediction)
			dc.SetLineWidth(2)
			dc.DrawCircle(x, y, m.meters(0.5))
			dc.Stroke()
		}
		// facing
		dc.SetColor(colorLines)
		dc.SetLineWidth(1.5)
		fx, fy := m.point(a.Position.Add(vec.New(math.Sin(a.Yaw), 0, math.Cos(a.Yaw)).Scale(0.6)))
		dc.DrawLine(x, y, fx, fy)
		dc.Stroke()
		if opts.Labels {
			dc.SetColor(colorText)
			dc.DrawStringAnchored(fmt.Sprintf("%s %s", a.Name, a.State), x, y-m.meters(0.5), 0.5, 0)
		}
	}

	if op := snap.Operator; op != nil {
		x, y := m.point(op.Position)
		dc.SetColor(colorOperator)
		dc.DrawRectangle(x-6, y-6, 12, 12)
		dc.Fill()
		if opts.Labels {
			dc.SetColor(colorText)
			dc.DrawStringAnchored(op.Name, x, y-10, 0.5, 0)
		}
	}

	// Ball grows with height so lobs are readable from above
	bx, by := m.point(snap.Ball.Position)
	r := 4 + snap.Ball.Position.Y*1.5
	if r > 16 {
		r = 16
	}
	dc.SetColor(colorBall)
	dc.DrawCircle(bx, by, r)
	dc.Fill()

	dc.SetColor(colorText)
	dc.DrawString(fmt.Sprintf("rally %d  red %d : %d blue  t=%.1fs", snap.Rally, snap.Red, snap.Blue, snap.Clock), opts.Margin, opts.Margin-8)

	return dc
}

func drawCourt(dc *gg.Context, m mapper) {
	g := m.g
	x0, y0 := m.point(vec.New(-g.HalfLength-g.Tolerance, 0, -g.HalfWidth-g.Tolerance))
	dc.SetColor(colorRunOff)
	dc.DrawRectangle(x0, y0, m.meters(2*(g.HalfLength+g.Tolerance)), m.meters(2*(g.HalfWidth+g.Tolerance)))
	dc.Fill()

	x1, y1 := m.point(vec.New(-g.HalfLength, 0, -g.HalfWidth))
	cw, ch := m.meters(2*g.HalfLength), m.meters(2*g.HalfWidth)
	dc.SetColor(colorFloor)
	dc.DrawRectangle(x1, y1, cw, ch)
	dc.Fill()

	dc.SetColor(colorLines)
	dc.SetLineWidth(2)
	dc.DrawRectangle(x1, y1, cw, ch)
	dc.Stroke()

	// Attack lines mark the net boundary agents keep away from
	dc.SetLineWidth(1)
	dc.SetDash(4, 4)
	for _, sx := range []float64{-g.NetBoundary, g.NetBoundary} {
		ax, ay := m.point(vec.New(sx, 0, -g.HalfWidth))
		bx, by := m.point(vec.New(sx, 0, g.HalfWidth))
		dc.DrawLine(ax, ay, bx, by)
	}
	dc.Stroke()
	dc.SetDash()

	nx, ny := m.point(vec.New(0, 0, -g.HalfWidth-0.5))
	mx, my := m.point(vec.New(0, 0, g.HalfWidth+0.5))
	dc.SetColor(colorNet)
	dc.SetLineWidth(4)
	dc.DrawLine(nx, ny, mx, my)
	dc.Stroke()
}

// WritePNG encodes the map as PNG
func WritePNG(w io.Writer, snap *game.MatchSnapshot, g court.Geometry, opts Options) error {
	if err := draw(snap, g, opts).EncodePNG(w); err != nil {
		return fmt.Errorf("encode court png: %w", err)
	}
	return nil
}

// SavePNG writes the map to a file
func SavePNG(path string, snap *game.MatchSnapshot, g court.Geometry, opts Options) error {
	if err := draw(snap, g, opts).SavePNG(path); err != nil {
		return fmt.Errorf("save court png %s: %w", path, err)
	}
	return nil
}
