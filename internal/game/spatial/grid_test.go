package spatial

import (
	"math"
	"math/rand"
	"testing"
)

// TestNewSpatialGrid verifies grid dimensions for a centered court area
func TestNewSpatialGrid(t *testing.T) {
	tests := []struct {
		name     string
		w, h     float64
		cell     float64
		wantCols int
		wantRows int
	}{
		{"court with run-off", 30, 15, 5, 6, 3},
		{"partial cell rounds up", 31, 14, 5, 7, 3},
		{"tiny area", 0.1, 0.1, 5, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewSpatialGrid(-tt.w/2, -tt.h/2, tt.w, tt.h, tt.cell, 16)
			cols, rows, _ := g.Dimensions()
			if cols != tt.wantCols || rows != tt.wantRows {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantCols, tt.wantRows, cols, rows)
			}
		})
	}
}

// TestQueryRadiusNegativeCoordinates verifies queries around the origin of a centered grid
func TestQueryRadiusNegativeCoordinates(t *testing.T) {
	g := NewSpatialGrid(-15, -7.5, 30, 15, 5, 16)
	g.Insert(1, -8, 0)
	g.Insert(2, 8, 0)
	g.Insert(3, -7, 1)

	found := map[uint32]bool{}
	for _, id := range g.QueryRadius(-7.5, 0.5, 1) {
		found[id] = true
	}
	if !found[1] || !found[3] {
		t.Errorf("Expected entities 1 and 3 near (-7.5, 0.5), got %v", found)
	}
	if found[2] {
		t.Error("Entity on the far side should not be a candidate")
	}
}

// TestQueryRadiusNoFalseNegatives checks every entity within radius is returned
func TestQueryRadiusNoFalseNegatives(t *testing.T) {
	g := NewSpatialGrid(-15, -7.5, 30, 15, 5, 64)
	rng := rand.New(rand.NewSource(3))

	type pt struct{ x, y float64 }
	pts := make([]pt, 64)
	for i := range pts {
		pts[i] = pt{rng.Float64()*34 - 17, rng.Float64()*19 - 9.5}
		g.Insert(uint32(i), pts[i].x, pts[i].y)
	}

	for q := 0; q < 200; q++ {
		cx, cy := rng.Float64()*30-15, rng.Float64()*15-7.5
		r := rng.Float64() * 6
		got := map[uint32]bool{}
		for _, id := range g.QueryRadius(cx, cy, r) {
			got[id] = true
		}
		for i, p := range pts {
			inside := p.x >= -15 && p.x <= 15 && p.y >= -7.5 && p.y <= 7.5
			if inside && math.Hypot(p.x-cx, p.y-cy) <= r && !got[uint32(i)] {
				t.Fatalf("query %d missed entity %d at (%.2f, %.2f)", q, i, p.x, p.y)
			}
		}
	}
}

// TestClear verifies the grid empties but keeps working
func TestClear(t *testing.T) {
	g := NewSpatialGrid(0, 0, 10, 10, 5, 8)
	g.Insert(1, 1, 1)
	g.Insert(2, 9, 9)
	if g.Len() != 2 {
		t.Fatalf("Expected 2 entities, got %d", g.Len())
	}

	g.Clear()
	if g.Len() != 0 {
		t.Errorf("Expected 0 after clear, got %d", g.Len())
	}
	if len(g.QueryRadius(5, 5, 10)) != 0 {
		t.Error("Expected no candidates after clear")
	}

	g.Insert(7, 2, 2)
	if ids := g.QueryCell(2, 2); len(ids) != 1 || ids[0] != 7 {
		t.Errorf("Expected [7] in cell, got %v", ids)
	}
}
