package main

import (
	"math"

	"riverfish.ai/internal/sim/tank"
	"riverfish.ai/internal/sim/volume"
)

// projector maps the swim box onto a top-down terminal grid. Columns follow
// the lateral Z axis; rows follow the shore distance X with the shoreline at
// the bottom row and the camera edge at the top.
type projector struct {
	box  volume.Box
	cols int
	rows int
}

func (p projector) ok() bool {
	return p.cols > 0 && p.rows > 0
}

func (p projector) cell(x, z float64) (col, row int) {
	size := p.box.Size()
	fz := (z - p.box.Min.Z) / size.Z
	fx := (x - p.box.Min.X) / size.X
	col = clampInt(int(math.Floor(fz*float64(p.cols))), 0, p.cols-1)
	row = clampInt(p.rows-1-int(math.Floor(fx*float64(p.rows))), 0, p.rows-1)
	return col, row
}

// world returns the X/Z point at the centre of a cell.
func (p projector) world(col, row int) (x, z float64) {
	size := p.box.Size()
	z = p.box.Min.Z + (float64(col)+0.5)/float64(p.cols)*size.Z
	x = p.box.Min.X + (float64(p.rows-1-row)+0.5)/float64(p.rows)*size.X
	return x, z
}

type pick struct {
	Species string
	Slot    int
	ID      uint64
}

// nearest finds the active fish closest to the pointer in projected cells.
// Only fish within maxCells are considered. Every species is eligible so the
// tank can report a mismatch against the selection.
func nearest(p projector, pops []*tank.Population, col, row int, maxCells float64) (pick, bool) {
	best := pick{}
	bestD := math.Inf(1)
	for _, pop := range pops {
		key := pop.Species().Key()
		for _, pose := range pop.Poses() {
			c, r := p.cell(pose.Pos.X, pose.Pos.Z)
			// Terminal cells are about twice as tall as wide.
			dc := float64(c - col)
			dr := float64(r-row) * 2
			d := math.Sqrt(dc*dc + dr*dr)
			if d < bestD {
				bestD = d
				best = pick{Species: key, Slot: pose.Slot, ID: pose.ID}
			}
		}
	}
	if math.IsInf(bestD, 1) || bestD > maxCells {
		return pick{}, false
	}
	return best, true
}

func glyph(key string) rune {
	for _, r := range key {
		return r
	}
	return '?'
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
