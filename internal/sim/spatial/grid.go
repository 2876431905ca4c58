// Package spatial is a uniform-grid neighbour index over 3D positions.
package spatial

import "riverfish.ai/internal/sim/mathx"

type cellKey struct {
	X, Y, Z int32
}

// Entry is one indexed item and the position it was hashed at.
type Entry[T any] struct {
	Pos  mathx.Vec3
	Item T
}

// Grid hashes positions by floor(coord / cellSize) on each axis.
// Not safe for concurrent use; owned by the tick loop.
type Grid[T any] struct {
	cellSize float64
	cells    map[cellKey][]Entry[T]
	count    int
}

func NewGrid[T any](cellSize float64) *Grid[T] {
	g := &Grid[T]{cells: map[cellKey][]Entry[T]{}}
	g.SetCellSize(cellSize)
	return g
}

func (g *Grid[T]) CellSize() float64 { return g.cellSize }

func (g *Grid[T]) Len() int { return g.count }

// SetCellSize changes the cell size. A change drops all entries; callers rebuild afterwards.
func (g *Grid[T]) SetCellSize(size float64) {
	if !(size > 0) {
		size = 1
	}
	if size == g.cellSize {
		return
	}
	g.cellSize = size
	g.cells = map[cellKey][]Entry[T]{}
	g.count = 0
}

// Reset empties every cell, keeping the backing slices for reuse.
// Cells that stayed empty since the previous reset are released.
func (g *Grid[T]) Reset() {
	var zero Entry[T]
	for k, es := range g.cells {
		if len(es) == 0 {
			delete(g.cells, k)
			continue
		}
		for i := range es {
			es[i] = zero
		}
		g.cells[k] = es[:0]
	}
	g.count = 0
}

func (g *Grid[T]) Insert(pos mathx.Vec3, item T) {
	k := g.key(pos)
	g.cells[k] = append(g.cells[k], Entry[T]{Pos: pos, Item: item})
	g.count++
}

// Neighbors appends to dst every entry in the 3x3x3 block of cells around p.
// Entries are not distance-filtered; callers apply their own radius.
func (g *Grid[T]) Neighbors(p mathx.Vec3, dst []Entry[T]) []Entry[T] {
	c := g.key(p)
	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dz := int32(-1); dz <= 1; dz++ {
				es := g.cells[cellKey{c.X + dx, c.Y + dy, c.Z + dz}]
				dst = append(dst, es...)
			}
		}
	}
	return dst
}

func (g *Grid[T]) key(p mathx.Vec3) cellKey {
	return cellKey{
		X: int32(mathx.FloorCell(p.X, g.cellSize)),
		Y: int32(mathx.FloorCell(p.Y, g.cellSize)),
		Z: int32(mathx.FloorCell(p.Z, g.cellSize)),
	}
}
