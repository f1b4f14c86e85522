package main

import (
	"math"
	"sort"
)

// SpatialCellSize is chosen so near-tier queries (~200) touch a 5x5 cell
// block and collision queries (~3) touch at most 4 cells.
const SpatialCellSize = 100.0

type cellKey struct {
	cx, cz int32
}

func cellCoord(v, cellSize float64) int32 {
	return int32(math.Floor(v / cellSize))
}

// GridEntry is one entity position fed into a rebuild.
type GridEntry struct {
	ID  string
	Pos Vec3
}

// SpatialIndex is a uniform grid over the horizontal (X,Z) plane. It is
// rebuilt from scratch once per tick and queried for both interest
// management and projectile broad-phase. Rebuild is the only mutation path;
// there is no incremental update. Accessed only under the world lock.
type SpatialIndex struct {
	cellSize float64
	cells    map[cellKey][]string
	pos      map[string]Vec3 // positions as of the last rebuild
}

// NewSpatialIndex creates an empty grid with the given cell size
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = SpatialCellSize
	}
	return &SpatialIndex{
		cellSize: cellSize,
		cells:    make(map[cellKey][]string),
		pos:      make(map[string]Vec3),
	}
}

// Rebuild clears the grid and reinserts every entry keyed by its cell
func (s *SpatialIndex) Rebuild(entries []GridEntry) {
	for k := range s.cells {
		delete(s.cells, k)
	}
	for k := range s.pos {
		delete(s.pos, k)
	}
	for _, e := range entries {
		k := cellKey{cellCoord(e.Pos.X, s.cellSize), cellCoord(e.Pos.Z, s.cellSize)}
		s.cells[k] = append(s.cells[k], e.ID)
		s.pos[e.ID] = e.Pos
	}
}

// QueryRadius returns the ids of all entries whose true 3D distance to p is
// at most radius, sorted nearest-first (ties broken by id so hit resolution
// stays deterministic). Only cells within ceil(radius/cellSize) of the query
// cell are scanned; an exact distance check removes false positives.
func (s *SpatialIndex) QueryRadius(p Vec3, radius float64) []string {
	if radius < 0 {
		return nil
	}
	span := int32(math.Ceil(radius / s.cellSize))
	cx := cellCoord(p.X, s.cellSize)
	cz := cellCoord(p.Z, s.cellSize)
	r2 := radius * radius

	type hit struct {
		id    string
		dist2 float64
	}
	var hits []hit
	for dx := -span; dx <= span; dx++ {
		for dz := -span; dz <= span; dz++ {
			for _, id := range s.cells[cellKey{cx + dx, cz + dz}] {
				d2 := p.DistanceSqTo(s.pos[id])
				if d2 <= r2 {
					hits = append(hits, hit{id, d2})
				}
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist2 != hits[j].dist2 {
			return hits[i].dist2 < hits[j].dist2
		}
		return hits[i].id < hits[j].id
	})
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}

// Position returns an entry's position as of the last rebuild
func (s *SpatialIndex) Position(id string) (Vec3, bool) {
	p, ok := s.pos[id]
	return p, ok
}

// Size returns the number of indexed entries
func (s *SpatialIndex) Size() int {
	return len(s.pos)
}
