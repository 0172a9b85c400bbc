package formula

import (
	"github.com/cardcity/scoring-go/internal/analysis"
	"github.com/cardcity/scoring-go/internal/board"
)

// Snapshot is the read-only board view a formula executes against: the
// resolved tile map plus its derived connectivity. It is also what the
// rendering layer consumes for highlighting. A snapshot owns its data and
// holds no references back into live engine state.
type Snapshot struct {
	Tiles    []board.Tile                `json:"tiles"`
	Clusters []analysis.Cluster          `json:"clusters"`
	Largest  map[string]analysis.Cluster `json:"largestClusters"`
	Networks []analysis.RoadNetwork      `json:"roadNetworks"`

	tileIndex map[board.Coord]board.Tile
}

// NewSnapshot derives a snapshot from a tile map. Pure: repeated calls on
// the same map produce identical snapshots.
func NewSnapshot(tiles map[board.Coord]board.Tile) *Snapshot {
	snap := &Snapshot{
		Tiles:     make([]board.Tile, 0, len(tiles)),
		tileIndex: make(map[board.Coord]board.Tile, len(tiles)),
	}
	for _, coord := range board.SortedCoords(tiles) {
		tile := tiles[coord]
		snap.Tiles = append(snap.Tiles, tile)
		snap.tileIndex[coord] = tile
	}
	snap.Clusters = analysis.Clusters(tiles)
	snap.Largest = analysis.LargestClusters(snap.Clusters)
	snap.Networks = analysis.RoadNetworks(tiles)
	return snap
}

// SnapshotOf builds the snapshot straight from a placement log.
func SnapshotOf(placements []board.Placement) *Snapshot {
	return NewSnapshot(board.BuildTileMap(placements))
}

// TileAt looks up the tile at (x, y); ok is false for empty coordinates.
func (s *Snapshot) TileAt(x, y int) (board.Tile, bool) {
	t, ok := s.tileIndex[board.Coord{X: x, Y: y}]
	return t, ok
}

// NeighborsOf returns the occupied orthogonal neighbors of (x, y) in
// N, E, S, W order.
func (s *Snapshot) NeighborsOf(x, y int) []board.Tile {
	var out []board.Tile
	for _, n := range (board.Coord{X: x, Y: y}).Neighbors4() {
		if t, ok := s.tileIndex[n]; ok {
			out = append(out, t)
		}
	}
	return out
}
