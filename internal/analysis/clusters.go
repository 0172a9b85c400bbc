// Package analysis derives connectivity structure (zone clusters and road
// networks) from a resolved tile map. Everything in here is a pure function
// of its input: no caches, no shared state, fresh allocations per call, so
// callers may invoke it repeatedly and concurrently.
package analysis

import (
	"github.com/cardcity/scoring-go/internal/board"
)

// Cluster is a maximal 4-connected set of tiles sharing one zone type.
type Cluster struct {
	Zone   string        `json:"zone"`
	Coords []board.Coord `json:"coords"`
	Size   int           `json:"size"`
}

// Clusters flood-fills the tile map into same-zone clusters. Neighbors are
// the four orthogonal directions only; tiles touching diagonally never merge.
// Clusters are returned in discovery order under a stable top-to-bottom,
// left-to-right scan, so output is deterministic for a given map.
func Clusters(tiles map[board.Coord]board.Tile) []Cluster {
	visited := make(map[board.Coord]bool, len(tiles))
	var clusters []Cluster

	for _, start := range board.SortedCoords(tiles) {
		if visited[start] {
			continue
		}
		zone := tiles[start].Zone

		// BFS from the scan-order seed.
		coords := []board.Coord{start}
		visited[start] = true
		for i := 0; i < len(coords); i++ {
			for _, n := range coords[i].Neighbors4() {
				if visited[n] {
					continue
				}
				tile, ok := tiles[n]
				if !ok || tile.Zone != zone {
					continue
				}
				visited[n] = true
				coords = append(coords, n)
			}
		}

		clusters = append(clusters, Cluster{
			Zone:   zone,
			Coords: coords,
			Size:   len(coords),
		})
	}
	return clusters
}

// LargestClusters picks, per zone type, the single largest cluster. Ties go
// to the cluster discovered first in scan order, which Clusters guarantees
// is stable.
func LargestClusters(clusters []Cluster) map[string]Cluster {
	largest := make(map[string]Cluster)
	for _, c := range clusters {
		if best, ok := largest[c.Zone]; !ok || c.Size > best.Size {
			largest[c.Zone] = c
		}
	}
	return largest
}
