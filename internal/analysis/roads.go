package analysis

import (
	"fmt"

	"github.com/cardcity/scoring-go/internal/board"
)

// SegmentRef identifies one road segment on one tile.
type SegmentRef struct {
	Coord   board.Coord       `json:"coord"`
	Segment board.RoadSegment `json:"segment"`
}

// EdgePoint is a (tile, edge) pair where a road segment terminates.
type EdgePoint struct {
	Coord board.Coord `json:"coord"`
	Edge  board.Edge  `json:"edge"`
}

// RoadNetwork is a maximal set of road segments mutually reachable across
// tile boundaries. Coords lists the covered tiles (sorted scan order) for
// highlighting; DeadEnds lists endpoints with no matching neighbor, which
// matters to rendering only, never to topology.
type RoadNetwork struct {
	Segments []SegmentRef  `json:"segments"`
	Coords   []board.Coord `json:"coords"`
	DeadEnds []EdgePoint   `json:"deadEnds,omitempty"`
}

// Size returns the number of member segments.
func (n RoadNetwork) Size() int { return len(n.Segments) }

// RoadNetworks computes connected road components over the tile map.
//
// The graph's nodes are (tile, edge) pairs carrying a segment endpoint. Two
// endpoints connect within a tile when they belong to the same segment (or
// two segments meet at the same edge), and across tiles when tile A's edge
// and the neighboring tile B's opposite edge both carry endpoints. Networks
// are emitted in discovery order under the stable scan order, so output is
// deterministic.
//
// Segment edges outside [0,3] are rejected upstream at data entry; hitting
// one here is a programming error and panics.
func RoadNetworks(tiles map[board.Coord]board.Tile) []RoadNetwork {
	// Collect segments in stable order and index endpoints.
	var segs []SegmentRef
	segsAt := make(map[EdgePoint][]int) // endpoint -> indices into segs
	for _, coord := range board.SortedCoords(tiles) {
		for _, seg := range tiles[coord].Roads {
			if !seg.From.Valid() || !seg.To.Valid() {
				panic(fmt.Sprintf("analysis: malformed road segment %+v at %v", seg, coord))
			}
			idx := len(segs)
			segs = append(segs, SegmentRef{Coord: coord, Segment: seg})
			segsAt[EdgePoint{coord, seg.From}] = append(segsAt[EdgePoint{coord, seg.From}], idx)
			if seg.To != seg.From {
				segsAt[EdgePoint{coord, seg.To}] = append(segsAt[EdgePoint{coord, seg.To}], idx)
			}
		}
	}

	visited := make([]bool, len(segs))
	var networks []RoadNetwork

	for start := range segs {
		if visited[start] {
			continue
		}

		// BFS over segments through shared and facing endpoints.
		member := []int{start}
		visited[start] = true
		for i := 0; i < len(member); i++ {
			ref := segs[member[i]]
			for _, ep := range endpointsOf(ref) {
				// Same tile, same edge.
				for _, j := range segsAt[ep] {
					if !visited[j] {
						visited[j] = true
						member = append(member, j)
					}
				}
				// Facing edge of the adjacent tile.
				across := EdgePoint{ep.Coord.Neighbor(ep.Edge), ep.Edge.Opposite()}
				for _, j := range segsAt[across] {
					if !visited[j] {
						visited[j] = true
						member = append(member, j)
					}
				}
			}
		}

		networks = append(networks, buildNetwork(segs, member, segsAt))
	}
	return networks
}

func endpointsOf(ref SegmentRef) []EdgePoint {
	eps := []EdgePoint{{ref.Coord, ref.Segment.From}}
	if ref.Segment.To != ref.Segment.From {
		eps = append(eps, EdgePoint{ref.Coord, ref.Segment.To})
	}
	return eps
}

func buildNetwork(segs []SegmentRef, member []int, segsAt map[EdgePoint][]int) RoadNetwork {
	net := RoadNetwork{Segments: make([]SegmentRef, 0, len(member))}

	coordSet := make(map[board.Coord]board.Tile, len(member))
	deadSeen := make(map[EdgePoint]bool)
	for _, idx := range member {
		ref := segs[idx]
		net.Segments = append(net.Segments, ref)
		coordSet[ref.Coord] = board.Tile{}

		// An endpoint with no matching segment across the boundary is a
		// dead end (terminal).
		for _, ep := range endpointsOf(ref) {
			across := EdgePoint{ep.Coord.Neighbor(ep.Edge), ep.Edge.Opposite()}
			if len(segsAt[across]) == 0 && !deadSeen[ep] {
				deadSeen[ep] = true
				net.DeadEnds = append(net.DeadEnds, ep)
			}
		}
	}
	net.Coords = board.SortedCoords(coordSet)
	return net
}
