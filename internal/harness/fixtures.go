// Package harness runs scoring-condition test cases against fixture boards
// so formula authors can validate behavior before a condition goes live.
package harness

import "github.com/cardcity/scoring-go/internal/board"

// Built-in fixture names.
const (
	FixtureEmpty      = "empty"
	FixtureSingleCard = "single-card"
	FixtureTwoRoads   = "two-roads"
)

// Fixture returns the placement log for a built-in fixture board; ok is
// false for unknown names. Each call returns a fresh copy.
func Fixture(name string) ([]board.Placement, bool) {
	switch name {
	case FixtureEmpty:
		return []board.Placement{}, true
	case FixtureSingleCard:
		return []board.Placement{singleCard()}, true
	case FixtureTwoRoads:
		return twoRoadCards(), true
	}
	return nil, false
}

// FixtureNames lists the built-in fixtures in a stable order.
func FixtureNames() []string {
	return []string{FixtureEmpty, FixtureSingleCard, FixtureTwoRoads}
}

// singleCard is the canonical mixed 2x2 card: one cell per zone type, no
// roads.
func singleCard() board.Placement {
	return board.Placement{
		Cells: [2][2]board.Cell{
			{{Zone: "residential"}, {Zone: "commercial"}},
			{{Zone: "park"}, {Zone: "industrial"}},
		},
	}
}

// twoRoadCards places two cards edge-adjacent with a road crossing the
// shared boundary, forming a single four-segment network.
func twoRoadCards() []board.Placement {
	across := []board.RoadSegment{{From: board.EdgeLeft, To: board.EdgeRight}}
	return []board.Placement{
		{
			X: 0, Y: 0,
			Cells: [2][2]board.Cell{
				{{Zone: "residential", Roads: across}, {Zone: "residential", Roads: across}},
				{{Zone: "park"}, {Zone: "park"}},
			},
		},
		{
			X: 2, Y: 0,
			Cells: [2][2]board.Cell{
				{{Zone: "commercial", Roads: across}, {Zone: "commercial", Roads: across}},
				{{Zone: "industrial"}, {Zone: "industrial"}},
			},
		},
	}
}
