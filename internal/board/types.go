package board

import "fmt"

// Coord is a 2D integer grid coordinate used as a map key.
// Always use Coord (never formatted strings) to key tile maps.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Neighbor returns the coordinate adjacent to c across the given edge.
func (c Coord) Neighbor(e Edge) Coord {
	switch e {
	case EdgeTop:
		return Coord{c.X, c.Y - 1}
	case EdgeRight:
		return Coord{c.X + 1, c.Y}
	case EdgeBottom:
		return Coord{c.X, c.Y + 1}
	case EdgeLeft:
		return Coord{c.X - 1, c.Y}
	}
	panic(fmt.Sprintf("board: invalid edge %d", e))
}

// Neighbors4 returns the four orthogonal neighbors in N, E, S, W order.
func (c Coord) Neighbors4() [4]Coord {
	return [4]Coord{
		{c.X, c.Y - 1},
		{c.X + 1, c.Y},
		{c.X, c.Y + 1},
		{c.X - 1, c.Y},
	}
}

// Edge identifies one side of a tile.
type Edge int

const (
	EdgeTop Edge = iota
	EdgeRight
	EdgeBottom
	EdgeLeft
)

// Valid reports whether e is one of the four tile sides.
func (e Edge) Valid() bool {
	return e >= EdgeTop && e <= EdgeLeft
}

// Opposite returns the edge facing e from the adjacent tile
// (top<->bottom, left<->right).
func (e Edge) Opposite() Edge {
	return (e + 2) % 4
}

// rotate180 maps an edge to its position after rotating the cell 180 degrees.
func (e Edge) rotate180() Edge {
	return (e + 2) % 4
}

func (e Edge) String() string {
	switch e {
	case EdgeTop:
		return "top"
	case EdgeRight:
		return "right"
	case EdgeBottom:
		return "bottom"
	case EdgeLeft:
		return "left"
	}
	return fmt.Sprintf("edge(%d)", int(e))
}

// RoadSegment is a road crossing a single cell between two of its edges.
// From and To must both be valid edges; they may be equal for a stub that
// enters and exits on the same side.
type RoadSegment struct {
	From Edge `json:"from"`
	To   Edge `json:"to"`
}

// rotate180 returns the segment as seen after a 180 degree card rotation.
func (s RoadSegment) rotate180() RoadSegment {
	return RoadSegment{From: s.From.rotate180(), To: s.To.rotate180()}
}

// Cell is one quarter of a card: a zone type plus zero or more road segments.
// Zone is an open vocabulary ("residential", "commercial", ...); the engine
// never interprets it beyond equality.
type Cell struct {
	Zone  string        `json:"zone"`
	Roads []RoadSegment `json:"roads,omitempty"`
}

// Placement is one 2x2 card placed on the grid. X,Y is the grid position of
// the card's top-left cell. Cells is indexed [row][col]. Rotation is 0 or
// 180 degrees. Placements are immutable once appended to the placement log.
type Placement struct {
	X        int        `json:"x"`
	Y        int        `json:"y"`
	Cells    [2][2]Cell `json:"cells"`
	Rotation int        `json:"rotation"`
}

// Tile is the resolved single-owner cell at one grid coordinate after
// folding the placement log.
type Tile struct {
	Coord Coord         `json:"coord"`
	Zone  string        `json:"zone"`
	Roads []RoadSegment `json:"roads,omitempty"`
}
