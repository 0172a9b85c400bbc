package board

import "sort"

// cellAt returns the placement's cell for local position (row, col) with the
// placement's rotation applied. A 180 degree rotation mirrors both the cell
// position and the edges of every road segment in it.
func (p Placement) cellAt(row, col int) Cell {
	cell := p.Cells[row][col]
	if p.Rotation != 180 {
		return cell
	}
	cell = p.Cells[1-row][1-col]
	if len(cell.Roads) == 0 {
		return cell
	}
	rotated := make([]RoadSegment, len(cell.Roads))
	for i, seg := range cell.Roads {
		rotated[i] = seg.rotate180()
	}
	cell.Roads = rotated
	return cell
}

// BuildTileMap folds an ordered placement log into the authoritative
// coordinate->tile map. Later placements overwrite earlier ones at the same
// coordinate (last write wins). Overlap legality is the placement-acceptance
// rule's problem, not ours. The returned map shares no memory with the input.
func BuildTileMap(placements []Placement) map[Coord]Tile {
	tiles := make(map[Coord]Tile, len(placements)*4)
	for _, p := range placements {
		for row := 0; row < 2; row++ {
			for col := 0; col < 2; col++ {
				cell := p.cellAt(row, col)
				coord := Coord{X: p.X + col, Y: p.Y + row}
				roads := make([]RoadSegment, len(cell.Roads))
				copy(roads, cell.Roads)
				tiles[coord] = Tile{
					Coord: coord,
					Zone:  cell.Zone,
					Roads: roads,
				}
			}
		}
	}
	return tiles
}

// SortedCoords returns the map's coordinates in stable scan order:
// top-to-bottom, then left-to-right. All deterministic iteration over a tile
// map goes through this.
func SortedCoords(tiles map[Coord]Tile) []Coord {
	coords := make([]Coord, 0, len(tiles))
	for c := range tiles {
		coords = append(coords, c)
	}
	sortCoords(coords)
	return coords
}

func sortCoords(coords []Coord) {
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Y != coords[j].Y {
			return coords[i].Y < coords[j].Y
		}
		return coords[i].X < coords[j].X
	})
}
