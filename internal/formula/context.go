package formula

import (
	"github.com/dop251/goja"

	"github.com/cardcity/scoring-go/internal/analysis"
	"github.com/cardcity/scoring-go/internal/board"
)

// buildContext assembles the capability-scoped scoring context object for
// one sandbox invocation. Every value handed to the formula is a plain
// copy built from the snapshot — queries only, no mutation surface and no
// references back into engine internals.
func buildContext(rt *goja.Runtime, snap *Snapshot) *goja.Object {
	ctx := rt.NewObject()

	tiles := make([]interface{}, len(snap.Tiles))
	for i, t := range snap.Tiles {
		tiles[i] = tileJS(t)
	}
	clusters := make([]interface{}, len(snap.Clusters))
	for i, c := range snap.Clusters {
		clusters[i] = clusterJS(c)
	}
	networks := make([]interface{}, len(snap.Networks))
	for i, n := range snap.Networks {
		networks[i] = networkJS(n)
	}

	ctx.Set("tiles", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(tiles)
	})

	ctx.Set("tileAt", func(call goja.FunctionCall) goja.Value {
		x := int(call.Argument(0).ToInteger())
		y := int(call.Argument(1).ToInteger())
		if t, ok := snap.TileAt(x, y); ok {
			return rt.ToValue(tileJS(t))
		}
		return goja.Null()
	})

	ctx.Set("neighbors", func(call goja.FunctionCall) goja.Value {
		x := int(call.Argument(0).ToInteger())
		y := int(call.Argument(1).ToInteger())
		ns := snap.NeighborsOf(x, y)
		out := make([]interface{}, len(ns))
		for i, t := range ns {
			out[i] = tileJS(t)
		}
		return rt.ToValue(out)
	})

	ctx.Set("allClusters", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(clusters)
	})

	ctx.Set("clustersOfType", func(call goja.FunctionCall) goja.Value {
		zone := call.Argument(0).String()
		var out []interface{}
		for _, c := range snap.Clusters {
			if c.Zone == zone {
				out = append(out, clusterJS(c))
			}
		}
		return rt.ToValue(out)
	})

	ctx.Set("largestCluster", func(call goja.FunctionCall) goja.Value {
		zone := call.Argument(0).String()
		if c, ok := snap.Largest[zone]; ok {
			return rt.ToValue(clusterJS(c))
		}
		return goja.Null()
	})

	ctx.Set("roadNetworks", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(networks)
	})

	// Pure numeric helpers over JS arrays.
	ctx.Set("sum", func(call goja.FunctionCall) goja.Value {
		total := 0.0
		for _, v := range numbersOf(call.Argument(0)) {
			total += v
		}
		return rt.ToValue(total)
	})
	ctx.Set("min", func(call goja.FunctionCall) goja.Value {
		nums := numbersOf(call.Argument(0))
		if len(nums) == 0 {
			return rt.ToValue(0.0)
		}
		m := nums[0]
		for _, v := range nums[1:] {
			if v < m {
				m = v
			}
		}
		return rt.ToValue(m)
	})
	ctx.Set("max", func(call goja.FunctionCall) goja.Value {
		nums := numbersOf(call.Argument(0))
		if len(nums) == 0 {
			return rt.ToValue(0.0)
		}
		m := nums[0]
		for _, v := range nums[1:] {
			if v > m {
				m = v
			}
		}
		return rt.ToValue(m)
	})
	ctx.Set("count", func(call goja.FunctionCall) goja.Value {
		arr, ok := call.Argument(0).Export().([]interface{})
		if !ok {
			return rt.ToValue(0)
		}
		return rt.ToValue(len(arr))
	})

	return ctx
}

func tileJS(t board.Tile) map[string]interface{} {
	roads := make([]interface{}, len(t.Roads))
	for i, s := range t.Roads {
		roads[i] = map[string]interface{}{
			"from": int(s.From),
			"to":   int(s.To),
		}
	}
	return map[string]interface{}{
		"x":     t.Coord.X,
		"y":     t.Coord.Y,
		"zone":  t.Zone,
		"roads": roads,
	}
}

func clusterJS(c analysis.Cluster) map[string]interface{} {
	coords := make([]interface{}, len(c.Coords))
	for i, co := range c.Coords {
		coords[i] = map[string]interface{}{"x": co.X, "y": co.Y}
	}
	return map[string]interface{}{
		"zone":   c.Zone,
		"size":   c.Size,
		"coords": coords,
	}
}

func networkJS(n analysis.RoadNetwork) map[string]interface{} {
	coords := make([]interface{}, len(n.Coords))
	for i, co := range n.Coords {
		coords[i] = map[string]interface{}{"x": co.X, "y": co.Y}
	}
	segs := make([]interface{}, len(n.Segments))
	for i, s := range n.Segments {
		segs[i] = map[string]interface{}{
			"x":    s.Coord.X,
			"y":    s.Coord.Y,
			"from": int(s.Segment.From),
			"to":   int(s.Segment.To),
		}
	}
	return map[string]interface{}{
		"size":     len(n.Segments),
		"coords":   coords,
		"segments": segs,
	}
}

// numbersOf exports a JS array argument as float64s, skipping anything
// non-numeric.
func numbersOf(v goja.Value) []float64 {
	arr, ok := v.Export().([]interface{})
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, item := range arr {
		switch n := item.(type) {
		case int64:
			out = append(out, float64(n))
		case float64:
			out = append(out, n)
		}
	}
	return out
}
