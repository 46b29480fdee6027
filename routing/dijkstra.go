package routing

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/route"
)

// axis distinguishes the two kinds of position node in the congestion
// graph: sitting on the sending-repeater HLine, or on the crossbar VLine
// reached after the switch.
type axis int

const (
	axisH axis = iota
	axisV
)

type posKey struct {
	Chip coordinate.Chip
	Axis axis
}

// dijkstraRoute builds a route by shortest path over a graph of
// (chip, axis) positions confined to the rectangle spanned by source and
// target, weighing horizontal and vertical hops, the crossbar switch,
// and a congestion penalty drawn from the shared VLineUsage tally.
func (b *Builder) dijkstraRoute(source coordinate.Chip, head route.L1Route, target Target) (route.L1Route, error) {
	hLine, err := sendingRepeaterLine(head)
	if err != nil {
		return route.L1Route{}, err
	}
	vLine := crossbarVLine(hLine, target.Row)

	g := simple.NewWeightedDirectedGraph(0, 0)
	ids := make(map[posKey]int64)
	keys := make(map[int64]posKey)
	idOf := func(k posKey) int64 {
		if id, ok := ids[k]; ok {
			return id
		}
		id := int64(len(ids))
		ids[k] = id
		keys[id] = k
		g.AddNode(simple.Node(id))
		return id
	}

	minX, maxX := minMax(source.X, target.Chip.X)
	minY, maxY := minMax(source.Y, target.Chip.Y)

	hHopCost := clampPositive(b.weights.Horiz - b.weights.StraightH)
	vHopCost := clampPositive(b.weights.Vert - b.weights.StraightV)

	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			chip := coordinate.Chip{Wafer: source.Wafer, X: x, Y: y}
			hID := idOf(posKey{Chip: chip, Axis: axisH})
			vID := idOf(posKey{Chip: chip, Axis: axisV})

			if coordinate.CrossbarExists(vLine, hLine) {
				cost := b.weights.SPL1 + b.weights.Congest*float64(b.usage.Count(chip, vLine))
				g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(hID), simple.Node(vID), cost))
			}

			if x < maxX {
				east := coordinate.Chip{Wafer: chip.Wafer, X: x + 1, Y: y}
				eID := idOf(posKey{Chip: east, Axis: axisH})
				g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(hID), simple.Node(eID), hHopCost))
				g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(eID), simple.Node(hID), hHopCost))
			}
			if y < maxY {
				south := coordinate.Chip{Wafer: chip.Wafer, X: x, Y: y + 1}
				sID := idOf(posKey{Chip: south, Axis: axisV})
				cost := vHopCost + b.weights.Congest*float64(b.usage.Count(south, vLine))
				g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(vID), simple.Node(sID), cost))
				g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(sID), simple.Node(vID), cost))
			}
		}
	}

	fromID := idOf(posKey{Chip: source, Axis: axisH})
	toID := idOf(posKey{Chip: target.Chip, Axis: axisV})

	shortest := path.DijkstraFrom(simple.Node(fromID), g)
	nodePath, _ := shortest.To(toID)
	if len(nodePath) == 0 {
		return route.L1Route{}, fmt.Errorf("no path from %s to %s on VLine %s", source, target.Chip, vLine)
	}

	return buildRouteFromPath(source, hLine, vLine, nodePath, keys)
}

// buildRouteFromPath replays a sequence of graph nodes as L1Route
// operations, switching from HLineSegment to VLineSegment hops exactly
// where the path crosses from an H position to a V position.
func buildRouteFromPath(source coordinate.Chip, hLine coordinate.HLine, vLine coordinate.VLine, nodePath []graph.Node, keys map[int64]posKey) (route.L1Route, error) {
	first := keys[nodePath[0].ID()]

	r, err := route.New([]route.Segment{
		route.ChipSegment{Chip: source},
		segmentFor(first.Axis, hLine, vLine),
	})
	if err != nil {
		return route.L1Route{}, err
	}

	prev := first
	for _, n := range nodePath[1:] {
		cur := keys[n.ID()]
		seg := segmentFor(cur.Axis, hLine, vLine)
		if cur.Chip == prev.Chip {
			if err := r.Append(seg); err != nil {
				return route.L1Route{}, fmt.Errorf("routing: crossbar at %s: %w", cur.Chip, err)
			}
		} else {
			if err := r.AppendChip(cur.Chip, seg); err != nil {
				return route.L1Route{}, fmt.Errorf("routing: hop %s->%s: %w", prev.Chip, cur.Chip, err)
			}
		}
		prev = cur
	}
	return r, nil
}

func segmentFor(a axis, hLine coordinate.HLine, vLine coordinate.VLine) route.Segment {
	if a == axisH {
		return route.HLineSegment{Line: hLine}
	}
	return route.VLineSegment{Line: vLine}
}

func minMax(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}

func clampPositive(v float64) float64 {
	const eps = 0.01
	if v < eps {
		return eps
	}
	return v
}
