package routing

import (
	"fmt"

	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/route"
)

// backboneRoute builds a Manhattan-style route from source (already
// carrying the shared head's DNC merger) to target: it walks the
// sending-repeater HLine east or west until its column matches the
// target's, crosses onto a VLine via a crossbar switch, then walks that
// VLine north or south until it reaches the target chip.
func (b *Builder) backboneRoute(source coordinate.Chip, head route.L1Route, target Target) (route.L1Route, error) {
	hLine, err := sendingRepeaterLine(head)
	if err != nil {
		return route.L1Route{}, err
	}

	r, err := route.New([]route.Segment{
		route.ChipSegment{Chip: source},
		route.HLineSegment{Line: hLine},
	})
	if err != nil {
		return route.L1Route{}, err
	}

	current := source
	for current.X != target.Chip.X {
		next := current
		if target.Chip.X > current.X {
			next.X++
		} else {
			next.X--
		}
		if err := r.AppendChip(next, route.HLineSegment{Line: hLine}); err != nil {
			return route.L1Route{}, fmt.Errorf("routing: horizontal hop %s->%s: %w", current, next, err)
		}
		current = next
	}

	vLine := crossbarVLine(hLine, target.Row)
	if err := r.Append(route.VLineSegment{Line: vLine}); err != nil {
		return route.L1Route{}, fmt.Errorf("routing: crossbar at %s: %w", current, err)
	}

	for current.Y != target.Chip.Y {
		next := current
		if target.Chip.Y > current.Y {
			next.Y++
		} else {
			next.Y--
		}
		if err := r.AppendChip(next, route.VLineSegment{Line: vLine}); err != nil {
			return route.L1Route{}, fmt.Errorf("routing: vertical hop %s->%s: %w", current, next, err)
		}
		current = next
	}

	return r, nil
}

// sendingRepeaterLine recovers the HLine a head route (ending on a DNC
// merger's sending repeater) exposes to its tails.
func sendingRepeaterLine(head route.L1Route) (coordinate.HLine, error) {
	back, err := head.Back()
	if err != nil {
		return coordinate.HLine{}, err
	}
	m, ok := back.(route.DNCMergerSegment)
	if !ok {
		return coordinate.HLine{}, fmt.Errorf("routing: head does not end on a DNC merger")
	}
	return m.Merger.SendingRepeater(), nil
}

// crossbarVLine picks the VLine congruent to hLine under CrossbarExists's
// periodic pattern that is closest to the desired row.
func crossbarVLine(hLine coordinate.HLine, row int) coordinate.VLine {
	rem := hLine.Index % 4
	base := row - row%4
	idx := base + rem
	if idx < 0 {
		idx += 4
	}
	if idx >= coordinate.NumVLines {
		idx -= 4
	}
	return coordinate.VLine{Index: idx}
}
