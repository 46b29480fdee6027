// Package routing builds L1RouteTree values connecting a source chip's
// DNC merger output to every target chip of a projection, using one of
// two pluggable algorithms, and accounts for targets it cannot reach.
package routing

import (
	"fmt"
	"sort"

	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/route"
)

// Algorithm selects the route-building strategy.
type Algorithm int

const (
	// Backbone is the default Manhattan-style builder.
	Backbone Algorithm = iota
	// ShortestPath is the congestion-aware Dijkstra builder.
	ShortestPath
)

// Weights configures the ShortestPath algorithm's per-edge costs.
// Zero-valued weights fall back to the defaults from §4.5.
type Weights struct {
	Vert      float64
	Horiz     float64
	SPL1      float64
	StraightH float64
	StraightV float64
	Congest   float64
}

// DefaultWeights returns the weight set used when a Weights value is left
// zero.
func DefaultWeights() Weights {
	return Weights{
		Vert:      1,
		Horiz:     1,
		SPL1:      1,
		StraightH: 0.5,
		StraightV: 0.5,
		Congest:   2,
	}
}

func (w Weights) orDefault() Weights {
	if w == (Weights{}) {
		return DefaultWeights()
	}
	return w
}

// RouteUnreachableError reports that no legal route could connect a
// source to a target chip; the builder records it as a loss instead of
// aborting the run.
type RouteUnreachableError struct {
	Source coordinate.Chip
	Target coordinate.Chip
	Reason string
}

func (e *RouteUnreachableError) Error() string {
	return fmt.Sprintf("routing: %s unreachable from %s: %s", e.Target, e.Source, e.Reason)
}

// Loss accumulates targets that could not be routed to, so a run can
// report partial connectivity instead of failing outright.
type Loss struct {
	entries []*RouteUnreachableError
}

// Record appends an unreachable-target failure to the loss ledger.
func (l *Loss) Record(err *RouteUnreachableError) {
	l.entries = append(l.entries, err)
}

// Count returns the number of recorded losses.
func (l *Loss) Count() int { return len(l.entries) }

// Entries returns every recorded loss, in recording order.
func (l *Loss) Entries() []*RouteUnreachableError { return l.entries }

// VLineUsage tallies, per chip, how many routes already traverse each
// VLine, feeding the ShortestPath algorithm's congestion penalty.
type VLineUsage struct {
	counts map[coordinate.Chip]map[coordinate.VLine]int
}

// NewVLineUsage builds an empty usage tally.
func NewVLineUsage() *VLineUsage {
	return &VLineUsage{counts: make(map[coordinate.Chip]map[coordinate.VLine]int)}
}

// Count returns how many routes already use chip's VLine v.
func (u *VLineUsage) Count(chip coordinate.Chip, v coordinate.VLine) int {
	return u.counts[chip][v]
}

// Add records one more route using chip's VLine v.
func (u *VLineUsage) Add(chip coordinate.Chip, v coordinate.VLine) {
	m, ok := u.counts[chip]
	if !ok {
		m = make(map[coordinate.VLine]int)
		u.counts[chip] = m
	}
	m[v]++
}

// Target names one destination of a route request: the chip to reach and
// the row (VLine index parity is decided by the algorithm) it should
// terminate its crossbar hop on.
type Target struct {
	Chip coordinate.Chip
	Row  int
}

// Builder builds L1RouteTree values from a source chip/merger to a set
// of targets, using the configured algorithm.
type Builder struct {
	algorithm Algorithm
	weights   Weights
	usage     *VLineUsage
	seed      int64
}

// NewBuilder constructs a route Builder. usage may be nil for Backbone;
// ShortestPath shares one VLineUsage tally across an entire run to make
// its congestion penalty meaningful.
func NewBuilder(algo Algorithm, weights Weights, usage *VLineUsage, seed int64) *Builder {
	if usage == nil {
		usage = NewVLineUsage()
	}
	return &Builder{algorithm: algo, weights: weights.orDefault(), usage: usage, seed: seed}
}

// Build routes from the chip hosting merger m to every target, returning
// the resulting tree of successfully connected targets and recording a
// Loss entry for each target that could not be reached.
func (b *Builder) Build(source coordinate.Chip, merger coordinate.DNCMerger, targets []Target, loss *Loss) (*route.L1RouteTree, error) {
	head, err := headRoute(source, merger)
	if err != nil {
		return nil, err
	}
	tree := route.NewLeaf(head)

	sorted := make([]Target, len(targets))
	copy(sorted, targets)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Chip.Y != sorted[j].Chip.Y {
			return sorted[i].Chip.Y < sorted[j].Chip.Y
		}
		if sorted[i].Chip.X != sorted[j].Chip.X {
			return sorted[i].Chip.X < sorted[j].Chip.X
		}
		return sorted[i].Row < sorted[j].Row
	})

	for _, t := range sorted {
		var tail route.L1Route
		var err error
		switch b.algorithm {
		case ShortestPath:
			tail, err = b.dijkstraRoute(source, head, t)
		default:
			tail, err = b.backboneRoute(source, head, t)
		}
		if err != nil {
			loss.Record(&RouteUnreachableError{Source: source, Target: t.Chip, Reason: err.Error()})
			continue
		}
		if addErr := tree.AddTail(route.NewLeaf(tail)); addErr != nil {
			loss.Record(&RouteUnreachableError{Source: source, Target: t.Chip, Reason: addErr.Error()})
			continue
		}
		b.markUsage(tail)
	}

	return tree, nil
}

// markUsage records every VLine hop of a completed route in the shared
// usage tally, so later ShortestPath calls see accumulated congestion.
func (b *Builder) markUsage(r route.L1Route) {
	chip, _ := r.SourceChip()
	for _, seg := range r.Segments() {
		switch s := seg.(type) {
		case route.ChipSegment:
			chip = s.Chip
		case route.VLineSegment:
			b.usage.Add(chip, s.Line)
		}
	}
}

// headRoute builds the fixed prefix shared by every target of a
// projection: the source chip and its output DNC merger. Each tail picks
// up from here onto the merger's sending repeater HLine, which every
// tail must do identically since that first hop off the merger is the
// only one the successor table admits.
func headRoute(source coordinate.Chip, m coordinate.DNCMerger) (route.L1Route, error) {
	segs := []route.Segment{
		route.ChipSegment{Chip: source},
		route.DNCMergerSegment{Merger: m},
	}
	return route.New(segs)
}
