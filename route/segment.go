// Package route builds and validates L1Route values: ordered sequences
// of topology segments describing a physical path across the L1 event
// network of a wafer. Every adjacent pair of segments in a route is
// checked against the legal-successor table before it is admitted; this
// is the sole source of structural correctness for routing.
package route

import (
	"fmt"

	"github.com/sarchlab/marocco/coordinate"
)

// Segment is a tagged variant over the set of topology elements an
// L1Route may traverse.
type Segment interface {
	fmt.Stringer
	isSegment()
}

// ChipSegment marks entry onto (or crossing into) a chip.
type ChipSegment struct{ Chip coordinate.Chip }

// HLineSegment is a horizontal L1 bus hop.
type HLineSegment struct{ Line coordinate.HLine }

// VLineSegment is a vertical L1 bus hop.
type VLineSegment struct{ Line coordinate.VLine }

// DNCMergerSegment is a DNC merger hop.
type DNCMergerSegment struct{ Merger coordinate.DNCMerger }

// GbitLinkSegment is an L2 gbit link hop.
type GbitLinkSegment struct{ Link coordinate.GbitLink }

// Merger0Segment, Merger1Segment, Merger2Segment, Merger3Segment are
// hops through the on-chip merger tree feeding the DNC mergers.
type (
	Merger0Segment struct{ Merger coordinate.Merger0 }
	Merger1Segment struct{ Merger coordinate.Merger1 }
	Merger2Segment struct{ Merger coordinate.Merger2 }
	Merger3Segment struct{}
)

// SynapseDriverSegment is a hop onto (or a chain hop between) synapse
// drivers.
type SynapseDriverSegment struct{ Driver coordinate.SynapseDriver }

// SynapseOnChipSegment terminates a route at an individual synapse.
type SynapseOnChipSegment struct{ Synapse coordinate.SynapseOnChip }

func (ChipSegment) isSegment()          {}
func (HLineSegment) isSegment()         {}
func (VLineSegment) isSegment()         {}
func (DNCMergerSegment) isSegment()     {}
func (GbitLinkSegment) isSegment()      {}
func (Merger0Segment) isSegment()       {}
func (Merger1Segment) isSegment()       {}
func (Merger2Segment) isSegment()       {}
func (Merger3Segment) isSegment()       {}
func (SynapseDriverSegment) isSegment() {}
func (SynapseOnChipSegment) isSegment() {}

func (s ChipSegment) String() string          { return s.Chip.String() }
func (s HLineSegment) String() string         { return s.Line.String() }
func (s VLineSegment) String() string         { return s.Line.String() }
func (s DNCMergerSegment) String() string     { return s.Merger.String() }
func (s GbitLinkSegment) String() string      { return s.Link.String() }
func (s Merger0Segment) String() string       { return s.Merger.String() }
func (s Merger1Segment) String() string       { return s.Merger.String() }
func (s Merger2Segment) String() string       { return s.Merger.String() }
func (Merger3Segment) String() string         { return "Merger3" }
func (s SynapseDriverSegment) String() string { return s.Driver.String() }
func (s SynapseOnChipSegment) String() string { return s.Synapse.String() }

// isChip reports whether a segment is a ChipSegment.
func isChip(s Segment) bool {
	_, ok := s.(ChipSegment)
	return ok
}

func segmentsEqual(a, b Segment) bool {
	return a == b
}
