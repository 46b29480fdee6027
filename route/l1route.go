package route

import (
	"strings"

	"github.com/sarchlab/marocco/coordinate"
)

// L1Route is a non-empty ordered sequence of topology segments whose
// first element is a ChipSegment and in which every adjacent pair is
// legal per the successor table of checker.go. The zero value is the
// empty route.
type L1Route struct {
	segments []Segment
	lastChip coordinate.Chip
}

// New builds and validates a route from a full segment sequence in one
// step, equivalent to the original's verifying constructor.
func New(segments []Segment) (L1Route, error) {
	segs := append([]Segment{}, segments...)
	at, endChip, ok := findInvalid(segs)
	if !ok {
		return L1Route{}, invalidf("invalid segment at index %d", at)
	}
	return L1Route{segments: segs, lastChip: endChip}, nil
}

// newUnchecked builds a route from a segment sequence without
// validation, recovering the target chip by scanning backwards. It
// backs Split, whose two halves are each individually valid by
// construction from an already-valid route.
func newUnchecked(segments []Segment) L1Route {
	r := L1Route{segments: segments}
	for i := len(segments) - 1; i >= 0; i-- {
		if cs, ok := segments[i].(ChipSegment); ok {
			r.lastChip = cs.Chip
			break
		}
	}
	return r
}

// Empty reports whether the route carries no segments.
func (r L1Route) Empty() bool { return len(r.segments) == 0 }

// Len returns the number of segments in the route.
func (r L1Route) Len() int { return len(r.segments) }

// Segments returns a copy of the route's segment sequence.
func (r L1Route) Segments() []Segment {
	return append([]Segment{}, r.segments...)
}

// Clone returns an independent copy of the route.
func (r L1Route) Clone() L1Route {
	return L1Route{segments: append([]Segment{}, r.segments...), lastChip: r.lastChip}
}

// SourceChip returns the chip the route starts at.
func (r L1Route) SourceChip() (coordinate.Chip, error) {
	if r.Empty() {
		return coordinate.Chip{}, invalidf("source_chip() called on empty route")
	}
	cs, ok := r.segments[0].(ChipSegment)
	if !ok {
		return coordinate.Chip{}, invalidf("route does not start with a chip")
	}
	return cs.Chip, nil
}

// TargetChip returns the last chip the route touches.
func (r L1Route) TargetChip() (coordinate.Chip, error) {
	if r.Empty() {
		return coordinate.Chip{}, invalidf("target_chip() called on empty route")
	}
	return r.lastChip, nil
}

// Front returns the first non-chip segment of the route (the hop taken
// right after leaving the source chip).
func (r L1Route) Front() (Segment, error) {
	if len(r.segments) < 2 {
		return nil, invalidf("front() called on a route with no hops")
	}
	return r.segments[1], nil
}

// Back returns the last non-chip segment of the route.
func (r L1Route) Back() (Segment, error) {
	if r.Empty() {
		return nil, invalidf("back() called on empty route")
	}
	last := r.segments[len(r.segments)-1]
	if isChip(last) {
		if len(r.segments) < 2 {
			return nil, invalidf("back() called on a route with no hops")
		}
		return r.segments[len(r.segments)-2], nil
	}
	return last, nil
}

// Append adds a single non-chip segment to the end of the route. The
// route must already be non-empty; use AppendChip to cross a chip
// boundary.
func (r *L1Route) Append(segment Segment) error {
	if isChip(segment) {
		return invalidf("cannot add a chip on its own, use AppendChip")
	}
	if r.Empty() {
		return invalidf("route has to start with a chip")
	}
	c := newChecker(r.lastChip)
	last := r.segments[len(r.segments)-1]
	if !c.step(last, segment) {
		return invalidf("trying to insert invalid segment: %v", segment)
	}
	r.segments = append(r.segments, segment)
	return nil
}

// AppendChip atomically appends a chip-boundary crossing followed by
// the segment reached on the far side. When called on an empty route it
// always succeeds: crossing a chip boundary right after the very first
// chip of a route (source chip -> first hop) has no predecessor to
// check against, matching the original's initial-hop exemption.
func (r *L1Route) AppendChip(chip coordinate.Chip, segment Segment) error {
	if isChip(segment) {
		return invalidf("cannot add two consecutive chips")
	}
	if !r.Empty() {
		c := newChecker(r.lastChip)
		last := r.segments[len(r.segments)-1]
		chipSeg := ChipSegment{Chip: chip}
		if !c.step(last, chipSeg) || !c.step(chipSeg, segment) {
			return invalidf("trying to insert invalid segment: %v", segment)
		}
	}
	r.segments = append(r.segments, ChipSegment{Chip: chip}, segment)
	r.lastChip = chip
	return nil
}

// Extend splices other onto the end of the route, eliding the
// duplicated chip segment when both routes meet on the same chip.
func (r *L1Route) Extend(other L1Route) error {
	if r.Empty() {
		*r = other.Clone()
		return nil
	}
	if other.Empty() {
		return nil
	}

	hicann, err := other.SourceChip()
	if err != nil {
		return err
	}
	if len(other.segments) < 2 {
		return invalidf("cannot extend with a route that has no hops")
	}

	c := newChecker(r.lastChip)
	last := r.segments[len(r.segments)-1]

	var from int
	switch {
	case hicann == r.lastChip && c.step(last, other.segments[1]):
		from = 1
	case hicann != r.lastChip && c.step(last, other.segments[0]) && c.step(other.segments[0], other.segments[1]):
		from = 0
	default:
		return invalidf("invalid starting segment when extending with %v", other)
	}

	r.segments = append(r.segments, other.segments[from:]...)
	r.lastChip = other.lastChip
	return nil
}

// Merge is like Extend but additionally deduplicates one overlapping
// segment at the join point (the two routes must share both the join
// chip and the segment immediately after it).
func (r *L1Route) Merge(other L1Route) error {
	if r.Empty() {
		*r = other.Clone()
		return nil
	}
	if other.Empty() {
		return nil
	}

	hicann, err := other.SourceChip()
	if err != nil {
		return err
	}
	if len(other.segments) < 2 {
		return invalidf("cannot merge with a route that has no hops")
	}
	if hicann != r.lastChip {
		return invalidf("invalid source chip when merging: %v, expected %v", hicann, r.lastChip)
	}

	last := r.segments[len(r.segments)-1]
	if !segmentsEqual(last, other.segments[1]) {
		return invalidf("invalid starting segment when merging: %v vs %v", last, other.segments[1])
	}

	r.segments = append(r.segments, other.segments[2:]...)
	r.lastChip = other.lastChip
	return nil
}

// Split cuts the route at position pos (0 <= pos <= Len()), returning
// two independently valid routes. If the cut lands immediately after a
// chip segment, that chip is moved into the second half so it remains
// the second half's source chip.
func (r L1Route) Split(pos int) (L1Route, L1Route) {
	n := len(r.segments)
	if pos <= 0 {
		return L1Route{}, r.Clone()
	}
	if pos >= n {
		return r.Clone(), L1Route{}
	}

	if isChip(r.segments[pos-1]) {
		pos--
	}

	first := append([]Segment{}, r.segments[:pos]...)

	var second []Segment
	if !isChip(r.segments[pos]) {
		for i := pos - 1; i >= 0; i-- {
			if isChip(r.segments[i]) {
				second = append(second, r.segments[i])
				break
			}
		}
	}
	second = append(second, r.segments[pos:]...)

	return newUnchecked(first), newUnchecked(second)
}

// Equal reports whether two routes carry the same segment sequence.
func (r L1Route) Equal(other L1Route) bool {
	if len(r.segments) != len(other.segments) {
		return false
	}
	for i := range r.segments {
		if !segmentsEqual(r.segments[i], other.segments[i]) {
			return false
		}
	}
	return true
}

func (r L1Route) String() string {
	parts := make([]string, len(r.segments))
	for i, s := range r.segments {
		parts[i] = s.String()
	}
	return "L1Route[" + strings.Join(parts, " -> ") + "]"
}
