package route

import "github.com/sarchlab/marocco/coordinate"

// checker replays the legal-successor table of an L1Route while
// tracking the chip the route currently sits on and, immediately after
// a chip-boundary crossing, which bus is expected to appear next. It
// mirrors the stateful visitor the original implementation uses for the
// same purpose (marocco::IsValidSuccessor).
type checker struct {
	currentChip coordinate.Chip
	expected    Segment
}

func newChecker(currentChip coordinate.Chip) *checker {
	return &checker{currentChip: currentChip}
}

// step reports whether next may legally follow prev, updating internal
// state (current chip, expected line) when the pair crosses a chip
// boundary.
func (c *checker) step(prev, next Segment) bool {
	switch p := prev.(type) {

	case ChipSegment:
		switch n := next.(type) {
		case HLineSegment:
			exp, ok := c.expected.(HLineSegment)
			return ok && exp == n && p.Chip == c.currentChip
		case VLineSegment:
			exp, ok := c.expected.(VLineSegment)
			return ok && exp == n && p.Chip == c.currentChip
		default:
			return false
		}

	case HLineSegment:
		switch n := next.(type) {
		case ChipSegment:
			diff := c.currentChip.X - n.Chip.X
			if diff == 0 {
				return false
			}
			var exp coordinate.HLine
			if diff < 0 {
				exp = p.Line.East()
			} else {
				exp = p.Line.West()
			}
			c.expected = HLineSegment{exp}
			c.currentChip = n.Chip
			return true
		case VLineSegment:
			return coordinate.CrossbarExists(n.Line, p.Line)
		default:
			return false
		}

	case VLineSegment:
		switch n := next.(type) {
		case ChipSegment:
			diff := c.currentChip.Y - n.Chip.Y
			if diff == 0 {
				return false
			}
			var exp coordinate.VLine
			if diff < 0 {
				exp = p.Line.South()
			} else {
				exp = p.Line.North()
			}
			c.expected = VLineSegment{exp}
			c.currentChip = n.Chip
			return true
		case HLineSegment:
			return coordinate.CrossbarExists(p.Line, n.Line)
		case SynapseDriverSegment:
			return coordinate.SynapseSwitchExists(p.Line, n.Driver.SynapseSwitchRow())
		default:
			return false
		}

	case DNCMergerSegment:
		switch n := next.(type) {
		case ChipSegment:
			// "output to the left" case of the sending repeater.
			if c.currentChip.X <= n.Chip.X {
				return false
			}
			return c.step(HLineSegment{p.Merger.SendingRepeater()}, next)
		case HLineSegment:
			return p.Merger.SendingRepeater() == n.Line
		case GbitLinkSegment:
			return p.Merger.Index == n.Link.Index
		default:
			return false
		}

	case GbitLinkSegment:
		if n, ok := next.(DNCMergerSegment); ok {
			return p.Link.Index == n.Merger.Index
		}
		return false

	case Merger0Segment:
		switch n := next.(type) {
		case Merger1Segment:
			return coordinate.Merger0To1(p.Merger.Index, n.Merger.Index)
		case DNCMergerSegment:
			return coordinate.Merger0FeedsDNC(p.Merger.Index, n.Merger.Index)
		default:
			return false
		}

	case Merger1Segment:
		switch n := next.(type) {
		case Merger2Segment:
			return coordinate.Merger1To2(p.Merger.Index, n.Merger.Index)
		case DNCMergerSegment:
			return coordinate.Merger1FeedsDNC(p.Merger.Index, n.Merger.Index)
		default:
			return false
		}

	case Merger2Segment:
		switch n := next.(type) {
		case Merger3Segment:
			return true
		case DNCMergerSegment:
			return coordinate.Merger2FeedsDNC(p.Merger.Index, n.Merger.Index)
		default:
			return false
		}

	case Merger3Segment:
		if n, ok := next.(DNCMergerSegment); ok {
			return coordinate.Merger3FeedsDNC(n.Merger.Index)
		}
		return false

	case SynapseDriverSegment:
		switch n := next.(type) {
		case SynapseDriverSegment:
			return p.Driver.ChainedWith(n.Driver)
		case SynapseOnChipSegment:
			return true
		default:
			return false
		}

	default:
		return false
	}
}

// findInvalid walks segs[1:] validating each pair against the successor
// table, starting at the chip that segs[0] (which must be a ChipSegment)
// names. It returns the index of the first invalid segment, or
// len(segs) if the whole sequence validates, along with the chip the
// route ends up on.
func findInvalid(segs []Segment) (invalidAt int, endChip coordinate.Chip, ok bool) {
	if len(segs) == 0 {
		return 0, coordinate.Chip{}, true
	}
	start, isChipSeg := segs[0].(ChipSegment)
	if !isChipSeg || len(segs) == 1 {
		return 0, coordinate.Chip{}, false
	}

	c := newChecker(start.Chip)
	for i := 1; i < len(segs)-1; i++ {
		if !c.step(segs[i], segs[i+1]) {
			return i + 1, c.currentChip, false
		}
	}
	return len(segs), c.currentChip, true
}
