// Package merger chooses, per chip, which neuron blocks feed which DNC
// merger and draws 6-bit L1 addresses for the neurons placed on them.
package merger

import "github.com/sarchlab/marocco/coordinate"

// Mode is the operating mode of a DNC merger.
type Mode int

const (
	// Unused means the merger carries no traffic.
	Unused Mode = iota
	// Output means the merger carries events from placed neurons toward
	// the gbit link.
	Output
	// Input means the merger carries events from an external source
	// arriving over the gbit link.
	Input
)

func (m Mode) String() string {
	switch m {
	case Unused:
		return "unused"
	case Output:
		return "output"
	case Input:
		return "input"
	default:
		panic("invalid merger mode")
	}
}

// Strategy selects how neuron blocks are folded onto the eight DNC
// mergers of a chip.
type Strategy int

const (
	// MinSPL1 shares merger-tree nodes wherever the topology allows it,
	// minimising the number of DNC mergers used for output so the rest
	// stay free for input placement.
	MinSPL1 Strategy = iota
	// MaxSPL1 keeps a 1-to-1 mapping: every active block takes its own
	// most direct DNC merger, never sharing with a sibling.
	MaxSPL1
)

// directDNC gives, for the four neuron blocks with a straight-through
// wire to a DNC merger, the merger index they reach without folding into
// the tree (Merger0FeedsDNC in the successor table).
var directDNC = map[int]int{0: 0, 2: 2, 4: 4, 7: 7}

// forcedDNC gives, for the four blocks with no straight-through wire,
// the single DNC merger their forced escalation through the tree ends
// at (Merger1/Merger2/Merger3 successor rules leave them no choice).
var forcedDNC = map[int]int{1: 1, 3: 3, 5: 5, 6: 6}

// sharesWith pairs each flexible block with the forced block that sits
// under the same upper merger-tree node, i.e. the sibling it can fold
// onto to save a DNC merger under MinSPL1.
var sharesWith = map[int]int{0: 1, 2: 3, 4: 5, 7: 6}

// ChipRouting is the merger-tree assignment computed for one chip: which
// DNC merger (if any) each neuron block's output folds onto, and the
// resulting per-merger mode and address pool.
type ChipRouting struct {
	Chip coordinate.Chip

	active [coordinate.NumNeuronBlocks]bool
	target [coordinate.NumNeuronBlocks]coordinate.DNCMerger

	mode  [coordinate.NumDNCMergers]Mode
	pools [coordinate.NumDNCMergers]*AddressPool
}

// TargetMerger returns the DNC merger neuron block b's output folds
// onto, and whether the block is active (placed with output traffic).
func (r *ChipRouting) TargetMerger(b coordinate.NeuronBlock) (coordinate.DNCMerger, bool) {
	return r.target[b], r.active[b]
}

// Mode returns the operating mode of a DNC merger.
func (r *ChipRouting) Mode(m coordinate.DNCMerger) Mode {
	return r.mode[m.Index]
}

// Pool returns the address pool of a DNC merger, creating it lazily.
func (r *ChipRouting) Pool(m coordinate.DNCMerger, strategy AddressStrategy, seed int64) *AddressPool {
	if r.pools[m.Index] == nil {
		r.pools[m.Index] = NewAddressPool(strategy, seed+int64(m.Index))
	}
	return r.pools[m.Index]
}

// setOutput marks a DNC merger as carrying output traffic.
func (r *ChipRouting) setOutput(idx int) {
	r.mode[idx] = Output
}

// Router computes ChipRouting values for a chip's set of active output
// blocks.
type Router struct {
	strategy Strategy
}

// NewRouter builds a Router using the given folding strategy.
func NewRouter(strategy Strategy) *Router {
	return &Router{strategy: strategy}
}

// Route decides the neuron-block -> DNC-merger mapping for one chip.
// active[b] is true when neuron block b has been placed with neurons that
// require output traffic.
func (rt *Router) Route(chip coordinate.Chip, active [coordinate.NumNeuronBlocks]bool) *ChipRouting {
	r := &ChipRouting{Chip: chip, active: active}

	for b := 0; b < coordinate.NumNeuronBlocks; b++ {
		if !active[b] {
			continue
		}
		if forced, ok := forcedDNC[b]; ok {
			r.target[b] = coordinate.DNCMerger{Index: forced}
			r.setOutput(forced)
		}
	}

	for b, sibling := range sharesWith {
		if !active[b] {
			continue
		}
		direct := directDNC[b]
		if rt.strategy == MinSPL1 && active[sibling] {
			r.target[b] = coordinate.DNCMerger{Index: forcedDNC[sibling]}
		} else {
			r.target[b] = coordinate.DNCMerger{Index: direct}
			r.setOutput(direct)
		}
	}

	return r
}
