// Package placement assigns biological neurons to logical neurons —
// contiguous rectangles of denmems on a chip, or external descriptors for
// spike-source populations — and records the resulting Placement items.
package placement

import (
	"fmt"

	"github.com/sarchlab/marocco/coordinate"
)

// LogicalNeuron is either an external descriptor for a spike source or a
// rectangle of denmems on one neuron block of one chip.
type LogicalNeuron struct {
	external bool

	// External form.
	sourcePopulation int
	sourceIndex      int

	// On-chip form: columns [XMin, XMax] of Block on Chip, both halves.
	Chip  coordinate.Chip
	Block coordinate.NeuronBlock
	XMin  int
	XMax  int
}

// External builds the descriptor for a neuron of a spike-source
// population, which owns no hardware denmems.
func External(sourcePopulation, sourceIndex int) LogicalNeuron {
	return LogicalNeuron{external: true, sourcePopulation: sourcePopulation, sourceIndex: sourceIndex}
}

// OnChip builds a denmem rectangle spanning columns [xMin, xMax] of block
// on chip. Width must be positive; the resulting neuron size (width*2,
// covering both denmem halves) is therefore always even.
func OnChip(chip coordinate.Chip, block coordinate.NeuronBlock, xMin, xMax int) LogicalNeuron {
	if xMax < xMin {
		panic("placement: empty denmem rectangle")
	}
	return LogicalNeuron{Chip: chip, Block: block, XMin: xMin, XMax: xMax}
}

// IsExternal reports whether this is a spike-source descriptor rather than
// an on-chip denmem rectangle.
func (n LogicalNeuron) IsExternal() bool { return n.external }

// Source returns the source population id and neuron index of an external
// logical neuron. Panics if called on an on-chip neuron.
func (n LogicalNeuron) Source() (population, index int) {
	if !n.external {
		panic("placement: Source called on an on-chip logical neuron")
	}
	return n.sourcePopulation, n.sourceIndex
}

// Width returns the number of denmem columns the rectangle spans.
func (n LogicalNeuron) Width() int {
	if n.external {
		return 0
	}
	return n.XMax - n.XMin + 1
}

// Size returns the hardware neuron size: the total number of denmems the
// rectangle covers (both halves).
func (n LogicalNeuron) Size() int {
	return n.Width() * 2
}

func (n LogicalNeuron) String() string {
	if n.external {
		return fmt.Sprintf("LogicalNeuron(external,pop=%d,idx=%d)", n.sourcePopulation, n.sourceIndex)
	}
	return fmt.Sprintf("LogicalNeuron(%s,%s,x=%d..%d)", n.Chip, n.Block, n.XMin, n.XMax)
}
