package placement

import (
	"fmt"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/coordinate"
)

// OutOfResourcesError is returned when no feasible packing exists for a
// population under the current resource manifest.
type OutOfResourcesError struct {
	PopulationID int
	Reason       string
}

func (e *OutOfResourcesError) Error() string {
	return fmt.Sprintf("placement: population %d out of resources: %s", e.PopulationID, e.Reason)
}

// Item ties one biological neuron to the logical neuron(s) implementing
// it. A neuron split across chips owns more than one LogicalNeuron; an
// on-chip LogicalNeuron always belongs to exactly one Item. Address is
// filled in later by merger routing or input placement.
type Item struct {
	Neuron  biograph.BioNeuron
	Logical []LogicalNeuron
	Address *coordinate.L1AddressOnWafer
}

// SetAddress records the L1 address drawn for this item. Panics if an
// address is already assigned, since an item is addressed exactly once.
func (it *Item) SetAddress(addr coordinate.L1AddressOnWafer) {
	if it.Address != nil {
		panic(fmt.Sprintf("placement: %s already has an L1 address", it.Neuron))
	}
	it.Address = &addr
}

// Result is the append-only outcome of a placement run: one Item per
// biological neuron.
type Result struct {
	Items []Item
}

func newResult() *Result {
	return &Result{}
}

func (r *Result) add(it Item) {
	r.Items = append(r.Items, it)
}

// ForPopulation returns every item belonging to a population, in neuron
// index order.
func (r *Result) ForPopulation(populationID int) []*Item {
	var out []*Item
	for i := range r.Items {
		if r.Items[i].Neuron.Population == populationID {
			out = append(out, &r.Items[i])
		}
	}
	return out
}

// Lookup returns the item placed for a biological neuron.
func (r *Result) Lookup(n biograph.BioNeuron) (*Item, bool) {
	for i := range r.Items {
		if r.Items[i].Neuron == n {
			return &r.Items[i], true
		}
	}
	return nil, false
}

// OnChip returns every on-chip logical neuron placed on a given chip and
// neuron block, across all items, in column order.
func (r *Result) OnChip(chip coordinate.Chip, block coordinate.NeuronBlock) []LogicalNeuron {
	var out []LogicalNeuron
	for _, it := range r.Items {
		for _, ln := range it.Logical {
			if !ln.IsExternal() && ln.Chip == chip && ln.Block == block {
				out = append(out, ln)
			}
		}
	}
	return out
}
