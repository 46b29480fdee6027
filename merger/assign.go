package merger

import (
	"sort"

	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/placement"
)

// AssignOutputAddresses draws one L1 address per placed neuron on chip
// from the pool of the DNC merger its neuron block was routed to, and
// annotates each placement item with the resulting L1AddressOnWafer.
// Neuron blocks are visited in ascending order and, within a block,
// logical neurons in ascending column order, so that address draws are
// reproducible for a fixed placement.
func AssignOutputAddresses(
	routing *ChipRouting,
	chip coordinate.Chip,
	result *placement.Result,
	strategy AddressStrategy,
	seed int64,
) error {
	for b := coordinate.NeuronBlock(0); b < coordinate.NumNeuronBlocks; b++ {
		merger, active := routing.TargetMerger(b)
		if !active {
			continue
		}

		neurons := result.OnChip(chip, b)
		sort.Slice(neurons, func(i, j int) bool { return neurons[i].XMin < neurons[j].XMin })

		pool := routing.Pool(merger, strategy, seed)
		for _, ln := range neurons {
			item := itemFor(result, chip, b, ln)
			if item == nil || item.Address != nil {
				continue
			}
			addr, err := pool.Draw(merger)
			if err != nil {
				return err
			}
			item.SetAddress(coordinate.L1AddressOnWafer{
				Merger:  coordinate.DNCMergerOnWafer{Chip: chip, Merger: merger},
				Address: addr,
			})
		}
	}
	return nil
}

func itemFor(result *placement.Result, chip coordinate.Chip, b coordinate.NeuronBlock, ln placement.LogicalNeuron) *placement.Item {
	for i := range result.Items {
		for _, l := range result.Items[i].Logical {
			if !l.IsExternal() && l.Chip == chip && l.Block == b && l.XMin == ln.XMin && l.XMax == ln.XMax {
				return &result.Items[i]
			}
		}
	}
	return nil
}
