package paramtrafo

import (
	"fmt"

	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/placement"
)

// DigitalNeuronConfig is the digital half of one logical neuron's
// hardware setup: its output address, firing enable, and the denmem
// rectangle it spans.
type DigitalNeuronConfig struct {
	Chip          coordinate.Chip
	Block         coordinate.NeuronBlock
	XMin, XMax    int
	Address       coordinate.L1AddressOnWafer
	FiringEnabled bool
	SPL1Enabled   bool
}

// DigitalNeuronSetup builds the digital configuration for every on-chip
// logical neuron placed on chip. A neuron's leftmost denmem (column
// XMin) is the one carrying the L1 address and firing/SPL1 enables;
// the remaining columns of its rectangle are connected followers.
func DigitalNeuronSetup(chip coordinate.Chip, result *placement.Result) ([]DigitalNeuronConfig, error) {
	var out []DigitalNeuronConfig
	for i := range result.Items {
		item := &result.Items[i]
		for _, ln := range item.Logical {
			if ln.IsExternal() || ln.Chip != chip {
				continue
			}
			if item.Address == nil {
				return nil, fmt.Errorf("paramtrafo: %s has no L1 address assigned before digital setup", item.Neuron)
			}
			out = append(out, DigitalNeuronConfig{
				Chip:          chip,
				Block:         ln.Block,
				XMin:          ln.XMin,
				XMax:          ln.XMax,
				Address:       *item.Address,
				FiringEnabled: true,
				SPL1Enabled:   true,
			})
		}
	}
	return out, nil
}
