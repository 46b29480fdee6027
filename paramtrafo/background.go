package paramtrafo

import "github.com/sarchlab/marocco/coordinate"

// BackgroundGeneratorConfig is the hardware setup of one background
// generator: the locking-event source repeaters and synapse drivers
// synchronise against.
type BackgroundGeneratorConfig struct {
	Chip    coordinate.Chip
	Index   int
	Regular bool
	ISI     int
	Address coordinate.L1Address
}

// BackgroundGeneratorSetup configures every background generator on
// chip identically: regular mode, the run's configured ISI, and the
// reserved locking address.
func BackgroundGeneratorSetup(chip coordinate.Chip, cfg Config) []BackgroundGeneratorConfig {
	out := make([]BackgroundGeneratorConfig, coordinate.NumNeuronBlocks)
	for i := range out {
		out[i] = BackgroundGeneratorConfig{
			Chip:    chip,
			Index:   i,
			Regular: true,
			ISI:     cfg.BkgGenISI,
			Address: 0,
		}
	}
	return out
}
