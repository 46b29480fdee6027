package paramtrafo

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/calib"
	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/placement"
)

// NeuronParams pairs a placed bio neuron with its calibrated hardware
// analog parameters on one chip.
type NeuronParams struct {
	Neuron   biograph.BioNeuron
	Hardware HardwareNeuronParameters
}

// ChipResult is everything parameter transformation derives for one
// chip: shared floating-gate blocks, per-neuron analog parameters,
// digital neuron setup, and background generators.
type ChipResult struct {
	Chip       coordinate.Chip
	Shared     SharedParameters
	Neurons    []NeuronParams
	Digital    []DigitalNeuronConfig
	Background []BackgroundGeneratorConfig
}

// Transform runs parameter transformation independently for every chip
// in chips, fanning the per-chip work out over goroutines the way the
// mapping pipeline's other stages do. Once every chip's goroutine has
// finished, the first failure is returned to the caller; a failure on
// one chip does not cancel the other chips' work.
func Transform(chips []coordinate.Chip, result *placement.Result, graph *biograph.Graph, backend calib.Backend, cfg Config) ([]ChipResult, error) {
	out := make([]ChipResult, len(chips))

	var g errgroup.Group
	for i, chip := range chips {
		i, chip := i, chip
		g.Go(func() error {
			r, err := transformChip(chip, result, graph, backend, cfg)
			if err != nil {
				return fmt.Errorf("paramtrafo: chip %s: %w", chip, err)
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func transformChip(chip coordinate.Chip, result *placement.Result, graph *biograph.Graph, backend calib.Backend, cfg Config) (ChipResult, error) {
	shared, err := ComputeSharedParameters(chip, result, graph, backend)
	if err != nil {
		return ChipResult{}, err
	}

	digital, err := DigitalNeuronSetup(chip, result)
	if err != nil {
		return ChipResult{}, err
	}

	var neurons []NeuronParams
	for i := range result.Items {
		item := &result.Items[i]
		onChip := false
		for _, ln := range item.Logical {
			if !ln.IsExternal() && ln.Chip == chip {
				onChip = true
				break
			}
		}
		if !onChip {
			continue
		}

		pop, ok := graph.Population(item.Neuron.Population)
		if !ok {
			return ChipResult{}, fmt.Errorf("neuron %s references unknown population", item.Neuron)
		}
		hw, err := AnalogNeuron(chip, pop.CellType, pop.Parameters[item.Neuron.Index], cfg, backend)
		if err != nil {
			return ChipResult{}, err
		}
		neurons = append(neurons, NeuronParams{Neuron: item.Neuron, Hardware: hw})
	}

	return ChipResult{
		Chip:       chip,
		Shared:     shared,
		Neurons:    neurons,
		Digital:    digital,
		Background: BackgroundGeneratorSetup(chip, cfg),
	}, nil
}
