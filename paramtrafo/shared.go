package paramtrafo

import (
	"fmt"
	"sort"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/calib"
	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/placement"
)

// FloatingGateBlockOf returns which of a chip's four floating-gate blocks
// a neuron block's shared analog parameters are drawn from. Neuron
// blocks pair up two-by-two onto a block, matching the quadrant layout
// of the floating-gate controllers.
func FloatingGateBlockOf(b coordinate.NeuronBlock) int {
	return int(b) / 2
}

// NumFloatingGateBlocks is the number of shared-parameter blocks per chip.
const NumFloatingGateBlocks = coordinate.NumNeuronBlocks / 2

// SharedParameters is the outcome of averaging and calibrating one
// chip's floating-gate blocks.
type SharedParameters struct {
	// VReset holds the calibrated, hardware-ready reset voltage per
	// floating-gate block index (0..NumFloatingGateBlocks-1).
	VReset [NumFloatingGateBlocks]float64
	// Warnings records blocks whose member neurons disagreed on their
	// biological v_reset, in ascending block order.
	Warnings []string
}

// ComputeSharedParameters averages the biological v_reset of every
// leftmost-denmem neuron placed on chip, grouped by floating-gate
// block, then applies the backend's shared calibration.
func ComputeSharedParameters(chip coordinate.Chip, result *placement.Result, graph *biograph.Graph, backend calib.Backend) (SharedParameters, error) {
	var sums [NumFloatingGateBlocks]float64
	var counts [NumFloatingGateBlocks]int
	var distinct [NumFloatingGateBlocks]map[float64]bool

	for i := range distinct {
		distinct[i] = make(map[float64]bool)
	}

	for i := range result.Items {
		item := &result.Items[i]
		for _, ln := range item.Logical {
			if ln.IsExternal() || ln.Chip != chip {
				continue
			}
			pop, ok := graph.Population(item.Neuron.Population)
			if !ok {
				return SharedParameters{}, fmt.Errorf("paramtrafo: neuron %s references unknown population", item.Neuron)
			}
			vReset := pop.Parameters[item.Neuron.Index].VReset
			block := FloatingGateBlockOf(ln.Block)
			sums[block] += vReset
			counts[block]++
			distinct[block][vReset] = true
		}
	}

	var out SharedParameters
	for b := 0; b < NumFloatingGateBlocks; b++ {
		if counts[b] == 0 {
			continue
		}
		mean := sums[b] / float64(counts[b])
		if len(distinct[b]) > 1 {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"floating-gate block %d on %s: %d distinct v_reset values, using mean %.4f mV", b, chip, len(distinct[b]), mean))
		}
		calibrated, err := backend.ApplySharedCalibration(chip, b, mean*mVToV)
		if err != nil {
			return SharedParameters{}, fmt.Errorf("paramtrafo: calibrating shared block %d on %s: %w", b, chip, err)
		}
		out.VReset[b] = calibrated
	}
	sort.Strings(out.Warnings)
	return out, nil
}
