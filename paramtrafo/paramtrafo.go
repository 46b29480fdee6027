// Package paramtrafo translates the biological neuron and synapse
// parameters of a placed, routed network into the hardware register
// values a chip is actually configured with: floating-gate voltages,
// digital neuron setup, quantised synaptic weights, background
// generator configuration, and hardware-time spike trains.
package paramtrafo

import (
	"fmt"
	"math"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/coordinate"
)

// UnsupportedCellTypeError is returned when a population's cell type has
// no analog parameter visitor.
type UnsupportedCellTypeError struct {
	CellType biograph.CellType
}

func (e *UnsupportedCellTypeError) Error() string {
	return fmt.Sprintf("paramtrafo: unsupported cell type %s", e.CellType)
}

// Config holds the run-wide knobs parameter transformation needs beyond
// what placement, routing, and biograph already carry.
type Config struct {
	// Speedup is the hardware-vs-biological time acceleration factor.
	Speedup float64
	// AlphaV and ShiftV are the default analog-to-digital voltage
	// transform coefficients applied on top of a cell's calibration
	// curve, mirroring the original implementation's param_trafo
	// section.
	AlphaV float64
	ShiftV float64
	// BkgGenISI is the inter-spike interval, in hardware cycles, that
	// every background generator is configured with.
	BkgGenISI int
	// Seed roots the deterministic Poisson materialisation of source
	// populations; combined with a DNC merger's index to derive an
	// independent stream per merger.
	Seed int64
	// Duration is the bio-time window, in ms, over which a
	// SpikeSourcePoisson neuron's spike train is materialised.
	Duration float64
}

// DefaultConfig returns the parameter transformation defaults used when
// a run doesn't override them.
func DefaultConfig() Config {
	return Config{
		Speedup:   10000,
		AlphaV:    1,
		ShiftV:    0,
		BkgGenISI: 500,
		Duration:  1000,
	}
}

const mVToV = 1.0 / 1000.0

// bigCap and smallCap are the per-denmem membrane capacitances (in
// picofarad) of the two physical neuron-circuit sizes on a chip,
// matching the original calibration's big/small distinction between
// bottom (spiking) and top (auxiliary) denmem halves.
const (
	bigCap   = 2.16
	smallCap = 0.16
)

func capacitanceOf(half coordinate.DenmemHalf) float64 {
	if half == coordinate.Bottom {
		return bigCap
	}
	return smallCap
}

func round(x float64) float64 { return math.Round(x) }
