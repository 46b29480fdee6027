package paramtrafo

import (
	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/placement"
)

// GmaxConfig selects the gain of one row's synapse input amplifiers: a
// divider (1..15, higher divides the current further down) and a Vgmax
// selector (one of four fixed reference voltages).
type GmaxConfig struct {
	Divider       int // 1..15
	VgmaxSelector int // 0..3
}

// vgmaxLevels are the four selectable Vgmax reference levels, in
// arbitrary analog-weight units, from lowest to highest gain ceiling.
var vgmaxLevels = [4]float64{0.2, 0.4, 0.7, 1.0}

// maxAnalogWeight returns the largest analog weight representable by a
// GmaxConfig before the row's amplifiers saturate.
func (gc GmaxConfig) maxAnalogWeight() float64 {
	return vgmaxLevels[gc.VgmaxSelector] / float64(gc.Divider)
}

// allGmaxConfigs enumerates every (divider, selector) pair in
// divider-major order (divider 1..15, selector 0..3 within each); it is
// not sorted by max analog weight, so callers scan the whole list.
func allGmaxConfigs() []GmaxConfig {
	out := make([]GmaxConfig, 0, 15*4)
	for d := 1; d <= 15; d++ {
		for v := 0; v < 4; v++ {
			out = append(out, GmaxConfig{Divider: d, VgmaxSelector: v})
		}
	}
	return out
}

// ChooseGmaxConfig picks the GmaxConfig minimising clipping of a row's
// largest scaled weight: the tightest ceiling that still reaches
// maxWeight, or, if every config saturates below maxWeight, the config
// with the highest ceiling.
func ChooseGmaxConfig(maxWeight float64) (GmaxConfig, float64) {
	var best GmaxConfig
	bestCeiling := -1.0
	haveFit := false

	for _, gc := range allGmaxConfigs() {
		ceiling := gc.maxAnalogWeight()
		switch {
		case ceiling >= maxWeight && (!haveFit || ceiling < bestCeiling):
			best, bestCeiling, haveFit = gc, ceiling, true
		case !haveFit && ceiling > bestCeiling:
			best, bestCeiling = gc, ceiling
		}
	}
	return best, bestCeiling
}

// QuantizeWeight converts an analog weight into its nearest 4-bit
// digital representation under ceiling, clamped to the representable
// range.
func QuantizeWeight(analog, ceiling float64) uint8 {
	if ceiling <= 0 {
		return 0
	}
	steps := round(analog / ceiling * 15)
	if steps < 0 {
		steps = 0
	}
	if steps > 15 {
		steps = 15
	}
	return uint8(steps)
}

// DequantizeWeight returns the analog weight a 4-bit digital value
// actually reproduces under ceiling, i.e. the clipped weight the
// original bio weight is replaced with.
func DequantizeWeight(digital uint8, ceiling float64) float64 {
	return float64(digital) / 15 * ceiling
}

// CmHW returns the total hardware membrane capacitance of a logical
// neuron: one big and one small denmem capacitance per column of its
// rectangle.
func CmHW(ln placement.LogicalNeuron) float64 {
	return float64(ln.Width()) * (capacitanceOf(coordinate.Top) + capacitanceOf(coordinate.Bottom))
}

// ScaleFactor computes the synaptic weight scale for a logical neuron:
// speedup times the ratio of hardware to biological membrane
// capacitance.
func ScaleFactor(cfg Config, cmHW, cmBio float64) float64 {
	if cmBio == 0 {
		return 0
	}
	return cfg.Speedup * cmHW / cmBio
}

// ScaleRow scales a row of biological weights (µS) by scale, converting
// to the nS units the analog synapse circuit works in.
func ScaleRow(bioWeights []float64, scale float64) []float64 {
	out := make([]float64, len(bioWeights))
	for i, w := range bioWeights {
		out[i] = w * scale * 1000
	}
	return out
}

// RowGmax picks the best GmaxConfig for a row of already-scaled weights
// and returns the 4-bit digital value and clipped analog weight
// (rescaled back to µS) for each column.
func RowGmax(scaledWeights []float64, scale float64) (GmaxConfig, []uint8, []float64) {
	max := 0.0
	for _, w := range scaledWeights {
		if w > max {
			max = w
		}
	}
	gc, ceiling := ChooseGmaxConfig(max)

	digital := make([]uint8, len(scaledWeights))
	clipped := make([]float64, len(scaledWeights))
	for i, w := range scaledWeights {
		if w <= 0 {
			continue
		}
		digital[i] = QuantizeWeight(w, ceiling)
		clipped[i] = DequantizeWeight(digital[i], ceiling) / scale / 1000
	}
	return gc, digital, clipped
}

// RowGmaxByColumn is RowGmax for a row whose columns belong to target
// neurons with independent scale factors (different hardware/biological
// capacitance ratios): every column in nsWeights shares the row's single
// GmaxConfig, chosen against the row's largest scaled weight, but each
// column is rescaled back to µS with its own colScale instead of a
// shared one.
func RowGmaxByColumn(nsWeights, colScale []float64) (GmaxConfig, []uint8, []float64) {
	max := 0.0
	for _, w := range nsWeights {
		if w > max {
			max = w
		}
	}
	gc, ceiling := ChooseGmaxConfig(max)

	digital := make([]uint8, len(nsWeights))
	clipped := make([]float64, len(nsWeights))
	for i, w := range nsWeights {
		if w <= 0 || colScale[i] == 0 {
			continue
		}
		digital[i] = QuantizeWeight(w, ceiling)
		clipped[i] = DequantizeWeight(digital[i], ceiling) / colScale[i] / 1000
	}
	return gc, digital, clipped
}
