package paramtrafo

import (
	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/calib"
	"github.com/sarchlab/marocco/coordinate"
)

// HardwareNeuronParameters is the analog floating-gate configuration of
// one denmem, derived from a bio cell's parameters via calibration.
type HardwareNeuronParameters struct {
	VThresh  float64
	VRest    float64
	TauM     float64
	TauRefac float64
	TauSynE  float64
	TauSynI  float64
	AlphaW   float64
	TauW     float64
}

// analogParams lists the calibration curve keys every supported cell
// type visits, in the order the original implementation's per-cell
// visitor applies them.
var analogParams = []string{
	"v_thresh", "v_rest", "tau_m", "tau_refrac", "tau_syn_E", "tau_syn_I",
}

// adaptiveParams lists the additional curves EIF_cond_exp_isfa_ista
// visits on top of analogParams.
var adaptiveParams = []string{"a", "tau_w"}

// AnalogNeuron translates one bio cell's parameters into hardware
// floating-gate values through backend, applying the run's alpha_v /
// shift_v voltage transform on top of each curve.
func AnalogNeuron(chip coordinate.Chip, cellType biograph.CellType, params biograph.CellParameters, cfg Config, backend calib.Backend) (HardwareNeuronParameters, error) {
	switch cellType {
	case biograph.IFCondExp, biograph.EIFCondExpIsfaIsta:
	default:
		return HardwareNeuronParameters{}, &UnsupportedCellTypeError{CellType: cellType}
	}

	curves := make(map[string]calib.Curve, len(analogParams)+len(adaptiveParams))
	for _, param := range analogParams {
		c, err := backend.AnalogCurve(chip, cellType, param)
		if err != nil {
			return HardwareNeuronParameters{}, err
		}
		c.Alpha *= cfg.AlphaV
		c.Shift += cfg.ShiftV
		curves[param] = c
	}

	out := HardwareNeuronParameters{
		VThresh:  curves["v_thresh"].Apply(params.VThresh),
		VRest:    curves["v_rest"].Apply(params.VRest),
		TauM:     curves["tau_m"].Apply(params.ETen),
		TauRefac: curves["tau_refrac"].Apply(params.TauRefac),
		TauSynE:  curves["tau_syn_E"].Apply(params.TauSynE),
		TauSynI:  curves["tau_syn_I"].Apply(params.TauSynI),
	}

	if cellType == biograph.EIFCondExpIsfaIsta {
		for _, param := range adaptiveParams {
			c, err := backend.AnalogCurve(chip, cellType, param)
			if err != nil {
				return HardwareNeuronParameters{}, err
			}
			c.Alpha *= cfg.AlphaV
			c.Shift += cfg.ShiftV
			curves[param] = c
		}
		out.AlphaW = curves["a"].Apply(params.AlphaW)
		out.TauW = curves["tau_w"].Apply(params.TauW)
	}

	return out, nil
}
