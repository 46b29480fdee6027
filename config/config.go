// Package config provides the Configuration object a marocco run is
// driven by: the recognised options of spec.md §6, loadable from a YAML
// manifest via gopkg.in/yaml.v3 or built up with fluent With... calls in
// the teacher's builder style.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/calib"
	"github.com/sarchlab/marocco/input"
	"github.com/sarchlab/marocco/merger"
	"github.com/sarchlab/marocco/paramtrafo"
	"github.com/sarchlab/marocco/placement"
	"github.com/sarchlab/marocco/routing"
)

// InconsistentConfigError is returned when a Configuration's options
// combine into a run that cannot be executed, e.g. an ESS backend
// alongside XML calibration, or an out-of-range option value.
type InconsistentConfigError struct {
	Reason string
}

func (e *InconsistentConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Reason)
}

// NeuronPlacement mirrors the neuron_placement.* options.
type NeuronPlacement struct {
	DefaultNeuronSize                int  `yaml:"default_neuron_size"`
	RestrictRightmostNeuronBlocks    bool `yaml:"restrict_rightmost_neuron_blocks"`
	MinimizeNumberOfSendingRepeaters bool `yaml:"minimize_number_of_sending_repeaters"`
}

// L1AddressAssignment mirrors the l1_address_assignment.* options.
type L1AddressAssignment struct {
	Strategy string `yaml:"strategy"` // "sequential" or "random"
}

// InputPlacement mirrors the input_placement.* options.
type InputPlacement struct {
	ConsiderFiringRate   bool    `yaml:"consider_firing_rate"`
	BandwidthUtilization float64 `yaml:"bandwidth_utilization"`
}

// Routing mirrors the routing.* options.
type Routing struct {
	MergerTreeStrategy   string  `yaml:"merger_tree_strategy"` // "minSPL1" or "maxSPL1"
	L1Algorithm          string  `yaml:"l1_algorithm"`         // "backbone" or "dijkstra"
	WeightVert           float64 `yaml:"w_vert"`
	WeightHoriz          float64 `yaml:"w_horiz"`
	WeightSPL1           float64 `yaml:"w_spl1"`
	WeightStraightH      float64 `yaml:"w_straight_h"`
	WeightStraightV      float64 `yaml:"w_straight_v"`
	WeightCongest        float64 `yaml:"w_congest"`
	ShuffleSwitches      bool    `yaml:"shuffle_switches"`
	SynDriverChainLength int     `yaml:"syndriver_chain_length"` // 1..3
}

// ParamTrafo mirrors param_trafo.* plus the run-wide timing options
// spec.md §6 lists alongside it.
type ParamTrafo struct {
	AlphaV               float64 `yaml:"alpha_v"`
	ShiftV               float64 `yaml:"shift_v"`
	UseBigCapacitors     bool    `yaml:"use_big_capacitors"`
	UseESSSynapseTrafo   bool    `yaml:"use_ess_synapse_trafo"`
	Speedup              float64 `yaml:"speedup"`
	ExperimentTimeOffset float64 `yaml:"experiment_time_offset"`
	ExperimentDuration   float64 `yaml:"experiment_duration"`
	BkgGenISI            int     `yaml:"bkg_gen_isi"`
	PLLFreq              float64 `yaml:"pll_freq"`
}

// Calibration mirrors calib_backend/calib_path.
type Calibration struct {
	Backend  string `yaml:"backend"` // "Default" or "XML"
	Path     string `yaml:"path"`
	CacheDir string `yaml:"cache_dir"` // if set, memoize curves in a badger db rooted here
}

// Configuration is the top-level marocco run configuration.
type Configuration struct {
	NeuronPlacement     NeuronPlacement     `yaml:"neuron_placement"`
	L1AddressAssignment L1AddressAssignment `yaml:"l1_address_assignment"`
	InputPlacement      InputPlacement      `yaml:"input_placement"`
	Routing             Routing             `yaml:"routing"`
	ParamTrafo          ParamTrafo          `yaml:"param_trafo"`
	Calibration         Calibration         `yaml:"calibration"`
	Backend             string              `yaml:"backend"` // "None", "Hardware", or "ESS"
}

// Default returns the Configuration populated with every spec.md §6
// default value.
func Default() Configuration {
	return Configuration{
		NeuronPlacement: NeuronPlacement{
			DefaultNeuronSize: 4,
		},
		L1AddressAssignment: L1AddressAssignment{
			Strategy: "sequential",
		},
		InputPlacement: InputPlacement{
			BandwidthUtilization: 1,
		},
		Routing: Routing{
			MergerTreeStrategy:   "minSPL1",
			L1Algorithm:          "backbone",
			WeightVert:           routing.DefaultWeights().Vert,
			WeightHoriz:          routing.DefaultWeights().Horiz,
			WeightSPL1:           routing.DefaultWeights().SPL1,
			WeightStraightH:      routing.DefaultWeights().StraightH,
			WeightStraightV:      routing.DefaultWeights().StraightV,
			WeightCongest:        routing.DefaultWeights().Congest,
			SynDriverChainLength: 1,
		},
		ParamTrafo: ParamTrafo{
			AlphaV:               10,
			ShiftV:               1200,
			Speedup:              1e4,
			ExperimentTimeOffset: 20e-6,
			ExperimentDuration:   1000,
			BkgGenISI:            500,
			PLLFreq:              100e6,
		},
		Calibration: Calibration{Backend: "Default"},
		Backend:     "None",
	}
}

// Load reads and decodes a YAML configuration manifest on top of
// Default, rejecting unknown fields so a typo in a manifest fails
// loudly instead of silently keeping a default.
func Load(path string) (Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, fmt.Errorf("config: reading %q: %w", path, err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Configuration{}, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return cfg, nil
}

// WithSpeedup overrides the bio-to-hardware time acceleration factor.
func (c Configuration) WithSpeedup(speedup float64) Configuration {
	c.ParamTrafo.Speedup = speedup
	return c
}

// WithBackend overrides the execution backend ("None", "Hardware", "ESS").
func (c Configuration) WithBackend(backend string) Configuration {
	c.Backend = backend
	return c
}

// WithCalibration overrides the calibration backend and path.
func (c Configuration) WithCalibration(backend, path string) Configuration {
	c.Calibration = Calibration{Backend: backend, Path: path}
	return c
}

// WithCalibrationCache wraps the configured calibration backend in a
// badger-backed cache rooted at dir.
func (c Configuration) WithCalibrationCache(dir string) Configuration {
	c.Calibration.CacheDir = dir
	return c
}

// WithRoutingAlgorithm overrides the L1 routing algorithm ("backbone" or
// "dijkstra").
func (c Configuration) WithRoutingAlgorithm(algorithm string) Configuration {
	c.Routing.L1Algorithm = algorithm
	return c
}

// WithDefaultNeuronSize overrides the default hardware neuron size.
func (c Configuration) WithDefaultNeuronSize(size int) Configuration {
	c.NeuronPlacement.DefaultNeuronSize = size
	return c
}

// Validate checks that the Configuration's options combine into a
// runnable configuration, per the InconsistentConfig cases of spec.md §7.
func (c Configuration) Validate() error {
	if c.NeuronPlacement.DefaultNeuronSize <= 0 || c.NeuronPlacement.DefaultNeuronSize%2 != 0 || c.NeuronPlacement.DefaultNeuronSize > 64 {
		return &InconsistentConfigError{Reason: fmt.Sprintf("neuron_placement.default_neuron_size must be even and <= 64, got %d", c.NeuronPlacement.DefaultNeuronSize)}
	}
	if c.InputPlacement.BandwidthUtilization <= 0 || c.InputPlacement.BandwidthUtilization > 1 {
		return &InconsistentConfigError{Reason: fmt.Sprintf("input_placement.bandwidth_utilization must be in (0,1], got %g", c.InputPlacement.BandwidthUtilization)}
	}
	if c.Routing.SynDriverChainLength < 1 || c.Routing.SynDriverChainLength > 3 {
		return &InconsistentConfigError{Reason: fmt.Sprintf("routing.syndriver_chain_length must be 1..3, got %d", c.Routing.SynDriverChainLength)}
	}
	if _, err := c.AddressStrategy(); err != nil {
		return err
	}
	if _, err := c.MergerStrategy(); err != nil {
		return err
	}
	if _, err := c.RoutingAlgorithm(); err != nil {
		return err
	}
	switch c.Backend {
	case "None", "Hardware", "ESS":
	default:
		return &InconsistentConfigError{Reason: fmt.Sprintf("backend must be None, Hardware, or ESS, got %q", c.Backend)}
	}
	switch c.Calibration.Backend {
	case "Default", "XML":
	default:
		return &InconsistentConfigError{Reason: fmt.Sprintf("calibration.backend must be Default or XML, got %q", c.Calibration.Backend)}
	}
	if c.Backend == "ESS" && c.Calibration.Backend == "XML" {
		return &InconsistentConfigError{Reason: "ESS backend cannot be combined with XML calibration"}
	}
	return nil
}

// AddressStrategy translates l1_address_assignment.strategy into the
// merger package's enum.
func (c Configuration) AddressStrategy() (merger.AddressStrategy, error) {
	switch c.L1AddressAssignment.Strategy {
	case "sequential", "":
		return merger.Sequential, nil
	case "random":
		return merger.PseudoRandom, nil
	default:
		return 0, &InconsistentConfigError{Reason: fmt.Sprintf("l1_address_assignment.strategy must be sequential or random, got %q", c.L1AddressAssignment.Strategy)}
	}
}

// MergerStrategy translates routing.merger_tree_strategy into the
// merger package's enum.
func (c Configuration) MergerStrategy() (merger.Strategy, error) {
	switch c.Routing.MergerTreeStrategy {
	case "minSPL1", "":
		return merger.MinSPL1, nil
	case "maxSPL1":
		return merger.MaxSPL1, nil
	default:
		return 0, &InconsistentConfigError{Reason: fmt.Sprintf("routing.merger_tree_strategy must be minSPL1 or maxSPL1, got %q", c.Routing.MergerTreeStrategy)}
	}
}

// RoutingAlgorithm translates routing.l1_algorithm into the routing
// package's enum.
func (c Configuration) RoutingAlgorithm() (routing.Algorithm, error) {
	switch c.Routing.L1Algorithm {
	case "backbone", "":
		return routing.Backbone, nil
	case "dijkstra":
		return routing.ShortestPath, nil
	default:
		return 0, &InconsistentConfigError{Reason: fmt.Sprintf("routing.l1_algorithm must be backbone or dijkstra, got %q", c.Routing.L1Algorithm)}
	}
}

// RoutingWeights builds the routing package's Weights from the
// configured w_* options.
func (c Configuration) RoutingWeights() routing.Weights {
	return routing.Weights{
		Vert:      c.Routing.WeightVert,
		Horiz:     c.Routing.WeightHoriz,
		SPL1:      c.Routing.WeightSPL1,
		StraightH: c.Routing.WeightStraightH,
		StraightV: c.Routing.WeightStraightV,
		Congest:   c.Routing.WeightCongest,
	}
}

// PlacementOptions builds the placement package's Options.
func (c Configuration) PlacementOptions() placement.Options {
	return placement.Options{
		DefaultNeuronSize:             c.NeuronPlacement.DefaultNeuronSize,
		RestrictRightmostNeuronBlocks: c.NeuronPlacement.RestrictRightmostNeuronBlocks,
	}
}

// InputOptions builds the input package's Options. Estimate reads the
// firing rate straight off a source neuron's CellParameters.Rate field
// (Hz); only SpikeSourcePoisson populations carry a meaningful value
// there, matching §4.4's per-neuron rate estimate.
func (c Configuration) InputOptions() input.Options {
	return input.Options{
		ConsiderFiringRate:   c.InputPlacement.ConsiderFiringRate,
		BandwidthUtilization: c.InputPlacement.BandwidthUtilization,
		Estimate:             func(cp biograph.CellParameters) float64 { return cp.Rate },
	}
}

// BuildCalibBackend constructs the calibration backend named by
// calibration.backend, resolving calibration.path (or
// MAROCCO_CALIB_PATH) for the XML backend. If calibration.cache_dir is
// set, the backend is wrapped in a calib.Cache rooted there; the
// returned Backend is a *calib.Cache in that case, and pipeline.Pipeline
// closes it via its io.Closer at the end of the run that built it.
func (c Configuration) BuildCalibBackend() (calib.Backend, error) {
	var backend calib.Backend
	switch c.Calibration.Backend {
	case "Default", "":
		backend = calib.NewDefault()
	case "XML":
		xml, err := calib.NewXML(c.Calibration.Path)
		if err != nil {
			return nil, err
		}
		backend = xml
	default:
		return nil, &InconsistentConfigError{Reason: fmt.Sprintf("calibration.backend must be Default or XML, got %q", c.Calibration.Backend)}
	}
	if c.Calibration.CacheDir == "" {
		return backend, nil
	}
	tag := c.Calibration.Backend
	if tag == "" {
		tag = "Default"
	}
	return calib.NewCache(backend, c.Calibration.CacheDir, tag)
}

// ParamTrafoConfig builds the paramtrafo package's Config.
func (c Configuration) ParamTrafoConfig() paramtrafo.Config {
	return paramtrafo.Config{
		Speedup:   c.ParamTrafo.Speedup,
		AlphaV:    c.ParamTrafo.AlphaV,
		ShiftV:    c.ParamTrafo.ShiftV,
		BkgGenISI: c.ParamTrafo.BkgGenISI,
		Duration:  c.ParamTrafo.ExperimentDuration,
	}
}
