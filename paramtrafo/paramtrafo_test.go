package paramtrafo_test

import (
	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/calib"
	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/paramtrafo"
	"github.com/sarchlab/marocco/placement"
)

var chip = coordinate.Chip{X: 1, Y: 1}

func addr(mergerIndex int, address int) *coordinate.L1AddressOnWafer {
	a := coordinate.L1AddressOnWafer{
		Merger:  coordinate.DNCMergerOnWafer{Chip: chip, Merger: coordinate.DNCMerger{Index: mergerIndex}},
		Address: coordinate.L1Address(address),
	}
	return &a
}

var _ = Describe("ComputeSharedParameters", func() {
	It("averages v_reset within a floating-gate block and warns on disagreement", func() {
		graph := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 2, CellType: biograph.IFCondExp, Parameters: []biograph.CellParameters{
					{VReset: -70}, {VReset: -74},
				}},
			},
		}
		result := &placement.Result{Items: []placement.Item{
			{
				Neuron:  biograph.BioNeuron{Population: 0, Index: 0},
				Logical: []placement.LogicalNeuron{placement.OnChip(chip, coordinate.NeuronBlock(0), 0, 0)},
				Address: addr(0, 1),
			},
			{
				Neuron:  biograph.BioNeuron{Population: 0, Index: 1},
				Logical: []placement.LogicalNeuron{placement.OnChip(chip, coordinate.NeuronBlock(1), 1, 1)},
				Address: addr(0, 2),
			},
		}}

		shared, err := paramtrafo.ComputeSharedParameters(chip, result, graph, calib.NewDefault())
		Expect(err).NotTo(HaveOccurred())
		Expect(shared.Warnings).To(HaveLen(1))
		Expect(shared.VReset[0]).To(BeNumerically("~", -0.072, 1e-9))
	})
})

var _ = Describe("AnalogNeuron", func() {
	It("rejects an unsupported cell type", func() {
		_, err := paramtrafo.AnalogNeuron(chip, biograph.SpikeSourcePoisson, biograph.CellParameters{}, paramtrafo.DefaultConfig(), calib.NewDefault())
		Expect(err).To(HaveOccurred())
		var unsupported *paramtrafo.UnsupportedCellTypeError
		Expect(err).To(BeAssignableToTypeOf(unsupported))
	})

	It("passes parameters through the identity curve of the default backend", func() {
		hw, err := paramtrafo.AnalogNeuron(chip, biograph.IFCondExp, biograph.CellParameters{VThresh: -50, VRest: -65}, paramtrafo.DefaultConfig(), calib.NewDefault())
		Expect(err).NotTo(HaveOccurred())
		Expect(hw.VThresh).To(Equal(-50.0))
		Expect(hw.VRest).To(Equal(-65.0))
	})

	It("applies a mocked backend's curve and layers the run's alpha_v/shift_v on top", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		defer mockCtrl.Finish()

		backend := NewMockBackend(mockCtrl)
		backend.EXPECT().
			AnalogCurve(chip, biograph.IFCondExp, "v_thresh").
			Return(calib.Curve{Alpha: 2, Shift: 1}, nil)
		backend.EXPECT().
			AnalogCurve(chip, biograph.IFCondExp, gomock.Not("v_thresh")).
			Return(calib.Curve{Alpha: 1, Shift: 0}, nil).
			AnyTimes()

		cfg := paramtrafo.DefaultConfig()
		cfg.AlphaV = 10
		cfg.ShiftV = 5

		hw, err := paramtrafo.AnalogNeuron(chip, biograph.IFCondExp, biograph.CellParameters{VThresh: -50}, cfg, backend)
		Expect(err).NotTo(HaveOccurred())
		// curve becomes Alpha=2*10=20, Shift=1+5=6, applied to -50
		Expect(hw.VThresh).To(Equal(20*-50.0 + 6))
	})
})

var _ = Describe("DigitalNeuronSetup", func() {
	It("requires an L1 address before digital setup", func() {
		result := &placement.Result{Items: []placement.Item{
			{
				Neuron:  biograph.BioNeuron{Population: 0, Index: 0},
				Logical: []placement.LogicalNeuron{placement.OnChip(chip, coordinate.NeuronBlock(0), 0, 1)},
			},
		}}
		_, err := paramtrafo.DigitalNeuronSetup(chip, result)
		Expect(err).To(HaveOccurred())
	})

	It("emits one config per on-chip logical neuron", func() {
		result := &placement.Result{Items: []placement.Item{
			{
				Neuron:  biograph.BioNeuron{Population: 0, Index: 0},
				Logical: []placement.LogicalNeuron{placement.OnChip(chip, coordinate.NeuronBlock(0), 0, 1)},
				Address: addr(0, 1),
			},
		}}
		configs, err := paramtrafo.DigitalNeuronSetup(chip, result)
		Expect(err).NotTo(HaveOccurred())
		Expect(configs).To(HaveLen(1))
		Expect(configs[0].FiringEnabled).To(BeTrue())
		Expect(configs[0].SPL1Enabled).To(BeTrue())
	})
})

var _ = Describe("Gmax selection and quantisation", func() {
	It("picks a tighter ceiling for a smaller max weight", func() {
		small, smallCeiling := paramtrafo.ChooseGmaxConfig(0.05)
		large, largeCeiling := paramtrafo.ChooseGmaxConfig(0.9)
		Expect(smallCeiling).To(BeNumerically("<=", largeCeiling))
		Expect(small).NotTo(Equal(large))
	})

	It("quantises and dequantises within the ceiling", func() {
		_, ceiling := paramtrafo.ChooseGmaxConfig(0.5)
		digital := paramtrafo.QuantizeWeight(0.5, ceiling)
		Expect(digital).To(BeNumerically("<=", 15))
		clipped := paramtrafo.DequantizeWeight(digital, ceiling)
		Expect(clipped).To(BeNumerically("<=", ceiling+1e-9))
	})
})

var _ = Describe("Transform", func() {
	It("runs shared, analog, digital, and background stages per chip", func() {
		graph := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 1, CellType: biograph.IFCondExp, Parameters: []biograph.CellParameters{{VReset: -70, VThresh: -50}}},
			},
		}
		result := &placement.Result{Items: []placement.Item{
			{
				Neuron:  biograph.BioNeuron{Population: 0, Index: 0},
				Logical: []placement.LogicalNeuron{placement.OnChip(chip, coordinate.NeuronBlock(0), 0, 0)},
				Address: addr(0, 1),
			},
		}}

		results, err := paramtrafo.Transform([]coordinate.Chip{chip}, result, graph, calib.NewDefault(), paramtrafo.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Neurons).To(HaveLen(1))
		Expect(results[0].Digital).To(HaveLen(1))
		Expect(results[0].Background).To(HaveLen(coordinate.NumNeuronBlocks))
	})
})

var _ = Describe("ToHardwareSpikes", func() {
	It("scales by speedup, offsets, and sorts", func() {
		cfg := paramtrafo.DefaultConfig()
		cfg.Speedup = 1000
		hw := paramtrafo.ToHardwareSpikes([]float64{30, 10, 20}, cfg, 5)
		Expect(hw).To(HaveLen(3))
		Expect(hw[0]).To(BeNumerically("~", 5.01, 1e-9))
		Expect(hw[1]).To(BeNumerically("~", 5.02, 1e-9))
		Expect(hw[2]).To(BeNumerically("~", 5.03, 1e-9))
	})
})

var _ = Describe("MaterializePoisson", func() {
	It("is deterministic for a fixed seed and merger", func() {
		cfg := paramtrafo.DefaultConfig()
		cfg.Seed = 42
		m := coordinate.DNCMergerOnWafer{Chip: chip, Merger: coordinate.DNCMerger{Index: 2}}
		a := paramtrafo.MaterializePoisson(10, 1000, m, cfg)
		b := paramtrafo.MaterializePoisson(10, 1000, m, cfg)
		Expect(a).To(Equal(b))
		Expect(a).NotTo(BeEmpty())
	})
})
