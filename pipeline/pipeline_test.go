package pipeline_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/config"
	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/hardware"
	"github.com/sarchlab/marocco/pipeline"
	"github.com/sarchlab/marocco/resource"
)

func smallWafer() *resource.Manager {
	var present []coordinate.Chip
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			present = append(present, coordinate.Chip{X: x, Y: y})
		}
	}
	return resource.NewManager(0, present, nil)
}

func lifParams(n int, vReset float64) []biograph.CellParameters {
	out := make([]biograph.CellParameters, n)
	for i := range out {
		out[i] = biograph.CellParameters{
			VReset: vReset, VThresh: -55, VRest: -65, ETen: 10, CM: 0.2, TauRefac: 2, TauSynE: 5, TauSynI: 5,
		}
	}
	return out
}

var _ = Describe("Run", func() {
	It("places a single small population with no projections", func() {
		graph := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 4, CellType: biograph.IFCondExp, Parameters: lifParams(4, -70)},
			},
		}

		p := pipeline.New(config.Default(), smallWafer(), nil)
		out, err := p.Run(context.Background(), pipeline.Request{Graph: graph, Seed: 1})
		Expect(err).NotTo(HaveOccurred())

		Expect(out.Placement).To(HaveLen(4))
		for _, rec := range out.Placement {
			Expect(rec.External).To(BeFalse())
			Expect(rec.Chip).To(Equal(coordinate.Chip{X: 0, Y: 0}))
			Expect(rec.HasAddress).To(BeTrue())
			Expect(rec.Address).NotTo(Equal(coordinate.L1Address(0)))
		}
		Expect(out.ParamTrafo).To(HaveLen(1))
		Expect(out.ParamTrafo[0].Neurons).To(HaveLen(4))
	})

	It("routes and allocates synapses for an all-to-all projection", func() {
		weights := make([]float64, 8*8)
		for i := range weights {
			weights[i] = 1
		}
		graph := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 8, CellType: biograph.IFCondExp, Parameters: lifParams(8, -70)},
				{ID: 1, Size: 8, CellType: biograph.IFCondExp, Parameters: lifParams(8, -70)},
			},
			Projections: []biograph.Projection{
				{
					SourcePopulation: 0, TargetPopulation: 1,
					Weights: biograph.WeightMatrix{Rows: 8, Cols: 8, Weights: weights},
				},
			},
		}

		p := pipeline.New(config.Default(), smallWafer(), nil)
		out, err := p.Run(context.Background(), pipeline.Request{Graph: graph, Seed: 7})
		Expect(err).NotTo(HaveOccurred())

		Expect(out.Placement).To(HaveLen(16))
		Expect(len(out.Synapses)).To(BeNumerically(">", 0))

		// Capacitance scaling positivity (spec §8): every filled
		// synapse's clipped weight must come out strictly positive
		// given a strictly positive biological weight.
		for _, rec := range out.Synapses {
			Expect(rec.Weight).To(BeNumerically(">", 0))
			Expect(rec.Digital).To(BeNumerically(">", 0))
		}
	})

	It("materialises a deterministic Poisson spike train for a spike-source population", func() {
		srcParams := make([]biograph.CellParameters, 4)
		for i := range srcParams {
			srcParams[i] = biograph.CellParameters{Rate: 10} // Hz
		}
		graph := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 4, CellType: biograph.SpikeSourcePoisson, Parameters: srcParams},
				{ID: 1, Size: 4, CellType: biograph.IFCondExp, Parameters: lifParams(4, -70)},
			},
			Projections: []biograph.Projection{
				{
					SourcePopulation: 0, TargetPopulation: 1,
					Weights: biograph.WeightMatrix{Rows: 4, Cols: 4, Weights: make([]float64, 16)},
				},
			},
		}

		p := pipeline.New(config.Default(), smallWafer(), nil)
		out, err := p.Run(context.Background(), pipeline.Request{Graph: graph, Seed: 3})
		Expect(err).NotTo(HaveOccurred())

		Expect(out.SpikeTrains).NotTo(BeEmpty())
		for _, st := range out.SpikeTrains {
			Expect(st.Times).NotTo(BeEmpty())
			for i := 1; i < len(st.Times); i++ {
				Expect(st.Times[i]).To(BeNumerically(">=", st.Times[i-1]))
			}
		}

		again, err := p.Run(context.Background(), pipeline.Request{Graph: graph, Seed: 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(again.SpikeTrains).To(Equal(out.SpikeTrains))
	})

	It("writes computed configuration into a supplied hardware descriptor", func() {
		weights := make([]float64, 4)
		for i := range weights {
			weights[i] = 1
		}
		graph := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 2, CellType: biograph.IFCondExp, Parameters: lifParams(2, -70)},
				{ID: 1, Size: 2, CellType: biograph.IFCondExp, Parameters: lifParams(2, -70)},
			},
			Projections: []biograph.Projection{
				{
					SourcePopulation: 0, TargetPopulation: 1,
					Weights: biograph.WeightMatrix{Rows: 2, Cols: 2, Weights: weights},
				},
			},
		}

		wafer := hardware.NewWafer()
		p := pipeline.New(config.Default().WithBackend("Hardware"), smallWafer(), nil)
		out, err := p.Run(context.Background(), pipeline.Request{Graph: graph, Seed: 1, Hardware: wafer})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Placement).NotTo(BeEmpty())

		chip := out.Placement[0].Chip
		ch := wafer.Chip(chip)
		_, ok := ch.Neuron(coordinate.Denmem{Block: out.Placement[0].Block, X: out.Placement[0].XMin, Half: coordinate.Bottom})
		Expect(ok).To(BeTrue())

		found := false
		for _, rec := range out.Synapses {
			if row := ch.SynapseRow(coordinate.SynapseRow{Driver: rec.Driver, Half: rec.Half}); row != nil {
				found = true
			}
		}
		Expect(found).To(BeTrue())
	})

	It("rejects an inconsistent configuration before touching resources", func() {
		graph := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 2, CellType: biograph.IFCondExp, Parameters: lifParams(2, -70)},
			},
		}
		bad := config.Default().WithBackend("ESS").WithCalibration("XML", "/nope.xml")

		p := pipeline.New(bad, smallWafer(), nil)
		_, err := p.Run(context.Background(), pipeline.Request{Graph: graph})
		Expect(err).To(HaveOccurred())
	})

	It("rolls back resource allocation when the bio graph is invalid", func() {
		graph := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 0, CellType: biograph.IFCondExp},
			},
		}
		resources := smallWafer()
		before := resources.Available()

		p := pipeline.New(config.Default(), resources, nil)
		_, err := p.Run(context.Background(), pipeline.Request{Graph: graph})
		Expect(err).To(HaveOccurred())
		Expect(resources.Available()).To(Equal(before))
	})
})
