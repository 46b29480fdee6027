package input_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/input"
	"github.com/sarchlab/marocco/merger"
	"github.com/sarchlab/marocco/placement"
	"github.com/sarchlab/marocco/resource"
)

var chip = coordinate.Chip{X: 0, Y: 0}

func activeSet(blocks ...int) [coordinate.NumNeuronBlocks]bool {
	var a [coordinate.NumNeuronBlocks]bool
	for _, b := range blocks {
		a[b] = true
	}
	return a
}

var _ = Describe("Placer", func() {
	It("places a manually-pinned source population on unused mergers", func() {
		g := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 3, CellType: biograph.SpikeSourceArray, Parameters: make([]biograph.CellParameters, 3)},
			},
		}
		mgr := resource.NewManager(0, []coordinate.Chip{chip}, nil)
		p := placement.NewPlacer(mgr, placement.Options{DefaultNeuronSize: 4})
		result, err := p.Place(g, nil)
		Expect(err).NotTo(HaveOccurred())

		routings := map[coordinate.Chip]*merger.ChipRouting{
			chip: merger.NewRouter(merger.MinSPL1).Route(chip, activeSet()),
		}

		ip := input.NewPlacer(routings, input.Options{})
		err = ip.Place(g, result, []input.ManualSource{{PopulationID: 0, Chip: chip}})
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 3; i++ {
			item, ok := result.Lookup(biograph.BioNeuron{Population: 0, Index: i})
			Expect(ok).To(BeTrue())
			Expect(item.Address).NotTo(BeNil())
			Expect(item.Address.Address.Reserved()).To(BeFalse())
		}
	})

	It("skips a merger whose neuron block already carries placed neurons", func() {
		g := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 1, Size: 1, CellType: biograph.IFCondExp, Parameters: make([]biograph.CellParameters, 1)},
				{ID: 2, Size: 1, CellType: biograph.SpikeSourceArray, Parameters: make([]biograph.CellParameters, 1)},
			},
		}
		mgr := resource.NewManager(0, []coordinate.Chip{chip}, nil)
		p := placement.NewPlacer(mgr, placement.Options{DefaultNeuronSize: 4})
		result, err := p.Place(g, nil)
		Expect(err).NotTo(HaveOccurred())

		// The neuron population lands on neuron block 0 (lowest free
		// tie-break), whose merger tree leaf is DNC merger 0.
		routings := map[coordinate.Chip]*merger.ChipRouting{
			chip: merger.NewRouter(merger.MinSPL1).Route(chip, activeSet(0)),
		}

		ip := input.NewPlacer(routings, input.Options{})
		Expect(ip.Place(g, result, []input.ManualSource{{PopulationID: 2, Chip: chip}})).To(Succeed())

		item, ok := result.Lookup(biograph.BioNeuron{Population: 2, Index: 0})
		Expect(ok).To(BeTrue())
		Expect(item.Address).NotTo(BeNil())
		Expect(item.Address.Merger.Merger).NotTo(Equal(coordinate.DNCMerger{Index: 0}))
	})

	It("addresses every neuron of an automatic source with firing-rate-aware admission on", func() {
		g := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 10, Size: 1, CellType: biograph.IFCondExp, Parameters: make([]biograph.CellParameters, 1)},
				{ID: 11, Size: 1, CellType: biograph.IFCondExp, Parameters: make([]biograph.CellParameters, 1)},
				{ID: 20, Size: 2, CellType: biograph.SpikeSourceArray, Parameters: make([]biograph.CellParameters, 2)},
			},
			Projections: []biograph.Projection{
				{SourcePopulation: 20, TargetPopulation: 10, Weights: biograph.WeightMatrix{Rows: 2, Cols: 1, Weights: make([]float64, 2)}},
				{SourcePopulation: 20, TargetPopulation: 11, Weights: biograph.WeightMatrix{Rows: 2, Cols: 1, Weights: make([]float64, 2)}},
			},
		}
		mgr := resource.NewManager(0, []coordinate.Chip{chip}, nil)
		p := placement.NewPlacer(mgr, placement.Options{DefaultNeuronSize: 4})
		result, err := p.Place(g, nil)
		Expect(err).NotTo(HaveOccurred())

		routings := map[coordinate.Chip]*merger.ChipRouting{
			chip: merger.NewRouter(merger.MinSPL1).Route(chip, activeSet()),
		}

		ip := input.NewPlacer(routings, input.Options{
			ConsiderFiringRate:   true,
			BandwidthUtilization: 1,
			Estimate:             func(biograph.CellParameters) float64 { return 1.0 },
		})
		Expect(ip.Place(g, result, nil)).To(Succeed())

		for i := 0; i < 2; i++ {
			item, ok := result.Lookup(biograph.BioNeuron{Population: 20, Index: i})
			Expect(ok).To(BeTrue())
			Expect(item.Address).NotTo(BeNil())
		}
	})

	It("reports out of resources when a manual source cannot fit its named chip", func() {
		g := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 30, Size: 8*63 + 1, CellType: biograph.SpikeSourceArray, Parameters: make([]biograph.CellParameters, 8*63+1)},
			},
		}
		mgr := resource.NewManager(0, []coordinate.Chip{chip}, nil)
		p := placement.NewPlacer(mgr, placement.Options{DefaultNeuronSize: 4})
		result, err := p.Place(g, nil)
		Expect(err).NotTo(HaveOccurred())

		routings := map[coordinate.Chip]*merger.ChipRouting{
			chip: merger.NewRouter(merger.MinSPL1).Route(chip, activeSet()),
		}

		ip := input.NewPlacer(routings, input.Options{})
		err = ip.Place(g, result, []input.ManualSource{{PopulationID: 30, Chip: chip}})
		Expect(err).To(HaveOccurred())

		var oor *input.OutOfResourcesError
		Expect(err).To(BeAssignableToTypeOf(oor))
	})
})
