package biograph_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marocco/biograph"
)

func params(n int) []biograph.CellParameters {
	out := make([]biograph.CellParameters, n)
	for i := range out {
		out[i] = biograph.CellParameters{VReset: -70, CM: 0.2}
	}
	return out
}

var _ = Describe("Graph.Validate", func() {
	It("accepts a graph with consistent populations and projections", func() {
		g := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 4, CellType: biograph.SpikeSourceArray, Parameters: params(4)},
				{ID: 1, Size: 8, CellType: biograph.IFCondExp, Parameters: params(8)},
			},
			Projections: []biograph.Projection{
				{
					SourcePopulation: 0,
					TargetPopulation: 1,
					Weights:          biograph.WeightMatrix{Rows: 4, Cols: 8, Weights: make([]float64, 32)},
				},
			},
		}
		Expect(g.Validate()).To(Succeed())
	})

	It("rejects a population with non-positive size", func() {
		g := &biograph.Graph{
			Populations: []biograph.Population{{ID: 0, Size: 0}},
		}
		Expect(g.Validate()).To(HaveOccurred())
	})

	It("rejects a projection targeting an unknown population", func() {
		g := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 2, CellType: biograph.IFCondExp, Parameters: params(2)},
			},
			Projections: []biograph.Projection{
				{SourcePopulation: 0, TargetPopulation: 99, Weights: biograph.WeightMatrix{Rows: 2, Cols: 2, Weights: make([]float64, 4)}},
			},
		}
		Expect(g.Validate()).To(HaveOccurred())
	})

	It("rejects a projection targeting a spike source population", func() {
		g := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 2, CellType: biograph.IFCondExp, Parameters: params(2)},
				{ID: 1, Size: 2, CellType: biograph.SpikeSourceArray, Parameters: params(2)},
			},
			Projections: []biograph.Projection{
				{SourcePopulation: 0, TargetPopulation: 1, Weights: biograph.WeightMatrix{Rows: 2, Cols: 2, Weights: make([]float64, 4)}},
			},
		}
		Expect(g.Validate()).To(HaveOccurred())
	})

	It("rejects a weight matrix shaped inconsistently with its endpoints", func() {
		g := &biograph.Graph{
			Populations: []biograph.Population{
				{ID: 0, Size: 3, CellType: biograph.IFCondExp, Parameters: params(3)},
				{ID: 1, Size: 5, CellType: biograph.IFCondExp, Parameters: params(5)},
			},
			Projections: []biograph.Projection{
				{SourcePopulation: 0, TargetPopulation: 1, Weights: biograph.WeightMatrix{Rows: 3, Cols: 4, Weights: make([]float64, 12)}},
			},
		}
		Expect(g.Validate()).To(HaveOccurred())
	})
})
