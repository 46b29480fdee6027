package merger_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/coordinate"
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

var _ = Describe("Router", func() {
	It("gives a lone straight-through block its own direct merger", func() {
		rt := merger.NewRouter(merger.MinSPL1).Route(chip, activeSet(0))
		target, active := rt.TargetMerger(0)
		Expect(active).To(BeTrue())
		Expect(target).To(Equal(coordinate.DNCMerger{Index: 0}))
		Expect(rt.Mode(coordinate.DNCMerger{Index: 0})).To(Equal(merger.Output))
	})

	It("folds a flexible block onto its forced sibling under MinSPL1", func() {
		rt := merger.NewRouter(merger.MinSPL1).Route(chip, activeSet(6, 7))
		t6, _ := rt.TargetMerger(6)
		t7, _ := rt.TargetMerger(7)
		Expect(t6).To(Equal(coordinate.DNCMerger{Index: 6}))
		Expect(t7).To(Equal(coordinate.DNCMerger{Index: 6}))
		Expect(rt.Mode(coordinate.DNCMerger{Index: 7})).To(Equal(merger.Unused))
	})

	It("keeps a 1-to-1 mapping under MaxSPL1", func() {
		rt := merger.NewRouter(merger.MaxSPL1).Route(chip, activeSet(6, 7))
		t6, _ := rt.TargetMerger(6)
		t7, _ := rt.TargetMerger(7)
		Expect(t6).To(Equal(coordinate.DNCMerger{Index: 6}))
		Expect(t7).To(Equal(coordinate.DNCMerger{Index: 7}))
		Expect(rt.Mode(coordinate.DNCMerger{Index: 7})).To(Equal(merger.Output))
	})

	It("routes a block with no direct wire through its forced escalation", func() {
		rt := merger.NewRouter(merger.MinSPL1).Route(chip, activeSet(3))
		target, active := rt.TargetMerger(3)
		Expect(active).To(BeTrue())
		Expect(target).To(Equal(coordinate.DNCMerger{Index: 3}))
	})
})

var _ = Describe("AddressPool", func() {
	It("never draws the reserved address 0", func() {
		pool := merger.NewAddressPool(merger.Sequential, 1)
		m := coordinate.DNCMerger{Index: 0}
		for i := 0; i < 63; i++ {
			addr, err := pool.Draw(m)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr.Reserved()).To(BeFalse())
		}
		_, err := pool.Draw(m)
		Expect(err).To(HaveOccurred())
	})

	It("draws every address exactly once", func() {
		pool := merger.NewAddressPool(merger.PseudoRandom, 42)
		m := coordinate.DNCMerger{Index: 0}
		seen := map[coordinate.L1Address]bool{}
		for i := 0; i < 63; i++ {
			addr, err := pool.Draw(m)
			Expect(err).NotTo(HaveOccurred())
			Expect(seen[addr]).To(BeFalse())
			seen[addr] = true
		}
	})
})

var _ = Describe("AssignOutputAddresses", func() {
	It("annotates every on-chip placement item with a unique address", func() {
		result := &placement.Result{}
		res := addTwoNeurons(result)

		rt := merger.NewRouter(merger.MinSPL1).Route(chip, activeSet(0))
		Expect(merger.AssignOutputAddresses(rt, chip, res, merger.Sequential, 0)).To(Succeed())

		addrs := map[coordinate.L1Address]bool{}
		for _, it := range res.Items {
			Expect(it.Address).NotTo(BeNil())
			Expect(addrs[it.Address.Address]).To(BeFalse())
			addrs[it.Address.Address] = true
		}
	})
})

func addTwoNeurons(_ *placement.Result) *placement.Result {
	g := &biograph.Graph{
		Populations: []biograph.Population{
			{ID: 0, Size: 2, CellType: biograph.IFCondExp, Parameters: make([]biograph.CellParameters, 2)},
		},
	}
	// Reuse the placer to build a realistic Result rather than
	// hand-constructing placement.Item values directly.
	mgr := resource.NewManager(0, []coordinate.Chip{chip}, nil)
	p := placement.NewPlacer(mgr, placement.Options{DefaultNeuronSize: 4})
	res, err := p.Place(g, nil)
	Expect(err).NotTo(HaveOccurred())
	return res
}
