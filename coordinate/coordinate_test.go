package coordinate_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marocco/coordinate"
)

var _ = Describe("Chip", func() {
	It("reports bounds against the wafer's fixed grid", func() {
		Expect(coordinate.Chip{X: 0, Y: 0}.InBounds()).To(BeTrue())
		Expect(coordinate.Chip{X: coordinate.WaferWidth - 1, Y: coordinate.WaferHeight - 1}.InBounds()).To(BeTrue())
		Expect(coordinate.Chip{X: coordinate.WaferWidth, Y: 0}.InBounds()).To(BeFalse())
		Expect(coordinate.Chip{X: -1, Y: 0}.InBounds()).To(BeFalse())
	})

	It("groups chips into fixed-size FPGA blocks", func() {
		a := coordinate.FPGAOf(coordinate.Chip{X: 0, Y: 0})
		b := coordinate.FPGAOf(coordinate.Chip{X: 7, Y: 0})
		c := coordinate.FPGAOf(coordinate.Chip{X: 8, Y: 0})
		Expect(a).To(Equal(b))
		Expect(a).NotTo(Equal(c))
	})
})

var _ = Describe("DNCMerger", func() {
	It("validates its index range", func() {
		Expect(coordinate.DNCMerger{Index: 0}.Valid()).To(BeTrue())
		Expect(coordinate.DNCMerger{Index: coordinate.NumDNCMergers - 1}.Valid()).To(BeTrue())
		Expect(coordinate.DNCMerger{Index: coordinate.NumDNCMergers}.Valid()).To(BeFalse())
		Expect(coordinate.DNCMerger{Index: -1}.Valid()).To(BeFalse())
	})

	It("derives a stable sending repeater per merger", func() {
		m := coordinate.DNCMerger{Index: 3}
		Expect(m.SendingRepeater()).To(Equal(m.SendingRepeater()))
	})
})

var _ = Describe("SynapseDriver", func() {
	It("chains only drivers on the same side two rows apart", func() {
		a := coordinate.SynapseDriver{Side: 0, Row: 4}
		b := coordinate.SynapseDriver{Side: 0, Row: 6}
		c := coordinate.SynapseDriver{Side: 1, Row: 6}
		d := coordinate.SynapseDriver{Side: 0, Row: 8}

		Expect(a.ChainedWith(b)).To(BeTrue())
		Expect(a.ChainedWith(c)).To(BeFalse())
		Expect(a.ChainedWith(d)).To(BeFalse())
	})

	It("derives the synapse switch row from the driver row", func() {
		d := coordinate.SynapseDriver{Side: 0, Row: 5}
		Expect(d.SynapseSwitchRow()).To(Equal(10))
	})
})

var _ = Describe("crossbar and synapse switch topology", func() {
	It("connects buses on a periodic pattern", func() {
		Expect(coordinate.CrossbarExists(coordinate.VLine{Index: 0}, coordinate.HLine{Index: 0})).To(BeTrue())
		Expect(coordinate.CrossbarExists(coordinate.VLine{Index: 0}, coordinate.HLine{Index: 1})).To(BeFalse())
	})

	It("connects synapse switches on a periodic pattern", func() {
		Expect(coordinate.SynapseSwitchExists(coordinate.VLine{Index: 0}, 0)).To(BeTrue())
		Expect(coordinate.SynapseSwitchExists(coordinate.VLine{Index: 1}, 0)).To(BeFalse())
	})
})

var _ = Describe("merger tree routing", func() {
	It("feeds only the four straight-through DNC mergers from Merger0", func() {
		Expect(coordinate.Merger0FeedsDNC(0, 0)).To(BeTrue())
		Expect(coordinate.Merger0FeedsDNC(1, 1)).To(BeFalse())
		Expect(coordinate.Merger0FeedsDNC(2, 2)).To(BeTrue())
	})

	It("routes Merger0 outputs into the correct Merger1 bucket", func() {
		Expect(coordinate.Merger0To1(0, 0)).To(BeTrue())
		Expect(coordinate.Merger0To1(3, 1)).To(BeTrue())
		Expect(coordinate.Merger0To1(3, 0)).To(BeFalse())
	})
})
