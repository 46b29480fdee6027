package route_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/route"
)

func chip(x, y int) coordinate.Chip {
	return coordinate.Chip{Wafer: 0, X: x, Y: y}
}

var _ = Describe("L1Route", func() {
	It("accepts a route crossing a chip boundary onto a synapse driver", func() {
		segs := []route.Segment{
			route.ChipSegment{Chip: chip(0, 0)},
			route.HLineSegment{Line: coordinate.HLine{Index: 0}},
			route.ChipSegment{Chip: chip(1, 0)},
			route.HLineSegment{Line: coordinate.HLine{Index: 0}},
			route.VLineSegment{Line: coordinate.VLine{Index: 0}},
			route.SynapseDriverSegment{Driver: coordinate.SynapseDriver{Side: 0, Row: 0}},
		}

		r, err := route.New(segs)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Len()).To(Equal(6))

		src, err := r.SourceChip()
		Expect(err).NotTo(HaveOccurred())
		Expect(src).To(Equal(chip(0, 0)))

		dst, err := r.TargetChip()
		Expect(err).NotTo(HaveOccurred())
		Expect(dst).To(Equal(chip(1, 0)))
	})

	It("rejects a bus hop that does not cross a real crossbar", func() {
		segs := []route.Segment{
			route.ChipSegment{Chip: chip(0, 0)},
			route.HLineSegment{Line: coordinate.HLine{Index: 0}},
			route.VLineSegment{Line: coordinate.VLine{Index: 1}},
		}
		_, err := route.New(segs)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a route that does not start with a chip", func() {
		segs := []route.Segment{
			route.HLineSegment{Line: coordinate.HLine{Index: 0}},
		}
		_, err := route.New(segs)
		Expect(err).To(HaveOccurred())
	})

	It("treats the empty route as valid", func() {
		r, err := route.New(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Empty()).To(BeTrue())
	})

	It("never validates the hop taken right off the starting chip", func() {
		// A DNCMergerSegment cannot legally follow a bare ChipSegment
		// under the successor table, yet it is exactly the shape the
		// initial hop of a route is allowed to take.
		segs := []route.Segment{
			route.ChipSegment{Chip: chip(0, 0)},
			route.DNCMergerSegment{Merger: coordinate.DNCMerger{Index: 0}},
		}
		_, err := route.New(segs)
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips through Split and Extend", func() {
		segs := []route.Segment{
			route.ChipSegment{Chip: chip(0, 0)},
			route.HLineSegment{Line: coordinate.HLine{Index: 0}},
			route.ChipSegment{Chip: chip(1, 0)},
			route.HLineSegment{Line: coordinate.HLine{Index: 0}},
			route.VLineSegment{Line: coordinate.VLine{Index: 0}},
			route.SynapseDriverSegment{Driver: coordinate.SynapseDriver{Side: 0, Row: 0}},
		}
		r, err := route.New(segs)
		Expect(err).NotTo(HaveOccurred())

		first, second := r.Split(3)
		Expect(first.Empty()).To(BeFalse())
		Expect(second.Empty()).To(BeFalse())

		joined := first
		Expect(joined.Extend(second)).To(Succeed())
		Expect(joined.Equal(r)).To(BeTrue())
	})

	It("splits at the boundaries into the whole route and an empty one", func() {
		segs := []route.Segment{
			route.ChipSegment{Chip: chip(0, 0)},
			route.HLineSegment{Line: coordinate.HLine{Index: 0}},
		}
		r, err := route.New(segs)
		Expect(err).NotTo(HaveOccurred())

		whole, empty := r.Split(r.Len())
		Expect(whole.Equal(r)).To(BeTrue())
		Expect(empty.Empty()).To(BeTrue())

		empty2, whole2 := r.Split(0)
		Expect(empty2.Empty()).To(BeTrue())
		Expect(whole2.Equal(r)).To(BeTrue())
	})

	It("extends onto a route starting at the same chip without duplicating it", func() {
		var r route.L1Route
		Expect(r.AppendChip(chip(0, 0), route.DNCMergerSegment{Merger: coordinate.DNCMerger{Index: 0}})).To(Succeed())

		// The initial hop off a route's starting chip is never
		// validated, so a two-segment route straight to the GbitLink
		// this DNC merger feeds is accepted as-is.
		tail, err := route.New([]route.Segment{
			route.ChipSegment{Chip: chip(0, 0)},
			route.GbitLinkSegment{Link: coordinate.GbitLink{Index: 0}},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(r.Extend(tail)).To(Succeed())
		Expect(r.Len()).To(Equal(3))
	})
})

var _ = Describe("L1RouteTree", func() {
	It("rejects a tail whose source chip does not match the head's target", func() {
		head, err := route.New([]route.Segment{
			route.ChipSegment{Chip: chip(0, 0)},
			route.HLineSegment{Line: coordinate.HLine{Index: 0}},
			route.ChipSegment{Chip: chip(1, 0)},
			route.HLineSegment{Line: coordinate.HLine{Index: 0}},
		})
		Expect(err).NotTo(HaveOccurred())

		badTail, err := route.New([]route.Segment{
			route.ChipSegment{Chip: chip(2, 0)},
			route.HLineSegment{Line: coordinate.HLine{Index: 0}},
		})
		Expect(err).NotTo(HaveOccurred())

		tree := route.NewLeaf(head)
		err = tree.AddTail(route.NewLeaf(badTail))
		Expect(err).To(HaveOccurred())
	})

	It("produces one leaf route per tail", func() {
		head, err := route.New([]route.Segment{
			route.ChipSegment{Chip: chip(0, 0)},
			route.HLineSegment{Line: coordinate.HLine{Index: 0}},
			route.ChipSegment{Chip: chip(1, 0)},
			route.HLineSegment{Line: coordinate.HLine{Index: 0}},
		})
		Expect(err).NotTo(HaveOccurred())

		// Each tail redeclares the chip the head already ended on; its
		// second segment is the real continuation, checked directly
		// against the head's own last segment (see L1Route.Extend).
		tailA, err := route.New([]route.Segment{
			route.ChipSegment{Chip: chip(1, 0)},
			route.VLineSegment{Line: coordinate.VLine{Index: 0}},
		})
		Expect(err).NotTo(HaveOccurred())

		tailB, err := route.New([]route.Segment{
			route.ChipSegment{Chip: chip(1, 0)},
			route.VLineSegment{Line: coordinate.VLine{Index: 4}},
		})
		Expect(err).NotTo(HaveOccurred())

		tree := route.NewLeaf(head)
		Expect(tree.AddTail(route.NewLeaf(tailA))).To(Succeed())
		Expect(tree.AddTail(route.NewLeaf(tailB))).To(Succeed())

		leaves, err := tree.Leaves()
		Expect(err).NotTo(HaveOccurred())
		Expect(leaves).To(HaveLen(2))
		for _, leaf := range leaves {
			Expect(leaf.Len()).To(Equal(5))
		}
	})
})
