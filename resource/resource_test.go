package resource_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/resource"
)

var _ = Describe("Manager", func() {
	var (
		c0, c1, c2 coordinate.Chip
		mgr        *resource.Manager
	)

	BeforeEach(func() {
		c0 = coordinate.Chip{X: 0, Y: 0}
		c1 = coordinate.Chip{X: 1, Y: 0}
		c2 = coordinate.Chip{X: 2, Y: 0}
		mgr = resource.NewManager(0, []coordinate.Chip{c0, c1, c2}, []coordinate.Chip{c2})
	})

	It("classifies present, available, and defective chips", func() {
		Expect(mgr.StateOf(c0)).To(Equal(resource.Available))
		Expect(mgr.StateOf(c2)).To(Equal(resource.Defective))
		Expect(mgr.StateOf(coordinate.Chip{X: 9, Y: 9})).To(Equal(resource.Absent))

		Expect(mgr.Present()).To(HaveLen(3))
		Expect(mgr.Available()).To(ConsistOf(c0, c1))
		Expect(mgr.Defective()).To(ConsistOf(c2))
	})

	It("moves an available chip to allocated and back", func() {
		Expect(mgr.Allocate(c0)).To(Succeed())
		Expect(mgr.StateOf(c0)).To(Equal(resource.Allocated))
		Expect(mgr.Allocated()).To(ConsistOf(c0))

		Expect(mgr.Release(c0)).To(Succeed())
		Expect(mgr.StateOf(c0)).To(Equal(resource.Available))
	})

	It("refuses to allocate a defective or already-allocated chip", func() {
		Expect(mgr.Allocate(c2)).To(HaveOccurred())

		Expect(mgr.Allocate(c1)).To(Succeed())
		Expect(mgr.Allocate(c1)).To(HaveOccurred())
	})

	It("restores a snapshot taken before a cancelled stage's allocations", func() {
		snap := mgr.Snapshot()

		Expect(mgr.Allocate(c0)).To(Succeed())
		Expect(mgr.Allocate(c1)).To(Succeed())
		Expect(mgr.Allocated()).To(HaveLen(2))

		mgr.Restore(snap)
		Expect(mgr.Allocated()).To(BeEmpty())
		Expect(mgr.Available()).To(ConsistOf(c0, c1))
	})
})
