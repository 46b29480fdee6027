package main

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marocco/results"
)

const graphYAML = `
populations:
  - id: 0
    size: 4
    cell_type: IF_cond_exp
`

const manifestYAML = `
wafer: 0
chips:
  - {x: 0, y: 0}
`

var _ = Describe("runMapping", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "marocco-map-cli")
		Expect(err).NotTo(HaveOccurred())

		Expect(os.WriteFile(filepath.Join(dir, "graph.yaml"), []byte(graphYAML), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifestYAML), 0o644)).To(Succeed())

		runFlags.configPath = ""
		runFlags.graphPath = filepath.Join(dir, "graph.yaml")
		runFlags.manifestPath = filepath.Join(dir, "manifest.yaml")
		runFlags.outPath = filepath.Join(dir, "out.bin")
		runFlags.seed = 1
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("places the population, assigns addresses, and writes a Results file", func() {
		Expect(runMapping(nil, nil)).To(Succeed())

		out, err := results.Load(runFlags.outPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Placement).To(HaveLen(4))
		Expect(out.MergerRouting).NotTo(BeEmpty())
	})

	It("fails when the graph manifest cannot be found", func() {
		runFlags.graphPath = filepath.Join(dir, "missing.yaml")
		Expect(runMapping(nil, nil)).To(HaveOccurred())
	})
})
