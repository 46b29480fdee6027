package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/config"
	"github.com/sarchlab/marocco/hardware"
	"github.com/sarchlab/marocco/metrics"
	"github.com/sarchlab/marocco/pipeline"
	"github.com/sarchlab/marocco/resource"
	"github.com/sarchlab/marocco/results"
)

// pipelineMetrics registers against the default Prometheus registry
// exactly once per process, since promauto panics on a second
// registration of the same collector names.
var (
	pipelineMetrics     *metrics.Pipeline
	pipelineMetricsOnce sync.Once
)

func getPipelineMetrics() *metrics.Pipeline {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = metrics.NewDefaultPipeline()
	})
	return pipelineMetrics
}

var runFlags struct {
	configPath   string
	graphPath    string
	manifestPath string
	outPath      string
	seed         int64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the mapping pipeline against a bio graph and resource manifest",
	RunE:  runMapping,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.configPath, "config", "", "path to a YAML Configuration manifest (defaults applied if omitted)")
	runCmd.Flags().StringVar(&runFlags.graphPath, "graph", "", "path to a YAML bio graph manifest (required)")
	runCmd.Flags().StringVar(&runFlags.manifestPath, "manifest", "", "path to a YAML resource manifest (required)")
	runCmd.Flags().StringVar(&runFlags.outPath, "out", "results.bin", "path to write the serialized Results container")
	runCmd.Flags().Int64Var(&runFlags.seed, "seed", 1, "deterministic seed for address assignment and switch shuffling")
	_ = runCmd.MarkFlagRequired("graph")
	_ = runCmd.MarkFlagRequired("manifest")

	rootCmd.AddCommand(runCmd)
}

func runMapping(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if runFlags.configPath != "" {
		loaded, err := config.Load(runFlags.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	graph, err := biograph.LoadScenario(runFlags.graphPath)
	if err != nil {
		return err
	}

	resources, err := resource.LoadManifest(runFlags.manifestPath)
	if err != nil {
		return err
	}

	p := pipeline.New(cfg, resources, getPipelineMetrics())

	var wafer *hardware.Wafer
	if cfg.Backend != "None" {
		wafer = hardware.NewWafer()
	}

	start := time.Now()
	out, err := p.Run(context.Background(), pipeline.Request{
		Graph:            graph,
		Seed:             runFlags.seed,
		ExperimentOffset: cfg.ParamTrafo.ExperimentTimeOffset,
		Hardware:         wafer,
	})
	if err != nil {
		return err
	}

	slog.Info("marocco-map: run complete",
		slog.String("run_id", out.RunID),
		slog.Int("placements", len(out.Placement)),
		slog.Int("synapses", len(out.Synapses)),
		slog.Int("route_losses", len(out.RouteLoss)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if err := results.Save(out, runFlags.outPath); err != nil {
		return err
	}
	slog.Info("marocco-map: results written", slog.String("path", runFlags.outPath))
	return nil
}
