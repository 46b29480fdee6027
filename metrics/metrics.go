// Package metrics exposes the Prometheus counters and histograms the
// mapping pipeline reports as it runs: how many neurons and addresses
// got placed, how much connectivity was lost to capacity limits, and how
// long parameter transformation takes per chip.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marocco"
const subsystem = "pipeline"

// Pipeline holds every metric the pipeline reports. Construct one with
// NewPipeline per run (or NewDefaultPipeline for the process-wide
// default registry).
type Pipeline struct {
	// NeuronsPlaced counts logical neurons placed, by chip.
	NeuronsPlaced *prometheus.CounterVec
	// AddressesDrawn counts L1 addresses drawn, by DNC merger.
	AddressesDrawn *prometheus.CounterVec
	// SynapseLoss counts synapse entries dropped to capacity limits, by
	// chip and reason.
	SynapseLoss *prometheus.CounterVec
	// RouteLoss counts targets a route could not be built to, by chip.
	RouteLoss *prometheus.CounterVec
	// ParamTrafoDuration measures per-chip parameter transformation
	// wall time in seconds.
	ParamTrafoDuration *prometheus.HistogramVec
}

// NewPipeline registers the pipeline's metrics against reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	factory := promauto.With(reg)
	return &Pipeline{
		NeuronsPlaced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "neurons_placed_total",
				Help:      "Total logical neurons placed, by chip.",
			},
			[]string{"chip"},
		),
		AddressesDrawn: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "l1_addresses_drawn_total",
				Help:      "Total L1 addresses drawn, by DNC merger.",
			},
			[]string{"merger"},
		),
		SynapseLoss: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "synapse_loss_total",
				Help:      "Total synapse entries dropped to capacity limits, by chip and reason.",
			},
			[]string{"chip", "reason"},
		),
		RouteLoss: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "route_loss_total",
				Help:      "Total L1 routing targets that could not be reached, by source chip.",
			},
			[]string{"chip"},
		),
		ParamTrafoDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "param_trafo_duration_seconds",
				Help:      "Per-chip parameter transformation duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"chip"},
		),
	}
}

// NewDefaultPipeline registers the pipeline's metrics against the
// global Prometheus registry, for use by cmd/marocco-map.
func NewDefaultPipeline() *Pipeline {
	return NewPipeline(prometheus.DefaultRegisterer)
}
