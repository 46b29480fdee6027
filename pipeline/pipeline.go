// Package pipeline threads a bio graph through every mapping stage —
// neuron placement, merger routing and address assignment, input
// placement, L1 routing, synapse allocation, and parameter
// transformation — into a single Results container.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/calib"
	"github.com/sarchlab/marocco/config"
	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/hardware"
	"github.com/sarchlab/marocco/input"
	"github.com/sarchlab/marocco/merger"
	"github.com/sarchlab/marocco/metrics"
	"github.com/sarchlab/marocco/paramtrafo"
	"github.com/sarchlab/marocco/placement"
	"github.com/sarchlab/marocco/resource"
	"github.com/sarchlab/marocco/results"
	"github.com/sarchlab/marocco/route"
	"github.com/sarchlab/marocco/routing"
	"github.com/sarchlab/marocco/synapse"
)

// Request bundles the per-run inputs a Pipeline needs beyond the
// Configuration and resource manifest it was built with.
type Request struct {
	Graph            *biograph.Graph
	ManualPlacement  []placement.ManualPlacement
	ManualSources    []input.ManualSource
	Seed             int64
	ExperimentOffset float64
	// Hardware, if set, receives the run's computed configuration —
	// digital/analog neuron setup, DNC merger output mode, quantised
	// synapse rows, and spike trains. Left nil for a dry run against
	// the None backend, where there is nothing to write to.
	Hardware *hardware.Wafer
}

// Pipeline is the stage orchestrator: one instance is built per run,
// against a fixed Configuration and resource manifest. No stage
// allocates chips from the resource manager (placement only reads the
// available chips), so Run may be called more than once.
type Pipeline struct {
	cfg       config.Configuration
	resources *resource.Manager
	metrics   *metrics.Pipeline
}

// New builds a Pipeline. m may be nil, in which case metrics are not
// reported.
func New(cfg config.Configuration, resources *resource.Manager, m *metrics.Pipeline) *Pipeline {
	return &Pipeline{cfg: cfg, resources: resources, metrics: m}
}

// Run executes every stage in dependency order and returns the
// completed Results. On error or context cancellation, any resource
// allocations made during this call are rolled back before returning.
func (p *Pipeline) Run(ctx context.Context, req Request) (*results.Results, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := req.Graph.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	snap := p.resources.Snapshot()
	out, err := p.run(ctx, req)
	if err != nil {
		p.resources.Restore(snap)
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, req Request) (*results.Results, error) {
	calibBackend, err := p.cfg.BuildCalibBackend()
	if err != nil {
		return nil, err
	}
	if closer, ok := calibBackend.(io.Closer); ok {
		defer closer.Close()
	}

	placer := placement.NewPlacer(p.resources, p.cfg.PlacementOptions())
	placementResult, err := placer.Place(req.Graph, req.ManualPlacement)
	if err != nil {
		return nil, fmt.Errorf("pipeline: placement: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chips := chipsInUse(placementResult, p.resources)
	mergerStrategy, err := p.cfg.MergerStrategy()
	if err != nil {
		return nil, err
	}
	addressStrategy, err := p.cfg.AddressStrategy()
	if err != nil {
		return nil, err
	}
	chipRoutings, err := p.routeMergers(chips, placementResult, mergerStrategy, addressStrategy, req.Seed)
	if err != nil {
		return nil, fmt.Errorf("pipeline: merger routing: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputOpts := p.cfg.InputOptions()
	inputOpts.AddressStrategy = addressStrategy
	inputPlacer := input.NewPlacer(chipRoutings, inputOpts)
	if err := inputPlacer.Place(req.Graph, placementResult, req.ManualSources); err != nil {
		return nil, fmt.Errorf("pipeline: input placement: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paramCfg := p.cfg.ParamTrafoConfig()
	paramCfg.Seed = req.Seed

	routeLoss := &routing.Loss{}
	synLoss := &synapse.Loss{}
	routingAlgo, err := p.cfg.RoutingAlgorithm()
	if err != nil {
		return nil, err
	}
	synapseEntries, err := p.routeAndAllocateSynapses(req.Graph, placementResult, chipRoutings, routingAlgo, addressStrategy, routeLoss, synLoss, req.Seed, paramCfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: L1 routing: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chipResults, err := p.transformParameters(chips, placementResult, req.Graph, calibBackend, paramCfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: parameter transformation: %w", err)
	}

	spikeTrains := materializeSpikes(req.Graph, placementResult, paramCfg, req.ExperimentOffset)

	if req.Hardware != nil {
		writeHardware(req.Hardware, chips, placementResult, chipRoutings, chipResults, synapseEntries, spikeTrains)
	}

	out := results.New()
	out.Placement = flattenPlacement(placementResult)
	out.MergerRouting = flattenMergerRoutings(chips, chipRoutings)
	out.Synapses = synapseEntries
	out.SpikeTrains = spikeTrains
	out.RouteLoss = flattenRouteLoss(routeLoss)
	out.SynapseLoss = append([]string(nil), synLoss.Entries()...)
	out.ParamTrafo = chipResults

	p.report(chips, chipRoutings, out)
	return out, nil
}

// chipsInUse returns every resource-tracked chip that carries at least
// one on-chip logical neuron, in row-major order.
func chipsInUse(result *placement.Result, resources *resource.Manager) []coordinate.Chip {
	present := make(map[coordinate.Chip]bool)
	for _, it := range result.Items {
		for _, ln := range it.Logical {
			if !ln.IsExternal() {
				present[ln.Chip] = true
			}
		}
	}
	out := make([]coordinate.Chip, 0, len(present))
	for c := range present {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// routeMergers computes each in-use chip's neuron-block-to-DNC-merger
// fold and draws L1 addresses for its placed neurons. Chips are
// independent, so the work fans out over one goroutine per chip; each
// task only touches its own chip's placement items.
func (p *Pipeline) routeMergers(chips []coordinate.Chip, result *placement.Result, strategy merger.Strategy, addrStrategy merger.AddressStrategy, seed int64) (map[coordinate.Chip]*merger.ChipRouting, error) {
	router := merger.NewRouter(strategy)
	out := make([]*merger.ChipRouting, len(chips))

	g, _ := errgroup.WithContext(context.Background())
	for i, chip := range chips {
		i, chip := i, chip
		g.Go(func() error {
			var active [coordinate.NumNeuronBlocks]bool
			for b := coordinate.NeuronBlock(0); b < coordinate.NumNeuronBlocks; b++ {
				active[b] = len(result.OnChip(chip, b)) > 0
			}
			cr := router.Route(chip, active)
			if err := merger.AssignOutputAddresses(cr, chip, result, addrStrategy, seed); err != nil {
				return fmt.Errorf("chip %s: %w", chip, err)
			}
			out[i] = cr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	routings := make(map[coordinate.Chip]*merger.ChipRouting, len(chips))
	for i, chip := range chips {
		routings[chip] = out[i]
	}
	return routings, nil
}

// sideFor picks the denmem input side a projection's synapses land on:
// excitatory synapses use the left input, inhibitory the right.
func sideFor(kind biograph.SynapseKind) int {
	if kind == biograph.InhibitoryProjection {
		return 1
	}
	return 0
}

// targetColumnsOnChip builds the parallel column array PlaceProjection
// expects for a projection's target population, one entry per target
// neuron index: the leftmost denmem column of that neuron's logical
// placement on chip, or -1 if the neuron was not placed on chip.
func targetColumnsOnChip(result *placement.Result, chip coordinate.Chip, pop *biograph.Population) []int {
	cols := make([]int, pop.Size)
	for i := range cols {
		cols[i] = -1
	}
	for _, item := range result.ForPopulation(pop.ID) {
		for _, ln := range item.Logical {
			if !ln.IsExternal() && ln.Chip == chip && item.Neuron.Index < pop.Size {
				cols[item.Neuron.Index] = ln.XMin
			}
		}
	}
	return cols
}

// targetScalesOnChip computes, for every denmem column a population's
// neurons occupy on chip, the synaptic weight scale factor (speedup
// times hardware-over-biological membrane capacitance) that column's
// neuron was placed with. Keyed by column rather than population index
// since that is how a filled synapse entry identifies its target.
func targetScalesOnChip(result *placement.Result, chip coordinate.Chip, pop *biograph.Population, cfg paramtrafo.Config) map[int]float64 {
	scales := make(map[int]float64)
	for _, item := range result.ForPopulation(pop.ID) {
		for _, ln := range item.Logical {
			if !ln.IsExternal() && ln.Chip == chip && item.Neuron.Index < pop.Size {
				cmBio := pop.Parameters[item.Neuron.Index].CM
				scales[ln.XMin] = paramtrafo.ScaleFactor(cfg, paramtrafo.CmHW(ln), cmBio)
			}
		}
	}
	return scales
}

// scaleAndQuantizeRow converts one filled row's raw biological weights
// (µS) into the hardware-register values they are actually programmed
// as: a single row-wide GmaxConfig chosen against the largest scaled
// weight, a 4-bit digital value per column, and the clipped analog
// weight (µS) that Gmax actually reproduces for each column — each
// column rescaled with its own neuron's scale factor, since a row can
// carry synapses onto neurons with different capacitance ratios.
func scaleAndQuantizeRow(columns []int, rawWeights []float64, scales map[int]float64) (paramtrafo.GmaxConfig, []uint8, []float64) {
	colScale := make([]float64, len(columns))
	nsWeights := make([]float64, len(columns))
	for i, col := range columns {
		s := scales[col]
		colScale[i] = s
		nsWeights[i] = rawWeights[i] * s * 1000
	}
	return paramtrafo.RowGmaxByColumn(nsWeights, colScale)
}

// routeAndAllocateSynapses builds L1 routes from each projection's
// source neurons to the chips hosting its target neurons, then allocates
// synapse drivers and rows on each reached chip.
func (p *Pipeline) routeAndAllocateSynapses(
	g *biograph.Graph,
	result *placement.Result,
	chipRoutings map[coordinate.Chip]*merger.ChipRouting,
	algo routing.Algorithm,
	addrStrategy merger.AddressStrategy,
	routeLoss *routing.Loss,
	synLoss *synapse.Loss,
	seed int64,
	paramCfg paramtrafo.Config,
) ([]results.SynapseRecord, error) {
	usage := routing.NewVLineUsage()
	builder := routing.NewBuilder(algo, p.cfg.RoutingWeights(), usage, seed)
	allocators := make(map[coordinate.Chip]*synapse.Allocator)
	mappings := make(map[coordinate.Chip]*synapse.TargetMapping)
	filler := synapse.NewFiller(synLoss)

	allocatorFor := func(chip coordinate.Chip) *synapse.Allocator {
		if a, ok := allocators[chip]; ok {
			return a
		}
		a := synapse.NewAllocator(chip, synLoss)
		allocators[chip] = a
		mappings[chip] = synapse.NewTargetMapping()
		return a
	}

	var entries []results.SynapseRecord

	for _, proj := range g.Projections {
		src, ok := g.Population(proj.SourcePopulation)
		if !ok {
			continue
		}
		dst, ok := g.Population(proj.TargetPopulation)
		if !ok {
			continue
		}

		targetChips := distinctTargetChips(result, dst)
		if len(targetChips) == 0 {
			continue
		}

		bySource := groupBySourceChipMerger(result, src, chipRoutings)
		for key, sourceChip := range bySource {
			targets := make([]routing.Target, 0, len(targetChips))
			for i, tc := range targetChips {
				targets = append(targets, routing.Target{Chip: tc, Row: i * 2})
			}

			tree, err := builder.Build(sourceChip, key, targets, routeLoss)
			if err != nil {
				return nil, err
			}
			leaves, err := tree.Leaves()
			if err != nil {
				continue
			}

			for _, leaf := range leaves {
				targetChip, err := leaf.TargetChip()
				if err != nil {
					continue
				}
				vLine, ok := terminalVLine(leaf)
				if !ok {
					continue
				}

				alloc := allocatorFor(targetChip)
				mapping := mappings[targetChip]
				cols := targetColumnsOnChip(result, targetChip, dst)
				scales := targetScalesOnChip(result, targetChip, dst, paramCfg)
				side := sideFor(proj.Type)

				entryMap, ok := synapse.PlaceProjection(alloc, filler, targetChip, vLine, side, mapping, proj, cols)
				if !ok {
					continue
				}

				byRow := make(map[coordinate.SynapseRow][]coordinate.SynapseOnChip)
				for syn := range entryMap {
					byRow[syn.Row] = append(byRow[syn.Row], syn)
				}
				for row, syns := range byRow {
					sort.Slice(syns, func(i, j int) bool { return syns[i].Column < syns[j].Column })
					columns := make([]int, len(syns))
					raw := make([]float64, len(syns))
					for i, syn := range syns {
						columns[i] = syn.Column
						raw[i] = entryMap[syn]
					}
					gc, digital, clipped := scaleAndQuantizeRow(columns, raw, scales)
					for i, col := range columns {
						entries = append(entries, results.SynapseRecord{
							Chip:    targetChip,
							Driver:  row.Driver,
							Half:    row.Half,
							Column:  col,
							Weight:  clipped[i],
							Digital: digital[i],
							Gmax:    gc,
						})
					}
				}
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Chip != b.Chip {
			return chipLess(a.Chip, b.Chip)
		}
		if a.Driver != b.Driver {
			return a.Driver.Side < b.Driver.Side || (a.Driver.Side == b.Driver.Side && a.Driver.Row < b.Driver.Row)
		}
		return a.Column < b.Column
	})
	return entries, nil
}

func chipLess(a, b coordinate.Chip) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// terminalVLine recovers the VLine a completed route settles on at its
// target chip, the input synapse allocation needs.
func terminalVLine(r route.L1Route) (coordinate.VLine, bool) {
	back, err := r.Back()
	if err != nil {
		return coordinate.VLine{}, false
	}
	v, ok := back.(route.VLineSegment)
	if !ok {
		return coordinate.VLine{}, false
	}
	return v.Line, true
}

// distinctTargetChips lists, in row-major order, every chip hosting at
// least one on-chip logical neuron of pop.
func distinctTargetChips(result *placement.Result, pop *biograph.Population) []coordinate.Chip {
	seen := make(map[coordinate.Chip]bool)
	for _, item := range result.ForPopulation(pop.ID) {
		for _, ln := range item.Logical {
			if !ln.IsExternal() {
				seen[ln.Chip] = true
			}
		}
	}
	out := make([]coordinate.Chip, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return chipLess(out[i], out[j]) })
	return out
}

// groupBySourceChipMerger buckets a source population's placed neurons by
// the (chip, output DNC merger) pair their events leave from, so one
// route is built per distinct exit point rather than one per neuron.
func groupBySourceChipMerger(result *placement.Result, pop *biograph.Population, chipRoutings map[coordinate.Chip]*merger.ChipRouting) map[coordinate.DNCMerger]coordinate.Chip {
	out := make(map[coordinate.DNCMerger]coordinate.Chip)
	for _, item := range result.ForPopulation(pop.ID) {
		if item.Address == nil {
			continue
		}
		m := item.Address.Merger.Merger
		out[m] = item.Address.Merger.Chip
	}
	if len(out) > 0 {
		return out
	}
	// Source has no drawn addresses yet (e.g. spike sources awaiting
	// input placement): fall back to each in-use chip's routing table.
	for chip, cr := range chipRoutings {
		for b := coordinate.NeuronBlock(0); b < coordinate.NumNeuronBlocks; b++ {
			if m, active := cr.TargetMerger(b); active {
				out[m] = chip
			}
		}
	}
	return out
}

// transformParameters runs parameter transformation once per chip so
// each chip's duration can be reported independently, even though
// paramtrafo.Transform itself already fans work out internally for a
// batch.
func (p *Pipeline) transformParameters(chips []coordinate.Chip, result *placement.Result, g *biograph.Graph, backend calib.Backend, cfg paramtrafo.Config) ([]paramtrafo.ChipResult, error) {
	out := make([]paramtrafo.ChipResult, len(chips))

	eg, _ := errgroup.WithContext(context.Background())
	for i, chip := range chips {
		i, chip := i, chip
		eg.Go(func() error {
			start := time.Now()
			chipResults, err := paramtrafo.Transform([]coordinate.Chip{chip}, result, g, backend, cfg)
			if p.metrics != nil {
				p.metrics.ParamTrafoDuration.WithLabelValues(chip.String()).Observe(time.Since(start).Seconds())
			}
			if err != nil {
				return err
			}
			out[i] = chipResults[0]
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// flattenPlacement turns the placer's per-item, per-logical-neuron
// structure into one serializable record per (item, logical neuron)
// pair.
func flattenPlacement(result *placement.Result) []results.PlacementRecord {
	var out []results.PlacementRecord
	for _, item := range result.Items {
		for _, ln := range item.Logical {
			rec := results.PlacementRecord{
				Population: item.Neuron.Population,
				Index:      item.Neuron.Index,
			}
			if ln.IsExternal() {
				rec.External = true
				rec.SourcePop, rec.SourceIndex = ln.Source()
			} else {
				rec.Chip = ln.Chip
				rec.Block = ln.Block
				rec.XMin = ln.XMin
				rec.XMax = ln.XMax
			}
			if item.Address != nil {
				rec.HasAddress = true
				rec.Merger = item.Address.Merger
				rec.Address = item.Address.Address
			}
			out = append(out, rec)
		}
	}
	return out
}

// flattenMergerRoutings lists every active neuron-block-to-DNC-merger
// fold across the chips a run touched.
func flattenMergerRoutings(chips []coordinate.Chip, chipRoutings map[coordinate.Chip]*merger.ChipRouting) []results.MergerRecord {
	var out []results.MergerRecord
	for _, chip := range chips {
		cr, ok := chipRoutings[chip]
		if !ok {
			continue
		}
		for b := coordinate.NeuronBlock(0); b < coordinate.NumNeuronBlocks; b++ {
			m, active := cr.TargetMerger(b)
			if !active {
				continue
			}
			out = append(out, results.MergerRecord{
				Chip:   chip,
				Block:  b,
				Merger: m,
				Mode:   cr.Mode(m).String(),
			})
		}
	}
	return out
}

// materializeSpikes draws a deterministic Poisson spike train for every
// placed SpikeSourcePoisson neuron and converts it to hardware time.
// SpikeSourceArray populations carry no materialisable rate in the bio
// graph schema and are left for a future explicit-train format.
func materializeSpikes(g *biograph.Graph, result *placement.Result, cfg paramtrafo.Config, offset float64) []results.SpikeTrainRecord {
	var out []results.SpikeTrainRecord
	for i := range result.Items {
		item := &result.Items[i]
		if item.Address == nil {
			continue
		}
		pop, ok := g.Population(item.Neuron.Population)
		if !ok || pop.CellType != biograph.SpikeSourcePoisson {
			continue
		}

		rate := pop.Parameters[item.Neuron.Index].Rate
		bio := paramtrafo.MaterializePoisson(rate, cfg.Duration, item.Address.Merger, cfg)
		if len(bio) == 0 {
			continue
		}

		out = append(out, results.SpikeTrainRecord{
			Population: item.Neuron.Population,
			Index:      item.Neuron.Index,
			Chip:       item.Address.Merger.Chip,
			Merger:     item.Address.Merger.Merger,
			Address:    item.Address.Address,
			Times:      paramtrafo.ToHardwareSpikes(bio, cfg, offset),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Population != out[j].Population {
			return out[i].Population < out[j].Population
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// flattenRouteLoss converts a routing.Loss ledger into serializable
// records.
func flattenRouteLoss(loss *routing.Loss) []results.RouteLossRecord {
	entries := loss.Entries()
	out := make([]results.RouteLossRecord, len(entries))
	for i, e := range entries {
		out[i] = results.RouteLossRecord{Source: e.Source, Target: e.Target, Reason: e.Reason}
	}
	return out
}

// report pushes the run's outcome into the configured metrics, when
// present.
func (p *Pipeline) report(chips []coordinate.Chip, chipRoutings map[coordinate.Chip]*merger.ChipRouting, out *results.Results) {
	if p.metrics == nil {
		return
	}
	counts := make(map[coordinate.Chip]int, len(chips))
	for _, rec := range out.Placement {
		if !rec.External {
			counts[rec.Chip]++
		}
	}
	for _, chip := range chips {
		p.metrics.NeuronsPlaced.WithLabelValues(chip.String()).Add(float64(counts[chip]))
	}
	for _, rec := range out.MergerRouting {
		if rec.Mode == "output" {
			p.metrics.AddressesDrawn.WithLabelValues(rec.Merger.String()).Inc()
		}
	}
	for _, l := range out.RouteLoss {
		p.metrics.RouteLoss.WithLabelValues(l.Source.String()).Inc()
	}
	if n := len(out.SynapseLoss); n > 0 {
		p.metrics.SynapseLoss.WithLabelValues("all", "capacity").Add(float64(n))
	}
}
