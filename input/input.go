// Package input places external spike-source populations onto DNC
// mergers not claimed for neuron output, honoring per-chip and per-FPGA
// bandwidth ceilings.
package input

import (
	"fmt"
	"sort"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/merger"
	"github.com/sarchlab/marocco/placement"
)

// Hardware bandwidth ceilings, in events per second, from §4.4.
const (
	MaxRateChip = 1.78e7
	MaxRateFPGA = 1.25e8
)

// OutOfResourcesError is returned when a manually-placed source could not
// be fully consumed by its named chip.
type OutOfResourcesError struct {
	PopulationID int
	Reason       string
}

func (e *OutOfResourcesError) Error() string {
	return fmt.Sprintf("input: population %d out of resources: %s", e.PopulationID, e.Reason)
}

// RateEstimator estimates the firing rate, in Hz, of a biological neuron
// given its cell parameters; different cell types use different models.
type RateEstimator func(biograph.CellParameters) float64

// Options configures the input placer, mirroring the input_placement.*
// configuration keys.
type Options struct {
	ConsiderFiringRate   bool
	BandwidthUtilization float64 // u in (0, 1], default 1
	AddressStrategy      merger.AddressStrategy
	Estimate             RateEstimator
}

// ManualSource pins a source population to a named chip, consumed in the
// population's own neuron-index order.
type ManualSource struct {
	PopulationID int
	Chip         coordinate.Chip
}

// bandwidthLedger accumulates the events/sec already committed to each
// chip and FPGA so bandwidth ceilings can be enforced across sources.
type bandwidthLedger struct {
	usedChip map[coordinate.Chip]float64
	usedFPGA map[coordinate.FPGA]float64
}

func newLedger() *bandwidthLedger {
	return &bandwidthLedger{usedChip: map[coordinate.Chip]float64{}, usedFPGA: map[coordinate.FPGA]float64{}}
}

func (l *bandwidthLedger) available(chip coordinate.Chip, u float64) (chipBudget, fpgaBudget float64) {
	fpga := coordinate.FPGAOf(chip)
	chipBudget = u*MaxRateChip - l.usedChip[chip]
	fpgaBudget = u*MaxRateFPGA - l.usedFPGA[fpga]
	return
}

func (l *bandwidthLedger) commit(chip coordinate.Chip, rate float64) {
	l.usedFPGA[coordinate.FPGAOf(chip)] += rate
	l.usedChip[chip] += rate
}

// Placer places external populations following §4.4: manual sources
// first, then remaining sources ordered by descending target-chip
// fan-out.
type Placer struct {
	routings map[coordinate.Chip]*merger.ChipRouting
	opts     Options
	ledger   *bandwidthLedger
}

// NewPlacer builds an input Placer. routings must already reflect every
// chip's merger-routing (output) assignment from the merger stage.
func NewPlacer(routings map[coordinate.Chip]*merger.ChipRouting, opts Options) *Placer {
	if opts.BandwidthUtilization <= 0 {
		opts.BandwidthUtilization = 1
	}
	return &Placer{routings: routings, opts: opts, ledger: newLedger()}
}

// occupiedBlocks reports, per chip, which neuron blocks already carry
// placed neurons (so their background generator's leaf cannot be
// repurposed for input), derived from the placement result.
func occupiedBlocks(result *placement.Result, chip coordinate.Chip) [coordinate.NumNeuronBlocks]bool {
	var occ [coordinate.NumNeuronBlocks]bool
	for _, item := range result.Items {
		for _, ln := range item.Logical {
			if !ln.IsExternal() && ln.Chip == chip {
				occ[ln.Block] = true
			}
		}
	}
	return occ
}

// Place runs input placement over the whole bio graph.
func (p *Placer) Place(g *biograph.Graph, result *placement.Result, manual []ManualSource) error {
	manualIDs := make(map[int]coordinate.Chip, len(manual))
	for _, m := range manual {
		manualIDs[m.PopulationID] = m.Chip
	}

	for _, m := range manual {
		pop, ok := g.Population(m.PopulationID)
		if !ok || !pop.CellType.IsSource() {
			continue
		}
		neurons := sourceItems(result, pop.ID)
		remaining := p.insertInput(m.Chip, result, pop, neurons)
		if remaining > 0 {
			return &OutOfResourcesError{PopulationID: pop.ID, Reason: "named chip could not absorb every source neuron"}
		}
	}

	var automatic []*biograph.Population
	for i := range g.Populations {
		pop := &g.Populations[i]
		if !pop.CellType.IsSource() {
			continue
		}
		if _, isManual := manualIDs[pop.ID]; isManual {
			continue
		}
		automatic = append(automatic, pop)
	}

	sort.SliceStable(automatic, func(i, j int) bool {
		return distinctTargetChips(g, result, automatic[i].ID) > distinctTargetChips(g, result, automatic[j].ID)
	})

	targetChipOf := func(populationID int) (coordinate.Chip, bool) {
		items := result.ForPopulation(populationID)
		for _, it := range items {
			for _, ln := range it.Logical {
				if !ln.IsExternal() {
					return ln.Chip, true
				}
			}
		}
		return coordinate.Chip{}, false
	}

	for _, pop := range automatic {
		neurons := sourceItems(result, pop.ID)
		for _, chip := range nearestChips(g, pop.ID, targetChipOf, p.chipsInUse()) {
			if len(neurons) == 0 {
				break
			}
			remaining := p.insertInput(chip, result, pop, neurons)
			neurons = neurons[:remaining]
		}
	}

	return nil
}

func (p *Placer) chipsInUse() []coordinate.Chip {
	chips := make([]coordinate.Chip, 0, len(p.routings))
	for c := range p.routings {
		chips = append(chips, c)
	}
	sort.Slice(chips, func(i, j int) bool {
		if chips[i].Y != chips[j].Y {
			return chips[i].Y < chips[j].Y
		}
		return chips[i].X < chips[j].X
	})
	return chips
}

func sourceItems(result *placement.Result, populationID int) []*placement.Item {
	return result.ForPopulation(populationID)
}

// distinctTargetChips counts the number of distinct chips any projection
// sourced from population id targets, used to order automatic sources by
// fan-out (descending).
func distinctTargetChips(g *biograph.Graph, result *placement.Result, populationID int) int {
	seen := map[coordinate.Chip]bool{}
	for _, proj := range g.Projections {
		if proj.SourcePopulation != populationID {
			continue
		}
		for _, item := range result.ForPopulation(proj.TargetPopulation) {
			for _, ln := range item.Logical {
				if !ln.IsExternal() {
					seen[ln.Chip] = true
				}
			}
		}
	}
	return len(seen)
}

// nearestChips returns candidate chips ordered by proximity to the mean
// coordinate of population id's projection targets, following §4.4 step
// 2: de-duplicate target chips, take their arithmetic mean, then sort the
// candidate chips by squared Euclidean distance to that centroid (ties
// broken by the candidates' original, deterministic order). A population
// with no resolvable targets falls back to the given default ordering.
func nearestChips(g *biograph.Graph, populationID int, targetChipOf func(populationID int) (coordinate.Chip, bool), defaultOrder []coordinate.Chip) []coordinate.Chip {
	seen := map[coordinate.Chip]bool{}
	var sumX, sumY, n float64
	for _, proj := range g.Projections {
		if proj.SourcePopulation != populationID {
			continue
		}
		c, ok := targetChipOf(proj.TargetPopulation)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		sumX += float64(c.X)
		sumY += float64(c.Y)
		n++
	}
	if n == 0 {
		return defaultOrder
	}
	meanX, meanY := sumX/n, sumY/n

	out := make([]coordinate.Chip, len(defaultOrder))
	copy(out, defaultOrder)
	sort.SliceStable(out, func(i, j int) bool {
		return sqDist(out[i], meanX, meanY) < sqDist(out[j], meanX, meanY)
	})
	return out
}

func sqDist(c coordinate.Chip, meanX, meanY float64) float64 {
	dx := float64(c.X) - meanX
	dy := float64(c.Y) - meanY
	return dx*dx + dy*dy
}

// insertInput implements §4.4's insertInput: it walks DNC mergers 7..0
// (reverse, for backward compatibility) on chip, skipping mergers already
// in output mode or whose neuron block still carries placed neurons, and
// greedily admits neurons from the back of the slice while their
// estimated rate fits the smaller of the chip and FPGA bandwidth budgets.
// It returns how many neurons of neurons remain unplaced.
func (p *Placer) insertInput(chip coordinate.Chip, result *placement.Result, pop *biograph.Population, neurons []*placement.Item) int {
	routing, ok := p.routings[chip]
	if !ok {
		return len(neurons)
	}
	occupied := occupiedBlocks(result, chip)

	remaining := neurons
	for idx := coordinate.NumDNCMergers - 1; idx >= 0 && len(remaining) > 0; idx-- {
		m := coordinate.DNCMerger{Index: idx}
		if routing.Mode(m) == merger.Output {
			continue
		}
		if occupied[idx] {
			continue
		}

		pool := routing.Pool(m, p.opts.AddressStrategy, int64(idx))
		admitted := p.admit(chip, pop, remaining, pool, m)
		remaining = remaining[:len(remaining)-admitted]
	}
	return len(remaining)
}

// admit greedily draws addresses (and, if bandwidth-aware placement is
// enabled, checks rate budgets) for neurons from the back of the slice,
// stopping at the first neuron that doesn't fit. It returns how many were
// admitted.
func (p *Placer) admit(chip coordinate.Chip, pop *biograph.Population, neurons []*placement.Item, pool *merger.AddressPool, m coordinate.DNCMerger) int {
	admitted := 0
	for i := len(neurons) - 1; i >= 0; i-- {
		item := neurons[i]
		if item.Address != nil {
			continue
		}
		if pool.Available() == 0 {
			break
		}

		if p.opts.ConsiderFiringRate && p.opts.Estimate != nil {
			_, idx := item.Neuron.Population, item.Neuron.Index
			rate := p.opts.Estimate(pop.Parameters[idx])
			chipBudget, fpgaBudget := p.ledger.available(chip, p.opts.BandwidthUtilization)
			if rate > chipBudget || rate > fpgaBudget {
				break
			}
			p.ledger.commit(chip, rate)
		}

		addr, err := pool.Draw(m)
		if err != nil {
			break
		}
		item.SetAddress(coordinate.L1AddressOnWafer{
			Merger:  coordinate.DNCMergerOnWafer{Chip: chip, Merger: m},
			Address: addr,
		})
		admitted++
	}
	return admitted
}
