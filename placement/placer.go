package placement

import (
	"sort"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/resource"
)

// Options configures the neuron placer, mirroring the
// neuron_placement.* configuration keys.
type Options struct {
	// DefaultNeuronSize is the hardware neuron size in denmems, even and
	// at most 64.
	DefaultNeuronSize int
	// RestrictRightmostNeuronBlocks reserves neuron blocks 6 and 7 for
	// background generators and input, excluding them from placement.
	RestrictRightmostNeuronBlocks bool
}

// ManualTarget names one placement candidate for a manually-assigned
// population: a chip, optionally narrowed to a single neuron block.
type ManualTarget struct {
	Chip     coordinate.Chip
	Block    coordinate.NeuronBlock
	HasBlock bool
}

// ManualPlacement pins a population to a preferred list of chips (or
// chip/block pairs), materialised before any automatic placement.
type ManualPlacement struct {
	PopulationID int
	Targets      []ManualTarget
}

// Placer assigns biological neurons to logical neurons.
type Placer struct {
	resources *resource.Manager
	opts      Options
}

// NewPlacer builds a Placer that only considers chips resources reports
// available.
func NewPlacer(resources *resource.Manager, opts Options) *Placer {
	return &Placer{resources: resources, opts: opts}
}

type blockKey struct {
	Chip  coordinate.Chip
	Block coordinate.NeuronBlock
}

// freeMap tracks, per (chip, block), which of the NumDenmemColumns columns
// remain unclaimed.
type freeMap map[blockKey]*[coordinate.NumDenmemColumns]bool

func (p *Placer) candidateBlocks() []coordinate.NeuronBlock {
	blocks := make([]coordinate.NeuronBlock, 0, coordinate.NumNeuronBlocks)
	for b := coordinate.NeuronBlock(0); b < coordinate.NumNeuronBlocks; b++ {
		if p.opts.RestrictRightmostNeuronBlocks && b >= coordinate.NumNeuronBlocks-2 {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks
}

func (p *Placer) newFreeMap() freeMap {
	fm := make(freeMap)
	for _, chip := range p.resources.Available() {
		for _, b := range p.candidateBlocks() {
			var cols [coordinate.NumDenmemColumns]bool
			for i := range cols {
				cols[i] = true
			}
			fm[blockKey{chip, b}] = &cols
		}
	}
	return fm
}

// findRun returns the first contiguous run of at least width free columns,
// reporting its start.
func findRun(cols *[coordinate.NumDenmemColumns]bool, width int) (start int, ok bool) {
	run := 0
	for i, free := range cols {
		if !free {
			run = 0
			continue
		}
		run++
		if run == width {
			return i - width + 1, true
		}
	}
	return 0, false
}

func claim(cols *[coordinate.NumDenmemColumns]bool, start, width int) {
	for i := start; i < start+width; i++ {
		cols[i] = false
	}
}

func freeCount(cols *[coordinate.NumDenmemColumns]bool) int {
	n := 0
	for _, free := range cols {
		if free {
			n++
		}
	}
	return n
}

// Place runs the placer over the whole bio graph, honoring manual
// placements first and packing the remaining populations automatically by
// decreasing size.
func (p *Placer) Place(g *biograph.Graph, manual []ManualPlacement) (*Result, error) {
	result := newResult()
	fm := p.newFreeMap()

	manualIDs := make(map[int]ManualPlacement, len(manual))
	for _, m := range manual {
		manualIDs[m.PopulationID] = m
	}

	for _, m := range manual {
		pop, ok := g.Population(m.PopulationID)
		if !ok {
			continue
		}
		if err := p.placeManual(result, fm, pop, m); err != nil {
			return nil, err
		}
	}

	var automatic []*biograph.Population
	for i := range g.Populations {
		pop := &g.Populations[i]
		if pop.CellType.IsSource() {
			p.placeSource(result, pop)
			continue
		}
		if _, isManual := manualIDs[pop.ID]; isManual {
			continue
		}
		automatic = append(automatic, pop)
	}

	sort.SliceStable(automatic, func(i, j int) bool {
		return automatic[i].Size > automatic[j].Size
	})

	for _, pop := range automatic {
		if err := p.placeAutomatic(result, fm, pop); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (p *Placer) placeSource(result *Result, pop *biograph.Population) {
	for i := 0; i < pop.Size; i++ {
		result.add(Item{
			Neuron:  biograph.BioNeuron{Population: pop.ID, Index: i},
			Logical: []LogicalNeuron{External(pop.ID, i)},
		})
	}
}

func (p *Placer) width() int {
	w := p.opts.DefaultNeuronSize / 2
	if w < 1 {
		w = 1
	}
	return w
}

func (p *Placer) placeManual(result *Result, fm freeMap, pop *biograph.Population, m ManualPlacement) error {
	width := p.width()
	remaining := pop.Size
	nextIdx := 0

	for _, target := range m.Targets {
		if remaining == 0 {
			break
		}
		blocks := []coordinate.NeuronBlock{target.Block}
		if !target.HasBlock {
			blocks = p.candidateBlocks()
		}
		for _, b := range blocks {
			if remaining == 0 {
				break
			}
			cols, ok := fm[blockKey{target.Chip, b}]
			if !ok {
				continue
			}
			placed := p.fillRun(result, cols, target.Chip, b, pop, width, &nextIdx, remaining)
			remaining -= placed
		}
	}

	if remaining > 0 {
		return &OutOfResourcesError{PopulationID: pop.ID, Reason: "manual placement targets do not fit the whole population"}
	}
	return nil
}

func (p *Placer) placeAutomatic(result *Result, fm freeMap, pop *biograph.Population) error {
	width := p.width()
	remaining := pop.Size
	nextIdx := 0

	for remaining > 0 {
		chip, block, ok := p.bestBlock(fm)
		if !ok {
			return &OutOfResourcesError{PopulationID: pop.ID, Reason: "no chip has room left"}
		}
		cols := fm[blockKey{chip, block}]
		placed := p.fillRun(result, cols, chip, block, pop, width, &nextIdx, remaining)
		if placed == 0 {
			// This block cannot host even one neuron; remove it from
			// consideration so bestBlock doesn't loop on it forever.
			delete(fm, blockKey{chip, block})
			continue
		}
		remaining -= placed
	}
	return nil
}

// bestBlock returns the (chip, block) with the most free denmem columns.
// Go map iteration order is randomised, so ties are broken deterministically
// by row-major chip order and then by block index.
func (p *Placer) bestBlock(fm freeMap) (coordinate.Chip, coordinate.NeuronBlock, bool) {
	var (
		bestKey   blockKey
		bestFree  = -1
		bestFound bool
	)
	for k, cols := range fm {
		free := freeCount(cols)
		if free == 0 {
			continue
		}
		if !bestFound || free > bestFree || (free == bestFree && lessBlockKey(k, bestKey)) {
			bestFree = free
			bestKey = k
			bestFound = true
		}
	}
	return bestKey.Chip, bestKey.Block, bestFound
}

func lessBlockKey(a, b blockKey) bool {
	if a.Chip.Y != b.Chip.Y {
		return a.Chip.Y < b.Chip.Y
	}
	if a.Chip.X != b.Chip.X {
		return a.Chip.X < b.Chip.X
	}
	return a.Block < b.Block
}

// fillRun packs as many of the remaining neurons of pop (starting at
// *nextIdx) as fit into one contiguous run on (chip, block), returning how
// many neurons were placed.
func (p *Placer) fillRun(
	result *Result,
	cols *[coordinate.NumDenmemColumns]bool,
	chip coordinate.Chip,
	block coordinate.NeuronBlock,
	pop *biograph.Population,
	width int,
	nextIdx *int,
	remaining int,
) int {
	maxNeurons := remaining
	if avail := freeCount(cols) / width; avail < maxNeurons {
		maxNeurons = avail
	}
	if maxNeurons == 0 {
		return 0
	}

	start, ok := findRun(cols, maxNeurons*width)
	for !ok && maxNeurons > 0 {
		maxNeurons--
		start, ok = findRun(cols, maxNeurons*width)
	}
	if maxNeurons == 0 {
		return 0
	}

	claim(cols, start, maxNeurons*width)

	for i := 0; i < maxNeurons; i++ {
		idx := *nextIdx
		*nextIdx++
		xMin := start + i*width
		ln := OnChip(chip, block, xMin, xMin+width-1)
		result.add(Item{
			Neuron:  biograph.BioNeuron{Population: pop.ID, Index: idx},
			Logical: []LogicalNeuron{ln},
		})
	}
	return maxNeurons
}
