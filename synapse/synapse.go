// Package synapse allocates synapse drivers and rows on target chips for
// routes arriving over a VLine, and fills individual synapse entries
// according to a projection's connectivity, logging anything that
// overflows chip capacity as loss.
package synapse

import (
	"fmt"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/coordinate"
)

// Loss accumulates synapses and driver requests that could not be
// satisfied by a chip's capacity.
type Loss struct {
	entries []string
}

// Record appends a human-readable loss description.
func (l *Loss) Record(format string, args ...any) {
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

// Count returns the number of recorded losses.
func (l *Loss) Count() int { return len(l.entries) }

// Entries returns every recorded loss, in recording order.
func (l *Loss) Entries() []string { return l.entries }

// DriverAssignment ties one incoming VLine to the driver chain that
// serves it.
type DriverAssignment struct {
	Line    coordinate.VLine
	Drivers []coordinate.SynapseDriver
}

// Allocator tracks per-chip driver occupancy and hands out driver chains
// for incoming VLines, subject to the NumSynapseDriverRows-per-chip
// ceiling and the fixed same-side, Δrow=2 chaining rule.
type Allocator struct {
	chip     coordinate.Chip
	claimed  [2][coordinate.NumSynapseDriverRows]bool // [side][row]
	byLine   map[coordinate.VLine]DriverAssignment
	loss     *Loss
	rowUsage int
}

// NewAllocator builds an Allocator for one chip.
func NewAllocator(chip coordinate.Chip, loss *Loss) *Allocator {
	return &Allocator{chip: chip, byLine: make(map[coordinate.VLine]DriverAssignment), loss: loss}
}

// AllocateDriver reserves a chain of chainLength drivers (chainLength
// >= 1) for an incoming VLine, choosing the first side/row run that fits
// and is reachable from the VLine via a synapse switch. Returns false
// (and records a loss) if no run fits within the 112-driver ceiling.
// §4.6 allocates one driver chain per incoming VLine: a VLine already
// holding an assignment (e.g. a second projection arriving over the
// same source-chip/merger VLine) reuses it instead of claiming a fresh
// chain, regardless of the chain length this call asked for.
func (a *Allocator) AllocateDriver(line coordinate.VLine, chainLength int) (DriverAssignment, bool) {
	if existing, ok := a.AssignmentFor(line); ok {
		return existing, true
	}
	if chainLength < 1 {
		chainLength = 1
	}
	if a.rowUsage+chainLength > coordinate.NumSynapseDriverRows {
		a.loss.Record("chip %s: no room for a %d-driver chain on VLine %s (rowUsage=%d)", a.chip, chainLength, line, a.rowUsage)
		return DriverAssignment{}, false
	}

	for side := 0; side < 2; side++ {
		start, ok := a.findChainStart(side, chainLength)
		if !ok {
			continue
		}
		var drivers []coordinate.SynapseDriver
		for i := 0; i < chainLength; i++ {
			row := start + i*2
			d := coordinate.SynapseDriver{Side: side, Row: row}
			if !coordinate.SynapseSwitchExists(line, d.SynapseSwitchRow()) {
				drivers = nil
				break
			}
			drivers = append(drivers, d)
		}
		if drivers == nil {
			continue
		}
		for _, d := range drivers {
			a.claimed[d.Side][d.Row] = true
		}
		a.rowUsage += chainLength
		assign := DriverAssignment{Line: line, Drivers: drivers}
		a.byLine[line] = assign
		return assign, true
	}

	a.loss.Record("chip %s: VLine %s has no reachable, unclaimed driver chain of length %d", a.chip, line, chainLength)
	return DriverAssignment{}, false
}

// findChainStart looks for chainLength drivers on side, spaced two rows
// apart and all currently free, returning the first (lowest) row.
func (a *Allocator) findChainStart(side, chainLength int) (int, bool) {
	limit := coordinate.NumSynapseDriverRows - (chainLength-1)*2
	for row := 0; row < limit; row += 2 {
		ok := true
		for i := 0; i < chainLength; i++ {
			if a.claimed[side][row+i*2] {
				ok = false
				break
			}
		}
		if ok {
			return row, true
		}
	}
	return 0, false
}

// AssignmentFor returns the driver chain previously allocated to line, if
// any.
func (a *Allocator) AssignmentFor(line coordinate.VLine) (DriverAssignment, bool) {
	d, ok := a.byLine[line]
	return d, ok
}

// TargetMapping records which SynapseType a logical neuron's denmem
// column expects on its left and right input, so a driver assignment can
// be checked for type compatibility before entries are filled.
type TargetMapping struct {
	byDenmem map[coordinate.Denmem][2]coordinate.SynapseType // [left, right]
}

// NewTargetMapping builds an empty mapping.
func NewTargetMapping() *TargetMapping {
	return &TargetMapping{byDenmem: make(map[coordinate.Denmem][2]coordinate.SynapseType)}
}

// Set records the expected left/right synapse type of a denmem column.
// Both sides of a logical neuron's leftmost and rightmost denmem must
// agree with every projection that targets it.
func (m *TargetMapping) Set(d coordinate.Denmem, left, right coordinate.SynapseType) {
	m.byDenmem[d] = [2]coordinate.SynapseType{left, right}
}

// AssignSide records t as the synapse type a denmem column's named side
// now carries, leaving the opposite side at whatever it already held
// (or defaulting it to the other type, the first time either side of d
// is seen, since a column exposes one input of each type).
func (m *TargetMapping) AssignSide(d coordinate.Denmem, side int, t coordinate.SynapseType) {
	sides, ok := m.byDenmem[d]
	if !ok {
		other := coordinate.Excitatory
		if t == coordinate.Excitatory {
			other = coordinate.Inhibitory
		}
		sides = [2]coordinate.SynapseType{other, other}
	}
	sides[side] = t
	m.byDenmem[d] = sides
}

// Compatible reports whether a synapse of the given type may land on the
// named side (0 = left, 1 = right) of a denmem column.
func (m *TargetMapping) Compatible(d coordinate.Denmem, side int, t coordinate.SynapseType) bool {
	sides, ok := m.byDenmem[d]
	if !ok {
		return true
	}
	return sides[side] == t
}

// Filler writes individual synapse entries for a projection's
// connectivity onto an allocated row, logging entries that don't fit the
// 256-column row or that fail type compatibility as loss.
type Filler struct {
	loss *Loss
}

// NewFiller builds a Filler.
func NewFiller(loss *Loss) *Filler {
	return &Filler{loss: loss}
}

// FillRow writes the weight from each source neuron in sources onto row,
// at the denmem column of the corresponding entry in targetColumns
// (parallel slices), skipping (and logging as loss) any column outside
// the row's width or any denmem whose recorded type doesn't match kind.
func (f *Filler) FillRow(chip coordinate.Chip, row coordinate.SynapseRowOnChip, side int, kind coordinate.SynapseType, mapping *TargetMapping, targetColumns []int, weights []float64) map[coordinate.SynapseOnChip]float64 {
	entries := make(map[coordinate.SynapseOnChip]float64, len(targetColumns))
	for i, col := range targetColumns {
		if col < 0 || col >= coordinate.SynapseRowWidth {
			f.loss.Record("chip %s: row %s: column %d out of range", chip, row.Row, col)
			continue
		}
		denmem := coordinate.Denmem{Block: 0, X: col, Half: row.Row.Half}
		if !mapping.Compatible(denmem, side, kind) {
			f.loss.Record("chip %s: row %s: column %d rejects %s synapse type", chip, row.Row, col, kind)
			continue
		}
		mapping.AssignSide(denmem, side, kind)
		entries[coordinate.SynapseOnChip{Row: row.Row, Column: col}] = weights[i]
	}
	return entries
}

// ChainLengthFor derives the driver chain length a projection's fan-in
// needs: §4.6 allocates one synapse-driver row per source neuron, and
// each physical SynapseDriver serves two rows (its Top and Bottom
// half), so sourceSize sources need ceil(sourceSize/2) drivers.
func ChainLengthFor(sourceSize int) int {
	rows := (sourceSize + 1) / 2
	if rows < 1 {
		rows = 1
	}
	return rows
}

// projectionKind reports the SynapseType a projection's weight entries
// carry.
func projectionKind(p biograph.Projection) coordinate.SynapseType {
	if p.Type == biograph.InhibitoryProjection {
		return coordinate.Inhibitory
	}
	return coordinate.Excitatory
}

// PlaceProjection allocates a driver chain for a projection arriving
// over line and fills its rows from the projection's weight matrix:
// source neuron r's connections land on the Top half of driver r/2 for
// even r and the Bottom half for odd r, one column per target denmem in
// targetColumns. A source row beyond the chain's 2*len(assign.Drivers)
// capacity is logged as loss rather than silently dropped.
func PlaceProjection(alloc *Allocator, filler *Filler, chip coordinate.Chip, line coordinate.VLine, side int, mapping *TargetMapping, proj biograph.Projection, targetColumns []int) (map[coordinate.SynapseOnChip]float64, bool) {
	chainLength := ChainLengthFor(proj.Weights.Rows)
	assign, ok := alloc.AllocateDriver(line, chainLength)
	if !ok {
		return nil, false
	}

	kind := projectionKind(proj)
	entries := make(map[coordinate.SynapseOnChip]float64)
	capacity := len(assign.Drivers) * 2
	for r := 0; r < proj.Weights.Rows; r++ {
		if r >= capacity {
			filler.loss.Record("chip %s: VLine %s: source row %d exceeds the %d-row driver chain", chip, line, r, capacity)
			continue
		}
		half := coordinate.Top
		if r%2 == 1 {
			half = coordinate.Bottom
		}
		driver := assign.Drivers[r/2]
		row := coordinate.SynapseRowOnChip{Chip: chip, Row: coordinate.SynapseRow{Driver: driver, Half: half}}
		weights := make([]float64, proj.Weights.Cols)
		for c := 0; c < proj.Weights.Cols; c++ {
			weights[c] = proj.Weights.At(r, c)
		}
		for k, v := range filler.FillRow(chip, row, side, kind, mapping, targetColumns, weights) {
			entries[k] = v
		}
	}
	return entries, true
}
