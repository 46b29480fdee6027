// Package coordinate defines typed identifiers for every addressable
// location on a wafer-scale neuromorphic substrate: chips, the neuron
// blocks and denmems inside a chip, the buses and switches of the L1
// event network, and the off-wafer FPGA/gbit links of L2.
package coordinate

import "fmt"

// WaferWidth and WaferHeight bound the rectangular grid of chip slots on
// a wafer. Not every (x, y) inside that rectangle carries a chip; which
// ones do is a property of the resource manifest, not of the topology.
const (
	WaferWidth  = 36
	WaferHeight = 16
)

// NumNeuronBlocks is the number of neuron blocks on a chip.
const NumNeuronBlocks = 8

// NumDenmemColumns is the number of denmem columns in a neuron block.
const NumDenmemColumns = 32

// NumHLines and NumVLines are the horizontal and vertical L1 bus counts
// per chip.
const (
	NumHLines = 64
	NumVLines = 128
)

// NumDNCMergers is the number of DNC mergers (and gbit links) per chip.
const NumDNCMergers = 8

// NumSynapseDriverRows is the number of chainable driver rows on one
// side of a chip's synapse array.
const NumSynapseDriverRows = 112

// SynapseRowWidth is the number of columns (synapse entries) in a
// synapse row.
const SynapseRowWidth = 256

// Wafer identifies a single wafer. Only single-wafer manifests are
// supported by this core (mirroring the original's single-wafer
// assumption in InputPlacement).
type Wafer int

// Chip identifies a chip slot on a wafer by its column and row.
type Chip struct {
	Wafer Wafer
	X, Y  int
}

// InBounds reports whether the coordinate lies within the wafer's
// rectangular grid.
func (c Chip) InBounds() bool {
	return c.X >= 0 && c.X < WaferWidth && c.Y >= 0 && c.Y < WaferHeight
}

func (c Chip) String() string {
	return fmt.Sprintf("Chip(%d,%d,%d)", c.Wafer, c.X, c.Y)
}

// FPGA identifies an FPGA controlling a group of chips.
type FPGA struct {
	Wafer Wafer
	Index int
}

func (f FPGA) String() string {
	return fmt.Sprintf("FPGA(%d,%d)", f.Wafer, f.Index)
}

// chipsPerFPGA fixes how many chips of the reticle grid share a single
// FPGA's L2 bandwidth budget; the real hardware wires this by reticle,
// we approximate it with a fixed-size block of the chip grid.
const chipsPerFPGA = 8

// FPGAOf returns the FPGA that a chip is attached to.
func FPGAOf(c Chip) FPGA {
	linear := c.Y*WaferWidth + c.X
	return FPGA{Wafer: c.Wafer, Index: linear / chipsPerFPGA}
}

// NeuronBlock identifies one of the eight neuron blocks on a chip.
type NeuronBlock int

// Valid reports whether the neuron block index is in range.
func (n NeuronBlock) Valid() bool {
	return n >= 0 && n < NumNeuronBlocks
}

func (n NeuronBlock) String() string {
	return fmt.Sprintf("NeuronBlock(%d)", int(n))
}

// DenmemHalf distinguishes the top and bottom row of denmems in a
// neuron block.
type DenmemHalf int

const (
	Top DenmemHalf = iota
	Bottom
)

func (h DenmemHalf) String() string {
	if h == Top {
		return "top"
	}
	return "bottom"
}

// Denmem identifies a single analog neuron circuit.
type Denmem struct {
	Block NeuronBlock
	X     int
	Half  DenmemHalf
}

// Valid reports whether the denmem coordinate is well-formed.
func (d Denmem) Valid() bool {
	return d.Block.Valid() && d.X >= 0 && d.X < NumDenmemColumns
}

func (d Denmem) String() string {
	return fmt.Sprintf("Denmem(%s,x=%d,%s)", d.Block, d.X, d.Half)
}

// HLine identifies a horizontal L1 bus segment local to a chip.
type HLine struct{ Index int }

// East returns the HLine that the current one continues as on the chip
// to the east. The wiring convention used here (and matched by West,
// North, South below) is that a bus keeps its index across a chip
// boundary; only the axis it lies on changes meaning.
func (h HLine) East() HLine { return h }

// West returns the HLine that the current one continues as on the chip
// to the west.
func (h HLine) West() HLine { return h }

func (h HLine) String() string { return fmt.Sprintf("HLine(%d)", h.Index) }

// VLine identifies a vertical L1 bus segment local to a chip.
type VLine struct{ Index int }

// North returns the VLine that the current one continues as on the chip
// to the north.
func (v VLine) North() VLine { return v }

// South returns the VLine that the current one continues as on the chip
// to the south.
func (v VLine) South() VLine { return v }

func (v VLine) String() string { return fmt.Sprintf("VLine(%d)", v.Index) }

// Merger0, Merger1, Merger2, Merger3 identify nodes of the four-layer
// on-chip merger tree that feeds the eight DNC mergers. Merger0 has
// eight leaves (one per neuron block / background generator), Merger1
// four, Merger2 two, Merger3 is the single root pair feeding DNCMerger 3.
type (
	Merger0 struct{ Index int }
	Merger1 struct{ Index int }
	Merger2 struct{ Index int }
	Merger3 struct{}
)

func (m Merger0) String() string { return fmt.Sprintf("Merger0(%d)", m.Index) }
func (m Merger1) String() string { return fmt.Sprintf("Merger1(%d)", m.Index) }
func (m Merger2) String() string { return fmt.Sprintf("Merger2(%d)", m.Index) }
func (Merger3) String() string   { return "Merger3" }

// DNCMerger identifies one of the eight per-chip mergers feeding L2.
type DNCMerger struct{ Index int }

// Valid reports whether the merger index is in range.
func (d DNCMerger) Valid() bool { return d.Index >= 0 && d.Index < NumDNCMergers }

// SendingRepeater returns the HLine that this DNC merger's sending
// repeater couples onto.
func (d DNCMerger) SendingRepeater() HLine { return HLine{Index: d.Index} }

func (d DNCMerger) String() string { return fmt.Sprintf("DNCMerger(%d)", d.Index) }

// GbitLink identifies one of the eight off-wafer gbit links of a chip.
type GbitLink struct{ Index int }

func (g GbitLink) String() string { return fmt.Sprintf("GbitLink(%d)", g.Index) }

// DNCMergerOnWafer is a DNC merger together with the chip that hosts it,
// the unit that L1AddressOnWafer and placement items reference.
type DNCMergerOnWafer struct {
	Chip   Chip
	Merger DNCMerger
}

func (d DNCMergerOnWafer) String() string {
	return fmt.Sprintf("%s@%s", d.Merger, d.Chip)
}

// L1Address is a 6-bit link address local to a DNC merger's pool. Address 0
// is reserved for locking events and is never assigned to a placed neuron.
type L1Address uint8

// MaxL1Address is the highest valid address; addresses run 0..63.
const MaxL1Address = 63

// Valid reports whether the address is in the representable 6-bit range.
func (a L1Address) Valid() bool { return a <= MaxL1Address }

// Reserved reports whether the address is the reserved locking address.
func (a L1Address) Reserved() bool { return a == 0 }

func (a L1Address) String() string { return fmt.Sprintf("L1Address(%d)", uint8(a)) }

// L1AddressOnWafer fully qualifies a link address by the DNC merger (and
// hence chip) whose pool it was drawn from.
type L1AddressOnWafer struct {
	Merger  DNCMergerOnWafer
	Address L1Address
}

func (a L1AddressOnWafer) String() string {
	return fmt.Sprintf("%s#%s", a.Merger, a.Address)
}

// SynapseDriver identifies a synapse driver on a chip. Side distinguishes
// the two driver columns flanking the neuron array; Row is the
// chainable position within that column.
type SynapseDriver struct {
	Side int // 0 or 1
	Row  int // 0..NumSynapseDriverRows-1
}

// Valid reports whether the driver coordinate is in range.
func (d SynapseDriver) Valid() bool {
	return (d.Side == 0 || d.Side == 1) && d.Row >= 0 && d.Row < NumSynapseDriverRows
}

// SynapseSwitchRow returns the switch row this driver's incoming VLine
// synapse switch is addressed at.
func (d SynapseDriver) SynapseSwitchRow() int { return d.Row * 2 }

// ChainedWith reports whether two drivers can be chained together
// (same side, adjacent by two rows).
func (d SynapseDriver) ChainedWith(other SynapseDriver) bool {
	dy := d.Row - other.Row
	if dy < 0 {
		dy = -dy
	}
	return d.Side == other.Side && dy == 2
}

func (d SynapseDriver) String() string {
	return fmt.Sprintf("SynapseDriver(side=%d,row=%d)", d.Side, d.Row)
}

// SynapseDriverOnChip pairs a driver with the chip that hosts it.
type SynapseDriverOnChip struct {
	Chip   Chip
	Driver SynapseDriver
}

func (d SynapseDriverOnChip) String() string { return fmt.Sprintf("%s@%s", d.Driver, d.Chip) }

// SynapseRow identifies one of the two rows (top/bottom half) served by
// a synapse driver.
type SynapseRow struct {
	Driver SynapseDriver
	Half   DenmemHalf
}

func (r SynapseRow) String() string { return fmt.Sprintf("SynapseRow(%s,%s)", r.Driver, r.Half) }

// SynapseRowOnChip pairs a synapse row with its chip.
type SynapseRowOnChip struct {
	Chip Chip
	Row  SynapseRow
}

func (r SynapseRowOnChip) String() string { return fmt.Sprintf("%s@%s", r.Row, r.Chip) }

// SynapseOnChip identifies a single synapse entry: a row and a column
// (denmem x-coordinate) within that row.
type SynapseOnChip struct {
	Row    SynapseRow
	Column int
}

func (s SynapseOnChip) String() string {
	return fmt.Sprintf("Synapse(%s,col=%d)", s.Row, s.Column)
}

// SynapseType distinguishes excitatory from inhibitory synapse inputs;
// each denmem column exposes one input of each type (left/right).
type SynapseType int

const (
	Excitatory SynapseType = iota
	Inhibitory
)

func (t SynapseType) String() string {
	if t == Excitatory {
		return "excitatory"
	}
	return "inhibitory"
}
