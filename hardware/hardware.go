// Package hardware defines the descriptor surface the pipeline's final
// stage writes hardware configuration into — the §6 EXTERNAL INTERFACES
// hardware descriptor — and an in-memory reference implementation used
// by tests and the None/dry-run backend.
package hardware

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sarchlab/marocco/coordinate"
)

// NeuronConfig is one denmem's digital and analog configuration.
type NeuronConfig struct {
	Address       coordinate.L1AddressOnWafer
	FiringEnabled bool
	SPL1Enabled   bool
	VThresh       float64
	VRest         float64
	TauM          float64
}

// FloatingGateConfig is one chip quadrant's shared analog parameters.
type FloatingGateConfig struct {
	VReset float64
}

// SpikeEvent is a single hardware spike: an L1 address and a time in
// seconds.
type SpikeEvent struct {
	Address coordinate.L1Address
	Time    float64
}

// Chip is the hardware descriptor surface of a single chip: everything
// the parameter transformation stage and its backend need to read or
// write.
type Chip interface {
	// SetNeuron writes one denmem's digital/analog configuration.
	SetNeuron(d coordinate.Denmem, cfg NeuronConfig)
	// Neuron reads back a denmem's configuration.
	Neuron(d coordinate.Denmem) (NeuronConfig, bool)

	// SetCrossbarSwitch opens or closes the switch joining an HLine and
	// a VLine.
	SetCrossbarSwitch(h coordinate.HLine, v coordinate.VLine, closed bool)
	// CrossbarSwitch reports whether a crossbar switch is closed.
	CrossbarSwitch(h coordinate.HLine, v coordinate.VLine) bool

	// SetMergerOutput marks a DNC merger as actively feeding L2 output.
	SetMergerOutput(m coordinate.DNCMerger, active bool)
	// MergerOutput reports whether a DNC merger is configured for output.
	MergerOutput(m coordinate.DNCMerger) bool

	// SetSynapseRow writes one synapse row's 4-bit digital weights,
	// keyed by column.
	SetSynapseRow(row coordinate.SynapseRow, weights map[int]uint8)
	// SynapseRow reads back a synapse row's digital weights.
	SynapseRow(row coordinate.SynapseRow) map[int]uint8

	// SetFloatingGate writes one of the chip's four shared-parameter
	// blocks.
	SetFloatingGate(block int, cfg FloatingGateConfig)
	// FloatingGate reads back a floating-gate block's configuration.
	FloatingGate(block int) FloatingGateConfig

	// RecordAnalog appends a sample to an analog readout channel.
	RecordAnalog(aout int, value float64)
	// AnalogRecorder returns the recorded trace of an analog readout
	// channel, in the order samples were recorded.
	AnalogRecorder(aout int) []float64

	// ConnectDenmems wires the denmem columns [xMin, xMax] of a neuron
	// block into a single logical neuron.
	ConnectDenmems(block coordinate.NeuronBlock, xMin, xMax int)

	// SendSpikes queues a batch of hardware spikes for output on a gbit
	// link.
	SendSpikes(link coordinate.GbitLink, spikes []SpikeEvent)
	// SentSpikes returns every spike queued for output on a gbit link,
	// time-sorted.
	SentSpikes(link coordinate.GbitLink) []SpikeEvent
	// ReceivedSpikes returns every spike a gbit link has received,
	// time-sorted.
	ReceivedSpikes(link coordinate.GbitLink) []SpikeEvent
	// Receive appends an incoming spike to a gbit link's received queue;
	// exercised by tests and the ESS/Hardware backends, never by the
	// mapping pipeline itself.
	Receive(link coordinate.GbitLink, spike SpikeEvent)
}

type crossbarKey struct {
	H coordinate.HLine
	V coordinate.VLine
}

// InMemory is a Chip backed by plain Go maps; it never talks to real
// silicon and is the descriptor the None backend and every test use.
type InMemory struct {
	mu sync.Mutex

	neurons     map[coordinate.Denmem]NeuronConfig
	crossbar    map[crossbarKey]bool
	mergerOut   map[coordinate.DNCMerger]bool
	synapseRows map[coordinate.SynapseRow]map[int]uint8
	floatingGF  map[int]FloatingGateConfig
	analog      map[int][]float64
	connected   [][2]int // [xMin,xMax] pairs wired so far; the block is not recorded
	sent        map[coordinate.GbitLink][]SpikeEvent
	received    map[coordinate.GbitLink][]SpikeEvent
}

// NewInMemory builds an empty in-memory chip descriptor.
func NewInMemory() *InMemory {
	return &InMemory{
		neurons:     make(map[coordinate.Denmem]NeuronConfig),
		crossbar:    make(map[crossbarKey]bool),
		mergerOut:   make(map[coordinate.DNCMerger]bool),
		synapseRows: make(map[coordinate.SynapseRow]map[int]uint8),
		floatingGF:  make(map[int]FloatingGateConfig),
		analog:      make(map[int][]float64),
		sent:        make(map[coordinate.GbitLink][]SpikeEvent),
		received:    make(map[coordinate.GbitLink][]SpikeEvent),
	}
}

func (c *InMemory) SetNeuron(d coordinate.Denmem, cfg NeuronConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.neurons[d] = cfg
}

func (c *InMemory) Neuron(d coordinate.Denmem) (NeuronConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.neurons[d]
	return cfg, ok
}

func (c *InMemory) SetCrossbarSwitch(h coordinate.HLine, v coordinate.VLine, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crossbar[crossbarKey{H: h, V: v}] = closed
}

func (c *InMemory) CrossbarSwitch(h coordinate.HLine, v coordinate.VLine) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.crossbar[crossbarKey{H: h, V: v}]
}

func (c *InMemory) SetMergerOutput(m coordinate.DNCMerger, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergerOut[m] = active
}

func (c *InMemory) MergerOutput(m coordinate.DNCMerger) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergerOut[m]
}

func (c *InMemory) SetSynapseRow(row coordinate.SynapseRow, weights map[int]uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[int]uint8, len(weights))
	for k, v := range weights {
		cp[k] = v
	}
	c.synapseRows[row] = cp
}

func (c *InMemory) SynapseRow(row coordinate.SynapseRow) map[int]uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synapseRows[row]
}

func (c *InMemory) SetFloatingGate(block int, cfg FloatingGateConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.floatingGF[block] = cfg
}

func (c *InMemory) FloatingGate(block int) FloatingGateConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.floatingGF[block]
}

func (c *InMemory) RecordAnalog(aout int, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analog[aout] = append(c.analog[aout], value)
}

func (c *InMemory) AnalogRecorder(aout int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analog[aout]
}

func (c *InMemory) ConnectDenmems(block coordinate.NeuronBlock, xMin, xMax int) {
	if xMax < xMin {
		panic(fmt.Sprintf("hardware: invalid denmem range [%d,%d]", xMin, xMax))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = append(c.connected, [2]int{xMin, xMax})
}

func (c *InMemory) SendSpikes(link coordinate.GbitLink, spikes []SpikeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[link] = append(c.sent[link], spikes...)
	sortSpikes(c.sent[link])
}

func (c *InMemory) SentSpikes(link coordinate.GbitLink) []SpikeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[link]
}

func (c *InMemory) ReceivedSpikes(link coordinate.GbitLink) []SpikeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received[link]
}

func (c *InMemory) Receive(link coordinate.GbitLink, spike SpikeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received[link] = append(c.received[link], spike)
	sortSpikes(c.received[link])
}

func sortSpikes(s []SpikeEvent) {
	sort.Slice(s, func(i, j int) bool { return s[i].Time < s[j].Time })
}

// Wafer lazily builds and hands out one InMemory Chip per coordinate.Chip
// that has been touched, so a run doesn't have to preallocate the full
// wafer grid up front.
type Wafer struct {
	mu    sync.Mutex
	chips map[coordinate.Chip]*InMemory
}

// NewWafer builds an empty Wafer.
func NewWafer() *Wafer {
	return &Wafer{chips: make(map[coordinate.Chip]*InMemory)}
}

// Chip returns the descriptor for c, creating it on first use.
func (w *Wafer) Chip(c coordinate.Chip) Chip {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ch, ok := w.chips[c]; ok {
		return ch
	}
	ch := NewInMemory()
	w.chips[c] = ch
	return ch
}
