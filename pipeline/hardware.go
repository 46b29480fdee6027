package pipeline

import (
	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/hardware"
	"github.com/sarchlab/marocco/merger"
	"github.com/sarchlab/marocco/paramtrafo"
	"github.com/sarchlab/marocco/placement"
	"github.com/sarchlab/marocco/results"
)

// writeHardware replays a completed run's outcome into a hardware.Wafer
// descriptor: per-chip digital and analog neuron setup, DNC merger
// output mode, quantised synapse rows, and materialised spike trains.
// This is the §6 EXTERNAL INTERFACES boundary: the Wafer itself, and
// what the Hardware or ESS backend actually does with it once written,
// are owned by the caller — Run only populates it when one is supplied.
func writeHardware(
	wafer *hardware.Wafer,
	chips []coordinate.Chip,
	result *placement.Result,
	chipRoutings map[coordinate.Chip]*merger.ChipRouting,
	chipResults []paramtrafo.ChipResult,
	synapses []results.SynapseRecord,
	spikes []results.SpikeTrainRecord,
) {
	sharedByChip := make(map[coordinate.Chip]paramtrafo.SharedParameters, len(chipResults))
	analogByChip := make(map[coordinate.Chip]map[biograph.BioNeuron]paramtrafo.HardwareNeuronParameters, len(chipResults))
	for _, cr := range chipResults {
		sharedByChip[cr.Chip] = cr.Shared
		m := make(map[biograph.BioNeuron]paramtrafo.HardwareNeuronParameters, len(cr.Neurons))
		for _, np := range cr.Neurons {
			m[np.Neuron] = np.Hardware
		}
		analogByChip[cr.Chip] = m
	}

	for _, chip := range chips {
		ch := wafer.Chip(chip)
		analog := analogByChip[chip]

		for i := range result.Items {
			item := &result.Items[i]
			for _, ln := range item.Logical {
				if ln.IsExternal() || ln.Chip != chip || item.Address == nil {
					continue
				}
				hw := analog[item.Neuron]
				ch.SetNeuron(coordinate.Denmem{Block: ln.Block, X: ln.XMin, Half: coordinate.Bottom}, hardware.NeuronConfig{
					Address:       *item.Address,
					FiringEnabled: true,
					SPL1Enabled:   true,
					VThresh:       hw.VThresh,
					VRest:         hw.VRest,
					TauM:          hw.TauM,
				})
				if ln.XMax > ln.XMin {
					ch.ConnectDenmems(ln.Block, ln.XMin, ln.XMax)
				}
			}
		}

		shared := sharedByChip[chip]
		for block := 0; block < paramtrafo.NumFloatingGateBlocks; block++ {
			ch.SetFloatingGate(block, hardware.FloatingGateConfig{VReset: shared.VReset[block]})
		}

		if cr, ok := chipRoutings[chip]; ok {
			for b := coordinate.NeuronBlock(0); b < coordinate.NumNeuronBlocks; b++ {
				if m, active := cr.TargetMerger(b); active {
					ch.SetMergerOutput(m, true)
				}
			}
		}
	}

	byChipRow := make(map[coordinate.Chip]map[coordinate.SynapseRow]map[int]uint8)
	for _, s := range synapses {
		rows, ok := byChipRow[s.Chip]
		if !ok {
			rows = make(map[coordinate.SynapseRow]map[int]uint8)
			byChipRow[s.Chip] = rows
		}
		row := coordinate.SynapseRow{Driver: s.Driver, Half: s.Half}
		cols, ok := rows[row]
		if !ok {
			cols = make(map[int]uint8)
			rows[row] = cols
		}
		cols[s.Column] = s.Digital
	}
	for chip, rows := range byChipRow {
		ch := wafer.Chip(chip)
		for row, cols := range rows {
			ch.SetSynapseRow(row, cols)
		}
	}

	// Every chip exposes eight gbit links; a merger's events
	// leave on the link sharing its index modulo that count.
	const gbitLinksPerChip = 8
	for _, st := range spikes {
		events := make([]hardware.SpikeEvent, len(st.Times))
		for i, t := range st.Times {
			events[i] = hardware.SpikeEvent{Address: st.Address, Time: t}
		}
		link := coordinate.GbitLink{Index: st.Merger.Index % gbitLinksPerChip}
		wafer.Chip(st.Chip).SendSpikes(link, events)
	}
}
