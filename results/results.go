// Package results assembles the append-only container every pipeline
// stage writes into, and persists it to disk in either XML or gob
// binary form, optionally gzip-compressed.
package results

import (
	"bufio"
	"compress/gzip"
	"encoding/gob"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sarchlab/marocco/coordinate"
	"github.com/sarchlab/marocco/paramtrafo"
)

// schemaVersion guards against loading a Results file written by an
// incompatible layout; Load refuses to decode a mismatched version
// instead of silently accepting a stale schema.
const schemaVersion = 1

// PlacementRecord is one (biological neuron, logical neuron) pairing
// from the placement stage, flattened for serialization.
type PlacementRecord struct {
	Population  int
	Index       int
	External    bool
	SourcePop   int
	SourceIndex int
	Chip        coordinate.Chip
	Block       coordinate.NeuronBlock
	XMin        int
	XMax        int
	HasAddress  bool
	Merger      coordinate.DNCMergerOnWafer
	Address     coordinate.L1Address
}

// MergerRecord is one chip's neuron-block-to-DNC-merger fold, flattened
// for serialization.
type MergerRecord struct {
	Chip   coordinate.Chip
	Block  coordinate.NeuronBlock
	Merger coordinate.DNCMerger
	Mode   string
}

// SynapseRecord is one filled synapse entry: Weight is the clipped
// analog weight (µS) the row's chosen Gmax actually reproduces, and
// Digital is the 4-bit value programmed into the synapse's weight SRAM
// cell to reach it.
type SynapseRecord struct {
	Chip    coordinate.Chip
	Driver  coordinate.SynapseDriver
	Half    coordinate.DenmemHalf
	Column  int
	Weight  float64
	Digital uint8
	Gmax    paramtrafo.GmaxConfig
}

// SpikeTrainRecord is one source neuron's materialised hardware-time
// spike train, ready to be replayed onto the L1 address it was placed
// at.
type SpikeTrainRecord struct {
	Population int
	Index      int
	Chip       coordinate.Chip
	Merger     coordinate.DNCMerger
	Address    coordinate.L1Address
	Times      []float64 // hardware time, ms
}

// RouteLossRecord is one L1 routing target that could not be reached.
type RouteLossRecord struct {
	Source coordinate.Chip
	Target coordinate.Chip
	Reason string
}

// Results is the single monotonically-growing container every stage
// appends into; the run's outcome is exactly its final value.
type Results struct {
	XMLName xml.Name `xml:"Results" json:"-"`

	// Version pins the schema this value was written with; Load rejects
	// a mismatch rather than guess at a migration.
	Version int

	// RunID uniquely tags one pipeline invocation, assigned once at
	// construction and excluded from determinism/equality comparisons
	// (see Equal).
	RunID string

	Placement     []PlacementRecord
	MergerRouting []MergerRecord
	Synapses      []SynapseRecord
	SpikeTrains   []SpikeTrainRecord
	RouteLoss     []RouteLossRecord
	SynapseLoss   []string
	ParamTrafo    []paramtrafo.ChipResult
}

// New builds an empty Results container tagged with a fresh run id.
func New() *Results {
	return &Results{Version: schemaVersion, RunID: uuid.New().String()}
}

// Equal reports whether two Results carry the same mapping outcome,
// ignoring RunID (a fresh identifier every run) and slice ordering
// within each record set.
func (r *Results) Equal(other *Results) bool {
	if r == nil || other == nil {
		return r == other
	}
	return sameSet(r.Placement, other.Placement) &&
		sameSet(r.MergerRouting, other.MergerRouting) &&
		sameSet(r.Synapses, other.Synapses) &&
		sameSet(r.SpikeTrains, other.SpikeTrains) &&
		sameSet(r.RouteLoss, other.RouteLoss) &&
		sameSet(r.SynapseLoss, other.SynapseLoss) &&
		sameSet(r.ParamTrafo, other.ParamTrafo)
}

func sameSet[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	fa := make([]string, len(a))
	fb := make([]string, len(b))
	for i := range a {
		fa[i] = fmt.Sprint(a[i])
		fb[i] = fmt.Sprint(b[i])
	}
	sort.Strings(fa)
	sort.Strings(fb)
	for i := range fa {
		if fa[i] != fb[i] {
			return false
		}
	}
	return true
}

// Save persists r to path. The extension selects the wire format: .xml
// for encoding/xml, anything else (conventionally .bin) for gob. A
// trailing .gz additionally gzips the stream.
func Save(r *Results, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("results: creating %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	base := path
	gz := strings.HasSuffix(path, ".gz")
	if gz {
		base = strings.TrimSuffix(path, ".gz")
		zw := gzip.NewWriter(w)
		defer zw.Close()
		if err := encode(zw, base, r); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("results: closing gzip stream for %q: %w", path, err)
		}
		return w.Flush()
	}

	if err := encode(w, base, r); err != nil {
		return err
	}
	return w.Flush()
}

func encode(w io.Writer, base string, r *Results) error {
	if strings.HasSuffix(base, ".xml") {
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("results: encoding xml: %w", err)
		}
		return nil
	}
	if err := gob.NewEncoder(w).Encode(r); err != nil {
		return fmt.Errorf("results: encoding gob: %w", err)
	}
	return nil
}

// Load reads a Results container previously written by Save, rejecting
// a schema version other than the one this build writes.
func Load(path string) (*Results, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("results: opening %q: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	base := path
	if strings.HasSuffix(path, ".gz") {
		base = strings.TrimSuffix(path, ".gz")
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("results: opening gzip stream for %q: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	out := &Results{}
	if strings.HasSuffix(base, ".xml") {
		if err := xml.NewDecoder(r).Decode(out); err != nil {
			return nil, fmt.Errorf("results: decoding xml %q: %w", path, err)
		}
	} else if err := gob.NewDecoder(r).Decode(out); err != nil {
		return nil, fmt.Errorf("results: decoding gob %q: %w", path, err)
	}

	if out.Version != schemaVersion {
		return nil, fmt.Errorf("results: %q has schema version %d, this build reads %d", path, out.Version, schemaVersion)
	}
	return out, nil
}
