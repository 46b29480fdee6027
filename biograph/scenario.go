package biograph

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// scenarioYAML is the on-disk shape of a bio graph manifest: one entry
// per population plus the projections wiring them together. Per-cell
// parameters default to zero when omitted, matching a population whose
// cells are not analog-calibrated (e.g. spike sources).
type scenarioYAML struct {
	Populations []struct {
		ID         int              `yaml:"id"`
		Size       int              `yaml:"size"`
		CellType   string           `yaml:"cell_type"`
		Parameters []CellParameters `yaml:"parameters"`
	} `yaml:"populations"`
	Projections []struct {
		Source  int         `yaml:"source"`
		Target  int         `yaml:"target"`
		Type    string      `yaml:"type"`
		Weights [][]float64 `yaml:"weights"`
	} `yaml:"projections"`
}

func parseCellType(s string) (CellType, error) {
	switch s {
	case "IF_cond_exp", "":
		return IFCondExp, nil
	case "EIF_cond_exp_isfa_ista":
		return EIFCondExpIsfaIsta, nil
	case "SpikeSourceArray":
		return SpikeSourceArray, nil
	case "SpikeSourcePoisson":
		return SpikeSourcePoisson, nil
	default:
		return 0, fmt.Errorf("biograph: unknown cell_type %q", s)
	}
}

func parseSynapseKind(s string) (SynapseKind, error) {
	switch s {
	case "excitatory", "":
		return ExcitatoryProjection, nil
	case "inhibitory":
		return InhibitoryProjection, nil
	default:
		return 0, fmt.Errorf("biograph: unknown projection type %q", s)
	}
}

// LoadScenario reads a YAML bio graph manifest and builds a Graph from
// it. Populations with no explicit per-cell parameters get a zero-valued
// CellParameters for every neuron, which Validate accepts since only the
// parameter *count* (not content) is checked at ingest.
func LoadScenario(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("biograph: reading %q: %w", path, err)
	}

	var doc scenarioYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("biograph: parsing %q: %w", path, err)
	}

	g := &Graph{}
	for _, p := range doc.Populations {
		cellType, err := parseCellType(p.CellType)
		if err != nil {
			return nil, err
		}
		params := p.Parameters
		if params == nil {
			params = make([]CellParameters, p.Size)
		}
		g.Populations = append(g.Populations, Population{
			ID:         p.ID,
			Size:       p.Size,
			CellType:   cellType,
			Parameters: params,
		})
	}

	for i, p := range doc.Projections {
		kind, err := parseSynapseKind(p.Type)
		if err != nil {
			return nil, err
		}
		src, ok := g.Population(p.Source)
		if !ok {
			return nil, fmt.Errorf("biograph: projection %d references unknown source population %d", i, p.Source)
		}
		dst, ok := g.Population(p.Target)
		if !ok {
			return nil, fmt.Errorf("biograph: projection %d references unknown target population %d", i, p.Target)
		}
		weights := make([]float64, 0, src.Size*dst.Size)
		for _, row := range p.Weights {
			weights = append(weights, row...)
		}
		g.Projections = append(g.Projections, Projection{
			SourcePopulation: p.Source,
			TargetPopulation: p.Target,
			Type:             kind,
			Weights: WeightMatrix{
				Rows:    src.Size,
				Cols:    dst.Size,
				Weights: weights,
			},
		})
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
