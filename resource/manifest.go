package resource

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/marocco/coordinate"
)

// manifestYAML is the on-disk shape of a resource manifest: the set of
// chips physically present on a wafer and the subset excluded as
// defective. Rows/columns outside WaferWidth/WaferHeight are rejected.
type manifestYAML struct {
	Wafer int `yaml:"wafer"`
	Chips []struct {
		X int `yaml:"x"`
		Y int `yaml:"y"`
	} `yaml:"chips"`
	Defective []struct {
		X int `yaml:"x"`
		Y int `yaml:"y"`
	} `yaml:"defective"`
}

// LoadManifest reads a YAML resource manifest naming the chips present on
// a wafer and the subset of those marked defective, and builds a Manager
// from it.
func LoadManifest(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resource: reading %q: %w", path, err)
	}

	var doc manifestYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("resource: parsing %q: %w", path, err)
	}

	wafer := coordinate.Wafer(doc.Wafer)
	present := make([]coordinate.Chip, 0, len(doc.Chips))
	for _, c := range doc.Chips {
		chip := coordinate.Chip{Wafer: wafer, X: c.X, Y: c.Y}
		if !chip.InBounds() {
			return nil, fmt.Errorf("resource: chip (%d,%d) out of bounds", c.X, c.Y)
		}
		present = append(present, chip)
	}
	defective := make([]coordinate.Chip, 0, len(doc.Defective))
	for _, c := range doc.Defective {
		defective = append(defective, coordinate.Chip{Wafer: wafer, X: c.X, Y: c.Y})
	}

	return NewManager(wafer, present, defective), nil
}
