// Package calib provides calibration backends translating biological
// neuron and synapse parameters into hardware curves, and a badger-backed
// cache so repeated pipeline runs against the same calibration path skip
// re-parsing.
package calib

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/sarchlab/marocco/biograph"
	"github.com/sarchlab/marocco/coordinate"
)

// CalibrationError is returned when a calibration backend cannot be
// constructed or consulted, e.g. an environment/config conflict or a
// missing curve for a requested cell type.
type CalibrationError struct {
	Reason string
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("calib: %s", e.Reason)
}

// Curve is a first-order affine calibration curve: hardware = Alpha*bio + Shift.
type Curve struct {
	Alpha float64
	Shift float64
}

// Apply maps a biological value to its hardware equivalent.
func (c Curve) Apply(bio float64) float64 {
	return c.Alpha*bio + c.Shift
}

// Backend is the calibration collaborator §4.7 asks for: shared-block
// v_reset averaging and per-cell-type analog parameter curves.
type Backend interface {
	// ApplySharedCalibration adjusts a shared-block v_reset value.
	ApplySharedCalibration(chip coordinate.Chip, block int, vReset float64) (float64, error)
	// AnalogCurve returns the calibration curve for one hardware
	// parameter of a given cell type on chip.
	AnalogCurve(chip coordinate.Chip, cellType biograph.CellType, param string) (Curve, error)
}

// Default is a Backend returning fixed, repeatable curves; useful for
// tests and dry runs that don't have a calibration database.
type Default struct{}

// NewDefault builds the constant-curve backend.
func NewDefault() Default { return Default{} }

func (Default) ApplySharedCalibration(_ coordinate.Chip, _ int, vReset float64) (float64, error) {
	return vReset, nil
}

func (Default) AnalogCurve(_ coordinate.Chip, cellType biograph.CellType, param string) (Curve, error) {
	if !cellType.IsSource() && cellType != biograph.IFCondExp && cellType != biograph.EIFCondExpIsfaIsta {
		return Curve{}, &CalibrationError{Reason: fmt.Sprintf("unsupported cell type %s", cellType)}
	}
	return Curve{Alpha: 1, Shift: 0}, nil
}

// XML is a Backend that loads calibration data from an XML export of the
// original calibration database, located either via an explicit path or
// the MAROCCO_CALIB_PATH environment variable. It never trusts both at
// once: a caller supplying both an explicit path and the environment
// variable is treated as a misconfiguration.
type XML struct {
	path string
	data calibData
}

// calibXML mirrors the flat <curve key="..." alpha="..." shift="..."/>
// export format of the original calibration database.
type calibXML struct {
	XMLName xml.Name `xml:"calibration"`
	Curves  []struct {
		Key   string  `xml:"key,attr"`
		Alpha float64 `xml:"alpha,attr"`
		Shift float64 `xml:"shift,attr"`
	} `xml:"curve"`
}

type calibData struct {
	Curves map[string]Curve
}

func parseCalibXML(r io.Reader, out *calibData) error {
	var doc calibXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return err
	}
	out.Curves = make(map[string]Curve, len(doc.Curves))
	for _, c := range doc.Curves {
		out.Curves[c.Key] = Curve{Alpha: c.Alpha, Shift: c.Shift}
	}
	return nil
}

// NewXML resolves the calibration path (the explicit path, or
// MAROCCO_CALIB_PATH when the path is empty) and loads it. Supplying
// both a non-empty path and a non-empty environment variable is
// rejected, even when the two name the same file.
func NewXML(path string) (*XML, error) {
	envPath := os.Getenv("MAROCCO_CALIB_PATH")
	switch {
	case path != "" && envPath != "":
		return nil, &CalibrationError{Reason: fmt.Sprintf("calib_path %q conflicts with MAROCCO_CALIB_PATH %q", path, envPath)}
	case path == "":
		path = envPath
	}
	if path == "" {
		return nil, &CalibrationError{Reason: "no calibration path given (calib_path or MAROCCO_CALIB_PATH)"}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &CalibrationError{Reason: fmt.Sprintf("opening %q: %v", path, err)}
	}
	defer f.Close()

	var data calibData
	if err := parseCalibXML(f, &data); err != nil {
		return nil, &CalibrationError{Reason: fmt.Sprintf("parsing %q: %v", path, err)}
	}
	return &XML{path: path, data: data}, nil
}

func (x *XML) key(chip coordinate.Chip, cellType biograph.CellType, param string) string {
	return fmt.Sprintf("%s/%s/%s", chip, cellType, param)
}

func (x *XML) ApplySharedCalibration(chip coordinate.Chip, block int, vReset float64) (float64, error) {
	key := fmt.Sprintf("%s/shared/%d/v_reset", chip, block)
	if c, ok := x.data.Curves[key]; ok {
		return c.Apply(vReset), nil
	}
	return vReset, nil
}

func (x *XML) AnalogCurve(chip coordinate.Chip, cellType biograph.CellType, param string) (Curve, error) {
	c, ok := x.data.Curves[x.key(chip, cellType, param)]
	if !ok {
		return Curve{}, &CalibrationError{Reason: fmt.Sprintf("no calibration curve for %s/%s/%s", chip, cellType, param)}
	}
	return c, nil
}

// Cache memoizes a Backend's per-chip analog curves in a badger database
// keyed by wafer/chip/backend, so a run against the same calib_path
// avoids re-deriving curves the backend has already served once.
type Cache struct {
	backend Backend
	db      *badger.DB
	tag     string
}

// NewCache wraps backend with a badger-backed memoization layer rooted
// at dir. tag distinguishes independently-cached backends sharing dir
// (e.g. "default" vs a calib_path's own basename).
func NewCache(backend Backend, dir, tag string) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, &CalibrationError{Reason: fmt.Sprintf("opening calibration cache at %q: %v", dir, err)}
	}
	return &Cache{backend: backend, db: db, tag: tag}, nil
}

// Close releases the underlying badger database.
func (c *Cache) Close() error { return c.db.Close() }

func (c *Cache) cacheKey(chip coordinate.Chip, cellType biograph.CellType, param string) []byte {
	return []byte(fmt.Sprintf("%s/%s/%d/%d/%s/%s", c.tag, chip, chip.X, chip.Y, cellType, param))
}

func (c *Cache) AnalogCurve(chip coordinate.Chip, cellType biograph.CellType, param string) (Curve, error) {
	key := c.cacheKey(chip, cellType, param)

	var cached Curve
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cached)
		})
	})
	if err == nil {
		return cached, nil
	}
	if err != badger.ErrKeyNotFound {
		return Curve{}, &CalibrationError{Reason: fmt.Sprintf("reading calibration cache: %v", err)}
	}

	curve, err := c.backend.AnalogCurve(chip, cellType, param)
	if err != nil {
		return Curve{}, err
	}

	encoded, _ := json.Marshal(curve)
	_ = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encoded)
	})
	return curve, nil
}

func (c *Cache) ApplySharedCalibration(chip coordinate.Chip, block int, vReset float64) (float64, error) {
	return c.backend.ApplySharedCalibration(chip, block, vReset)
}
