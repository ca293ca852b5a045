package montage

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// ErrNotFound reports a landmark name outside the loaded layout table.
// Callers should treat it as a configuration error, not a runtime condition.
var ErrNotFound = errors.New("landmark not found in layout")

// Layout is the immutable table of named landmark positions. Names are
// matched case-insensitively; the table order is preserved.
type Layout struct {
	points []LayoutPoint
	index  map[string]int
}

// NewLayout builds a layout from a list of points, validating name uniqueness.
func NewLayout(points []LayoutPoint) (*Layout, error) {
	l := &Layout{
		points: make([]LayoutPoint, len(points)),
		index:  make(map[string]int, len(points)),
	}
	copy(l.points, points)
	for i, p := range points {
		key := strings.ToUpper(p.Name)
		if key == "" {
			return nil, fmt.Errorf("layout point %d has an empty name", i)
		}
		if prev, dup := l.index[key]; dup {
			return nil, fmt.Errorf("duplicate landmark name %q (entries %d and %d)", p.Name, prev, i)
		}
		l.index[key] = i
	}
	return l, nil
}

// Get resolves a landmark name to its layout point.
func (l *Layout) Get(name string) (LayoutPoint, error) {
	i, ok := l.index[strings.ToUpper(name)]
	if !ok {
		return LayoutPoint{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return l.points[i], nil
}

// All returns the ordered sequence of layout points.
func (l *Layout) All() []LayoutPoint {
	out := make([]LayoutPoint, len(l.points))
	copy(out, l.points)
	return out
}

// Len returns the number of landmarks in the table.
func (l *Layout) Len() int {
	return len(l.points)
}

// layoutFileEntry is the YAML shape of one table row.
type layoutFileEntry struct {
	Name string  `yaml:"name"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Z    float64 `yaml:"z"`
}

// LoadLayoutFile reads a montage table from a YAML file. The file is a list
// of {name, x, y, z} rows in the montage local frame.
func LoadLayoutFile(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout file: %w", err)
	}
	var entries []layoutFileEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing layout YAML: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("layout file %s contains no landmarks", path)
	}
	points := make([]LayoutPoint, len(entries))
	for i, e := range entries {
		points[i] = LayoutPoint{Name: e.Name, Local: r3.Vec{X: e.X, Y: e.Y, Z: e.Z}}
	}
	return NewLayout(points)
}

// DefaultLayout returns the shipped 10-05 montage table.
func DefaultLayout() *Layout {
	l, err := NewLayout(defaultTable)
	if err != nil {
		// The shipped table is validated by tests; a failure here is a
		// programming error.
		panic(err)
	}
	return l
}

// defaultTable is the extended 10-05 electrode montage on a unit-sphere head
// model (X anterior, Y left, Z superior).
var defaultTable = []LayoutPoint{
	{Name: "Nz", Local: r3.Vec{X: 1.0000, Y: 0.0000, Z: 0.0000}},
	{Name: "NFpz", Local: r3.Vec{X: 0.9877, Y: 0.0000, Z: 0.1564}},
	{Name: "Fpz", Local: r3.Vec{X: 0.9511, Y: 0.0000, Z: 0.3090}},
	{Name: "AFpz", Local: r3.Vec{X: 0.8910, Y: 0.0000, Z: 0.4540}},
	{Name: "AFz", Local: r3.Vec{X: 0.8090, Y: 0.0000, Z: 0.5878}},
	{Name: "AFFz", Local: r3.Vec{X: 0.7071, Y: 0.0000, Z: 0.7071}},
	{Name: "Fz", Local: r3.Vec{X: 0.5878, Y: 0.0000, Z: 0.8090}},
	{Name: "FFCz", Local: r3.Vec{X: 0.4540, Y: 0.0000, Z: 0.8910}},
	{Name: "FCz", Local: r3.Vec{X: 0.3090, Y: 0.0000, Z: 0.9511}},
	{Name: "FCCz", Local: r3.Vec{X: 0.1564, Y: 0.0000, Z: 0.9877}},
	{Name: "Cz", Local: r3.Vec{X: 0.0000, Y: 0.0000, Z: 1.0000}},
	{Name: "CCPz", Local: r3.Vec{X: -0.1564, Y: 0.0000, Z: 0.9877}},
	{Name: "CPz", Local: r3.Vec{X: -0.3090, Y: 0.0000, Z: 0.9511}},
	{Name: "CPPz", Local: r3.Vec{X: -0.4540, Y: 0.0000, Z: 0.8910}},
	{Name: "Pz", Local: r3.Vec{X: -0.5878, Y: 0.0000, Z: 0.8090}},
	{Name: "PPOz", Local: r3.Vec{X: -0.7071, Y: 0.0000, Z: 0.7071}},
	{Name: "POz", Local: r3.Vec{X: -0.8090, Y: 0.0000, Z: 0.5878}},
	{Name: "POOz", Local: r3.Vec{X: -0.8910, Y: 0.0000, Z: 0.4540}},
	{Name: "Oz", Local: r3.Vec{X: -0.9511, Y: 0.0000, Z: 0.3090}},
	{Name: "OIz", Local: r3.Vec{X: -0.9877, Y: 0.0000, Z: 0.1564}},
	{Name: "Iz", Local: r3.Vec{X: -1.0000, Y: 0.0000, Z: 0.0000}},
	{Name: "Fp1", Local: r3.Vec{X: 0.9045, Y: 0.2939, Z: 0.3090}},
	{Name: "Fp2", Local: r3.Vec{X: 0.9045, Y: -0.2939, Z: 0.3090}},
	{Name: "AF7", Local: r3.Vec{X: 0.7694, Y: 0.5590, Z: 0.3090}},
	{Name: "AF8", Local: r3.Vec{X: 0.7694, Y: -0.5590, Z: 0.3090}},
	{Name: "F7", Local: r3.Vec{X: 0.5590, Y: 0.7694, Z: 0.3090}},
	{Name: "F8", Local: r3.Vec{X: 0.5590, Y: -0.7694, Z: 0.3090}},
	{Name: "FT7", Local: r3.Vec{X: 0.2939, Y: 0.9045, Z: 0.3090}},
	{Name: "FT8", Local: r3.Vec{X: 0.2939, Y: -0.9045, Z: 0.3090}},
	{Name: "T7", Local: r3.Vec{X: 0.0000, Y: 0.9511, Z: 0.3090}},
	{Name: "T8", Local: r3.Vec{X: 0.0000, Y: -0.9511, Z: 0.3090}},
	{Name: "TP7", Local: r3.Vec{X: -0.2939, Y: 0.9045, Z: 0.3090}},
	{Name: "TP8", Local: r3.Vec{X: -0.2939, Y: -0.9045, Z: 0.3090}},
	{Name: "P7", Local: r3.Vec{X: -0.5590, Y: 0.7694, Z: 0.3090}},
	{Name: "P8", Local: r3.Vec{X: -0.5590, Y: -0.7694, Z: 0.3090}},
	{Name: "PO7", Local: r3.Vec{X: -0.7694, Y: 0.5590, Z: 0.3090}},
	{Name: "PO8", Local: r3.Vec{X: -0.7694, Y: -0.5590, Z: 0.3090}},
	{Name: "O1", Local: r3.Vec{X: -0.9045, Y: 0.2939, Z: 0.3090}},
	{Name: "O2", Local: r3.Vec{X: -0.9045, Y: -0.2939, Z: 0.3090}},
	{Name: "AF3", Local: r3.Vec{X: 0.8474, Y: 0.2753, Z: 0.4540}},
	{Name: "AF4", Local: r3.Vec{X: 0.8474, Y: -0.2753, Z: 0.4540}},
	{Name: "F1", Local: r3.Vec{X: 0.6876, Y: 0.1651, Z: 0.7071}},
	{Name: "F2", Local: r3.Vec{X: 0.6876, Y: -0.1651, Z: 0.7071}},
	{Name: "F3", Local: r3.Vec{X: 0.7208, Y: 0.3673, Z: 0.5878}},
	{Name: "F4", Local: r3.Vec{X: 0.7208, Y: -0.3673, Z: 0.5878}},
	{Name: "F5", Local: r3.Vec{X: 0.6775, Y: 0.5787, Z: 0.4540}},
	{Name: "F6", Local: r3.Vec{X: 0.6775, Y: -0.5787, Z: 0.4540}},
	{Name: "FC1", Local: r3.Vec{X: 0.4969, Y: 0.1615, Z: 0.8526}},
	{Name: "FC2", Local: r3.Vec{X: 0.4969, Y: -0.1615, Z: 0.8526}},
	{Name: "FC3", Local: r3.Vec{X: 0.5721, Y: 0.4156, Z: 0.7071}},
	{Name: "FC4", Local: r3.Vec{X: 0.5721, Y: -0.4156, Z: 0.7071}},
	{Name: "FC5", Local: r3.Vec{X: 0.5012, Y: 0.6898, Z: 0.5225}},
	{Name: "FC6", Local: r3.Vec{X: 0.5012, Y: -0.6898, Z: 0.5225}},
	{Name: "C1", Local: r3.Vec{X: 0.0000, Y: 0.3090, Z: 0.9511}},
	{Name: "C2", Local: r3.Vec{X: 0.0000, Y: -0.3090, Z: 0.9511}},
	{Name: "C3", Local: r3.Vec{X: 0.0000, Y: 0.5878, Z: 0.8090}},
	{Name: "C4", Local: r3.Vec{X: 0.0000, Y: -0.5878, Z: 0.8090}},
	{Name: "C5", Local: r3.Vec{X: 0.0000, Y: 0.8090, Z: 0.5878}},
	{Name: "C6", Local: r3.Vec{X: 0.0000, Y: -0.8090, Z: 0.5878}},
	{Name: "CP1", Local: r3.Vec{X: -0.4969, Y: 0.1615, Z: 0.8526}},
	{Name: "CP2", Local: r3.Vec{X: -0.4969, Y: -0.1615, Z: 0.8526}},
	{Name: "CP3", Local: r3.Vec{X: -0.5721, Y: 0.4156, Z: 0.7071}},
	{Name: "CP4", Local: r3.Vec{X: -0.5721, Y: -0.4156, Z: 0.7071}},
	{Name: "CP5", Local: r3.Vec{X: -0.5012, Y: 0.6898, Z: 0.5225}},
	{Name: "CP6", Local: r3.Vec{X: -0.5012, Y: -0.6898, Z: 0.5225}},
	{Name: "P1", Local: r3.Vec{X: -0.6876, Y: 0.1651, Z: 0.7071}},
	{Name: "P2", Local: r3.Vec{X: -0.6876, Y: -0.1651, Z: 0.7071}},
	{Name: "P3", Local: r3.Vec{X: -0.7208, Y: 0.3673, Z: 0.5878}},
	{Name: "P4", Local: r3.Vec{X: -0.7208, Y: -0.3673, Z: 0.5878}},
	{Name: "P5", Local: r3.Vec{X: -0.6775, Y: 0.5787, Z: 0.4540}},
	{Name: "P6", Local: r3.Vec{X: -0.6775, Y: -0.5787, Z: 0.4540}},
	{Name: "PO3", Local: r3.Vec{X: -0.8474, Y: 0.2753, Z: 0.4540}},
	{Name: "PO4", Local: r3.Vec{X: -0.8474, Y: -0.2753, Z: 0.4540}},
	{Name: "AFF1h", Local: r3.Vec{X: 0.7702, Y: 0.1532, Z: 0.6191}},
	{Name: "AFF2h", Local: r3.Vec{X: 0.7702, Y: -0.1532, Z: 0.6191}},
	{Name: "AFF3h", Local: r3.Vec{X: 0.7877, Y: 0.3263, Z: 0.5225}},
	{Name: "AFF4h", Local: r3.Vec{X: 0.7877, Y: -0.3263, Z: 0.5225}},
	{Name: "AFF5h", Local: r3.Vec{X: 0.7551, Y: 0.5045, Z: 0.4187}},
	{Name: "AFF6h", Local: r3.Vec{X: 0.7551, Y: -0.5045, Z: 0.4187}},
	{Name: "FFC1h", Local: r3.Vec{X: 0.5959, Y: 0.1680, Z: 0.7853}},
	{Name: "FFC2h", Local: r3.Vec{X: 0.5959, Y: -0.1680, Z: 0.7853}},
	{Name: "FFC3h", Local: r3.Vec{X: 0.6484, Y: 0.3973, Z: 0.6494}},
	{Name: "FFC4h", Local: r3.Vec{X: 0.6484, Y: -0.3973, Z: 0.6494}},
	{Name: "FFC5h", Local: r3.Vec{X: 0.5923, Y: 0.6407, Z: 0.4886}},
	{Name: "FFC6h", Local: r3.Vec{X: 0.5923, Y: -0.6407, Z: 0.4886}},
	{Name: "FCC1h", Local: r3.Vec{X: 0.3928, Y: 0.1449, Z: 0.9081}},
	{Name: "FCC2h", Local: r3.Vec{X: 0.3928, Y: -0.1449, Z: 0.9081}},
	{Name: "FCC3h", Local: r3.Vec{X: 0.4938, Y: 0.4218, Z: 0.7604}},
	{Name: "FCC4h", Local: r3.Vec{X: 0.4938, Y: -0.4218, Z: 0.7604}},
	{Name: "FCC5h", Local: r3.Vec{X: 0.4063, Y: 0.7255, Z: 0.5556}},
	{Name: "FCC6h", Local: r3.Vec{X: 0.4063, Y: -0.7255, Z: 0.5556}},
	{Name: "CCP1h", Local: r3.Vec{X: -0.3928, Y: 0.1449, Z: 0.9081}},
	{Name: "CCP2h", Local: r3.Vec{X: -0.3928, Y: -0.1449, Z: 0.9081}},
	{Name: "CCP3h", Local: r3.Vec{X: -0.4938, Y: 0.4218, Z: 0.7604}},
	{Name: "CCP4h", Local: r3.Vec{X: -0.4938, Y: -0.4218, Z: 0.7604}},
	{Name: "CCP5h", Local: r3.Vec{X: -0.4063, Y: 0.7255, Z: 0.5556}},
	{Name: "CCP6h", Local: r3.Vec{X: -0.4063, Y: -0.7255, Z: 0.5556}},
	{Name: "CPP1h", Local: r3.Vec{X: -0.5959, Y: 0.1680, Z: 0.7853}},
	{Name: "CPP2h", Local: r3.Vec{X: -0.5959, Y: -0.1680, Z: 0.7853}},
	{Name: "CPP3h", Local: r3.Vec{X: -0.6484, Y: 0.3973, Z: 0.6494}},
	{Name: "CPP4h", Local: r3.Vec{X: -0.6484, Y: -0.3973, Z: 0.6494}},
	{Name: "CPP5h", Local: r3.Vec{X: -0.5923, Y: 0.6407, Z: 0.4886}},
	{Name: "CPP6h", Local: r3.Vec{X: -0.5923, Y: -0.6407, Z: 0.4886}},
	{Name: "PPO1h", Local: r3.Vec{X: -0.7702, Y: 0.1532, Z: 0.6191}},
	{Name: "PPO2h", Local: r3.Vec{X: -0.7702, Y: -0.1532, Z: 0.6191}},
	{Name: "PPO3h", Local: r3.Vec{X: -0.7877, Y: 0.3263, Z: 0.5225}},
	{Name: "PPO4h", Local: r3.Vec{X: -0.7877, Y: -0.3263, Z: 0.5225}},
	{Name: "PPO5h", Local: r3.Vec{X: -0.7551, Y: 0.5045, Z: 0.4187}},
	{Name: "PPO6h", Local: r3.Vec{X: -0.7551, Y: -0.5045, Z: 0.4187}},
	{Name: "POO3h", Local: r3.Vec{X: -0.8984, Y: 0.2157, Z: 0.3827}},
	{Name: "POO4h", Local: r3.Vec{X: -0.8984, Y: -0.2157, Z: 0.3827}},
	{Name: "FFT7h", Local: r3.Vec{X: 0.4318, Y: 0.8474, Z: 0.3090}},
	{Name: "FFT8h", Local: r3.Vec{X: 0.4318, Y: -0.8474, Z: 0.3090}},
	{Name: "FTT7h", Local: r3.Vec{X: 0.1488, Y: 0.9393, Z: 0.3090}},
	{Name: "FTT8h", Local: r3.Vec{X: 0.1488, Y: -0.9393, Z: 0.3090}},
	{Name: "TTP7h", Local: r3.Vec{X: -0.1488, Y: 0.9393, Z: 0.3090}},
	{Name: "TTP8h", Local: r3.Vec{X: -0.1488, Y: -0.9393, Z: 0.3090}},
	{Name: "TPP7h", Local: r3.Vec{X: -0.4318, Y: 0.8474, Z: 0.3090}},
	{Name: "TPP8h", Local: r3.Vec{X: -0.4318, Y: -0.8474, Z: 0.3090}},
	{Name: "AFp1", Local: r3.Vec{X: 0.8800, Y: 0.1394, Z: 0.4540}},
	{Name: "AFp2", Local: r3.Vec{X: 0.8800, Y: -0.1394, Z: 0.4540}},
	{Name: "F9", Local: r3.Vec{X: 0.5878, Y: 0.8090, Z: 0.0000}},
	{Name: "F10", Local: r3.Vec{X: 0.5878, Y: -0.8090, Z: 0.0000}},
	{Name: "FT9", Local: r3.Vec{X: 0.3090, Y: 0.9511, Z: 0.0000}},
	{Name: "FT10", Local: r3.Vec{X: 0.3090, Y: -0.9511, Z: 0.0000}},
	{Name: "T9", Local: r3.Vec{X: 0.0000, Y: 1.0000, Z: 0.0000}},
	{Name: "T10", Local: r3.Vec{X: 0.0000, Y: -1.0000, Z: 0.0000}},
	{Name: "TP9", Local: r3.Vec{X: -0.3090, Y: 0.9511, Z: 0.0000}},
	{Name: "TP10", Local: r3.Vec{X: -0.3090, Y: -0.9511, Z: 0.0000}},
	{Name: "P9", Local: r3.Vec{X: -0.5878, Y: 0.8090, Z: 0.0000}},
	{Name: "P10", Local: r3.Vec{X: -0.5878, Y: -0.8090, Z: 0.0000}},
	{Name: "I1", Local: r3.Vec{X: -0.9511, Y: 0.3090, Z: 0.0000}},
	{Name: "I2", Local: r3.Vec{X: -0.9511, Y: -0.3090, Z: 0.0000}},
	{Name: "OI1h", Local: r3.Vec{X: -0.9755, Y: 0.1545, Z: 0.1564}},
	{Name: "OI2h", Local: r3.Vec{X: -0.9755, Y: -0.1545, Z: 0.1564}},
	{Name: "POO9h", Local: r3.Vec{X: -0.8474, Y: 0.4318, Z: 0.3090}},
	{Name: "POO10h", Local: r3.Vec{X: -0.8474, Y: -0.4318, Z: 0.3090}},
}
