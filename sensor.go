package hydropi

import (
	"math"
	"regexp"
	"time"

	"github.com/pkg/errors"
)

// SensorKind selects the read path and protocol for a configured sensor.
type SensorKind string

const (
	// OneWireTemperature is a DS18B20-style probe read from a w1 device file.
	OneWireTemperature SensorKind = "wire_temp"
	// AtlasTemperature is an Atlas Scientific temperature circuit on a serial channel.
	AtlasTemperature SensorKind = "atlas_temp"
	// AtlasConductivity is an Atlas Scientific EC circuit, raw µS converted to ppm.
	AtlasConductivity SensorKind = "atlas_ec"
	// AtlasGeneric covers the remaining Atlas circuits (pH, ORP, DO).
	AtlasGeneric SensorKind = "atlas"
)

func (k SensorKind) IsTemperature() bool {
	return k == OneWireTemperature || k == AtlasTemperature
}

func (k SensorKind) IsAtlas() bool {
	return k == AtlasTemperature || k == AtlasConductivity || k == AtlasGeneric
}

// ErrConfigInvalid marks a sensor configuration that must abort startup.
var ErrConfigInvalid = errors.New("invalid sensor configuration")

var columnNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type SensorSpec struct {
	Key  string
	Kind SensorKind

	// Name is used as the column name in the persisted table.
	Name string

	Connected   bool
	IsReference bool

	// Accuracy is the number of decimal places readings are rounded to.
	Accuracy int

	// Identity addresses the device: a file path for one-wire sensors,
	// a serial device path for Atlas sensors.
	Identity string

	// PpmMultiplier converts raw conductivity to parts per million,
	// only meaningful for AtlasConductivity.
	PpmMultiplier float64
}

// Round rounds value half away from zero to the sensor's accuracy.
func (s *SensorSpec) Round(value float64) float64 {
	factor := math.Pow(10, float64(s.Accuracy))
	return math.Round(value*factor) / factor
}

// Registry is the ordered, immutable-after-load sensor catalog.
type Registry []*SensorSpec

// Validate checks the registry before the first sampling round runs.
// At most one connected temperature-capable sensor may be the reference,
// and every sensor name must be usable as a column identifier.
func (r Registry) Validate() error {
	references := 0
	seen := map[string]bool{}
	for _, spec := range r {
		if len(spec.Key) == 0 {
			return errors.Wrap(ErrConfigInvalid, "sensor with empty key")
		}
		if seen[spec.Key] {
			return errors.Wrapf(ErrConfigInvalid, "duplicate sensor key %s", spec.Key)
		}
		seen[spec.Key] = true
		if !columnNamePattern.MatchString(spec.Name) {
			return errors.Wrapf(ErrConfigInvalid, "sensor %s name %q is not a valid column name", spec.Key, spec.Name)
		}
		if spec.Accuracy < 0 {
			return errors.Wrapf(ErrConfigInvalid, "sensor %s has negative accuracy", spec.Key)
		}
		if spec.IsReference && spec.Connected {
			if !spec.Kind.IsTemperature() {
				return errors.Wrapf(ErrConfigInvalid, "sensor %s is marked reference but cannot read temperature", spec.Key)
			}
			references++
		}
	}
	if references > 1 {
		return errors.Wrapf(ErrConfigInvalid, "%d connected sensors marked as temperature reference, want at most one", references)
	}

	return nil
}

func (r Registry) Find(key string) (*SensorSpec, error) {
	for _, spec := range r {
		if spec.Key == key {
			return spec, nil
		}
	}
	return nil, errors.Errorf("sensor %s not found in registry", key)
}

// Reading is one sensor value destined for one column of the round's row.
type Reading struct {
	Column string  `json:"column"`
	Value  float64 `json:"value"`
}

// SamplingRound is the ordered set of readings produced by one collector
// invocation. It is created, persisted and discarded, never mutated.
type SamplingRound struct {
	At       time.Time `json:"at"`
	Readings []Reading `json:"readings"`
}

func (sr SamplingRound) Get(column string) (float64, bool) {
	for _, reading := range sr.Readings {
		if reading.Column == column {
			return reading.Value, true
		}
	}
	return 0, false
}
