package hydropi

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/SkullKill/MyHydroPi/drivers"
)

// fallbackReferenceTemperature compensates chemistry circuits when no
// temperature sensor is connected or the reference read failed.
const fallbackReferenceTemperature = 25.0

// Collector produces one complete SamplingRound per invocation.
//
// Rounds run in two phases: first every connected temperature sensor is
// read and the reference temperature resolved, then every dependent
// Atlas circuit is compensated with that value and read. A sensor that
// fails to produce a usable value is left out of the round, it never
// aborts the round for the others.
type Collector struct {
	registry Registry
	devices  map[string]*drivers.AtlasDevice
	wire     *drivers.OneWire
	logger   *log.Logger
}

func NewCollector(registry Registry, devices map[string]*drivers.AtlasDevice, wire *drivers.OneWire) (*Collector, error) {
	err := registry.Validate()
	if err != nil {
		return nil, err
	}

	if wire == nil {
		wire = drivers.NewOneWire()
	}

	return &Collector{
		registry: registry,
		devices:  devices,
		wire:     wire,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "collector",
			Level:  log.GetLevel(),
		}),
	}, nil
}

func (c *Collector) device(spec *SensorSpec) (*drivers.AtlasDevice, error) {
	dev, found := c.devices[spec.Key]
	if !found {
		return nil, errors.Errorf("no device channel open for sensor %s", spec.Key)
	}
	return dev, nil
}

func (c *Collector) readTemperature(spec *SensorSpec) (float64, error) {
	switch spec.Kind {
	case OneWireTemperature:
		return c.wire.ReadCelsius(spec.Identity)
	case AtlasTemperature:
		dev, err := c.device(spec)
		if err != nil {
			return 0, err
		}
		return dev.ReadValue()
	}

	return 0, errors.Errorf("sensor %s kind %s cannot read temperature", spec.Key, spec.Kind)
}

func (c *Collector) readCompensated(spec *SensorSpec, reference float64) (float64, error) {
	dev, err := c.device(spec)
	if err != nil {
		return 0, err
	}

	err = dev.Compensate(reference)
	if err != nil {
		return 0, err
	}

	value, err := dev.ReadValue()
	if err != nil {
		return 0, err
	}

	if spec.Kind == AtlasConductivity {
		value *= spec.PpmMultiplier
	}

	return value, nil
}

// Collect runs one sampling round over the whole registry.
func (c *Collector) Collect() SamplingRound {
	round := SamplingRound{At: time.Now()}
	reference := fallbackReferenceTemperature

	for _, spec := range c.registry {
		if !spec.Connected || !spec.Kind.IsTemperature() {
			continue
		}
		value, err := c.readTemperature(spec)
		if err != nil {
			c.logger.Warn("temperature reading skipped", "sensor", spec.Key, "err", err)
			continue
		}
		rounded := spec.Round(value)
		if spec.IsReference {
			reference = rounded
		}
		round.Readings = append(round.Readings, Reading{Column: spec.Name, Value: rounded})
	}

	for _, spec := range c.registry {
		if !spec.Connected || spec.Kind.IsTemperature() {
			continue
		}
		value, err := c.readCompensated(spec, reference)
		if err != nil {
			c.logger.Warn("reading skipped", "sensor", spec.Key, "err", err)
			continue
		}
		round.Readings = append(round.Readings, Reading{Column: spec.Name, Value: spec.Round(value)})
	}

	return round
}
