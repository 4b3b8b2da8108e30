package hydropi

import (
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/SkullKill/MyHydroPi/drivers"
	"github.com/SkullKill/MyHydroPi/mqtt"
	"github.com/SkullKill/MyHydroPi/store"
)

const defaultMqttTopic = "hydropi/readings"

// HydroPi is the root of the application, unmarshalled straight from
// the JSON config file.
type HydroPi struct {
	Name string

	Sensors Registry

	Database *store.Config
	Influx   *store.InfluxRecorder

	MqttBroker string
	MqttTopic  string

	HkPin       string
	HkDirectory string

	HttpAddr string

	collector    *Collector
	db           *sql.DB
	recorder     *store.Recorder
	mqttClient   *mqtt.MqttClient
	thermometers []*hkThermometer
	devices      map[string]io.ReadWriteCloser
	ticker       *time.Ticker
	logger       *log.Logger

	mu        sync.Mutex
	lastRound SamplingRound
}

// openDevices opens a serial channel per connected Atlas sensor. A
// device that cannot be opened only costs its own readings, the rest
// of the registry keeps working.
func (hp *HydroPi) openDevices() map[string]*drivers.AtlasDevice {
	hp.devices = make(map[string]io.ReadWriteCloser)
	atlasDevices := make(map[string]*drivers.AtlasDevice)

	for _, spec := range hp.Sensors {
		if !spec.Connected || !spec.Kind.IsAtlas() {
			continue
		}
		handle, err := os.OpenFile(spec.Identity, os.O_RDWR, 0)
		if err != nil {
			hp.logger.Warn("failed to open device, sensor will not report", "sensor", spec.Key, "identity", spec.Identity, "err", err)
			continue
		}
		hp.devices[spec.Key] = handle
		atlasDevices[spec.Key] = drivers.NewAtlasDevice(handle)
	}

	return atlasDevices
}

func (hp *HydroPi) activeColumns() (columns []string) {
	for _, spec := range hp.Sensors {
		if spec.Connected {
			columns = append(columns, spec.Name)
		}
	}
	return
}

func (hp *HydroPi) retiredColumns() (columns []string) {
	for _, spec := range hp.Sensors {
		if !spec.Connected {
			columns = append(columns, spec.Name)
		}
	}
	return
}

// Init validates the registry, opens device channels and brings up the
// configured outputs. A configuration error is fatal, an unreachable
// optional output is not.
func (hp *HydroPi) Init() (err error) {
	hp.logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "hydropi",
		Level:  log.GetLevel(),
	})

	err = hp.Sensors.Validate()
	if err != nil {
		return
	}

	hp.collector, err = NewCollector(hp.Sensors, hp.openDevices(), drivers.NewOneWire())
	if err != nil {
		return
	}

	if hp.Database != nil {
		hp.db, err = store.Open(*hp.Database)
		if err != nil {
			err = errors.Wrap(err, "failed to connect to relational store")
			return
		}
		hp.recorder = store.NewRecorder(hp.db, hp.Database.TableName())
		err = hp.recorder.EnsureTable()
		if err != nil {
			return
		}
		hp.recorder.EnsureColumns(hp.activeColumns(), hp.retiredColumns())
	}

	if len(hp.MqttBroker) > 0 {
		hp.mqttClient, err = mqtt.NewMqttClient(hp.MqttBroker, hp.Name)
		if err != nil {
			err = errors.Wrap(err, "failed to create mqtt client")
			return
		}
		err = hp.mqttClient.Connect()
		if err != nil {
			hp.logger.Warn("mqtt broker unreachable, rounds will not be published", "err", err)
			hp.mqttClient = nil
			err = nil
		}
	}

	hp.setupHomeKit()

	return
}

func (hp *HydroPi) mqttTopic() string {
	if len(hp.MqttTopic) > 0 {
		return hp.MqttTopic
	}
	return defaultMqttTopic
}

func storeReadings(round SamplingRound) (readings []store.Reading) {
	for _, reading := range round.Readings {
		readings = append(readings, store.Reading{Column: reading.Column, Value: reading.Value})
	}
	return
}

// RunRound performs one complete sampling round: collect every sensor,
// persist the row, fan the readings out to the optional outputs.
func (hp *HydroPi) RunRound() {
	round := hp.collector.Collect()

	hp.mu.Lock()
	hp.lastRound = round
	hp.mu.Unlock()

	if hp.recorder != nil {
		err := hp.recorder.AppendRound(storeReadings(round))
		if err != nil {
			hp.logger.Error("failed to persist sampling round", "err", err)
		}
	}

	if hp.Influx != nil {
		err := hp.Influx.AppendRound(round.At, storeReadings(round))
		if err != nil {
			hp.logger.Error("failed to mirror round to influx", "err", err)
		}
	}

	if hp.mqttClient != nil {
		payload, err := json.Marshal(round)
		if err == nil {
			err = hp.mqttClient.Publish(hp.mqttTopic(), payload)
		}
		if err != nil {
			hp.logger.Error("failed to publish round", "err", err)
		}
	}

	hp.updateHomeKit(round)
}

// LastRound returns the most recently completed sampling round.
func (hp *HydroPi) LastRound() SamplingRound {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	return hp.lastRound
}

// StartTicker runs sampling rounds at the given interval, one round
// fully completing before the next may begin.
func (hp *HydroPi) StartTicker(interval time.Duration) {
	hp.ticker = time.NewTicker(interval)

	for range hp.ticker.C {
		hp.RunRound()
	}
}

func (hp *HydroPi) Close() (err error) {
	for key, handle := range hp.devices {
		closeErr := handle.Close()
		if closeErr != nil {
			err = errors.Wrapf(closeErr, "failed to close device for sensor %s", key)
		}
	}

	if hp.db != nil {
		closeErr := hp.db.Close()
		if closeErr != nil {
			err = errors.Wrap(closeErr, "failed to close database connection")
		}
	}

	return
}
