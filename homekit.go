package hydropi

import (
	"context"
	"fmt"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/pkg/errors"
)

const defaultHomeKitDirectory = "./homekit"
const homeKitBridgeName = "MyHydroPi"
const homeKitBridgeAuthor = "github.com/SkullKill"

// hkThermometer pairs a temperature sensor spec with its HomeKit
// accessory so rounds can push fresh values into it.
type hkThermometer struct {
	spec *SensorSpec
	acc  *accessory.Thermometer
}

func (hp *HydroPi) setupHomeKit() {
	for i, spec := range hp.Sensors {
		if !spec.Connected || !spec.Kind.IsTemperature() {
			continue
		}
		therm := accessory.NewTemperatureSensor(accessory.Info{
			Name:         spec.Name,
			SerialNumber: fmt.Sprintf("hydropi:%s:%s", spec.Kind, spec.Key),
			Manufacturer: homeKitBridgeAuthor,
		})
		// id 1 belongs to the bridge
		therm.A.Id = uint64(i + 2)
		hp.thermometers = append(hp.thermometers, &hkThermometer{spec: spec, acc: therm})
	}
}

func (hp *HydroPi) updateHomeKit(round SamplingRound) {
	for _, therm := range hp.thermometers {
		value, found := round.Get(therm.spec.Name)
		if found {
			therm.acc.TempSensor.CurrentTemperature.SetValue(value)
		}
	}
}

// StartHomeKit serves the connected temperature sensors as HomeKit
// thermometers behind a bridge accessory.
func (hp *HydroPi) StartHomeKit(ctx context.Context) error {
	hkName := hp.Name
	if len(hkName) < 1 {
		hkName = homeKitBridgeName
	}
	bridge := accessory.NewBridge(accessory.Info{
		Name:         hkName,
		Manufacturer: homeKitBridgeAuthor,
	})

	directory := hp.HkDirectory
	if len(directory) < 1 {
		directory = defaultHomeKitDirectory
	}

	accessories := []*accessory.A{}
	for _, therm := range hp.thermometers {
		accessories = append(accessories, therm.acc.A)
	}

	hkServer, err := hap.NewServer(hap.NewFsStore(directory), bridge.A, accessories...)
	if err != nil {
		return errors.Wrap(err, "failed to create HomeKit server")
	}
	hkServer.Pin = hp.HkPin

	return hkServer.ListenAndServe(ctx)
}
