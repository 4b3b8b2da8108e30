package hydropi

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/SkullKill/MyHydroPi/drivers"
)

func assertFloats(t testing.TB, got, want float64) {
	t.Helper()

	if got != want {
		t.Errorf("got: %f, want: %f", got, want)
	}
}

func assertStrings(t testing.TB, got, want string) {
	t.Helper()

	if got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func fakeOneWire(contents string) *drivers.OneWire {
	return &drivers.OneWire{
		PollInterval: time.Millisecond,
		ReadFile: func(string) ([]byte, error) {
			return []byte(contents), nil
		},
	}
}

const readyWireFile = "59 01 4b 46 7f ff 0c 10 a4 : crc=a4 YES\n59 01 4b 46 7f ff 0c 10 a4 t=21345"

func TestCollectorRejectsDuplicateReferences(t *testing.T) {
	registry := Registry{
		{Key: "temp_1", Kind: OneWireTemperature, Name: "water_temp", Connected: true, IsReference: true},
		{Key: "temp_2", Kind: AtlasTemperature, Name: "air_temp", Connected: true, IsReference: true},
	}

	_, err := NewCollector(registry, nil, nil)
	if !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("got %v, want ErrConfigInvalid for two connected references", err)
	}
}

func TestCollectorAllowsDisconnectedSecondReference(t *testing.T) {
	registry := Registry{
		{Key: "temp_1", Kind: OneWireTemperature, Name: "water_temp", Connected: true, IsReference: true},
		{Key: "temp_2", Kind: AtlasTemperature, Name: "air_temp", Connected: false, IsReference: true},
	}

	_, err := NewCollector(registry, nil, nil)
	if err != nil {
		t.Errorf("got error %v, disconnected reference should not count", err)
	}
}

func TestCollectFallbackCompensation(t *testing.T) {
	ph := &drivers.MockDevice{}
	ph.QueueResponse("*OK")
	ph.QueueResponse("6.987")

	registry := Registry{
		{Key: "ph_1", Kind: AtlasGeneric, Name: "ph", Connected: true, Accuracy: 2},
	}
	devices := map[string]*drivers.AtlasDevice{"ph_1": drivers.NewAtlasDevice(ph)}

	collector, err := NewCollector(registry, devices, nil)
	if err != nil {
		t.Fatalf("got error from NewCollector: %v", err)
	}

	round := collector.Collect()

	commands := ph.Commands()
	if len(commands) != 2 {
		t.Fatalf("got %d commands, want compensation followed by read", len(commands))
	}
	assertStrings(t, commands[0], "T,25")
	assertStrings(t, commands[1], "R")

	value, found := round.Get("ph")
	if !found {
		t.Fatal("ph reading missing from round")
	}
	assertFloats(t, value, 6.99)
}

func TestCollectReferencePropagation(t *testing.T) {
	ec := &drivers.MockDevice{}
	ec.QueueResponse("*OK")
	ec.QueueResponse("1000")

	registry := Registry{
		{Key: "temp_1", Kind: OneWireTemperature, Name: "water_temp", Connected: true, IsReference: true, Accuracy: 2, Identity: "w1_slave"},
		{Key: "ec_1", Kind: AtlasConductivity, Name: "ppm", Connected: true, Accuracy: 0, PpmMultiplier: 0.67},
	}
	devices := map[string]*drivers.AtlasDevice{"ec_1": drivers.NewAtlasDevice(ec)}

	collector, err := NewCollector(registry, devices, fakeOneWire(readyWireFile))
	if err != nil {
		t.Fatalf("got error from NewCollector: %v", err)
	}

	round := collector.Collect()

	temp, found := round.Get("water_temp")
	if !found {
		t.Fatal("reference temperature missing from round")
	}
	assertFloats(t, temp, 21.35)

	// compensation must carry this round's rounded reference reading
	assertStrings(t, ec.Commands()[0], "T,21.35")

	ppm, found := round.Get("ppm")
	if !found {
		t.Fatal("conductivity reading missing from round")
	}
	assertFloats(t, ppm, 670)
}

func TestCollectAtlasTemperatureReference(t *testing.T) {
	temp := &drivers.MockDevice{}
	temp.QueueResponse("19.782")
	ph := &drivers.MockDevice{}
	ph.QueueResponse("*OK")
	ph.QueueResponse("7.01")

	registry := Registry{
		{Key: "ph_1", Kind: AtlasGeneric, Name: "ph", Connected: true, Accuracy: 2},
		{Key: "temp_1", Kind: AtlasTemperature, Name: "res_temp", Connected: true, IsReference: true, Accuracy: 2},
	}
	devices := map[string]*drivers.AtlasDevice{
		"temp_1": drivers.NewAtlasDevice(temp),
		"ph_1":   drivers.NewAtlasDevice(ph),
	}

	collector, err := NewCollector(registry, devices, nil)
	if err != nil {
		t.Fatalf("got error from NewCollector: %v", err)
	}

	round := collector.Collect()

	// registry lists the dependent sensor first, the reference must
	// still be resolved before compensation
	assertStrings(t, ph.Commands()[0], "T,19.78")

	value, found := round.Get("res_temp")
	if !found {
		t.Fatal("temperature reading missing from round")
	}
	assertFloats(t, value, 19.78)

	value, found = round.Get("ph")
	if !found {
		t.Fatal("ph reading missing from round")
	}
	assertFloats(t, value, 7.01)
}

func TestCollectFailedSensorDoesNotBlockOthers(t *testing.T) {
	silent := &drivers.MockDevice{}
	ph := &drivers.MockDevice{}
	ph.QueueResponse("*OK")
	ph.QueueResponse("7.00")

	registry := Registry{
		{Key: "orp_1", Kind: AtlasGeneric, Name: "orp", Connected: true, Accuracy: 0},
		{Key: "ph_1", Kind: AtlasGeneric, Name: "ph", Connected: true, Accuracy: 2},
	}
	devices := map[string]*drivers.AtlasDevice{
		"orp_1": drivers.NewAtlasDevice(silent),
		"ph_1":  drivers.NewAtlasDevice(ph),
	}

	collector, err := NewCollector(registry, devices, nil)
	if err != nil {
		t.Fatalf("got error from NewCollector: %v", err)
	}

	round := collector.Collect()

	if _, found := round.Get("orp"); found {
		t.Error("silent sensor produced a reading")
	}
	value, found := round.Get("ph")
	if !found {
		t.Fatal("working sensor dropped from round alongside the failed one")
	}
	assertFloats(t, value, 7.00)
}

func TestCollectSkipsDisconnectedSensors(t *testing.T) {
	registry := Registry{
		{Key: "ph_1", Kind: AtlasGeneric, Name: "ph", Connected: false, Accuracy: 2},
	}

	collector, err := NewCollector(registry, map[string]*drivers.AtlasDevice{}, nil)
	if err != nil {
		t.Fatalf("got error from NewCollector: %v", err)
	}

	round := collector.Collect()
	if len(round.Readings) != 0 {
		t.Errorf("got %d readings from disconnected registry, want none", len(round.Readings))
	}
}
