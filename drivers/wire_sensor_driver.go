package drivers

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const wirePollInterval = 200 * time.Millisecond
const wireReadyMarker = "YES"
const wireTemperatureField = "t="

// OneWire reads DS18B20-style probes through their w1 device files.
// The kernel driver exposes two text lines: the first ends with YES
// once a conversion is ready, the second carries the raw value in
// milli-degrees after a t= marker.
type OneWire struct {
	// ReadFile is swappable for tests, defaults to os.ReadFile.
	ReadFile func(string) ([]byte, error)

	PollInterval time.Duration
}

func NewOneWire() *OneWire {
	return &OneWire{
		ReadFile:     os.ReadFile,
		PollInterval: wirePollInterval,
	}
}

func (w1 *OneWire) readLines(path string) (lines []string, err error) {
	contents, err := w1.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "failed reading one-wire device file %s", path)
		return
	}

	lines = strings.Split(strings.TrimSpace(string(contents)), "\n")
	return
}

func ready(lines []string) bool {
	return len(lines) > 0 && strings.HasSuffix(strings.TrimSpace(lines[0]), wireReadyMarker)
}

// ReadCelsius polls the device file until it reports a finished
// conversion, then parses the temperature.
// TODO: bound the poll loop; a probe that never reports ready blocks
// the whole sampling round.
func (w1 *OneWire) ReadCelsius(path string) (celsius float64, err error) {
	lines, err := w1.readLines(path)
	if err != nil {
		return
	}

	for !ready(lines) {
		time.Sleep(w1.PollInterval)
		lines, err = w1.readLines(path)
		if err != nil {
			return
		}
	}

	if len(lines) < 2 {
		err = errors.Errorf("one-wire device file %s is missing the value line", path)
		return
	}

	pos := strings.LastIndex(lines[1], wireTemperatureField)
	if pos < 0 {
		err = errors.Errorf("no %q field in one-wire device file %s", wireTemperatureField, path)
		return
	}

	milli, err := strconv.ParseFloat(strings.TrimSpace(lines[1][pos+len(wireTemperatureField):]), 64)
	if err != nil {
		err = errors.Wrapf(err, "failed converting one-wire value from %s", path)
		return
	}

	celsius = milli / 1000
	return
}
