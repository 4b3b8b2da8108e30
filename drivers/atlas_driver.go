package drivers

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const commandTerminator byte = '\r'
const responseTimeout = time.Second
const readCommand = "R"

// AtlasDevice drives one Atlas Scientific style circuit over a byte
// oriented channel. Commands are single text lines terminated with a
// carriage return, responses come back the same way.
type AtlasDevice struct {
	conn io.ReadWriter
}

func NewAtlasDevice(conn io.ReadWriter) *AtlasDevice {
	return &AtlasDevice{conn: conn}
}

// SendCommand writes command plus the terminator to the device.
// A failed write is not retried.
func (ad *AtlasDevice) SendCommand(command string) error {
	_, err := ad.conn.Write(append([]byte(command), commandTerminator))
	if err != nil {
		return errors.Wrapf(err, "failed to write command %q to device", command)
	}

	return nil
}

// ReadLine accumulates single bytes until the terminator arrives and
// returns everything before it. If no terminator shows up within one
// second of the call, or the channel read fails, an empty string is
// returned: callers treat that as "no reading available" and move on.
func (ad *AtlasDevice) ReadLine() string {
	deadline := time.Now().Add(responseTimeout)
	line := make([]byte, 0, 32)
	buf := make([]byte, 1)

	for time.Now().Before(deadline) {
		n, err := ad.conn.Read(buf)
		if err != nil {
			return ""
		}
		if n == 0 {
			continue
		}
		if buf[0] == commandTerminator {
			return string(line)
		}
		line = append(line, buf[0])
	}

	return ""
}

// Compensate sends the temperature compensation command and discards
// the acknowledgement line.
func (ad *AtlasDevice) Compensate(celsius float64) error {
	err := ad.SendCommand("T," + strconv.FormatFloat(celsius, 'f', -1, 64))
	if err != nil {
		return errors.Wrap(err, "failed to send temperature compensation")
	}
	ad.ReadLine()

	return nil
}

// ReadValue requests a single reading and parses it as a decimal.
func (ad *AtlasDevice) ReadValue() (value float64, err error) {
	err = ad.SendCommand(readCommand)
	if err != nil {
		return
	}

	line := ad.ReadLine()
	if len(line) == 0 {
		err = errors.New("no reading available from device")
		return
	}

	value, err = strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		err = errors.Wrapf(err, "failed to parse device response %q", line)
	}
	return
}
