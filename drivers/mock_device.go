package drivers

import (
	"io"

	"errors"
)

// MockDevice is a scripted byte channel standing in for one Atlas
// circuit. Every written command consumes the next queued response,
// which is then served back one byte at a time.
type MockDevice struct {
	FailWrites bool
	FailReads  bool

	// Trickle makes reads return a filler byte forever, so a ReadLine
	// call never sees a terminator and has to run into its budget.
	Trickle bool

	responses []string
	commands  []string
	readBuf   []byte
}

func (md *MockDevice) QueueResponse(line string) {
	md.responses = append(md.responses, line+string(commandTerminator))
}

// QueueRawResponse queues bytes without a terminator.
func (md *MockDevice) QueueRawResponse(raw string) {
	md.responses = append(md.responses, raw)
}

// Commands returns every command written so far, terminators stripped.
func (md *MockDevice) Commands() []string {
	return md.commands
}

func (md *MockDevice) Write(p []byte) (int, error) {
	if md.FailWrites {
		return 0, errors.New("mock device write failure")
	}

	command := string(p)
	if len(command) > 0 && command[len(command)-1] == commandTerminator {
		command = command[:len(command)-1]
	}
	md.commands = append(md.commands, command)

	if len(md.responses) > 0 {
		md.readBuf = append(md.readBuf, md.responses[0]...)
		md.responses = md.responses[1:]
	}

	return len(p), nil
}

func (md *MockDevice) Read(p []byte) (int, error) {
	if md.FailReads {
		return 0, errors.New("mock device read failure")
	}

	if md.Trickle {
		p[0] = '0'
		return 1, nil
	}

	if len(md.readBuf) == 0 {
		return 0, io.EOF
	}

	p[0] = md.readBuf[0]
	md.readBuf = md.readBuf[1:]
	return 1, nil
}
