package drivers

import (
	"io"
	"testing"
	"time"
)

type recordingConn struct {
	written []byte
}

func (rc *recordingConn) Write(p []byte) (int, error) {
	rc.written = append(rc.written, p...)
	return len(p), nil
}

func (rc *recordingConn) Read(p []byte) (int, error) {
	return 0, io.EOF
}

func TestSendCommandAppendsTerminator(t *testing.T) {
	rc := &recordingConn{}
	dev := NewAtlasDevice(rc)

	err := dev.SendCommand("R")
	if err != nil {
		t.Fatalf("got error from SendCommand: %v", err)
	}

	got := string(rc.written)
	want := "R\r"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestSendCommandWriteFailure(t *testing.T) {
	dev := NewAtlasDevice(&MockDevice{FailWrites: true})

	err := dev.SendCommand("R")
	if err == nil {
		t.Error("got nil error when device write fails")
	}
}

func TestReadLine(t *testing.T) {
	md := &MockDevice{}
	md.QueueResponse("7.00")
	dev := NewAtlasDevice(md)

	dev.SendCommand("R")
	got := dev.ReadLine()
	want := "7.00"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestReadLineEmptyOnReadFailure(t *testing.T) {
	dev := NewAtlasDevice(&MockDevice{FailReads: true})

	got := dev.ReadLine()
	if got != "" {
		t.Errorf("got %q want empty string", got)
	}
}

func TestReadLineTimeout(t *testing.T) {
	dev := NewAtlasDevice(&MockDevice{Trickle: true})

	start := time.Now()
	got := dev.ReadLine()
	elapsed := time.Since(start)

	if got != "" {
		t.Errorf("got %q want empty string after timeout", got)
	}
	if elapsed < responseTimeout {
		t.Errorf("ReadLine returned after %v, want at least %v", elapsed, responseTimeout)
	}
}

func TestReadValue(t *testing.T) {
	md := &MockDevice{}
	md.QueueResponse("6.987")
	dev := NewAtlasDevice(md)

	got, err := dev.ReadValue()
	if err != nil {
		t.Fatalf("got error from ReadValue: %v", err)
	}
	if got != 6.987 {
		t.Errorf("got %f want 6.987", got)
	}
}

func TestReadValueMalformedResponse(t *testing.T) {
	md := &MockDevice{}
	md.QueueResponse("*ER")
	dev := NewAtlasDevice(md)

	_, err := dev.ReadValue()
	if err == nil {
		t.Error("got nil error from malformed response")
	}
}

func TestReadValueNoResponse(t *testing.T) {
	dev := NewAtlasDevice(&MockDevice{})

	_, err := dev.ReadValue()
	if err == nil {
		t.Error("got nil error when device stays silent")
	}
}

func TestCompensateDiscardsAcknowledgement(t *testing.T) {
	md := &MockDevice{}
	md.QueueResponse("*OK")
	md.QueueResponse("19.5")
	dev := NewAtlasDevice(md)

	err := dev.Compensate(21.35)
	if err != nil {
		t.Fatalf("got error from Compensate: %v", err)
	}

	commands := md.Commands()
	if len(commands) != 1 || commands[0] != "T,21.35" {
		t.Errorf("got commands %v, want single T,21.35", commands)
	}

	got, err := dev.ReadValue()
	if err != nil {
		t.Fatalf("got error reading after compensation: %v", err)
	}
	if got != 19.5 {
		t.Errorf("got %f want 19.5, acknowledgement should not leak into the reading", got)
	}
}
