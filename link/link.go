// Package link implements the inbound command link: CBOR-framed
// commands read from a serial port (or any stream), applied to the
// controller, each answered with a live status frame. Commands are
// marshalled through the controller's command queue, so they run at
// tick boundaries and never race the control loop. The event log
// itself is never drained over the link; readers only get its write
// index and poke at state.
package link

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/fxamacker/cbor/v2"
	"github.com/tarm/serial"

	"phasedrive.dev/drive"
	"phasedrive.dev/event"
	"phasedrive.dev/fault"
)

const baudRate = 115200

// Open opens the command link serial port. With an empty dev it tries
// the usual device names for the platform.
func Open(dev string) (io.ReadWriteCloser, error) {
	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else {
		switch runtime.GOOS {
		case "windows":
			devices = append(devices, "COM3")
		case "linux":
			devices = append(devices, "/dev/ttyUSB0", "/dev/ttyAMA0")
		}
	}
	if len(devices) == 0 {
		return nil, errors.New("link: no device specified")
	}
	var firstErr error
	for _, dev := range devices {
		s, err := serial.OpenPort(&serial.Config{Name: dev, Baud: baudRate})
		if err == nil {
			return s, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// Command ops.
const (
	OpStart    = "start"
	OpStop     = "stop"
	OpReset    = "reset"
	OpForce    = "force"
	OpSetpoint = "setpoint"
	OpTrigger  = "trigger"
)

// A Command is one inbound frame. Kind, Value and Trigger are read
// only by the ops that use them.
type Command struct {
	Op      string  `cbor:"op"`
	Kind    int32   `cbor:"kind,omitempty"`
	Value   float32 `cbor:"value,omitempty"`
	Trigger int     `cbor:"trigger,omitempty"`
}

// A Status frame answers every command with the controller's live
// state.
type Status struct {
	State      int    `cbor:"state"`
	Faults     uint32 `cbor:"faults"`
	EventIndex int    `cbor:"events"`
	Triggered  bool   `cbor:"triggered"`
}

// Serve decodes commands from rw until quit is closed or the stream
// fails. A framing failure raises fault.Link before returning; an
// unknown op is logged and answered, not fatal.
func Serve(rw io.ReadWriter, c *drive.Controller, quit <-chan struct{}) error {
	dec := cbor.NewDecoder(rw)
	enc := cbor.NewEncoder(rw)
	for {
		select {
		case <-quit:
			return nil
		default:
		}
		var cmd Command
		if err := dec.Decode(&cmd); err != nil {
			if err == io.EOF {
				return nil
			}
			c.Exec(func(c *drive.Controller) {
				c.Faults.Raise(fault.Link, 0)
			})
			return fmt.Errorf("link: %w", err)
		}
		snap := c.Exec(func(c *drive.Controller) {
			apply(c, cmd)
		})
		st := Status{
			State:      int(snap.State),
			Faults:     uint32(snap.Faults),
			EventIndex: snap.Events,
			Triggered:  snap.Triggered,
		}
		if err := enc.Encode(st); err != nil {
			return fmt.Errorf("link: %w", err)
		}
	}
}

func apply(c *drive.Controller, cmd Command) {
	switch cmd.Op {
	case OpStart:
		c.Log.Append(event.Start, 0, 0)
	case OpStop:
		c.Log.Append(event.Stop, 0, 0)
	case OpReset:
		// Clear appends the reset entry itself.
		c.Faults.Clear()
	case OpForce:
		c.Log.Append(event.Force, cmd.Kind, cmd.Value)
		c.Faults.Raise(fault.Kind(cmd.Kind), cmd.Value)
	case OpSetpoint:
		c.SpeedRef = cmd.Value
		c.Log.Append(event.Setpoint, 0, cmd.Value)
	case OpTrigger:
		c.Recorder.Trigger(cmd.Trigger)
	default:
		c.Log.Append(event.LinkError, 0, 0)
	}
}
