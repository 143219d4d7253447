// Package drive owns the single controller instance: the event log,
// the fault engine, the waveform recorder and the modulator
// configuration, all stepped from one fixed-period tick.
package drive

import (
	"errors"
	"fmt"

	"phasedrive.dev/event"
	"phasedrive.dev/fault"
	"phasedrive.dev/recorder"
	"phasedrive.dev/svm"
)

// Config assembles the controller's external collaborators.
type Config struct {
	Clock   event.Clock
	Outputs fault.Outputs
	// Period is the PWM period in duty register counts.
	Period float32
	// Method selects the modulation scheme.
	Method svm.Method
}

// A Controller is the per-device context. One instance is constructed
// at start-up and stepped by the control interrupt; it is never
// duplicated. Its state is owned by the tick goroutine: other
// goroutines act on it only through Exec, which defers to the next
// tick boundary.
type Controller struct {
	Log      *event.Log
	Faults   *fault.Engine
	Recorder *recorder.Recorder

	// SpeedRef is the commanded speed reference. The fault engine
	// zeroes it on every raise.
	SpeedRef float32

	period float32
	method svm.Method
	calls  chan call
}

// A call is a queued command with its reply slot.
type call struct {
	f     func(*Controller)
	reply chan Snapshot
}

// A Snapshot is the controller state a queued command observes right
// after it ran.
type Snapshot struct {
	State     fault.OpState
	Faults    fault.Word
	Events    int
	Triggered bool
}

// New wires up a controller from cfg.
func New(cfg Config) (*Controller, error) {
	if cfg.Clock == nil {
		return nil, errors.New("drive: no clock")
	}
	if cfg.Outputs == nil {
		return nil, errors.New("drive: no outputs")
	}
	if cfg.Period <= 0 {
		return nil, errors.New("drive: period must be positive")
	}
	switch cfg.Method {
	case svm.Symmetric, svm.BusClampOdd, svm.BusClampEven:
	default:
		return nil, fmt.Errorf("drive: unknown modulation method %d", cfg.Method)
	}
	c := &Controller{
		period: cfg.Period,
		method: cfg.Method,
		calls:  make(chan call),
	}
	c.Log = event.NewLog(cfg.Clock)
	c.Recorder = recorder.New(c.Log)
	c.Faults = fault.NewEngine(c.Log, cfg.Outputs, c.Recorder, &c.SpeedRef)
	return c, nil
}

// Exec queues f to run at the start of the next tick, serialized
// with the control loop, and returns the snapshot taken after f ran.
// It blocks until the tick loop services the call.
func (c *Controller) Exec(f func(*Controller)) Snapshot {
	cl := call{f: f, reply: make(chan Snapshot, 1)}
	c.calls <- cl
	return <-cl.reply
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{
		State:     c.Faults.OpState(),
		Faults:    c.Faults.Word(),
		Events:    c.Log.Index(),
		Triggered: c.Recorder.Triggered(),
	}
}

// drain services queued commands. It runs only at the tick boundary,
// so commands never observe or mutate mid-tick state.
func (c *Controller) drain() {
	for {
		select {
		case cl := <-c.calls:
			if cl.f != nil {
				cl.f(c)
			}
			cl.reply <- c.snapshot()
		default:
			return
		}
	}
}

// Tick runs one control period: service queued commands, modulate
// the commanded voltage vector, step the recorder, and step the
// fault reset pulse. The returned assert flag is the level for the
// external fault-reset line this tick. A modulation error is a
// misconfiguration; callers raise it rather than returning it up an
// interrupt handler.
func (c *Controller) Tick(alpha, beta float32) (t svm.Times, assert bool, err error) {
	c.drain()
	t, err = svm.Modulate(alpha, beta, c.period, c.method)
	c.Recorder.Tick()
	assert = c.Faults.TickResetPulse()
	return t, assert, err
}
