// Package gate drives the inverter's discrete control lines on a
// Raspberry Pi carrier: the gate enable line the fault engine cuts,
// and the fault reset pulse line it arms. PWM register programming
// belongs to the power stage, not to this driver.
package gate

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/bcm283x"
)

// Lines holds the two discrete outputs. It implements fault.Outputs.
type Lines struct {
	enable gpio.PinOut
	reset  gpio.PinOut
}

// Open initializes the GPIO host and claims the gate lines: outputs
// enabled off, reset pulse deasserted.
func Open() (*Lines, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	l := &Lines{
		enable: bcm283x.GPIO17,
		reset:  bcm283x.GPIO27,
	}
	if err := l.enable.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("gate: enable line: %w", err)
	}
	if err := l.reset.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("gate: reset line: %w", err)
	}
	return l, nil
}

// Enable turns the gate drivers on.
func (l *Lines) Enable() {
	l.enable.Out(gpio.High)
}

// Disable cuts the gate drivers. It is idempotent and must stay
// infallible; a failed write leaves the line in its prior state and
// there is nothing safer to do than try again on the next raise.
func (l *Lines) Disable() {
	l.enable.Out(gpio.Low)
}

// ResetPulse sets the fault reset line level for this tick.
func (l *Lines) ResetPulse(assert bool) {
	lvl := gpio.Low
	if assert {
		lvl = gpio.High
	}
	l.reset.Out(lvl)
}
