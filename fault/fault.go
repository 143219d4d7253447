// Package fault implements the latched fault bitmask and the
// READY/FAULT operational state. Raising a fault cuts the inverter
// outputs before any bookkeeping, so the hardware is safe even if the
// bookkeeping is not.
package fault

import "phasedrive.dev/event"

// Kind identifies a fault condition. The enumeration is closed; each
// kind latches one bit of the Word.
type Kind int32

const (
	State       Kind = iota // invalid state
	Overcurrent             // over current
	Overspeed               // over speed
	Overtemp                // over temperature
	Overvolt                // DC over voltage
	Checksum                // parameter checksum error
	Watchdog                // watchdog timeout
	Ground                  // ground fault
	Encoder                 // encoder fault
	Resolver                // resolver fault
	Undervolt               // DC under voltage
	UVLO                    // gate driver under voltage lockout
	Link                    // command link fault
	VoltBalance             // DC bus voltage balance
	Overrun                 // control interrupt overrun
	Speed                   // speed error
	Stall                   // stall protection
)

// Word is the bitmask of latched faults. Bits are only cleared all at
// once by Engine.Clear.
type Word uint32

// Has reports whether kind is latched.
func (w Word) Has(k Kind) bool {
	return w&(1<<k) != 0
}

// OpState is the top-level operational state the engine drives. A
// RUN-like state may exist outside the engine; Raise only ever enters
// Faulted and Clear only ever returns to Ready.
type OpState int

const (
	Ready OpState = iota
	Faulted
)

// Outputs is the inverter gate drive the engine cuts on a fault.
// Disable must be idempotent and must not fail.
type Outputs interface {
	Disable()
}

// Capture is the waveform recorder the engine can halt so the samples
// leading up to a fault survive.
type Capture interface {
	Stop()
	HoldOnFault() bool
}

// resetPulseTicks is how long the external fault-reset line stays
// asserted, in control-loop ticks.
const resetPulseTicks = 20

// An Engine latches faults, drives the operational state and logs the
// transitions. It is confined to the control-loop goroutine; callers
// on other goroutines marshal Raise and Clear through the
// controller's command queue.
type Engine struct {
	log      *event.Log
	out      Outputs
	capture  Capture
	speedRef *float32

	word  Word
	state OpState

	resetAsserted bool
	resetTicks    int
}

// NewEngine returns a Ready engine. speedRef is the borrowed speed
// reference cell zeroed on every raise; capture may be nil when no
// recorder is attached.
func NewEngine(log *event.Log, out Outputs, capture Capture, speedRef *float32) *Engine {
	return &Engine{
		log:      log,
		out:      out,
		capture:  capture,
		speedRef: speedRef,
	}
}

// Raise latches kind, carrying value into the log entry. The first
// raise of a kind while latched is logged; repeats only keep the bit
// set. The first raise in Ready transitions to Faulted. Raise never
// fails; it is the safety backstop.
func (e *Engine) Raise(kind Kind, value float32) {
	// Outputs first, bookkeeping second.
	e.out.Disable()

	if !e.word.Has(kind) {
		e.log.Append(event.Fault, int32(kind), value)
	}
	e.word |= 1 << kind

	if e.state != Faulted {
		e.state = Faulted
		e.log.Append(event.State, int32(Faulted), 0)
	}

	if e.capture != nil && e.capture.HoldOnFault() {
		e.capture.Stop()
	}

	if e.speedRef != nil {
		*e.speedRef = 0
	}
}

// Clear unlatches every fault. The faults may be raised again
// immediately if their conditions still hold. Clear also asserts the
// external reset pulse line; the control loop deasserts it by calling
// TickResetPulse for resetPulseTicks ticks.
func (e *Engine) Clear() {
	e.word = 0
	e.log.Append(event.Reset, 0, 0)
	if e.state == Faulted {
		e.log.Append(event.State, int32(Ready), 0)
		e.state = Ready
	}
	e.resetAsserted = true
	e.resetTicks = resetPulseTicks
}

// TickResetPulse steps the reset pulse countdown once and reports
// whether the external reset line should be asserted this tick. The
// line holds for the full armed count: the tick that consumes the
// last count still asserts it.
func (e *Engine) TickResetPulse() bool {
	if !e.resetAsserted {
		return false
	}
	e.resetTicks--
	if e.resetTicks <= 0 {
		e.resetAsserted = false
	}
	return true
}

// Word is the current fault bitmask.
func (e *Engine) Word() Word {
	return e.word
}

// OpState is the current operational state.
func (e *Engine) OpState() OpState {
	return e.state
}
