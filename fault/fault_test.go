package fault

import (
	"testing"

	"phasedrive.dev/event"
)

type tickClock struct {
	n uint32
}

func (c *tickClock) Stamp() (uint32, uint32) {
	c.n++
	return 0, c.n
}

// outputs records whether and when Disable was called.
type outputs struct {
	disabled int
	log      *event.Log
	// atDisable is the log index at the first Disable call, to
	// check outputs are cut before any bookkeeping.
	atDisable int
}

func (o *outputs) Disable() {
	if o.disabled == 0 {
		o.atDisable = o.log.Index()
	}
	o.disabled++
}

type capture struct {
	hold      bool
	triggered bool
}

func (c *capture) Stop()             { c.triggered = false }
func (c *capture) HoldOnFault() bool { return c.hold }

func codes(l *event.Log) []event.Code {
	var cs []event.Code
	for i := 0; i < l.Index(); i++ {
		cs = append(cs, l.Entries()[i].Code)
	}
	return cs
}

func TestRaiseLatchesAndLogsOnce(t *testing.T) {
	l := event.NewLog(new(tickClock))
	out := &outputs{log: l}
	speed := float32(42)
	e := NewEngine(l, out, nil, &speed)

	e.Raise(Overcurrent, 1.5)
	e.Raise(Overcurrent, 2.5)

	if !e.Word().Has(Overcurrent) {
		t.Error("overcurrent not latched")
	}
	if out.disabled != 2 {
		t.Errorf("outputs disabled %d times, want 2", out.disabled)
	}
	if out.atDisable != 0 {
		t.Error("bookkeeping ran before outputs were cut")
	}
	if speed != 0 {
		t.Errorf("speed reference = %v, want 0", speed)
	}
	var faults int
	for _, c := range codes(l) {
		if c == event.Fault {
			faults++
		}
	}
	if faults != 1 {
		t.Errorf("%d fault entries for repeated raise, want 1", faults)
	}
}

func TestRaiseTransitionsOnce(t *testing.T) {
	l := event.NewLog(new(tickClock))
	e := NewEngine(l, &outputs{log: l}, nil, nil)

	if e.OpState() != Ready {
		t.Fatal("engine not Ready at start")
	}
	e.Raise(Overcurrent, 0)
	e.Raise(Overspeed, 0)
	e.Raise(Ground, 0)

	if e.OpState() != Faulted {
		t.Error("engine not Faulted")
	}
	var states int
	for _, c := range codes(l) {
		if c == event.State {
			states++
		}
	}
	if states != 1 {
		t.Errorf("%d state entries for three raises, want 1", states)
	}
	for _, k := range []Kind{Overcurrent, Overspeed, Ground} {
		if !e.Word().Has(k) {
			t.Errorf("kind %d not latched", k)
		}
	}
}

func TestClear(t *testing.T) {
	l := event.NewLog(new(tickClock))
	e := NewEngine(l, &outputs{log: l}, nil, nil)
	e.Raise(Overtemp, 0)
	mark := l.Index()

	e.Clear()

	if e.Word() != 0 {
		t.Errorf("fault word = %#x after clear", e.Word())
	}
	if e.OpState() != Ready {
		t.Error("engine not Ready after clear")
	}
	got := codes(l)[mark:]
	want := []event.Code{event.Reset, event.State}
	if len(got) != len(want) {
		t.Fatalf("clear logged %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("clear logged %v, want %v", got, want)
		}
	}
}

func TestClearWhileReady(t *testing.T) {
	l := event.NewLog(new(tickClock))
	e := NewEngine(l, &outputs{log: l}, nil, nil)
	e.Clear()
	got := codes(l)
	if len(got) != 1 || got[0] != event.Reset {
		t.Errorf("clear in Ready logged %v, want only a reset entry", got)
	}
}

func TestReRaiseAfterClearLogsAgain(t *testing.T) {
	l := event.NewLog(new(tickClock))
	e := NewEngine(l, &outputs{log: l}, nil, nil)
	e.Raise(Overcurrent, 0)
	e.Clear()
	e.Raise(Overcurrent, 0)

	var faults int
	for _, c := range codes(l) {
		if c == event.Fault {
			faults++
		}
	}
	if faults != 2 {
		t.Errorf("%d fault entries across a clear, want 2", faults)
	}
}

func TestCaptureHold(t *testing.T) {
	l := event.NewLog(new(tickClock))
	rec := &capture{hold: true, triggered: true}
	e := NewEngine(l, &outputs{log: l}, rec, nil)
	e.Raise(Overcurrent, 0)
	if rec.triggered {
		t.Error("capture not stopped by raise with hold policy")
	}

	rec = &capture{hold: false, triggered: true}
	e = NewEngine(l, &outputs{log: l}, rec, nil)
	e.Raise(Overcurrent, 0)
	if !rec.triggered {
		t.Error("capture stopped despite hold policy off")
	}
}

func TestResetPulseCountdown(t *testing.T) {
	l := event.NewLog(new(tickClock))
	e := NewEngine(l, &outputs{log: l}, nil, nil)

	if e.TickResetPulse() {
		t.Error("reset line asserted before clear")
	}
	e.Clear()
	// The line holds for the full armed count, then releases.
	for i := 0; i < resetPulseTicks; i++ {
		if !e.TickResetPulse() {
			t.Fatalf("line released after %d ticks, want %d", i, resetPulseTicks)
		}
	}
	for i := 0; i < 2*resetPulseTicks; i++ {
		if e.TickResetPulse() {
			t.Fatal("line still asserted after the armed count expired")
		}
	}
}
