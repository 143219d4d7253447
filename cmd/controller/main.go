// command controller runs the motor drive control loop on a
// Raspberry Pi carrier and serves the serial command link.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"phasedrive.dev/drive"
	"phasedrive.dev/driver/gate"
	"phasedrive.dev/fault"
	"phasedrive.dev/link"
	"phasedrive.dev/recorder"
	"phasedrive.dev/svm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "controller: %v\n", err)
		os.Exit(2)
	}
}

// tickPeriod is the control period. The reference platform runs at
// 10 kHz; a Linux timer loop keeps up at 1 kHz.
const tickPeriod = time.Millisecond

// pwmPeriod is the PWM period in duty register counts.
const pwmPeriod = 4096

// clock stamps event log entries with whole seconds and nanoseconds
// of a monotonic reading.
type clock struct {
	start time.Time
}

func (c *clock) Stamp() (uint32, uint32) {
	d := time.Since(c.start)
	return uint32(d / time.Second), uint32(d % time.Second)
}

// signals are the control-loop cells observed by the recorder.
type signals struct {
	alpha, beta   float32
	onA, onB, onC float32
	theta         float32
	scale         float32
}

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	dev := flag.String("dev", "", "command link serial device")
	flag.Parse()

	lines, err := gate.Open()
	if err != nil {
		return err
	}
	c, err := drive.New(drive.Config{
		Clock:   &clock{start: time.Now()},
		Outputs: lines,
		Period:  pwmPeriod,
		Method:  svm.Symmetric,
	})
	if err != nil {
		return err
	}

	// Default capture preset: armed to hold the samples leading up
	// to a fault, decimated for depth.
	var sig signals
	err = c.Recorder.Configure(recorder.Config{
		Sources: []*float32{
			&sig.alpha, &sig.beta,
			&sig.onA, &sig.onB, &sig.onC,
			&sig.theta, &sig.scale,
			&c.SpeedRef,
		},
		Skip:        20,
		HoldOnFault: true,
		Margin:      1,
	})
	if err != nil {
		return err
	}
	c.Recorder.Trigger(1)

	port, err := link.Open(*dev)
	if err != nil {
		return err
	}
	defer port.Close()
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		if err := link.Serve(port, c, quit); err != nil {
			log.Printf("link: %v", err)
		}
	}()

	lines.Enable()
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	for range ticker.C {
		// Open-loop voltage command from the speed reference.
		sig.theta += c.SpeedRef * float32(tickPeriod.Seconds())
		if sig.theta > 2*math.Pi {
			sig.theta -= 2 * math.Pi
		}
		const magnitude = 0.5
		sig.alpha = magnitude * float32(math.Cos(float64(sig.theta)))
		sig.beta = magnitude * float32(math.Sin(float64(sig.theta)))

		t, assert, err := c.Tick(sig.alpha, sig.beta)
		// The reset line is driven every tick, whatever else the
		// tick produced.
		lines.ResetPulse(assert)
		if err != nil {
			// Misconfigured modulator; latch and keep ticking
			// with outputs cut.
			c.Faults.Raise(fault.State, 0)
			continue
		}
		sig.onA, sig.onB, sig.onC = t.OnA, t.OnB, t.OnC
		sig.scale = t.Scale
	}
	return nil
}
