// Package recorder implements the triggered multi-channel waveform
// recorder. A single shared sample buffer is split into up to
// MaxChannels contiguous records; each accepted tick copies one
// sample per channel from a borrowed signal pointer.
package recorder

import (
	"fmt"

	"phasedrive.dev/event"
)

const (
	// BufferSize is the shared sample buffer capacity in floats.
	BufferSize = 2048
	// MaxChannels is the addressable channel capacity.
	MaxChannels = 8
)

// Config selects what the recorder captures. Sources are borrowed
// pointers to live control-loop signals; the recorder observes them
// and never writes through them.
type Config struct {
	// Sources holds one signal per channel, 1 to MaxChannels.
	Sources []*float32
	// SingleShot stops the trigger after one full record instead
	// of wrapping circularly.
	SingleShot bool
	// Skip is the number of ticks suppressed between accepted
	// samples, so one sample is taken every Skip+1 ticks.
	Skip int
	// HoldOnFault stops the trigger when a fault is raised so the
	// capture leading up to it is preserved.
	HoldOnFault bool
	// Margin reserves trailing cells of the shared buffer that are
	// never addressed. Platforms whose memory controller cannot
	// touch the final cell of the block pass 1.
	Margin int
}

// A Recorder captures waveforms into its sample buffer. Configure may
// be called from outside the control loop; the derived channel layout
// is applied at the start of the next Tick, never mid-tick.
type Recorder struct {
	log *event.Log

	buf     [BufferSize]float32
	sources [MaxChannels]*float32
	cfg     Config

	channels int
	length   int
	index    int

	trigger     int
	prevTrigger int
	skipCount   int
	pendingInit bool
}

// New returns an idle recorder logging trigger changes to log.
func New(log *event.Log) *Recorder {
	return &Recorder{log: log}
}

// Configure validates and stores cfg and schedules reinitialization
// for the next tick.
func (r *Recorder) Configure(cfg Config) error {
	n := len(cfg.Sources)
	if n < 1 || n > MaxChannels {
		return fmt.Errorf("recorder: %d channels, capacity is 1-%d", n, MaxChannels)
	}
	for i, s := range cfg.Sources {
		if s == nil {
			return fmt.Errorf("recorder: channel %d has no source", i)
		}
	}
	if cfg.Skip < 0 {
		return fmt.Errorf("recorder: negative skip %d", cfg.Skip)
	}
	if cfg.Margin < 0 || cfg.Margin >= BufferSize {
		return fmt.Errorf("recorder: margin %d out of range", cfg.Margin)
	}
	if (BufferSize-cfg.Margin)/n == 0 {
		return fmt.Errorf("recorder: margin %d leaves a zero-length record", cfg.Margin)
	}
	r.cfg = cfg
	r.pendingInit = true
	return nil
}

// Trigger sets the trigger: 0 idle, positive records until stopped
// (or until the record fills, in single-shot), negative records n
// accepted samples and then stops.
func (r *Recorder) Trigger(n int) {
	r.trigger = n
}

// Stop halts recording, preserving the capture taken so far.
func (r *Recorder) Stop() {
	r.trigger = 0
}

// Triggered reports whether the recorder is capturing.
func (r *Recorder) Triggered() bool {
	return r.trigger != 0
}

// HoldOnFault reports whether an in-progress capture should be
// preserved when a fault is raised.
func (r *Recorder) HoldOnFault() bool {
	return r.cfg.HoldOnFault
}

// RecordLength is the per-channel record length derived from the last
// applied configuration.
func (r *Recorder) RecordLength() int {
	return r.length
}

// Channel returns channel i of the last applied configuration. The
// slice aliases the shared buffer; readers walk it by index.
func (r *Recorder) Channel(i int) []float32 {
	if i < 0 || i >= r.channels {
		panic("recorder: channel out of range")
	}
	return r.buf[i*r.length : (i+1)*r.length]
}

// reinit applies the stored configuration: derives the record length,
// lays out the channel bases and rewinds the capture.
func (r *Recorder) reinit() {
	r.channels = len(r.cfg.Sources)
	r.length = (BufferSize - r.cfg.Margin) / r.channels
	for i := range r.sources {
		r.sources[i] = nil
	}
	copy(r.sources[:], r.cfg.Sources)
	r.index = 0
	r.skipCount = 0
	r.pendingInit = false
}

// Tick runs one fixed-period update: it logs trigger edges, applies a
// pending configuration, and captures one sample per channel when the
// trigger and skip decimation allow it.
func (r *Recorder) Tick() {
	if r.trigger != r.prevTrigger {
		r.log.Append(event.Datalog, int32(r.trigger), float32(r.cfg.Skip))
	}
	r.prevTrigger = r.trigger

	if r.pendingInit {
		// Applying the new channel layout and sampling must not
		// share a tick.
		r.reinit()
		return
	}
	if r.trigger == 0 {
		return
	}
	if r.skipCount < r.cfg.Skip {
		r.skipCount++
		return
	}
	r.skipCount = 0
	for i := 0; i < r.channels; i++ {
		r.buf[i*r.length+r.index] = *r.sources[i]
	}
	r.index++
	if r.index == r.length {
		if r.cfg.SingleShot {
			r.trigger = 0
		}
		r.index = 0
	}
	// A negative trigger counts accepted samples toward zero.
	if r.trigger < 0 {
		r.trigger++
	}
}
