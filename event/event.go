// Package event implements the in-RAM diagnostic event log, a fixed
// capacity circular buffer of timestamped, coded entries. Appends are
// O(1) and allocation-free so they can run inside the control
// interrupt; when the buffer is full the oldest entry is silently
// overwritten.
package event

// Size is the capacity of the log in entries.
const Size = 64

// Code identifies the kind of a logged event.
type Code int32

const (
	Start     Code = 1 + iota // start command received
	Stop                      // stop command received
	Reset                     // reset-faults command received
	Force                     // forced-fault command received
	State                     // operational state changed
	Param                     // parameter changed
	Fault                     // fault raised
	Datalog                   // recorder trigger changed
	Setpoint                  // speed setpoint changed
	Flash                     // parameter load/save/default
	LinkError                 // command link error
)

// An Entry is one logged occurrence. Data1 and Data2 are optional
// arguments whose meaning depends on Code.
type Entry struct {
	TimeHigh uint32
	TimeLow  uint32
	Code     Code
	Data1    int32
	Data2    float32
}

// Clock is the two-part monotonic timestamp source, split into a
// coarse and a fine word.
type Clock interface {
	Stamp() (high, low uint32)
}

// A Log is a circular buffer of entries. External readers walk the
// entries by index; because a higher interrupt level may interleave
// appends, slot order is not guaranteed to be chronological across
// priority levels and readers must order by timestamp after a wrap.
type Log struct {
	clock   Clock
	entries [Size]Entry
	index   int
}

// NewLog returns an empty log stamping entries with clock.
func NewLog(clock Clock) *Log {
	return &Log{clock: clock}
}

// Reset zeroes every slot and rewinds the write index.
func (l *Log) Reset() {
	l.entries = [Size]Entry{}
	l.index = 0
}

// Append records an entry at the write index and advances it,
// wrapping at capacity. It never fails and never blocks.
func (l *Log) Append(code Code, data1 int32, data2 float32) {
	hi, lo := l.clock.Stamp()
	l.entries[l.index] = Entry{
		TimeHigh: hi,
		TimeLow:  lo,
		Code:     code,
		Data1:    data1,
		Data2:    data2,
	}
	l.index++
	if l.index == Size {
		l.index = 0
	}
}

// Index reports the slot the next append will overwrite.
func (l *Log) Index() int {
	return l.index
}

// Entries exposes the backing buffer for external readers such as a
// diagnostic transport. The slots are borrowed, not copied.
func (l *Log) Entries() *[Size]Entry {
	return &l.entries
}
