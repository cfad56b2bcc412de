package sim

import "time"

// Clock supplies timestamps in ticks for hold tracking and history records.
type Clock interface {
	Now() int64
}

// WallClock reads the system clock in microseconds.
type WallClock struct{}

// Now returns the current Unix time in microseconds.
func (WallClock) Now() int64 { return time.Now().UnixMicro() }

// ManualClock is a settable clock. The simulator advances one per event.
type ManualClock struct {
	T int64
}

// Now returns the current virtual time.
func (m *ManualClock) Now() int64 { return m.T }

// Set moves the clock to t.
func (m *ManualClock) Set(t int64) { m.T = t }
