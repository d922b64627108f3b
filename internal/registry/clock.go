package registry

import "sync/atomic"

// Clock is the monotonic logical clock that stamps notifications.
//
// Seq values are planned as Current()+k while a changeset is built and only
// become visible through AdvanceTo after the changeset commits, so a
// failed commit never burns a seq.
//
// Thread-safety: reads are atomic; AdvanceTo is called under the registry
// lock.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0. The first notification gets seq 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
// Used when restoring a registry from storage.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Current returns the last seq handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// AdvanceTo moves the clock forward to seq. Moving backwards is ignored.
func (c *Clock) AdvanceTo(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
