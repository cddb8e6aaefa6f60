package util

import "sync/atomic"

// LogicalClock issues monotonically increasing timestamps for ordering
// orders and trades within a market. Wall-clock time is irrelevant to
// matching; only relative order matters.
type LogicalClock struct {
	tick uint64
}

func NewLogicalClock() *LogicalClock { return &LogicalClock{} }

// Next returns the next tick, starting at 1.
func (c *LogicalClock) Next() uint64 { return atomic.AddUint64(&c.tick, 1) }

// Current returns the most recently issued tick.
func (c *LogicalClock) Current() uint64 { return atomic.LoadUint64(&c.tick) }

// AdvanceTo moves the clock forward to at least t. Used when restoring
// state so new ticks stay ahead of persisted timestamps.
func (c *LogicalClock) AdvanceTo(t uint64) {
	for {
		cur := atomic.LoadUint64(&c.tick)
		if cur >= t || atomic.CompareAndSwapUint64(&c.tick, cur, t) {
			return
		}
	}
}
