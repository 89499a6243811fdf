package nand

import "time"

// SystemClock is the default Clock, backed by the monotonic reading inside
// time.Now(). The real boot-time microsecond counter is an out-of-scope
// collaborator (spec §1); this is only a standalone-friendly stand-in.
type SystemClock struct {
	boot time.Time
}

// NewSystemClock returns a Clock whose epoch is the moment it is created.
func NewSystemClock() *SystemClock {
	return &SystemClock{boot: time.Now()}
}

// NowBootMicros returns elapsed microseconds since the clock was created.
func (c *SystemClock) NowBootMicros() uint64 {
	return uint64(time.Since(c.boot).Microseconds())
}
