//go:build !linux

package autotune

import "time"

// MonotonicClock — на не-Linux опирается на монотонную составляющую time.Time.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock создаёт часы.
func NewMonotonicClock() (*MonotonicClock, error) {
	return &MonotonicClock{start: time.Now()}, nil
}

// Now возвращает start + time.Since(start).
func (c *MonotonicClock) Now() time.Time {
	return c.start.Add(time.Since(c.start))
}
