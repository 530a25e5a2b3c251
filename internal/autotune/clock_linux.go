//go:build linux

package autotune

import (
	"time"

	"golang.org/x/sys/unix"
)

// MonotonicClock — время по CLOCK_MONOTONIC, привязанное к настенному времени в момент создания.
// Переводы системных часов (step от NTP/PTP) не влияют на интервалы между сэмплами.
type MonotonicClock struct {
	wall time.Time
	base int64 // CLOCK_MONOTONIC в момент создания, нс
}

// NewMonotonicClock создаёт часы; при недоступности clock_gettime возвращает ошибку.
func NewMonotonicClock() (*MonotonicClock, error) {
	base, err := monotonicNs()
	if err != nil {
		return nil, err
	}
	return &MonotonicClock{wall: time.Now(), base: base}, nil
}

// Now возвращает wall(создания) + прошедшее монотонное время.
func (c *MonotonicClock) Now() time.Time {
	ns, err := monotonicNs()
	if err != nil {
		return time.Now()
	}
	return c.wall.Add(time.Duration(ns - c.base))
}

func monotonicNs() (int64, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, err
	}
	return ts.Nano(), nil
}
