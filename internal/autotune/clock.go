package autotune

import (
	"sync"
	"time"
)

// Clock — источник времени для Step/Run. Подменяется в тестах и симуляции.
type Clock interface {
	Now() time.Time
}

// SystemClock — настенное время процесса.
type SystemClock struct{}

// Now возвращает time.Now()
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock — часы, которые двигаются только явно (тесты, симулированный прогон).
type ManualClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewManualClock создаёт часы, стоящие в момент start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{t: start}
}

// Now возвращает текущее значение часов
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance сдвигает часы вперёд на d и возвращает новое значение.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

// Set переставляет часы.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}
