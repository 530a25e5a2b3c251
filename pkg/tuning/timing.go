package tuning

import (
	"context"
	"time"

	"github.com/shiwa/valve-autotune/internal/autotune"
	"github.com/shiwa/valve-autotune/internal/logger"
)

// pollDivisor — во сколько раз опрос чаще интервала сэмплов. Тикер с периодом ровно
// SampleInterval из-за дрожания иногда приходит чуть раньше и сэмпл отбрасывается.
const pollDivisor = 4

// pacer задаёт ритм цикла.
type pacer interface {
	Wait(ctx context.Context) error
	Stop()
}

type tickerPacer struct {
	t *time.Ticker
}

func newTickerPacer(d time.Duration) *tickerPacer {
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return &tickerPacer{t: time.NewTicker(d)}
}

func (p *tickerPacer) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.t.C:
		return nil
	}
}

func (p *tickerPacer) Stop() { p.t.Stop() }

// manualPacer двигает ManualClock на step вместо ожидания (виртуальное время симуляции).
type manualPacer struct {
	clock *autotune.ManualClock
	step  time.Duration
}

func (p *manualPacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.clock.Advance(p.step)
	return nil
}

func (p *manualPacer) Stop() {}

// scaledClock ускоряет базовые часы в speedup раз относительно start.
type scaledClock struct {
	base    autotune.Clock
	start   time.Time
	speedup float64
}

func (c *scaledClock) Now() time.Time {
	elapsed := c.base.Now().Sub(c.start)
	return c.start.Add(time.Duration(float64(elapsed) * c.speedup))
}

// timing — часы автомата и фабрика ритма для интервала.
type timing struct {
	clock   autotune.Clock
	speedup float64
	manual  *autotune.ManualClock
}

func newTiming(opts Options, speedup float64) timing {
	if opts.Virtual {
		mc, ok := opts.Clock.(*autotune.ManualClock)
		if !ok {
			mc = autotune.NewManualClock(time.Now())
		}
		return timing{clock: mc, manual: mc, speedup: 1}
	}
	base := opts.Clock
	if base == nil {
		mono, err := autotune.NewMonotonicClock()
		if err != nil {
			logger.Warn("monotonic clock unavailable, using system clock: %v", err)
			base = autotune.SystemClock{}
		} else {
			base = mono
		}
	}
	if !opts.Simulate || speedup <= 1 {
		return timing{clock: base, speedup: 1}
	}
	return timing{
		clock:   &scaledClock{base: base, start: base.Now(), speedup: speedup},
		speedup: speedup,
	}
}

// pacer для цикла с интервалом interval: в виртуальном времени — шаг ровно interval,
// иначе опрос с периодом interval/pollDivisor (в реальном времени).
func (t timing) pacer(interval time.Duration) pacer {
	if t.manual != nil {
		return &manualPacer{clock: t.manual, step: interval}
	}
	return newTickerPacer(time.Duration(float64(interval) / pollDivisor / t.speedup))
}
