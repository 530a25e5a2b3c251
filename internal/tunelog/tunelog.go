// Package tunelog — диагностический журнал настройки: по строке JSON на событие,
// все строки одного запуска помечены run_id.
package tunelog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/shiwa/valve-autotune/internal/autotune"
	"github.com/shiwa/valve-autotune/internal/notify"
)

// Log — журнал одного запуска. Nil-safe не требуется: используйте Discard.
type Log struct {
	zl     zerolog.Logger
	closer io.Closer
}

// Open открывает (дописывает) журнал по path, создавая каталог. "" или "-" — журнал отключён.
func Open(path, runID string) (*Log, error) {
	if path == "" || path == "-" {
		return Discard(), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("tunelog mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tunelog open %s: %w", path, err)
	}
	l := New(f, runID)
	l.closer = f
	return l, nil
}

// New пишет журнал в w.
func New(w io.Writer, runID string) *Log {
	return &Log{zl: zerolog.New(w).With().Timestamp().Str("run_id", runID).Logger()}
}

// Discard — журнал, который ничего не пишет.
func Discard() *Log {
	return &Log{zl: zerolog.Nop()}
}

// Start записывает параметры запуска.
func (l *Log) Start(p autotune.Params, rule autotune.Rule) {
	l.zl.Info().
		Float64("setpoint", p.Setpoint).
		Float64("output_step", p.OutputStep).
		Float64("output_min", p.OutputMin).
		Float64("output_max", p.OutputMax).
		Dur("sample_interval", p.SampleInterval).
		Dur("lookback", p.Lookback).
		Int("window", p.WindowSize()).
		Float64("noiseband", p.Noiseband).
		Str("rule", string(rule)).
		Msg("autotune start")
}

// Event записывает событие автомата.
func (l *Log) Event(ev autotune.Event) {
	e := l.zl.Info()
	if ev.Kind == autotune.EventFailed {
		e = l.zl.Warn()
	}
	e = e.Str("kind", string(ev.Kind)).
		Time("at", ev.Time).
		Str("state", ev.State.String()).
		Float64("input", ev.Input).
		Float64("output", ev.Output).
		Int("peak_count", ev.PeakCount)
	switch ev.Kind {
	case autotune.EventAmplitude:
		e = e.Float64("amplitude", ev.Amplitude).Float64("deviation", ev.Deviation)
	case autotune.EventSucceeded:
		e = e.Float64("amplitude", ev.Amplitude).
			Float64("ku", ev.UltimateGain).
			Float64("pu", ev.UltimatePeriod)
	}
	e.Msg(string(ev.Kind))
}

// Coefficients записывает коэффициенты по правилу.
func (l *Log) Coefficients(rule autotune.Rule, p autotune.PIDParams) {
	l.zl.Info().
		Str("rule", string(rule)).
		Float64("kp", p.Kp).
		Float64("ki", p.Ki).
		Float64("kd", p.Kd).
		Msg("coefficients")
}

// Message — произвольная строка журнала.
func (l *Log) Message(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Error записывает ошибку запуска.
func (l *Log) Error(err error) {
	l.zl.Error().Err(err).Msg("autotune error")
}

// Notify записывает уведомление оператору в журнал (Log реализует notify.Notifier).
func (l *Log) Notify(_ context.Context, n notify.Notification) error {
	e := l.zl.Info()
	switch n.Level {
	case notify.LevelError:
		e = l.zl.Error()
	case notify.LevelWarning:
		e = l.zl.Warn()
	}
	e = e.Str("notify_level", string(n.Level)).Str("title", n.Title)
	if n.Coefficients != nil {
		e = e.Str("rule", string(n.Rule)).
			Float64("kp", n.Coefficients.Kp).
			Float64("ki", n.Coefficients.Ki).
			Float64("kd", n.Coefficients.Kd)
	}
	e.Str("text", n.Message).Msg("notification")
	return nil
}

// Close закрывает файл журнала.
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
