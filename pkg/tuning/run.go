// Package tuning запускает релейную автонастройку клапана: датчик → автомат → исполнитель,
// с журналом, метриками, уведомлениями и (опционально) удержанием уставки найденным PID.
package tuning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shiwa/valve-autotune/internal/actuator"
	"github.com/shiwa/valve-autotune/internal/autotune"
	"github.com/shiwa/valve-autotune/internal/config"
	"github.com/shiwa/valve-autotune/internal/logger"
	"github.com/shiwa/valve-autotune/internal/metrics"
	"github.com/shiwa/valve-autotune/internal/notify"
	"github.com/shiwa/valve-autotune/internal/plant"
	"github.com/shiwa/valve-autotune/internal/pump"
	"github.com/shiwa/valve-autotune/internal/sensor"
	"github.com/shiwa/valve-autotune/internal/servo"
	"github.com/shiwa/valve-autotune/internal/status"
	"github.com/shiwa/valve-autotune/internal/tunelog"
)

var (
	// ErrAboveSetpoint — процесс уже выше уставки, а конфиг требует начинать снизу.
	ErrAboveSetpoint = errors.New("process value is above setpoint")
	// ErrTuningFailed — колебания не сошлись за MaxPeaks экстремумов.
	ErrTuningFailed = errors.New("autotune failed")
	// ErrNoSensor — ни один датчик не создан.
	ErrNoSensor = errors.New("no usable sensor configured")
)

const notifyTitle = "PID AutoTuning"

// virtualHoldLimit — предел циклов удержания в виртуальном времени, если HoldLimit не задан:
// manualPacer не ждёт, и без предела цикл крутился бы до отмены ctx.
const virtualHoldLimit = 600

// Options — параметры запуска, не входящие в конфиг.
type Options struct {
	// Simulate — датчик и исполнитель работают на модели процесса из секции sim.
	Simulate bool
	// Virtual — время модели двигается шагами без ожидания (только с Simulate; тесты, прогон «на бумаге»).
	Virtual bool
	// Clock — источник времени; nil = CLOCK_MONOTONIC. Для Virtual можно передать *autotune.ManualClock.
	Clock autotune.Clock
	// Notifier — получатель уведомлений; nil = лог.
	Notifier notify.Notifier
	Quiet    bool
	// HoldLimit — ограничение числа циклов удержания; 0 = до отмены ctx (в Virtual — virtualHoldLimit).
	HoldLimit int
}

// Result — итог запуска.
type Result struct {
	RunID          string                               `json:"run_id"`
	State          autotune.State                       `json:"state"`
	Rule           autotune.Rule                        `json:"rule"`
	UltimateGain   float64                              `json:"ultimate_gain"`
	UltimatePeriod float64                              `json:"ultimate_period"`
	Coefficients   map[autotune.Rule]autotune.PIDParams `json:"coefficients,omitempty"`
	Samples        int                                  `json:"samples"`
	HoldSamples    int                                  `json:"hold_samples,omitempty"`
}

// session — один запуск настройки со всеми ресурсами.
type session struct {
	cfg      *config.Config
	opts     Options
	runID    string
	rule     autotune.Rule
	params   autotune.Params
	tuner    *autotune.Autotuner
	timing   timing
	election *sensor.Election
	act      actuator.Actuator
	tlog     *tunelog.Log
	notifier notify.Notifier
	tracker  *tracker
	warn     *rate.Limiter
	lastOut  float64
}

// Run выполняет настройку до успеха, неудачи или отмены ctx.
// При неудаче возвращает Result вместе с ErrTuningFailed; при отмене — ctx.Err().
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger.Quiet = opts.Quiet
	metrics.RegisterMetrics()

	s := &session{
		cfg:      cfg,
		opts:     opts,
		runID:    uuid.NewString(),
		notifier: opts.Notifier,
		tracker:  &tracker{},
		warn:     rate.NewLimiter(rate.Every(30*time.Second), 1),
		lastOut:  math.NaN(),
	}
	if s.notifier == nil {
		s.notifier = notify.LogNotifier{}
	}

	if err := s.prepare(); err != nil {
		s.notify(ctx, notify.LevelError, err.Error(), nil)
		metrics.RecordRun("error")
		return nil, err
	}

	tlog, err := tunelog.Open(cfg.TuneLog.Path, s.runID)
	if err != nil {
		logger.Warn("%v; tune log disabled", err)
		tlog = tunelog.Discard()
	}
	s.tlog = tlog
	defer s.tlog.Close()
	s.notifier = notify.Multi{s.notifier, tlog}

	if err := s.open(); err != nil {
		s.tlog.Error(err)
		s.notify(ctx, notify.LevelError, err.Error(), nil)
		metrics.RecordRun("error")
		return nil, err
	}
	defer s.close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	if addr := cfg.Status.Listen; addr != "" {
		srv := status.New(s.tracker.report)
		g.Go(func() error { return srv.Run(gctx, addr) })
	}
	var res *Result
	g.Go(func() error {
		defer cancel()
		var err error
		res, err = s.run(gctx)
		return err
	})
	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return res, err
}

// prepare проверяет конфиг и создаёт автомат.
func (s *session) prepare() error {
	rule, err := s.cfg.Autotune.TuningRule()
	if err != nil {
		return err
	}
	params, err := s.cfg.Autotune.Params()
	if err != nil {
		return err
	}
	s.timing = newTiming(s.opts, s.cfg.Sim.Speedup)
	params.Clock = s.timing.clock
	tuner, err := autotune.New(params)
	if err != nil {
		return err
	}
	s.rule, s.params, s.tuner = rule, params, tuner
	s.tracker.update(func(r *status.Report) {
		r.RunID = s.runID
		r.Mode = "tuning"
		r.Rule = rule
		r.Tuner = tuner.Snapshot()
		r.Started = s.timing.clock.Now()
	})
	return nil
}

// open создаёт датчики и исполнитель: реальные из конфига или пару на общей модели процесса.
func (s *session) open() error {
	if s.opts.Simulate {
		pc, err := s.cfg.Sim.PlantConfig()
		if err != nil {
			return err
		}
		p, err := plant.New(pc, s.timing.clock.Now())
		if err != nil {
			return err
		}
		env := sensor.Env{Plant: p, Now: s.timing.clock.Now}
		s.election = sensor.NewElection([]sensor.Sensor{sensor.NewSim(p, env.Now)}, nil)
		s.act = actuator.NewSim(p, env.Now)
	} else {
		primary, errs := sensor.NewList(s.cfg.Sensor.Primary, sensor.Env{})
		secondary, errs2 := sensor.NewList(s.cfg.Sensor.Secondary, sensor.Env{})
		for _, err := range append(errs, errs2...) {
			logger.Warn("%v", err)
		}
		if len(primary) == 0 && len(secondary) == 0 {
			return ErrNoSensor
		}
		s.election = sensor.NewElection(primary, secondary)
		act, err := actuator.NewFromConfig(s.cfg.Actuator, sensor.Env{})
		if err != nil {
			_ = s.election.Close()
			return fmt.Errorf("actuator: %w", err)
		}
		s.act = act
	}
	s.tracker.update(func(r *status.Report) { r.Actuator = s.act.Name() })
	logger.Info("run %s: setpoint=%.3f window=%d sample=%v actuator=%s",
		s.runID, s.params.Setpoint, s.params.WindowSize(), s.params.SampleInterval, s.act.Name())
	return nil
}

func (s *session) close() {
	if err := s.act.Close(); err != nil {
		logger.Warn("actuator close: %v", err)
	}
	if err := s.election.Close(); err != nil {
		logger.Warn("sensor close: %v", err)
	}
}

func (s *session) run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: s.runID, Rule: s.rule}

	if s.cfg.Autotune.RequireBelowSetpoint {
		if sn, v := s.election.Select(); sn != nil && v > s.params.Setpoint {
			err := fmt.Errorf("%w (%.3f > %.3f), autotune not started", ErrAboveSetpoint, v, s.params.Setpoint)
			s.tlog.Error(err)
			s.notify(ctx, notify.LevelWarning, err.Error(), nil)
			metrics.RecordRun("error")
			return res, err
		}
	}

	if !s.opts.Simulate {
		stopPumps, n := pump.Start(pump.FromConfig(s.cfg.Pump), s.opts.Quiet)
		defer stopPumps()
		if n > 0 {
			s.tlog.Message("pump helpers started: %d", n)
		}
	}

	s.tlog.Start(s.params, s.rule)
	s.notify(ctx, notify.LevelInfo, "autotune in progress, keep the controller in auto mode until it completes", nil)
	s.apply(0)

	err := s.tune(ctx, res)
	snap := s.tuner.Snapshot()
	res.State = snap.State
	if err != nil {
		outcome := "error"
		if ctx.Err() != nil {
			outcome = "canceled"
		}
		metrics.RecordRun(outcome)
		s.tlog.Error(err)
		return res, err
	}
	s.apply(0)

	if snap.State != autotune.StateSucceeded {
		metrics.RecordRun("failed")
		s.tracker.update(func(r *status.Report) { r.Mode = "done"; r.Error = ErrTuningFailed.Error() })
		s.notify(ctx, notify.LevelError, fmt.Sprintf("autotune has failed after %d peaks", snap.PeakCount), nil)
		return res, ErrTuningFailed
	}

	res.UltimateGain = snap.UltimateGain
	res.UltimatePeriod = snap.UltimatePeriod
	res.Coefficients = make(map[autotune.Rule]autotune.PIDParams)
	for _, r := range autotune.Rules() {
		p, err := s.tuner.Coefficients(r)
		if err != nil {
			return res, err
		}
		res.Coefficients[r] = p
		s.tlog.Coefficients(r, p)
	}
	metrics.RecordRun("succeeded")
	s.tracker.update(func(r *status.Report) {
		r.Mode = "done"
		r.Coefficients = res.Coefficients
	})
	chosen := res.Coefficients[s.rule]
	s.notify(ctx, notify.LevelSuccess,
		fmt.Sprintf("autotune has succeeded: Ku=%.6g Pu=%.6gs", res.UltimateGain, res.UltimatePeriod), &chosen)

	if s.cfg.Hold.Enabled {
		n, err := s.hold(ctx, chosen)
		res.HoldSamples = n
		if err != nil && !errors.Is(err, context.Canceled) {
			return res, err
		}
	}
	return res, nil
}

// tune — цикл сэмплов до завершения автомата.
func (s *session) tune(ctx context.Context, res *Result) error {
	p := s.timing.pacer(s.params.SampleInterval)
	defer p.Stop()

	for {
		if err := p.Wait(ctx); err != nil {
			return err
		}
		snap := s.tuner.Snapshot()
		if snap.State != autotune.StateOff && s.timing.clock.Now().Sub(snap.LastSample) < s.params.SampleInterval {
			continue
		}
		value, name, ok := s.election.ReadActive()
		if !ok {
			metrics.RecordSensorUnavailable()
			if s.warn.Allow() {
				logger.Warn("no sensor has a fresh value, sample skipped")
			}
			continue
		}
		res.Samples++

		done, events := s.tuner.Run(value)
		s.record(events)
		snap = s.tuner.Snapshot()
		metrics.ObserveSample(snap, value)
		s.tracker.update(func(r *status.Report) {
			r.Tuner = snap
			r.Sensor = name
		})
		s.apply(snap.Output)
		if done {
			return nil
		}
	}
}

// hold удерживает уставку PID-регулятором с найденными коэффициентами.
func (s *session) hold(ctx context.Context, pid autotune.PIDParams) (int, error) {
	interval := s.cfg.HoldInterval()
	ctrl := servo.FromParams(pid, s.params.OutputMin, s.params.OutputMax)
	p := s.timing.pacer(interval)
	defer p.Stop()

	s.tracker.update(func(r *status.Report) { r.Mode = "holding" })
	logger.Info("holding setpoint %.3f with %s: Kp=%.6g Ki=%.6g Kd=%.6g", s.params.Setpoint, s.rule, pid.Kp, pid.Ki, pid.Kd)

	limit := s.opts.HoldLimit
	if limit == 0 && s.timing.manual != nil {
		limit = virtualHoldLimit
	}
	n := 0
	last := s.timing.clock.Now()
	for limit == 0 || n < limit {
		if err := p.Wait(ctx); err != nil {
			return n, err
		}
		now := s.timing.clock.Now()
		if now.Sub(last) < interval {
			continue
		}
		value, _, ok := s.election.ReadActive()
		if !ok {
			metrics.RecordSensorUnavailable()
			ctrl.Reset()
			continue
		}
		out := ctrl.Update(value-s.params.Setpoint, now.Sub(last))
		last = now
		n++
		metrics.ObserveOutput(value, out)
		s.apply(out)
	}
	return n, nil
}

// apply пишет выход на исполнитель, если он изменился. Ошибка записи не прерывает настройку:
// lastOut не меняется, и запись повторяется на следующем цикле.
func (s *session) apply(out float64) {
	if out == s.lastOut {
		return
	}
	if err := s.act.Set(out); err != nil {
		metrics.RecordActuatorError()
		if s.warn.Allow() {
			logger.Warn("actuator %s: %v", s.act.Name(), err)
		}
		return
	}
	s.lastOut = out
}

func (s *session) record(events []autotune.Event) {
	for _, ev := range events {
		s.tlog.Event(ev)
		metrics.RecordEvent(ev)
		switch ev.Kind {
		case autotune.EventStarted:
			logger.Info("autotune started at %.3f (setpoint %.3f)", ev.Input, s.params.Setpoint)
		case autotune.EventRelaySwitched:
			logger.Debug("relay %s, output %.1f", ev.State, ev.Output)
		case autotune.EventPeak:
			logger.Debug("peak %d at %.3f", ev.PeakCount, ev.Input)
		case autotune.EventAmplitude:
			logger.Info("induced amplitude %.4f, deviation %.4f", ev.Amplitude, ev.Deviation)
		case autotune.EventSucceeded:
			logger.Info("autotune succeeded: Ku=%.6g Pu=%.6gs", ev.UltimateGain, ev.UltimatePeriod)
		case autotune.EventFailed:
			logger.Warn("autotune failed after %d peaks", ev.PeakCount)
		}
	}
}

func (s *session) notify(ctx context.Context, level notify.Level, msg string, pid *autotune.PIDParams) {
	n := notify.Notification{
		RunID:        s.runID,
		Level:        level,
		Title:        notifyTitle,
		Message:      msg,
		Coefficients: pid,
		Time:         time.Now(),
	}
	if pid != nil {
		n.Rule = s.rule
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		logger.Warn("notify: %v", err)
	}
}
