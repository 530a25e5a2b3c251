package tuning

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiwa/valve-autotune/internal/autotune"
	"github.com/shiwa/valve-autotune/internal/config"
	"github.com/shiwa/valve-autotune/internal/notify"
	"github.com/shiwa/valve-autotune/internal/status"
)

// simConfig — реверсивный процесс по умолчанию (20 при закрытом клапане, 0 при открытом),
// уставка посередине, окно экстремумов 8 сэмплов.
func simConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	sp := 10.0
	cfg.Autotune.Setpoint = &sp
	cfg.Autotune.SampleInterval = "1s"
	cfg.Autotune.Lookback = "8s"
	cfg.TuneLog.Path = filepath.Join(t.TempDir(), "logs", "valve-autotune.log")
	return cfg
}

func float64p(v float64) *float64 { return &v }

func virtualOpts(rec *notify.Recorder) Options {
	return Options{
		Simulate: true,
		Virtual:  true,
		Clock:    autotune.NewManualClock(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)),
		Notifier: rec,
		Quiet:    true,
	}
}

func TestRun_SimulatedPlantConverges(t *testing.T) {
	cfg := simConfig(t)
	rec := &notify.Recorder{}

	res, err := Run(context.Background(), cfg, virtualOpts(rec))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, autotune.StateSucceeded, res.State)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, autotune.Brewing, res.Rule)
	assert.Greater(t, res.UltimateGain, 0.0)
	// задержка 4s и постоянная 20s дают период автоколебаний порядка 20s
	assert.Greater(t, res.UltimatePeriod, 8.0)
	assert.Less(t, res.UltimatePeriod, 60.0)
	assert.Len(t, res.Coefficients, len(autotune.Rules()))
	assert.Less(t, res.Samples, 20*60)

	want, err := autotune.Derive(autotune.Brewing, res.UltimateGain, res.UltimatePeriod)
	require.NoError(t, err)
	assert.Equal(t, want, res.Coefficients[autotune.Brewing])

	all := rec.All()
	require.GreaterOrEqual(t, len(all), 2)
	assert.Equal(t, notify.LevelInfo, all[0].Level)
	last := all[len(all)-1]
	assert.Equal(t, notify.LevelSuccess, last.Level)
	assert.Equal(t, res.RunID, last.RunID)
	require.NotNil(t, last.Coefficients)
	assert.Equal(t, want, *last.Coefficients)

	data, err := os.ReadFile(cfg.TuneLog.Path)
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, `"run_id":"`+res.RunID+`"`)
	assert.Contains(t, log, `"kind":"succeeded"`)
	assert.Equal(t, len(autotune.Rules()), strings.Count(log, `"message":"coefficients"`))
	// уведомления дублируются в журнал настройки
	assert.Equal(t, len(all), strings.Count(log, `"message":"notification"`))
	assert.Contains(t, log, `"notify_level":"success"`)
}

func TestRun_MissingSetpoint(t *testing.T) {
	cfg := simConfig(t)
	cfg.Autotune.Setpoint = nil
	rec := &notify.Recorder{}

	res, err := Run(context.Background(), cfg, virtualOpts(rec))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, autotune.ErrMissingSetpoint)

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelError, last.Level)
}

func TestRun_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   error
	}{
		{"step", func(c *config.Config) { c.Autotune.OutputStep = float64p(0.5) }, autotune.ErrInvalidOutputStep},
		{"sample", func(c *config.Config) { c.Autotune.SampleInterval = "500ms" }, autotune.ErrInvalidSampleInterval},
		{"lookback", func(c *config.Config) { c.Autotune.Lookback = "500ms" }, autotune.ErrInvalidLookback},
		{"range", func(c *config.Config) { c.Autotune.OutputMin, c.Autotune.OutputMax = float64p(50), float64p(50) }, autotune.ErrInvalidOutputRange},
		{"rule", func(c *config.Config) { c.Autotune.Rule = "magic" }, autotune.ErrUnknownTuningRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := simConfig(t)
			tt.mutate(cfg)
			_, err := Run(context.Background(), cfg, virtualOpts(&notify.Recorder{}))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRun_AboveSetpoint(t *testing.T) {
	cfg := simConfig(t)
	cfg.Autotune.RequireBelowSetpoint = true // модель стартует с 20 при уставке 10
	rec := &notify.Recorder{}

	res, err := Run(context.Background(), cfg, virtualOpts(rec))
	assert.ErrorIs(t, err, ErrAboveSetpoint)
	require.NotNil(t, res)
	assert.Equal(t, autotune.State(0), res.State)

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelWarning, last.Level)
}

func TestRun_Canceled(t *testing.T) {
	cfg := simConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, cfg, virtualOpts(&notify.Recorder{}))
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestRun_Hold(t *testing.T) {
	cfg := simConfig(t)
	cfg.Hold.Enabled = true
	opts := virtualOpts(&notify.Recorder{})
	opts.HoldLimit = 30

	res, err := Run(context.Background(), cfg, opts)
	require.NoError(t, err)
	assert.Equal(t, autotune.StateSucceeded, res.State)
	assert.Equal(t, 30, res.HoldSamples)
}

func TestRun_HoldVirtualIsBounded(t *testing.T) {
	cfg := simConfig(t)
	cfg.Hold.Enabled = true

	res, err := Run(context.Background(), cfg, virtualOpts(&notify.Recorder{}))
	require.NoError(t, err)
	assert.Equal(t, virtualHoldLimit, res.HoldSamples)
}

func TestRun_NoSensor(t *testing.T) {
	cfg := simConfig(t)
	opts := virtualOpts(&notify.Recorder{})
	opts.Simulate = false

	_, err := Run(context.Background(), cfg, opts)
	assert.ErrorIs(t, err, ErrNoSensor)
}

func TestScaledClock(t *testing.T) {
	start := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	base := autotune.NewManualClock(start)
	c := &scaledClock{base: base, start: start, speedup: 10}
	base.Advance(3 * time.Second)
	assert.Equal(t, start.Add(30*time.Second), c.Now())
}

func TestManualPacer(t *testing.T) {
	start := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	mc := autotune.NewManualClock(start)
	p := timing{clock: mc, manual: mc, speedup: 1}.pacer(2 * time.Second)
	require.NoError(t, p.Wait(context.Background()))
	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, start.Add(4*time.Second), mc.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
	p.Stop()
}

func TestTracker_ReportIsCopy(t *testing.T) {
	tr := &tracker{}
	tr.update(func(r *status.Report) {
		r.Coefficients = map[autotune.Rule]autotune.PIDParams{autotune.Brewing: {Kp: 1}}
		r.Tuner.Peaks = []float64{1, 2}
	})
	got := tr.report()
	got.Coefficients[autotune.Brewing] = autotune.PIDParams{Kp: 5}
	got.Tuner.Peaks[0] = 9
	again := tr.report()
	assert.Equal(t, 1.0, again.Coefficients[autotune.Brewing].Kp)
	assert.Equal(t, 1.0, again.Tuner.Peaks[0])
}
