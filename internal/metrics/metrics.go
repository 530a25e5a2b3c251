// Package metrics — метрики Prometheus для хода автонастройки и удержания уставки.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shiwa/valve-autotune/internal/autotune"
)

const namespace = "valve_autotune"

var (
	registerOnce sync.Once

	state = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "state",
		Help:      "Autotune state (0 off, 1 step up, 2 step down, 3 succeeded, 4 failed).",
	})
	processValue = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_value",
		Help:      "Last accepted process value.",
	})
	setpoint = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "setpoint",
		Help:      "Autotune setpoint.",
	})
	output = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "output",
		Help:      "Last output applied to the actuator (percent).",
	})
	peaks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "peaks_total",
		Help:      "Local extrema detected.",
	})
	relaySwitches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_switches_total",
		Help:      "Relay direction changes.",
	})
	inducedAmplitude = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "induced_amplitude",
		Help:      "Induced oscillation amplitude.",
	})
	ultimateGain = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ultimate_gain",
		Help:      "Ultimate gain Ku of the last successful run.",
	})
	ultimatePeriod = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ultimate_period_seconds",
		Help:      "Ultimate period Pu of the last successful run.",
	})
	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished autotune runs by outcome.",
		},
		[]string{"outcome"},
	)
	sensorUnavailable = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sensor_unavailable_total",
		Help:      "Samples skipped because no sensor had a fresh value.",
	})
	actuatorErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "actuator_errors_total",
		Help:      "Failed actuator writes.",
	})
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(state, processValue, setpoint, output, peaks, relaySwitches,
			inducedAmplitude, ultimateGain, ultimatePeriod, runs, sensorUnavailable, actuatorErrors)
	})
}

// ObserveSample — значение процесса и выход после очередного цикла.
func ObserveSample(s autotune.Snapshot, value float64) {
	RegisterMetrics()
	state.Set(float64(s.State))
	setpoint.Set(s.Setpoint)
	processValue.Set(value)
	output.Set(s.Output)
}

// ObserveOutput — выход режима удержания.
func ObserveOutput(value, out float64) {
	RegisterMetrics()
	processValue.Set(value)
	output.Set(out)
}

// RecordEvent обновляет счётчики по событию автомата.
func RecordEvent(ev autotune.Event) {
	RegisterMetrics()
	switch ev.Kind {
	case autotune.EventPeak:
		peaks.Inc()
	case autotune.EventRelaySwitched:
		relaySwitches.Inc()
	case autotune.EventAmplitude:
		inducedAmplitude.Set(ev.Amplitude)
	case autotune.EventSucceeded:
		ultimateGain.Set(ev.UltimateGain)
		ultimatePeriod.Set(ev.UltimatePeriod)
	}
	state.Set(float64(ev.State))
}

// RecordRun — завершённый запуск: succeeded, failed, canceled, error.
func RecordRun(outcome string) {
	RegisterMetrics()
	runs.WithLabelValues(outcome).Inc()
}

func RecordSensorUnavailable() {
	RegisterMetrics()
	sensorUnavailable.Inc()
}

func RecordActuatorError() {
	RegisterMetrics()
	actuatorErrors.Inc()
}
