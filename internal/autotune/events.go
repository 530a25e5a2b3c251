package autotune

import "time"

// EventKind — тип диагностического события Step.
type EventKind string

const (
	EventStarted       EventKind = "started"
	EventRelaySwitched EventKind = "relay_switched"
	EventPeak          EventKind = "peak"
	EventAmplitude     EventKind = "amplitude"
	EventSucceeded     EventKind = "succeeded"
	EventFailed        EventKind = "failed"
)

// Event — структурированная запись о ходе настройки. Step ничего не пишет сам:
// события возвращаются вызывающему, который решает, куда их отправить (tunelog, метрики, никуда).
type Event struct {
	Kind      EventKind `json:"kind"`
	Time      time.Time `json:"time"`
	State     State     `json:"state"`
	Input     float64   `json:"input"`
	Output    float64   `json:"output"`
	PeakCount int       `json:"peak_count"`

	// Заполняются для EventAmplitude и EventSucceeded.
	Amplitude float64 `json:"amplitude,omitempty"`
	Deviation float64 `json:"deviation,omitempty"`

	// Заполняются для EventSucceeded.
	UltimateGain   float64 `json:"ultimate_gain,omitempty"`
	UltimatePeriod float64 `json:"ultimate_period,omitempty"`
}
