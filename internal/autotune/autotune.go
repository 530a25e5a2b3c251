// Package autotune — релейная автонастройка PID (relay feedback test).
//
// Процесс раскачивается двухпозиционным (релейным) выходом вокруг уставки; по установившимся
// колебаниям определяются предельный коэффициент Ku и предельный период Pu, из которых по
// табличным правилам (rules.go) выводятся Kp, Ki, Kd.
package autotune

import (
	"fmt"
	"math"
	"time"
)

const (
	// PeakAmplitudeTolerance — порог относительного отклонения амплитуды для сходимости.
	PeakAmplitudeTolerance = 0.8
	// MaxPeaks — после стольких экстремумов без сходимости настройка завершается неудачей (10 периодов).
	MaxPeaks = 20

	peakWindow = 5
)

// State — фаза настройки.
type State int

const (
	StateOff State = iota
	StateStepUp
	StateStepDown
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateStepUp:
		return "relay_step_up"
	case StateStepDown:
		return "relay_step_down"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText — для JSON (события, статус).
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal возвращает true для Succeeded и Failed.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Outcome — результат одного вызова Step.
type Outcome int

const (
	Continuing Outcome = iota
	Converged
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Continuing:
		return "continuing"
	case Converged:
		return "converged"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Params — параметры запуска настройки. Проверяются в New.
type Params struct {
	// Setpoint — уставка; NaN означает «не задана».
	Setpoint float64
	// OutputStep — размах релейного выхода, >= 1.
	OutputStep float64
	// SampleInterval — минимальный интервал между принимаемыми сэмплами, >= 1s.
	SampleInterval time.Duration
	// Lookback — окно поиска локальных экстремумов, >= SampleInterval.
	Lookback time.Duration
	// OutputMin, OutputMax — границы выхода, OutputMin < OutputMax.
	OutputMin, OutputMax float64
	// Noiseband — гистерезис вокруг уставки.
	Noiseband float64
	// Clock — источник времени для Run; nil = SystemClock.
	Clock Clock
}

// DefaultParams возвращает параметры по умолчанию (уставка не задана).
func DefaultParams() Params {
	return Params{
		Setpoint:       math.NaN(),
		OutputStep:     10,
		SampleInterval: 5 * time.Second,
		Lookback:       60 * time.Second,
		OutputMin:      math.Inf(-1),
		OutputMax:      math.Inf(1),
		Noiseband:      0.5,
	}
}

// Validate проверяет параметры в том же порядке, что и New.
func (p Params) Validate() error {
	if math.IsNaN(p.Setpoint) {
		return ErrMissingSetpoint
	}
	if p.OutputStep < 1 || math.IsNaN(p.OutputStep) {
		return fmt.Errorf("%w (got %v)", ErrInvalidOutputStep, p.OutputStep)
	}
	if p.SampleInterval < time.Second {
		return fmt.Errorf("%w (got %v)", ErrInvalidSampleInterval, p.SampleInterval)
	}
	if p.Lookback < p.SampleInterval {
		return fmt.Errorf("%w (lookback %v, sample interval %v)", ErrInvalidLookback, p.Lookback, p.SampleInterval)
	}
	if !(p.OutputMin < p.OutputMax) {
		return fmt.Errorf("%w (min %v, max %v)", ErrInvalidOutputRange, p.OutputMin, p.OutputMax)
	}
	if p.Noiseband < 0 || math.IsNaN(p.Noiseband) {
		return fmt.Errorf("%w (got %v)", ErrInvalidNoiseband, p.Noiseband)
	}
	return nil
}

// WindowSize — ёмкость окна экстремумов: round(lookback / sampleInterval), не меньше 1.
func (p Params) WindowSize() int {
	if p.SampleInterval <= 0 {
		return 1
	}
	n := int(math.Round(float64(p.Lookback) / float64(p.SampleInterval)))
	if n < 1 {
		n = 1
	}
	return n
}

// Autotuner — автомат релейной настройки. Не потокобезопасен: вызовы Step/Run
// должны идти из одной горутины.
type Autotuner struct {
	setpoint       float64
	outputStep     float64
	sampleInterval time.Duration
	outputMin      float64
	outputMax      float64
	noiseband      float64
	clock          Clock

	inputs    *ring[float64]
	peaks     *ring[float64]
	peakTimes *ring[time.Time]

	state            State
	output           float64
	peakType         int // -1 минимум, +1 максимум, 0 ещё не было
	peakCount        int
	initialOutput    float64
	inducedAmplitude float64
	ku               float64
	pu               float64
	lastSample       time.Time
}

// New проверяет параметры и создаёт автомат в состоянии StateOff.
func New(p Params) (*Autotuner, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	clock := p.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Autotuner{
		setpoint:       p.Setpoint,
		outputStep:     p.OutputStep,
		sampleInterval: p.SampleInterval,
		outputMin:      p.OutputMin,
		outputMax:      p.OutputMax,
		noiseband:      p.Noiseband,
		clock:          clock,
		inputs:         newRing[float64](p.WindowSize()),
		peaks:          newRing[float64](peakWindow),
		peakTimes:      newRing[time.Time](peakWindow),
		state:          StateOff,
	}, nil
}

// Run — периодическая точка входа: Step по текущему времени Clock.
// done == true, когда настройка завершилась (успехом или неудачей).
func (a *Autotuner) Run(value float64) (done bool, events []Event) {
	outcome, events := a.Step(value, a.clock.Now())
	return outcome != Continuing, events
}

// Step обрабатывает один сэмпл процесса в момент now.
//
// Из StateOff, StateSucceeded и StateFailed автомат сначала переинициализируется и
// переходит в StateStepUp. В остальных состояниях вызов раньше SampleInterval после
// предыдущего принятого сэмпла ничего не меняет и возвращает Continuing.
func (a *Autotuner) Step(value float64, now time.Time) (Outcome, []Event) {
	var events []Event

	if a.state == StateOff || a.state.Terminal() {
		a.init(now)
		events = append(events, a.event(EventStarted, now, value))
	} else if now.Sub(a.lastSample) < a.sampleInterval {
		return Continuing, nil
	}
	a.lastSample = now

	// реле с гистерезисом
	switched := false
	if a.state == StateStepUp && value > a.setpoint+a.noiseband {
		a.state = StateStepDown
		switched = true
	} else if a.state == StateStepDown && value < a.setpoint-a.noiseband {
		a.state = StateStepUp
		switched = true
	}

	switch a.state {
	case StateStepUp:
		a.output = a.initialOutput - a.outputStep
	case StateStepDown:
		a.output = a.initialOutput + a.outputStep
	}
	a.output = math.Max(math.Min(a.output, a.outputMax), a.outputMin)

	if switched {
		events = append(events, a.event(EventRelaySwitched, now, value))
	}

	isMax, isMin := true, true
	for i := 0; i < a.inputs.Len(); i++ {
		v := a.inputs.At(i)
		isMax = isMax && value > v
		isMin = isMin && value < v
	}
	a.inputs.Push(value)

	// экстремумам нельзя доверять, пока окно не заполнено
	if !a.inputs.Full() {
		return Continuing, events
	}

	inflection := false
	if isMax {
		if a.peakType == -1 {
			inflection = true
		}
		a.peakType = 1
	} else if isMin {
		if a.peakType == 1 {
			inflection = true
		}
		a.peakType = -1
	}

	if inflection {
		a.peakCount++
		a.peaks.Push(value)
		a.peakTimes.Push(now)
		events = append(events, a.event(EventPeak, now, value))
	}

	// сходимость амплитуды по последним пяти экстремумам (1.5 периода)
	if inflection && a.peakCount > 4 {
		amplitude, deviation := a.amplitude()
		a.inducedAmplitude = amplitude
		ev := a.event(EventAmplitude, now, value)
		ev.Deviation = deviation
		events = append(events, ev)
		if deviation < PeakAmplitudeTolerance {
			a.state = StateSucceeded
		}
	}

	if a.peakCount >= MaxPeaks {
		a.output = 0
		a.state = StateFailed
		events = append(events, a.event(EventFailed, now, value))
		return Failed, events
	}

	if a.state == StateSucceeded {
		a.output = 0
		a.ku = 4 * a.outputStep / (a.inducedAmplitude * math.Pi)
		period1 := a.peakTimes.At(3).Sub(a.peakTimes.At(1))
		period2 := a.peakTimes.At(4).Sub(a.peakTimes.At(2))
		a.pu = 0.5 * (period1 + period2).Seconds()
		events = append(events, a.event(EventSucceeded, now, value))
		return Converged, events
	}

	return Continuing, events
}

// amplitude — индуцированная амплитуда и её относительное отклонение по буферу пиков.
// Пустая амплитуда даёт NaN-отклонение, которое не проходит порог.
func (a *Autotuner) amplitude() (amplitude, deviation float64) {
	absMax := a.peaks.At(1)
	absMin := a.peaks.At(1)
	for i := 0; i < a.peaks.Len()-2; i++ {
		p := a.peaks.At(i)
		amplitude += math.Abs(p - a.peaks.At(i+1))
		absMax = math.Max(p, absMax)
		absMin = math.Min(p, absMin)
	}
	amplitude /= 6.0
	deviation = (0.5*(absMax-absMin) - amplitude) / amplitude
	return amplitude, deviation
}

func (a *Autotuner) init(now time.Time) {
	a.peakType = 0
	a.peakCount = 0
	a.output = 0
	a.initialOutput = 0
	a.inducedAmplitude = 0
	a.ku = 0
	a.pu = 0
	a.inputs.Reset()
	a.peaks.Reset()
	a.peakTimes.Reset()
	a.peakTimes.Push(now)
	a.state = StateStepUp
}

// Reset возвращает автомат в StateOff; следующий Step начнёт настройку заново.
func (a *Autotuner) Reset() {
	a.init(time.Time{})
	a.peakTimes.Reset()
	a.lastSample = time.Time{}
	a.state = StateOff
}

func (a *Autotuner) event(kind EventKind, now time.Time, input float64) Event {
	ev := Event{
		Kind:      kind,
		Time:      now,
		State:     a.state,
		Input:     input,
		Output:    a.output,
		PeakCount: a.peakCount,
		Amplitude: a.inducedAmplitude,
	}
	if kind == EventSucceeded {
		ev.UltimateGain = a.ku
		ev.UltimatePeriod = a.pu
	}
	return ev
}

// Coefficients выводит Kp, Ki, Kd по правилу. Доступно только после StateSucceeded.
func (a *Autotuner) Coefficients(r Rule) (PIDParams, error) {
	if a.state != StateSucceeded {
		return PIDParams{}, fmt.Errorf("%w (state %s)", ErrNotTuned, a.state)
	}
	return Derive(r, a.ku, a.pu)
}

// State — текущая фаза настройки.
func (a *Autotuner) State() State { return a.state }

// Output — последняя релейная команда в [OutputMin, OutputMax].
func (a *Autotuner) Output() float64 { return a.output }

// PeakCount — число найденных экстремумов с начала запуска.
func (a *Autotuner) PeakCount() int { return a.peakCount }

// InducedAmplitude — последняя вычисленная амплитуда колебаний (с 5-го экстремума).
func (a *Autotuner) InducedAmplitude() float64 { return a.inducedAmplitude }

// Setpoint — уставка, вокруг которой переключается реле.
func (a *Autotuner) Setpoint() float64 { return a.setpoint }

// SampleInterval — минимальный интервал между принимаемыми сэмплами.
func (a *Autotuner) SampleInterval() time.Duration { return a.sampleInterval }

// WindowSize — ёмкость окна экстремумов.
func (a *Autotuner) WindowSize() int { return a.inputs.Cap() }

// UltimateGain — Ku; имеет смысл только в StateSucceeded.
func (a *Autotuner) UltimateGain() float64 { return a.ku }

// UltimatePeriod — Pu в секундах; имеет смысл только в StateSucceeded.
func (a *Autotuner) UltimatePeriod() float64 { return a.pu }

// Snapshot — копия наблюдаемого состояния для метрик и статуса.
type Snapshot struct {
	State            State     `json:"state"`
	Setpoint         float64   `json:"setpoint"`
	Output           float64   `json:"output"`
	PeakCount        int       `json:"peak_count"`
	Peaks            []float64 `json:"peaks"`
	InducedAmplitude float64   `json:"induced_amplitude"`
	UltimateGain     float64   `json:"ultimate_gain"`
	UltimatePeriod   float64   `json:"ultimate_period"`
	LastSample       time.Time `json:"last_sample"`
}

// Snapshot возвращает копию текущего состояния.
func (a *Autotuner) Snapshot() Snapshot {
	return Snapshot{
		State:            a.state,
		Setpoint:         a.setpoint,
		Output:           a.output,
		PeakCount:        a.peakCount,
		Peaks:            a.peaks.Values(),
		InducedAmplitude: a.inducedAmplitude,
		UltimateGain:     a.ku,
		UltimatePeriod:   a.pu,
		LastSample:       a.lastSample,
	}
}
