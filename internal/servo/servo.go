// Package servo — регулятор удержания уставки по коэффициентам, найденным автонастройкой.
package servo

import (
	"math"
	"time"

	"github.com/shiwa/valve-autotune/internal/autotune"
)

// Algorithm — регулятор: по ошибке и интервалу возвращает выход.
type Algorithm interface {
	Update(err float64, dt time.Duration) (output float64)
	Reset()
}

// PID — PID регулятор с ограничением выхода и условным интегрированием (anti-windup).
//
// Ошибка подаётся как value − setpoint: то же направление действия, что у реле автонастройки
// (ниже уставки — выход меньше).
type PID struct {
	Kp, Ki, Kd float64
	Integral   float64
	LastError  float64
	OutMin     float64
	OutMax     float64
	primed     bool
}

// NewPID создаёт PID с выходом в [outMin, outMax].
func NewPID(kp, ki, kd, outMin, outMax float64) *PID {
	return &PID{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		OutMin: outMin,
		OutMax: outMax,
	}
}

// FromParams создаёт PID из коэффициентов правила настройки.
func FromParams(p autotune.PIDParams, outMin, outMax float64) *PID {
	return NewPID(p.Kp, p.Ki, p.Kd, outMin, outMax)
}

// Update возвращает выход регулятора. Первый вызов после Reset не даёт D-составляющей.
func (p *PID) Update(err float64, dt time.Duration) float64 {
	dtSec := dt.Seconds()
	if dtSec <= 0 || math.IsNaN(err) {
		return p.clamp(p.Kp*p.LastError + p.Ki*p.Integral)
	}
	var derivative float64
	if p.primed {
		derivative = (err - p.LastError) / dtSec
	}
	p.LastError = err
	p.primed = true

	integral := p.Integral + err*dtSec
	raw := p.Kp*err + p.Ki*integral + p.Kd*derivative
	out := p.clamp(raw)
	// интеграл не копится, пока выход упёрт в границу в ту же сторону
	if raw == out || (raw > out && err < 0) || (raw < out && err > 0) {
		p.Integral = integral
	}
	return out
}

func (p *PID) clamp(v float64) float64 {
	return math.Max(p.OutMin, math.Min(p.OutMax, v))
}

// Reset сбрасывает интеграл и последнюю ошибку
func (p *PID) Reset() {
	p.Integral = 0
	p.LastError = 0
	p.primed = false
}
