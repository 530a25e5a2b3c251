// Package actuator — исполнительные устройства (клапан, насос), принимающие выход 0..100 %.
package actuator

import "math"

// Actuator — устройство, на которое подаётся выход регулятора.
type Actuator interface {
	// Name возвращает имя устройства для логов
	Name() string
	// Set задаёт выход в процентах; значения вне 0..100 обрезаются
	Set(percent float64) error
	// Close переводит устройство в безопасное состояние (выход 0) и освобождает ресурсы
	Close() error
}

// clampPercent обрезает выход до 0..100; NaN считается нулём.
func clampPercent(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(100, p))
}
