// Package sensor — датчики процесса (значение, которое подстраивает автонастройка).
package sensor

// Sensor — источник значения процесса (аналог источника времени: serial, file, sim).
type Sensor interface {
	// Name возвращает имя датчика для логов
	Name() string
	// Kind возвращает тип: serial, file, sim
	Kind() string
	// Read возвращает текущее значение и статус
	Read() (float64, Status)
	// Close освобождает ресурсы
	Close() error
}

// Status — состояние датчика.
type Status int

const (
	StatusUnavailable Status = iota
	StatusStale              // есть только прошлое значение, новое не пришло
	StatusOK                 // свежее значение
)

func (s Status) String() string {
	switch s {
	case StatusUnavailable:
		return "unavailable"
	case StatusStale:
		return "stale"
	case StatusOK:
		return "ok"
	default:
		return "unknown"
	}
}

// IsUsable возвращает true, если значение можно подать в автонастройку.
// Устаревшее значение не годится: повтор одного сэмпла ломает поиск экстремумов.
func (s Status) IsUsable() bool {
	return s == StatusOK
}

// Scale — линейный пересчёт сырого значения: raw*Factor + Offset.
type Scale struct {
	Factor float64
	Offset float64
}

// Apply применяет пересчёт; Factor 0 считается за 1.
func (s Scale) Apply(raw float64) float64 {
	f := s.Factor
	if f == 0 {
		f = 1
	}
	return raw*f + s.Offset
}
