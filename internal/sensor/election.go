package sensor

import "sync"

// Election — выбор активного датчика: сначала primary, при недоступности — secondary.
type Election struct {
	mu        sync.Mutex
	primary   []Sensor
	secondary []Sensor
	active    Sensor
}

// NewElection создаёт выборщик из списков primary и secondary
func NewElection(primary, secondary []Sensor) *Election {
	return &Election{
		primary:   primary,
		secondary: secondary,
	}
}

// Select выбирает первый датчик со свежим значением и возвращает его вместе со значением.
func (e *Election) Select() (Sensor, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectLocked()
}

func (e *Election) selectLocked() (Sensor, float64) {
	for _, group := range [][]Sensor{e.primary, e.secondary} {
		for _, s := range group {
			if v, st := s.Read(); st.IsUsable() {
				e.active = s
				return s, v
			}
		}
	}
	e.active = nil
	return nil, 0
}

// Active возвращает текущий активный датчик (после Select)
func (e *Election) Active() Sensor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// ReadActive читает активный датчик; если он недоступен — выбирает заново.
// ok == false, когда ни один датчик не дал свежего значения.
func (e *Election) ReadActive() (value float64, name string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		if v, st := e.active.Read(); st.IsUsable() {
			return v, e.active.Name(), true
		}
	}
	s, v := e.selectLocked()
	if s == nil {
		return 0, "", false
	}
	return v, s.Name(), true
}

// Close закрывает все датчики.
func (e *Election) Close() error {
	var first error
	for _, group := range [][]Sensor{e.primary, e.secondary} {
		for _, s := range group {
			if err := s.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
