package sensor

import (
	"time"

	"github.com/shiwa/valve-autotune/internal/plant"
)

// Sim — датчик на модели процесса (сухой прогон без оборудования).
type Sim struct {
	plant *plant.Plant
	now   func() time.Time
}

// NewSim читает модель p в моменты now().
func NewSim(p *plant.Plant, now func() time.Time) *Sim {
	if now == nil {
		now = time.Now
	}
	return &Sim{plant: p, now: now}
}

func (s *Sim) Name() string { return "sim:plant" }

func (s *Sim) Kind() string { return "sim" }

func (s *Sim) Read() (float64, Status) {
	if s.plant == nil {
		return 0, StatusUnavailable
	}
	return s.plant.Value(s.now()), StatusOK
}

func (s *Sim) Close() error { return nil }
