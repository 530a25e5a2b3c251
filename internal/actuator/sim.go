package actuator

import (
	"time"

	"github.com/shiwa/valve-autotune/internal/plant"
)

// Sim подаёт выход на вход модели процесса.
type Sim struct {
	plant *plant.Plant
	now   func() time.Time
}

// NewSim управляет моделью p; now — источник времени модели.
func NewSim(p *plant.Plant, now func() time.Time) *Sim {
	if now == nil {
		now = time.Now
	}
	return &Sim{plant: p, now: now}
}

func (s *Sim) Name() string { return "sim:plant" }

func (s *Sim) Set(percent float64) error {
	s.plant.SetInput(s.now(), clampPercent(percent))
	return nil
}

func (s *Sim) Close() error { return s.Set(0) }
