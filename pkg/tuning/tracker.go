package tuning

import (
	"sync"

	"github.com/shiwa/valve-autotune/internal/autotune"
	"github.com/shiwa/valve-autotune/internal/status"
)

// tracker — состояние запуска для HTTP статуса (читается из других горутин).
type tracker struct {
	mu sync.Mutex
	r  status.Report
}

func (t *tracker) update(fn func(r *status.Report)) {
	t.mu.Lock()
	fn(&t.r)
	t.mu.Unlock()
}

func (t *tracker) report() status.Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.r
	if t.r.Coefficients != nil {
		r.Coefficients = make(map[autotune.Rule]autotune.PIDParams, len(t.r.Coefficients))
		for k, v := range t.r.Coefficients {
			r.Coefficients[k] = v
		}
	}
	r.Tuner.Peaks = append([]float64(nil), t.r.Tuner.Peaks...)
	return r
}
