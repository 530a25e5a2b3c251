// Package plant — модель процесса первого порядка с транспортной задержкой (FOPDT)
// для сухих прогонов автонастройки и тестов:
//
//	dy/dt = (Bias + Gain*u(t - DeadTime) - y) / TimeConstant
package plant

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// substep — шаг интегрирования.
const substep = 100 * time.Millisecond

// Config — параметры модели.
type Config struct {
	Gain         float64       // изменение y на единицу входа в установившемся режиме
	Bias         float64       // y при нулевом входе
	TimeConstant time.Duration // постоянная времени
	DeadTime     time.Duration // транспортная задержка входа
	Initial      float64       // начальное значение y
	Noise        float64       // амплитуда равномерного шума измерения, 0 = без шума
	Seed         int64
}

// Default — реверсивный процесс: открытие клапана (вход 0..100) опускает уровень с 20 до 0.
func Default() Config {
	return Config{
		Gain:         -0.2,
		Bias:         20,
		TimeConstant: 20 * time.Second,
		DeadTime:     4 * time.Second,
		Initial:      20,
	}
}

// Validate проверяет параметры модели.
func (c Config) Validate() error {
	if c.TimeConstant <= 0 {
		return fmt.Errorf("plant: time constant must be positive (got %v)", c.TimeConstant)
	}
	if c.DeadTime < 0 {
		return fmt.Errorf("plant: dead time must not be negative (got %v)", c.DeadTime)
	}
	if c.Noise < 0 {
		return fmt.Errorf("plant: noise must not be negative (got %v)", c.Noise)
	}
	return nil
}

type inputChange struct {
	at time.Time
	u  float64
}

// Plant — модель, интегрируемая лениво до запрошенного момента времени.
// Безопасна для одновременного использования датчиком и исполнителем.
type Plant struct {
	mu     sync.Mutex
	cfg    Config
	y      float64
	t      time.Time
	inputs []inputChange
	rng    *rand.Rand
}

// New создаёт модель, стартующую в момент start.
func New(cfg Config, start time.Time) (*Plant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Plant{
		cfg:    cfg,
		y:      cfg.Initial,
		t:      start,
		inputs: []inputChange{{at: start, u: 0}},
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// SetInput продвигает модель до now и меняет вход начиная с now.
func (p *Plant) SetInput(now time.Time, u float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance(now)
	p.inputs = append(p.inputs, inputChange{at: now, u: u})
}

// Value продвигает модель до now и возвращает измерение (с шумом, если задан).
func (p *Plant) Value(now time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance(now)
	y := p.y
	if p.cfg.Noise > 0 {
		y += (p.rng.Float64()*2 - 1) * p.cfg.Noise
	}
	return y
}

// Input возвращает последний заданный вход.
func (p *Plant) Input() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputs[len(p.inputs)-1].u
}

func (p *Plant) advance(now time.Time) {
	tau := p.cfg.TimeConstant.Seconds()
	for p.t.Before(now) {
		h := now.Sub(p.t)
		if h > substep {
			h = substep
		}
		u := p.inputAt(p.t.Add(-p.cfg.DeadTime))
		target := p.cfg.Bias + p.cfg.Gain*u
		p.y += (target - p.y) * (1 - math.Exp(-h.Seconds()/tau))
		p.t = p.t.Add(h)
	}
	p.prune()
}

// inputAt — вход, действовавший в момент t (история отсортирована по времени).
func (p *Plant) inputAt(t time.Time) float64 {
	u := p.inputs[0].u
	for _, in := range p.inputs {
		if in.at.After(t) {
			break
		}
		u = in.u
	}
	return u
}

// prune отбрасывает изменения входа, которые уже никогда не понадобятся.
func (p *Plant) prune() {
	horizon := p.t.Add(-p.cfg.DeadTime)
	keep := 0
	for i := 1; i < len(p.inputs); i++ {
		if !p.inputs[i].at.After(horizon) {
			keep = i
		}
	}
	if keep > 0 {
		p.inputs = append(p.inputs[:0], p.inputs[keep:]...)
	}
}
