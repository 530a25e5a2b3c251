package sensor

import (
	"fmt"
	"time"

	"github.com/shiwa/valve-autotune/internal/config"
	"github.com/shiwa/valve-autotune/internal/plant"
)

// Env — общие зависимости для симулированных датчиков.
type Env struct {
	Plant *plant.Plant
	Now   func() time.Time
}

// NewFromConfig создаёт Sensor из конфига (sensor.primary / sensor.secondary).
func NewFromConfig(c config.SensorSource, env Env) (Sensor, error) {
	if c.Disable {
		return nil, fmt.Errorf("sensor disabled")
	}
	scale := Scale{Factor: c.Scale, Offset: c.Offset}
	switch c.Kind {
	case "serial":
		dev := c.Device
		if dev == "" {
			dev = "/dev/ttyUSB0"
		}
		return NewSerial(dev, c.Baud, c.Key, scale, parseDuration(c.ReadTimeout, defaultSerialTimeout))
	case "file", "w1", "1wire":
		return NewFile(c.Path, scale)
	case "sim":
		if env.Plant == nil {
			return nil, fmt.Errorf("sim sensor: no plant model (run with -sim)")
		}
		return NewSim(env.Plant, env.Now), nil
	default:
		return nil, fmt.Errorf("unknown sensor kind: %q", c.Kind)
	}
}

// NewList создаёт датчики из списка; ошибки отдельных датчиков возвращаются вместе, рабочие — используются.
func NewList(list []config.SensorSource, env Env) ([]Sensor, []error) {
	var out []Sensor
	var errs []error
	for i, c := range list {
		if c.Disable {
			continue
		}
		s, err := NewFromConfig(c, env)
		if err != nil {
			errs = append(errs, fmt.Errorf("sensor %d (%s): %w", i, c.Kind, err))
			continue
		}
		out = append(out, s)
	}
	return out, errs
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
