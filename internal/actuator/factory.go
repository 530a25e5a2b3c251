package actuator

import (
	"fmt"

	"github.com/shiwa/valve-autotune/internal/config"
	"github.com/shiwa/valve-autotune/internal/sensor"
)

// NewFromConfig создаёт Actuator из секции actuator. Env — та же модель, что у датчиков.
func NewFromConfig(c config.ActuatorConfig, env sensor.Env) (Actuator, error) {
	switch c.Kind {
	case "mcp4725", "":
		bus := c.Bus
		if bus == "" {
			bus = config.DefaultI2CBus
		}
		addr := c.Address
		if addr == 0 {
			addr = config.DefaultI2CAddress
		}
		return NewMCP4725(bus, addr)
	case "serial":
		if c.Device == "" {
			return nil, fmt.Errorf("serial actuator: device required")
		}
		return NewSerial(c.Device, c.Baud, c.Format)
	case "sim":
		if env.Plant == nil {
			return nil, fmt.Errorf("sim actuator: no plant model (run with -sim)")
		}
		return NewSim(env.Plant, env.Now), nil
	default:
		return nil, fmt.Errorf("unknown actuator kind: %q", c.Kind)
	}
}
