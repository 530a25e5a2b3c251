//go:build linux

package actuator

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

type i2cWriter struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

func (w *i2cWriter) Write(data []byte) error {
	return w.dev.Tx(data, nil)
}

func (w *i2cWriter) Close() error {
	return w.bus.Close()
}

// initHost регистрирует драйверы шин хоста (sysfs /dev/i2c-*). Без этого в i2creg нет ни одной шины.
func initHost() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	return nil
}

// NewMCP4725 открывает шину I2C (например "/dev/i2c-1" или "1") и ЦАП по адресу addr.
func NewMCP4725(bus string, addr int) (*MCP4725, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("i2c open %s: %w", bus, err)
	}
	w := &i2cWriter{bus: b, dev: &i2c.Dev{Addr: uint16(addr), Bus: b}}
	return newMCP4725(w, fmt.Sprintf("mcp4725:%s@0x%02x", bus, addr)), nil
}
