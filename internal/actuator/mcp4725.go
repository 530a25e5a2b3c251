package actuator

import (
	"fmt"
	"math"
	"sync"
)

// DACMax — полная шкала 12-битного ЦАП MCP4725.
const DACMax = 4095

// Writer — запись байт на I2C-устройство.
type Writer interface {
	Write(data []byte) error
}

// MCP4725 — ЦАП на шине I2C, управляющий клапаном напряжением 0..Vref.
type MCP4725 struct {
	mu   sync.Mutex
	dev  Writer
	name string
	code uint16
}

func newMCP4725(dev Writer, name string) *MCP4725 {
	return &MCP4725{dev: dev, name: name}
}

// Name возвращает имя устройства
func (m *MCP4725) Name() string {
	return m.name
}

// Set пишет код ЦАП командой fast write.
func (m *MCP4725) Set(percent float64) error {
	code := PercentToCode(percent)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.dev.Write(EncodeFastWrite(code)); err != nil {
		return fmt.Errorf("%s: %w", m.name, err)
	}
	m.code = code
	return nil
}

// Code возвращает последний записанный код.
func (m *MCP4725) Code() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

// Close выставляет 0 и закрывает шину.
func (m *MCP4725) Close() error {
	err := m.Set(0)
	if c, ok := m.dev.(interface{ Close() error }); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// PercentToCode переводит 0..100 % в код 0..4095.
func PercentToCode(percent float64) uint16 {
	return uint16(math.Round(clampPercent(percent) / 100 * DACMax))
}

// EncodeFastWrite — команда fast write: 0b00PD + старшие 4 бита, затем младшие 8 бит (PD = 00, нормальный режим).
func EncodeFastWrite(code uint16) []byte {
	if code > DACMax {
		code = DACMax
	}
	return []byte{byte(code>>8) & 0x0F, byte(code)}
}
