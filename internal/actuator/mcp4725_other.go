//go:build !linux

package actuator

import "fmt"

// NewMCP4725 — на не-Linux шина I2C недоступна.
func NewMCP4725(bus string, addr int) (*MCP4725, error) {
	return nil, fmt.Errorf("mcp4725 %s@0x%02x: i2c is only supported on linux", bus, addr)
}
