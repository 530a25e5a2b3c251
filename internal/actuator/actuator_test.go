package actuator

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiwa/valve-autotune/internal/config"
	"github.com/shiwa/valve-autotune/internal/plant"
	"github.com/shiwa/valve-autotune/internal/sensor"
)

type fakeBus struct {
	writes [][]byte
	err    error
	closed bool
}

func (f *fakeBus) Write(data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeBus) Close() error {
	f.closed = true
	return nil
}

type bufCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufCloser) Close() error {
	b.closed = true
	return nil
}

func TestPercentToCode(t *testing.T) {
	assert.Equal(t, uint16(0), PercentToCode(0))
	assert.Equal(t, uint16(4095), PercentToCode(100))
	assert.Equal(t, uint16(2048), PercentToCode(50))
	assert.Equal(t, uint16(0), PercentToCode(-5))
	assert.Equal(t, uint16(4095), PercentToCode(150))
	assert.Equal(t, uint16(0), PercentToCode(math.NaN()))
}

func TestEncodeFastWrite(t *testing.T) {
	assert.Equal(t, []byte{0x0F, 0xFF}, EncodeFastWrite(4095))
	assert.Equal(t, []byte{0x08, 0x00}, EncodeFastWrite(2048))
	assert.Equal(t, []byte{0x00, 0x00}, EncodeFastWrite(0))
	assert.Equal(t, []byte{0x0F, 0xFF}, EncodeFastWrite(9000))
}

func TestMCP4725_Set(t *testing.T) {
	bus := &fakeBus{}
	m := newMCP4725(bus, "mcp4725:test")

	require.NoError(t, m.Set(100))
	require.NoError(t, m.Set(50))
	assert.Equal(t, [][]byte{{0x0F, 0xFF}, {0x08, 0x00}}, bus.writes)
	assert.Equal(t, uint16(2048), m.Code())

	require.NoError(t, m.Close())
	assert.True(t, bus.closed)
	assert.Equal(t, []byte{0x00, 0x00}, bus.writes[len(bus.writes)-1])

	bus.err = errors.New("nack")
	err := m.Set(10)
	assert.ErrorContains(t, err, "mcp4725:test")
	assert.Equal(t, uint16(0), m.Code())
}

func TestSerial_Set(t *testing.T) {
	buf := &bufCloser{}
	s := newSerial(buf, "ttyTEST", "OUT %.1f\n")
	require.NoError(t, s.Set(42.3))
	require.NoError(t, s.Set(120))
	assert.Equal(t, "OUT 42.3\nOUT 100.0\n", buf.String())

	require.NoError(t, s.Close())
	assert.True(t, buf.closed)
	assert.Equal(t, "OUT 42.3\nOUT 100.0\nOUT 0.0\n", buf.String())

	d := newSerial(&bufCloser{}, "ttyX", "")
	assert.Equal(t, defaultSerialFormat, d.format)
	assert.Equal(t, "serial:ttyX", d.Name())
}

func TestSim_Set(t *testing.T) {
	start := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	p, err := plant.New(plant.Default(), start)
	require.NoError(t, err)
	s := NewSim(p, func() time.Time { return start })

	require.NoError(t, s.Set(75))
	assert.Equal(t, 75.0, p.Input())
	require.NoError(t, s.Close())
	assert.Equal(t, 0.0, p.Input())
}

func TestNewFromConfig(t *testing.T) {
	start := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	p, err := plant.New(plant.Default(), start)
	require.NoError(t, err)
	env := sensor.Env{Plant: p, Now: func() time.Time { return start }}

	a, err := NewFromConfig(config.ActuatorConfig{Kind: "sim"}, env)
	require.NoError(t, err)
	assert.Equal(t, "sim:plant", a.Name())

	_, err = NewFromConfig(config.ActuatorConfig{Kind: "sim"}, sensor.Env{})
	assert.Error(t, err)

	_, err = NewFromConfig(config.ActuatorConfig{Kind: "serial"}, env)
	assert.ErrorContains(t, err, "device required")

	_, err = NewFromConfig(config.ActuatorConfig{Kind: "pneumatic"}, env)
	assert.ErrorContains(t, err, "unknown actuator kind")
}
