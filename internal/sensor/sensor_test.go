package sensor

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiwa/valve-autotune/internal/config"
	"github.com/shiwa/valve-autotune/internal/plant"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		line string
		key  string
		want float64
		ok   bool
	}{
		{"21.75\n", "", 21.75, true},
		{"  -3.5  ", "", -3.5, true},
		{"T=21.5,H=40", "t", 21.5, true},
		{"T=21.5,H=40", "h", 40, true},
		{"temp:19.25 hum:50", "temp", 19.25, true},
		{"T=21.5", "p", 0, false},
		{"status ok", "", 0, false},
		{"# comment 12", "", 0, false},
		{"", "", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseReading(tt.line, tt.key)
		assert.Equal(t, tt.ok, ok, "line %q key %q", tt.line, tt.key)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, "line %q key %q", tt.line, tt.key)
		}
	}
}

func TestSerial_Read(t *testing.T) {
	in := io.NopCloser(strings.NewReader("boot\nT=20.5\nT=21.0\n"))
	s := newSerial(in, "test", "T", Scale{Factor: 2, Offset: 1}, 50*time.Millisecond)

	v, st := s.Read()
	assert.Equal(t, StatusOK, st)
	assert.InDelta(t, 42.0, v, 1e-9)

	v, st = s.Read()
	assert.Equal(t, StatusOK, st)
	assert.InDelta(t, 43.0, v, 1e-9)

	// данных больше нет: прошлое значение как stale
	v, st = s.Read()
	assert.Equal(t, StatusStale, st)
	assert.InDelta(t, 43.0, v, 1e-9)
	assert.Equal(t, "serial:test", s.Name())
	assert.NoError(t, s.Close())
}

func TestSerial_PartialLine(t *testing.T) {
	pr, pw := io.Pipe()
	s := newSerial(pr, "pipe", "", Scale{}, time.Second)
	go func() {
		_, _ = pw.Write([]byte("22."))
		_, _ = pw.Write([]byte("5\n"))
	}()
	v, st := s.Read()
	assert.Equal(t, StatusOK, st)
	assert.InDelta(t, 22.5, v, 1e-9)
	_ = pw.Close()
}

func TestSerial_NoData(t *testing.T) {
	s := newSerial(io.NopCloser(strings.NewReader("")), "empty", "", Scale{}, 50*time.Millisecond)
	_, st := s.Read()
	assert.Equal(t, StatusUnavailable, st)
}

func TestFile_Read(t *testing.T) {
	dir := t.TempDir()

	hwmon := filepath.Join(dir, "temp1_input")
	require.NoError(t, os.WriteFile(hwmon, []byte("21750\n"), 0o644))
	f, err := NewFile(hwmon, Scale{Factor: 0.001})
	require.NoError(t, err)
	v, st := f.Read()
	assert.Equal(t, StatusOK, st)
	assert.InDelta(t, 21.75, v, 1e-9)

	w1 := filepath.Join(dir, "w1_slave")
	require.NoError(t, os.WriteFile(w1, []byte("5c 01 4b 46 7f ff 04 10 a1 : crc=a1 YES\n5c 01 4b 46 7f ff 04 10 a1 t=21750\n"), 0o644))
	f, err = NewFile(w1, Scale{Factor: 0.001})
	require.NoError(t, err)
	v, st = f.Read()
	assert.Equal(t, StatusOK, st)
	assert.InDelta(t, 21.75, v, 1e-9)

	require.NoError(t, os.WriteFile(w1, []byte("5c 01 4b 46 7f ff 04 10 a1 : crc=a1 NO\n5c 01 4b 46 7f ff 04 10 a1 t=85000\n"), 0o644))
	_, st = f.Read()
	assert.Equal(t, StatusUnavailable, st)

	missing, err := NewFile(filepath.Join(dir, "nope"), Scale{})
	require.NoError(t, err)
	_, st = missing.Read()
	assert.Equal(t, StatusUnavailable, st)

	_, err = NewFile("", Scale{})
	assert.Error(t, err)
}

func TestSim_Read(t *testing.T) {
	start := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	cfg := plant.Default()
	p, err := plant.New(cfg, start)
	require.NoError(t, err)

	s := NewSim(p, func() time.Time { return start })
	v, st := s.Read()
	assert.Equal(t, StatusOK, st)
	assert.InDelta(t, cfg.Initial, v, 1e-9)
	assert.Equal(t, "sim", s.Kind())
}

func TestNewFromConfig(t *testing.T) {
	start := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	p, err := plant.New(plant.Default(), start)
	require.NoError(t, err)
	env := Env{Plant: p, Now: func() time.Time { return start }}

	s, err := NewFromConfig(config.SensorSource{Kind: "sim"}, env)
	require.NoError(t, err)
	assert.Equal(t, "sim", s.Kind())

	s, err = NewFromConfig(config.SensorSource{Kind: "w1", Path: "/sys/bus/w1/devices/28-0000/w1_slave"}, env)
	require.NoError(t, err)
	assert.Equal(t, "file", s.Kind())

	_, err = NewFromConfig(config.SensorSource{Kind: "sim"}, Env{})
	assert.Error(t, err)

	_, err = NewFromConfig(config.SensorSource{Kind: "thermocouple"}, env)
	assert.ErrorContains(t, err, "unknown sensor kind")

	_, err = NewFromConfig(config.SensorSource{Kind: "sim", Disable: true}, env)
	assert.Error(t, err)

	list, errs := NewList([]config.SensorSource{
		{Kind: "sim"},
		{Kind: "bogus"},
		{Kind: "sim", Disable: true},
	}, env)
	assert.Len(t, list, 1)
	assert.Len(t, errs, 1)
}

func TestScale_Apply(t *testing.T) {
	assert.Equal(t, 5.0, Scale{}.Apply(5))
	assert.Equal(t, 11.0, Scale{Factor: 2, Offset: 1}.Apply(5))
}
