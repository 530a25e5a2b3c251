package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/shiwa/valve-autotune/internal/autotune"
	"github.com/shiwa/valve-autotune/internal/plant"
)

// Config — конфигурация valve-autotune. Формат — YAML (по умолчанию) или TOML (*.toml).
type Config struct {
	Autotune AutotuneConfig `yaml:"autotune" toml:"autotune"`
	Sensor   SensorConfig   `yaml:"sensor" toml:"sensor"`
	Actuator ActuatorConfig `yaml:"actuator" toml:"actuator"`
	Pump     []PumpJob      `yaml:"pump" toml:"pump"`
	Hold     HoldConfig     `yaml:"hold" toml:"hold"`
	TuneLog  TuneLogConfig  `yaml:"tunelog" toml:"tunelog"`
	Status   StatusConfig   `yaml:"status" toml:"status"`
	Sim      SimConfig      `yaml:"sim" toml:"sim"`
	Log      LogConfig      `yaml:"log" toml:"log"`
}

// AutotuneConfig — параметры релейной настройки. Числовые поля — указатели: умолчание
// подставляется только для отсутствующего ключа, явный 0 доходит до проверки в autotune.New.
type AutotuneConfig struct {
	Setpoint       *float64 `yaml:"setpoint" toml:"setpoint"` // не задана → ошибка при запуске
	OutputStep     *float64 `yaml:"output_step" toml:"output_step"`
	OutputMin      *float64 `yaml:"output_min" toml:"output_min"`
	OutputMax      *float64 `yaml:"output_max" toml:"output_max"`
	SampleInterval string   `yaml:"sample_interval" toml:"sample_interval"` // например "2s"
	Lookback       string   `yaml:"lookback" toml:"lookback"`               // окно экстремумов, например "30s"
	Noiseband      *float64 `yaml:"noiseband" toml:"noiseband"`
	Rule           string   `yaml:"rule" toml:"rule"` // правило для уведомления и режима hold
	// RequireBelowSetpoint — не начинать, если процесс уже выше уставки.
	RequireBelowSetpoint bool `yaml:"require_below_setpoint" toml:"require_below_setpoint"`
}

// SensorConfig — датчики: сначала primary, при недоступности — secondary.
type SensorConfig struct {
	Primary   []SensorSource `yaml:"primary" toml:"primary"`
	Secondary []SensorSource `yaml:"secondary" toml:"secondary"`
}

// SensorSource — один датчик (kind: serial, file, sim).
type SensorSource struct {
	Kind    string `yaml:"kind" toml:"kind"`
	Disable bool   `yaml:"disable" toml:"disable"`

	// serial
	Device      string `yaml:"device" toml:"device"`
	Baud        int    `yaml:"baud" toml:"baud"`
	Key         string `yaml:"key" toml:"key"` // ключ в строке "key=value"; пусто — первое число
	ReadTimeout string `yaml:"read_timeout" toml:"read_timeout"`

	// file (sysfs, 1-wire)
	Path string `yaml:"path" toml:"path"`

	// пересчёт: value*scale + offset (scale 0 = 1)
	Scale  float64 `yaml:"scale" toml:"scale"`
	Offset float64 `yaml:"offset" toml:"offset"`
}

// ActuatorConfig — исполнительное устройство (kind: mcp4725, serial, sim).
type ActuatorConfig struct {
	Kind string `yaml:"kind" toml:"kind"`

	// mcp4725 (I2C ЦАП)
	Bus     string `yaml:"bus" toml:"bus"`
	Address int    `yaml:"address" toml:"address"`

	// serial
	Device string `yaml:"device" toml:"device"`
	Baud   int    `yaml:"baud" toml:"baud"`
	Format string `yaml:"format" toml:"format"` // fmt-шаблон команды, например "OUT %.1f\n"
}

// PumpJob — вспомогательный процесс на время настройки (например, включение насоса).
type PumpJob struct {
	Path string   `yaml:"path" toml:"path"`
	Args []string `yaml:"args" toml:"args"`
}

// HoldConfig — удержание уставки PID-регулятором после успешной настройки.
type HoldConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Interval string `yaml:"interval" toml:"interval"` // пусто = sample_interval
}

// TuneLogConfig — диагностический журнал настройки.
type TuneLogConfig struct {
	Path string `yaml:"path" toml:"path"` // "-" отключает журнал
}

// StatusConfig — HTTP статус и метрики.
type StatusConfig struct {
	Listen string `yaml:"listen" toml:"listen"` // пусто = выключено
}

// SimConfig — модель процесса для сухого прогона (-sim).
type SimConfig struct {
	Gain         float64 `yaml:"gain" toml:"gain"`
	Bias         float64 `yaml:"bias" toml:"bias"`
	TimeConstant string  `yaml:"time_constant" toml:"time_constant"`
	DeadTime     string  `yaml:"dead_time" toml:"dead_time"`
	Initial      float64 `yaml:"initial" toml:"initial"`
	Noise        float64 `yaml:"noise" toml:"noise"`
	Seed         int64   `yaml:"seed" toml:"seed"`
	// Speedup — во сколько раз симулированное время идёт быстрее реального.
	Speedup float64 `yaml:"speedup" toml:"speedup"`
}

// LogConfig — уровень логирования.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// Значения по умолчанию: полный ход клапана 0..100 %, сэмпл 2 с, окно экстремумов 30 с.
const (
	DefaultOutputStep     = 100
	DefaultOutputMax      = 100
	DefaultSampleInterval = "2s"
	DefaultLookback       = "30s"
	DefaultNoiseband      = 0.5
	DefaultRule           = string(autotune.Brewing)
	DefaultTuneLogPath    = "./logs/valve-autotune.log"
	DefaultI2CBus         = "/dev/i2c-1"
	DefaultI2CAddress     = 0x62
)

// Default возвращает конфиг по умолчанию (уставка не задана).
func Default() *Config {
	sp := plant.Default()
	return &Config{
		Autotune: AutotuneConfig{
			OutputStep:     float64p(DefaultOutputStep),
			OutputMin:      float64p(0),
			OutputMax:      float64p(DefaultOutputMax),
			SampleInterval: DefaultSampleInterval,
			Lookback:       DefaultLookback,
			Noiseband:      float64p(DefaultNoiseband),
			Rule:           DefaultRule,
		},
		Actuator: ActuatorConfig{
			Kind:    "mcp4725",
			Bus:     DefaultI2CBus,
			Address: DefaultI2CAddress,
		},
		TuneLog: TuneLogConfig{Path: DefaultTuneLogPath},
		Sim: SimConfig{
			Gain:         sp.Gain,
			Bias:         sp.Bias,
			TimeConstant: sp.TimeConstant.String(),
			DeadTime:     sp.DeadTime.String(),
			Initial:      sp.Initial,
			Speedup:      1,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load читает конфиг из YAML или TOML (по расширению файла).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	applyDefaults(&c)
	return &c, nil
}

func applyDefaults(c *Config) {
	d := Default()
	a := &c.Autotune
	if a.OutputStep == nil {
		a.OutputStep = d.Autotune.OutputStep
	}
	if a.OutputMin == nil {
		a.OutputMin = d.Autotune.OutputMin
	}
	if a.OutputMax == nil {
		a.OutputMax = d.Autotune.OutputMax
	}
	if a.SampleInterval == "" {
		a.SampleInterval = d.Autotune.SampleInterval
	}
	if a.Lookback == "" {
		a.Lookback = d.Autotune.Lookback
	}
	if a.Noiseband == nil {
		a.Noiseband = d.Autotune.Noiseband
	}
	if a.Rule == "" {
		a.Rule = d.Autotune.Rule
	}
	if c.Actuator.Kind == "" {
		c.Actuator.Kind = d.Actuator.Kind
	}
	if c.Actuator.Bus == "" {
		c.Actuator.Bus = d.Actuator.Bus
	}
	if c.Actuator.Address == 0 {
		c.Actuator.Address = d.Actuator.Address
	}
	if c.TuneLog.Path == "" {
		c.TuneLog.Path = d.TuneLog.Path
	}
	s := &c.Sim
	if s.Gain == 0 && s.Bias == 0 {
		s.Gain, s.Bias = d.Sim.Gain, d.Sim.Bias
		if s.Initial == 0 {
			s.Initial = d.Sim.Initial
		}
	}
	if s.TimeConstant == "" {
		s.TimeConstant = d.Sim.TimeConstant
	}
	if s.DeadTime == "" {
		s.DeadTime = d.Sim.DeadTime
	}
	if s.Speedup <= 0 {
		s.Speedup = d.Sim.Speedup
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// Params переводит секцию autotune в параметры автомата. Проверку значений делает autotune.New.
func (a AutotuneConfig) Params() (autotune.Params, error) {
	p := autotune.DefaultParams()
	p.Setpoint = a.SetpointOr()
	if a.OutputStep != nil {
		p.OutputStep = *a.OutputStep
	}
	if a.OutputMin != nil {
		p.OutputMin = *a.OutputMin
	}
	if a.OutputMax != nil {
		p.OutputMax = *a.OutputMax
	}
	var err error
	if p.SampleInterval, err = time.ParseDuration(a.SampleInterval); err != nil {
		return p, fmt.Errorf("autotune.sample_interval: %w", err)
	}
	if p.Lookback, err = time.ParseDuration(a.Lookback); err != nil {
		return p, fmt.Errorf("autotune.lookback: %w", err)
	}
	if a.Noiseband != nil {
		p.Noiseband = *a.Noiseband
	}
	return p, nil
}

// TuningRule проверяет имя правила из конфига.
func (a AutotuneConfig) TuningRule() (autotune.Rule, error) {
	return autotune.ParseRule(a.Rule)
}

// HoldInterval — период регулятора удержания (по умолчанию — интервал сэмплов).
func (c *Config) HoldInterval() time.Duration {
	if d, err := time.ParseDuration(c.Hold.Interval); err == nil && d > 0 {
		return d
	}
	if d, err := time.ParseDuration(c.Autotune.SampleInterval); err == nil && d > 0 {
		return d
	}
	return 2 * time.Second
}

// PlantConfig переводит секцию sim в параметры модели процесса.
func (s SimConfig) PlantConfig() (plant.Config, error) {
	tc, err := time.ParseDuration(s.TimeConstant)
	if err != nil {
		return plant.Config{}, fmt.Errorf("sim.time_constant: %w", err)
	}
	dt, err := time.ParseDuration(s.DeadTime)
	if err != nil {
		return plant.Config{}, fmt.Errorf("sim.dead_time: %w", err)
	}
	cfg := plant.Config{
		Gain:         s.Gain,
		Bias:         s.Bias,
		TimeConstant: tc,
		DeadTime:     dt,
		Initial:      s.Initial,
		Noise:        s.Noise,
		Seed:         s.Seed,
	}
	return cfg, cfg.Validate()
}

// SetpointOr возвращает уставку или NaN, если она не задана.
func (a AutotuneConfig) SetpointOr() float64 {
	if a.Setpoint == nil {
		return math.NaN()
	}
	return *a.Setpoint
}

func float64p(v float64) *float64 {
	return &v
}
