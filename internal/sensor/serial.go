package sensor

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"
)

const defaultSerialTimeout = 2 * time.Second

// Serial — датчик, присылающий значения текстовыми строками по последовательному порту.
// Строка — либо число ("21.75"), либо пары key=value / key:value через запятую или пробел.
type Serial struct {
	rd      *bufio.Reader
	closer  io.Closer
	device  string
	key     string
	scale   Scale
	timeout time.Duration
	partial string
	lastOk  bool
	last    float64
}

// NewSerial открывает последовательный порт.
func NewSerial(device string, baud int, key string, scale Scale, timeout time.Duration) (*Serial, error) {
	if baud == 0 {
		baud = 9600
	}
	if timeout <= 0 {
		timeout = defaultSerialTimeout
	}
	c := &serial.Config{Name: device, Baud: baud, ReadTimeout: timeout}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", device, err)
	}
	return newSerial(port, device, key, scale, timeout), nil
}

func newSerial(rwc io.ReadCloser, device, key string, scale Scale, timeout time.Duration) *Serial {
	if timeout <= 0 {
		timeout = defaultSerialTimeout
	}
	return &Serial{
		rd:      bufio.NewReader(rwc),
		closer:  rwc,
		device:  device,
		key:     key,
		scale:   scale,
		timeout: timeout,
	}
}

// Name возвращает имя датчика
func (s *Serial) Name() string {
	return fmt.Sprintf("serial:%s", s.device)
}

// Kind возвращает тип датчика
func (s *Serial) Kind() string {
	return "serial"
}

// Read читает строки до первой разборной; при таймауте возвращает прошлое значение как stale.
func (s *Serial) Read() (float64, Status) {
	deadline := time.Now().Add(s.timeout)
	for time.Now().Before(deadline) {
		line, err := s.rd.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				return s.fallback()
			}
			// таймаут порта: хвост строки дочитаем при следующем вызове
			s.partial += line
			if line == "" {
				break
			}
			continue
		}
		line, s.partial = s.partial+line, ""
		v, ok := parseReading(line, s.key)
		if !ok {
			continue
		}
		s.last = s.scale.Apply(v)
		s.lastOk = true
		return s.last, StatusOK
	}
	return s.fallback()
}

func (s *Serial) fallback() (float64, Status) {
	if s.lastOk {
		return s.last, StatusStale
	}
	return 0, StatusUnavailable
}

// parseReading извлекает значение из строки датчика. С пустым key берётся первое число.
func parseReading(line, key string) (float64, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return 0, false
	}
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	for _, f := range fields {
		k, v, hasKey := cutPair(f)
		if key != "" && (!hasKey || !strings.EqualFold(k, key)) {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		return x, true
	}
	return 0, false
}

func cutPair(f string) (key, value string, ok bool) {
	if k, v, found := strings.Cut(f, "="); found {
		return strings.TrimSpace(k), strings.TrimSpace(v), true
	}
	if k, v, found := strings.Cut(f, ":"); found {
		return strings.TrimSpace(k), strings.TrimSpace(v), true
	}
	return "", f, false
}

// Close закрывает порт
func (s *Serial) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
