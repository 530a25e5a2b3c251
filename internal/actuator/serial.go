package actuator

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

const defaultSerialFormat = "%.1f\n"

// Serial — устройство, принимающее выход текстовой командой по последовательному порту
// (контроллер клапана, реле с ШИМ).
type Serial struct {
	mu     sync.Mutex
	port   io.WriteCloser
	device string
	format string
}

// NewSerial открывает порт. format — fmt-шаблон с одним %f, по умолчанию "%.1f\n".
func NewSerial(device string, baud int, format string) (*Serial, error) {
	if baud == 0 {
		baud = 9600
	}
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", device, err)
	}
	return newSerial(port, device, format), nil
}

func newSerial(w io.WriteCloser, device, format string) *Serial {
	if format == "" {
		format = defaultSerialFormat
	}
	return &Serial{port: w, device: device, format: format}
}

// Name возвращает имя устройства
func (s *Serial) Name() string {
	return fmt.Sprintf("serial:%s", s.device)
}

// Set отправляет команду с выходом.
func (s *Serial) Set(percent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.port, s.format, clampPercent(percent)); err != nil {
		return fmt.Errorf("%s: %w", s.Name(), err)
	}
	return nil
}

// Close выставляет 0 и закрывает порт.
func (s *Serial) Close() error {
	err := s.Set(0)
	if cerr := s.port.Close(); err == nil {
		err = cerr
	}
	return err
}
