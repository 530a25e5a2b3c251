package sensor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// File — датчик, значение которого читается из файла (sysfs, 1-wire w1_slave, hwmon).
type File struct {
	path  string
	scale Scale
}

// NewFile создаёт файловый датчик. Файл читается заново при каждом Read.
func NewFile(path string, scale Scale) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file sensor: path required")
	}
	return &File{path: path, scale: scale}, nil
}

// Name возвращает имя датчика
func (f *File) Name() string {
	return fmt.Sprintf("file:%s", f.path)
}

// Kind возвращает тип датчика
func (f *File) Kind() string {
	return "file"
}

// Read читает и разбирает файл.
func (f *File) Read() (float64, Status) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, StatusUnavailable
	}
	v, ok := parseFile(string(data))
	if !ok {
		return 0, StatusUnavailable
	}
	return f.scale.Apply(v), StatusOK
}

// parseFile понимает два формата: одно число (hwmon, millidegree) и w1_slave
// ("... crc=xx YES\n... t=21750"). При crc NO значение отбрасывается.
func parseFile(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if i := strings.Index(s, "t="); i >= 0 {
		if strings.Contains(s, "crc=") && !strings.Contains(s, "YES") {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s[i+2:]), 64)
		return v, err == nil
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// Close ничего не делает
func (f *File) Close() error {
	return nil
}
