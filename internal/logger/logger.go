// Package logger — единый вывод логов valve-autotune с учётом quiet (zerolog, консольный формат).
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Quiet при true отключает информационные сообщения (Info, Debug); Warn и Error выводятся всегда.
var Quiet bool

var (
	mu  sync.RWMutex
	log = newLogger(os.Stderr, "valve-autotune", zerolog.InfoLevel)
)

func newLogger(w io.Writer, app string, level zerolog.Level) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", app).Logger()
}

// Init настраивает имя приложения и уровень ("debug", "info", "warn", "error"; пусто = info).
func Init(app, level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	mu.Lock()
	log = newLogger(os.Stderr, app, lvl)
	mu.Unlock()
}

// SetOutput перенаправляет вывод (тесты). Формат — JSON без цветов.
func SetOutput(w io.Writer) {
	mu.Lock()
	log = zerolog.New(w).With().Timestamp().Logger()
	mu.Unlock()
}

// Logger возвращает текущий zerolog.Logger для структурированных полей.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug выводит отладочное сообщение, если Quiet == false.
func Debug(format string, args ...interface{}) {
	if Quiet {
		return
	}
	l := Logger()
	l.Debug().Msgf(format, args...)
}

// Info выводит сообщение, если Quiet == false.
func Info(format string, args ...interface{}) {
	if Quiet {
		return
	}
	l := Logger()
	l.Info().Msgf(format, args...)
}

// Warn выводит предупреждение всегда.
func Warn(format string, args ...interface{}) {
	l := Logger()
	l.Warn().Msgf(format, args...)
}

// Error выводит сообщение об ошибке всегда.
func Error(format string, args ...interface{}) {
	l := Logger()
	l.Error().Msgf(format, args...)
}
