// Package notify — уведомления оператору об итогах настройки.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shiwa/valve-autotune/internal/autotune"
	"github.com/shiwa/valve-autotune/internal/logger"
)

// Level — важность уведомления.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification — одно уведомление. Coefficients заполняется при успешной настройке.
type Notification struct {
	RunID        string              `json:"run_id"`
	Level        Level               `json:"level"`
	Title        string              `json:"title"`
	Message      string              `json:"message"`
	Rule         autotune.Rule       `json:"rule,omitempty"`
	Coefficients *autotune.PIDParams `json:"coefficients,omitempty"`
	Time         time.Time           `json:"time"`
}

// Notifier доставляет уведомления.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier пишет уведомления в лог приложения.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	msg := fmt.Sprintf("[%s] %s: %s", n.RunID, n.Title, n.Message)
	if n.Coefficients != nil {
		msg += fmt.Sprintf(" (rule %s: Kp=%.6g Ki=%.6g Kd=%.6g)", n.Rule, n.Coefficients.Kp, n.Coefficients.Ki, n.Coefficients.Kd)
	}
	switch n.Level {
	case LevelError:
		logger.Error("%s", msg)
	case LevelWarning:
		logger.Warn("%s", msg)
	default:
		logger.Info("%s", msg)
	}
	return nil
}

// Multi рассылает уведомление всем получателям; ошибки объединяются.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, x := range m {
		if err := x.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder запоминает уведомления (тесты, статус).
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
	return nil
}

// All возвращает копию полученных уведомлений.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.list...)
}

// Last возвращает последнее уведомление.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) == 0 {
		return Notification{}, false
	}
	return r.list[len(r.list)-1], true
}
