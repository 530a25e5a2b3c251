// Package status — HTTP статус настройки: /health, /status, /rules, /metrics.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/shiwa/valve-autotune/internal/autotune"
	"github.com/shiwa/valve-autotune/internal/logger"
	"github.com/shiwa/valve-autotune/internal/metrics"
)

// Report — текущее состояние запуска для /status.
type Report struct {
	RunID        string                               `json:"run_id"`
	Mode         string                               `json:"mode"` // tuning, holding, done
	Sensor       string                               `json:"sensor,omitempty"`
	Actuator     string                               `json:"actuator,omitempty"`
	Rule         autotune.Rule                        `json:"rule"`
	Tuner        autotune.Snapshot                    `json:"tuner"`
	Coefficients map[autotune.Rule]autotune.PIDParams `json:"coefficients,omitempty"`
	Started      time.Time                            `json:"started"`
	Error        string                               `json:"error,omitempty"`
}

// Provider отдаёт текущий Report; вызывается из HTTP-горутин.
type Provider func() Report

// Server — HTTP сервер статуса.
type Server struct {
	router   *gin.Engine
	provider Provider
	appeared time.Time
}

// New создаёт сервер с маршрутами.
func New(provider Provider) *Server {
	metrics.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger.Logger()))
	s := &Server{router: r, provider: provider, appeared: time.Now()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": "valve-autotune",
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.provider())
	})

	s.router.GET("/rules", func(c *gin.Context) {
		type rule struct {
			Name     autotune.Rule       `json:"name"`
			Divisors autotune.Divisors   `json:"divisors"`
			PID      *autotune.PIDParams `json:"pid,omitempty"`
		}
		rep := s.provider()
		var out []rule
		for _, r := range autotune.Rules() {
			d, _ := autotune.RuleDivisors(r)
			item := rule{Name: r, Divisors: d}
			if p, ok := rep.Coefficients[r]; ok {
				item.PID = &p
			}
			out = append(out, item)
		}
		c.JSON(http.StatusOK, gin.H{"rules": out})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler возвращает http.Handler (тесты, встраивание).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run слушает addr до отмены ctx.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("status listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		event := l.Debug()
		if status := c.Writer.Status(); status >= 500 {
			event = l.Error()
		} else if status >= 400 {
			event = l.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	}
}
