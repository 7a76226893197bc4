// Package server exposes the alert run as an HTTP trigger.
//
// Routes:
//
//	GET /task/alert    run once; "OK" on success, 500 on fetch/parse failure
//	GET /healthz       liveness
//	GET /deliveries    recent delivery audit records (404 when storage is off)
//	GET /debug/pprof/  profiling, when enabled
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"backlogalert/internal/alert"
	"backlogalert/internal/storage"
	logx "backlogalert/pkg/logx"
)

// Runner is the alert pipeline entry point.
type Runner interface {
	Run(ctx context.Context, trigger string) (alert.Report, error)
}

// DeliveryLister reads the audit log. Nil disables /deliveries.
type DeliveryLister interface {
	RecentDeliveries(ctx context.Context, limit int) ([]storage.DeliveryRecord, error)
}

type Config struct {
	Addr  string
	Mode  string // gin mode; empty keeps release
	Pprof PprofConfig
}

const (
	defaultDeliveryLimit = 20
	maxDeliveryLimit     = 200
)

type Server struct {
	cfg    Config
	log    logx.Logger
	runner Runner
	store  DeliveryLister
	engine *gin.Engine
}

func New(cfg Config, runner Runner, store DeliveryLister, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Mode == "" {
		cfg.Mode = gin.ReleaseMode
	}
	gin.SetMode(cfg.Mode)

	s := &Server{cfg: cfg, log: log, runner: runner, store: store}
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.GET("/healthz", s.health)
	r.GET("/task/alert", s.triggerAlert)
	r.GET("/deliveries", s.listDeliveries)
	s.mountPprof(r)
	s.engine = r
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// An alert run can take a while; leave room for it.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server starting", logx.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("http server shutdown error", logx.Err(err))
		return err
	}
	s.log.Info("http server stopped")
	return <-errCh
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) triggerAlert(c *gin.Context) {
	if _, err := s.runner.Run(c.Request.Context(), "http"); err != nil {
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.String(http.StatusOK, "OK")
}

func (s *Server) listDeliveries(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": storage.ErrDisabled.Error()})
		return
	}
	limit := defaultDeliveryLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxDeliveryLimit)
	}

	recs, err := s.store.RecentDeliveries(c.Request.Context(), limit)
	if errors.Is(err, storage.ErrDisabled) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.log.Warn("list deliveries failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if recs == nil {
		recs = []storage.DeliveryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": recs})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.Int("status", status),
			logx.Duration("took", time.Since(start)),
		}
		if status >= http.StatusInternalServerError {
			s.log.Warn("request", fields...)
			return
		}
		s.log.Debug("request", fields...)
	}
}
