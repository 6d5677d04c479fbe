// Package server provides the HTTP API over a unit registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapunits/internal/state"
	"github.com/leapstack-labs/leapunits/internal/watch"
	"github.com/leapstack-labs/leapunits/pkg/registry"
)

// Server is the HTTP API server.
type Server struct {
	holder      *Holder
	store       state.Store
	addr        string
	metricsPath string
	watchFiles  []string
	logger      *slog.Logger
	metrics     *Metrics
}

// Config holds configuration for the API server.
type Config struct {
	Holder *Holder
	// Store enables the definitions and history endpoints. May be nil.
	Store       state.Store
	Addr        string
	MetricsPath string
	// WatchFiles are definition files whose changes trigger a reload.
	WatchFiles []string
	Logger     *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	s := &Server{
		holder:      cfg.Holder,
		store:       cfg.Store,
		addr:        cfg.Addr,
		metricsPath: metricsPath,
		watchFiles:  cfg.WatchFiles,
		logger:      logger,
		metrics:     NewMetrics(),
	}
	s.updateUnitsGauge()
	return s
}

// Handler returns the router serving the API and the metrics endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.logRequests,
		middleware.Recoverer,
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, s.metricsPath, s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/convert", s.handleConvertQuery)
		r.Post("/convert", s.handleConvertJSON)
		r.Get("/dimensionality", s.handleDimensionality)
		r.Get("/base", s.handleBase)
		r.Get("/compatible", s.handleCompatible)
		r.Get("/units", s.handleUnits)
		r.Get("/contexts", s.handleContexts)
		r.Post("/reload", s.handleReload)

		r.Route("/definitions", func(r chi.Router) {
			r.Get("/", s.handleListDefinitions)
			r.Post("/", s.handleDefine)
			r.Delete("/{name}", s.handleDeleteDefinition)
		})
		r.Get("/history", s.handleHistory)
	})

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if len(s.watchFiles) > 0 {
		w, err := watch.New(s.watchFiles, s.onFilesChanged, watch.WithLogger(s.logger))
		if err != nil {
			return err
		}
		eg.Go(func() error {
			return w.Run(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Reload rebuilds the registry.
func (s *Server) Reload() error {
	err := s.holder.Reload()
	s.metrics.observeReload(err)
	if err != nil {
		return err
	}
	s.updateUnitsGauge()
	return nil
}

func (s *Server) onFilesChanged(changed []string) {
	if err := s.Reload(); err != nil {
		s.logger.Error("reload failed, keeping previous registry", "files", changed, "error", err)
		return
	}
	s.logger.Info("registry reloaded", "files", changed, "generation", s.holder.Generation())
}

func (s *Server) updateUnitsGauge() {
	_ = s.holder.Do(func(reg *registry.Registry) error {
		s.metrics.units.Set(float64(len(reg.Units())))
		return nil
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
