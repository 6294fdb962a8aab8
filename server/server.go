package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ChuckBuilds/ledmatrix-news/pkg/domain"
	"github.com/ChuckBuilds/ledmatrix-news/pkg/ticker"
)

// Server represents HTTP server instance
type Server struct {
	config    ConfigProvider
	ticker    Ticker
	scheduler Scheduler
	registry  Registry
	cache     Cache
	version   string
	debug     bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Ticker interface for render state queries
type Ticker interface {
	State() domain.TickerState
	Headlines() []domain.Headline
	CurrentFrame() ticker.Frame
}

// Scheduler interface for on-demand operations
type Scheduler interface {
	RefreshNow(ctx context.Context) error
}

// Registry interface for feed enumeration
type Registry interface {
	All() []domain.Feed
	ResolveLogo(feedName string) string
}

// Cache interface for headline cache status
type Cache interface {
	LastUpdate(ctx context.Context) (time.Time, error)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, tick Ticker, scheduler Scheduler, registry Registry, cache Cache, version string, debug bool) *Server {
	s := &Server{
		config:    cfg,
		ticker:    tick,
		scheduler: scheduler,
		registry:  registry,
		cache:     cache,
		version:   version,
		debug:     debug,
		router:    routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("ledmatrix-news", "ChuckBuilds", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /headlines", s.headlinesHandler)
		r.HandleFunc("GET /feeds", s.feedsHandler)
		r.HandleFunc("GET /ticker", s.tickerHandler)
		r.HandleFunc("GET /frame", s.frameHandler)
		r.HandleFunc("POST /refresh", s.refreshHandler)
	})

	s.router.Handle("GET /metrics", promhttp.Handler())
}
