package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"meridian-hq/nexus/pkg/config"
	"meridian-hq/nexus/pkg/gateway"
	"meridian-hq/nexus/pkg/limits/ratelimit"
	"meridian-hq/nexus/pkg/security/auth"
	"meridian-hq/nexus/pkg/security/secrets"
	tlsutil "meridian-hq/nexus/pkg/security/tls"
	"meridian-hq/nexus/pkg/telemetry/health"
	"meridian-hq/nexus/pkg/telemetry/logging"
	"meridian-hq/nexus/pkg/telemetry/metrics"
	"meridian-hq/nexus/pkg/telemetry/tracing"
)

// ServiceName is reported by GET /.
const ServiceName = "nexus"

// Options configures a Server beyond its configuration file.
type Options struct {
	// ConfigPath is the file reloads read from. Empty disables reload.
	ConfigPath string

	// Logger is the process logger. Nil builds one from the configuration.
	Logger *logging.Logger

	// Version is served on /version and reported as the service version.
	Version health.VersionInfo
}

// Server is the gateway's HTTP server. It owns the gateway registry and
// every background task tied to the process: config watching, scheduled
// catalog refresh and certificate reload.
type Server struct {
	path    string
	cfg     atomic.Pointer[config.Config]
	logger  *logging.Logger
	version health.VersionInfo

	resolver  *secrets.Resolver
	collector *metrics.Collector
	tracer    *tracing.Tracer
	registry  *gateway.Registry
	tokens    *auth.TokenValidator
	limits    atomic.Pointer[ratelimit.Manager]
	checker   *health.Checker
	certs     *tlsutil.CertificateReloader

	refresher *gateway.Refresher
	watcher   *config.Watcher

	reloadMu sync.Mutex

	httpServer   *http.Server
	listener     net.Listener
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New builds a server and its first gateway from cfg. Nothing listens until
// Start is called.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	logger := opts.Logger
	if logger == nil {
		l, err := newLogger(cfg.Telemetry.Logging)
		if err != nil {
			return nil, err
		}
		logger = l
	}
	slogger := logger.Slog()

	s := &Server{
		path:         opts.ConfigPath,
		logger:       logger,
		version:      opts.Version,
		collector:    metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
		tokens:       auth.NewTokenValidator(cfg.TokenMap()),
		checker:      health.New(0),
		shutdownChan: make(chan struct{}),
	}
	s.cfg.Store(cfg)

	resolver, err := config.NewSecretResolver(cfg.Security.Secrets, slogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret resolver: %w", err)
	}
	s.resolver = resolver

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, opts.Version.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	s.tracer = tracer

	if err := s.applyRateLimits(cfg.Security.RateLimit); err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	gw, err := s.buildGateway(cfg)
	if err != nil {
		return nil, err
	}
	s.registry = gateway.NewRegistry(gw, cfg.Gateway.CloseGracePeriod, slogger)

	for _, w := range cfg.Warnings() {
		slogger.Warn("configuration warning", "warning", w)
	}

	s.checker.RegisterCheck("gateway", func(context.Context) error {
		g := s.registry.Current()
		if g == nil || len(g.ProviderNames()) == 0 {
			return errors.New("no providers configured")
		}
		return nil
	})

	var tlsConfig *tls.Config
	if cfg.Security.TLS.Enabled {
		tc := cfg.Security.TLS
		s.certs = tlsutil.NewCertificateReloader(tc.CertFile, tc.KeyFile, tc.ReloadInterval, slogger)
		tlsConfig, err = tlsutil.ServerConfig(&tc, s.certs)
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.checker.RegisterCheck("tls", func(context.Context) error {
			if s.certs.GetCertificate() == nil {
				return errors.New("no certificate loaded")
			}
			return nil
		})
	}

	srv := cfg.Server
	s.httpServer = &http.Server{
		Addr:           srv.ListenAddress,
		Handler:        s.setupRoutes(),
		ReadTimeout:    srv.ReadTimeout,
		WriteTimeout:   srv.WriteTimeout,
		IdleTimeout:    srv.IdleTimeout,
		MaxHeaderBytes: srv.MaxHeaderBytes,
		TLSConfig:      tlsConfig,
		ErrorLog:       slog.NewLogLogger(slogger.Handler(), slog.LevelWarn),
	}
	return s, nil
}

func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
		Redact:    cfg.RedactEnabled(),
		File:      cfg.File,
	})
}

// Start listens and serves until ctx is cancelled, Shutdown is called, or
// the listener fails. Shutdown runs before Start returns.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	cfg := s.cfg.Load()
	tlsEnabled := cfg.Security.TLS.Enabled

	if s.certs != nil {
		if err := s.certs.Start(ctx); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	s.isRunning = true
	s.mu.Unlock()

	log := s.logger.Slog()

	if err := s.startBackground(ctx, cfg); err != nil {
		_ = ln.Close()
		s.markStopped()
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("starting gateway server",
			"address", ln.Addr().String(),
			"tls_enabled", tlsEnabled,
			"providers", len(s.registry.Current().ProviderNames()),
		)

		var err error
		if tlsEnabled {
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return err
	case <-s.shutdownChan:
		log.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// startBackground starts the scheduled refresher and the config watcher.
func (s *Server) startBackground(ctx context.Context, cfg *config.Config) error {
	log := s.logger.Slog()

	if cfg.Gateway.ModelRefreshSchedule != "" {
		s.refresher = gateway.NewRefresher(cfg.Gateway.ModelRefreshSchedule, s.registry.Current, log)
		if err := s.refresher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start model refresher: %w", err)
		}
	}

	if cfg.Watch && s.path != "" {
		w, err := config.NewWatcher(s.path, 0, log)
		if err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
		s.watcher = w
		go func() {
			err := w.Watch(ctx, func() error {
				_, err := s.Reload(ctx)
				return err
			})
			if err != nil {
				log.Error("configuration watcher failed", "error", err)
			}
		}()
	}
	return nil
}

// Stop asks a running Start to shut down and return.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.shutdownChan) })
}

// Shutdown gracefully stops the listener, waits for in-flight requests up
// to the configured shutdown timeout, then stops background tasks and closes
// every gateway.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()

		log := s.logger.Slog()
		timeout := s.cfg.Load().Server.ShutdownTimeout
		log.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var errs []error
		if running {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error("error during server shutdown", "error", err)
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}
		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		if s.refresher != nil {
			s.refresher.Stop()
		}
		if err := s.registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close gateway: %w", err))
		}
		if err := s.tracer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush traces: %w", err))
		}

		s.markStopped()
		shutdownErr = errors.Join(errs...)
		log.Info("gateway server stopped")
	})

	return shutdownErr
}

func (s *Server) markStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// IsRunning returns true if the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listener address, or the configured address before
// Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Gateway returns the gateway serving new requests.
func (s *Server) Gateway() *gateway.Gateway {
	return s.registry.Current()
}

// Config returns the active configuration.
func (s *Server) Config() *config.Config {
	return s.cfg.Load()
}
