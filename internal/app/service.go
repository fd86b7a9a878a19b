package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"sweetalert/internal/alert"
	"sweetalert/internal/clock"
	"sweetalert/internal/config"
	"sweetalert/internal/logging"
	"sweetalert/internal/session"
	"sweetalert/internal/view"
	"sweetalert/internal/web"
)

const (
	storeInitTimeout = 5 * time.Second
	sweepInterval    = time.Minute
)

// Service composes runtime dependencies and process lifecycle.
// Params: config source and shared runtime components.
// Returns: runnable alert demo service.
type Service struct {
	source    config.ConfigSource
	cfg       config.Config
	cfgMu     sync.Mutex
	logger    *slog.Logger
	closeLog  func()
	store     session.Store
	sweeper   *session.MemoryStore
	sessions  *session.Manager
	handlers  *web.Handlers
	httpSrv   *http.Server
	defaults  atomic.Pointer[alert.Defaults]
	readyFlag atomic.Bool
	clock     clock.Clock
}

// NewService builds service instance from config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	service := &Service{
		source:   source,
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		clock:    clk,
	}
	service.applyAlertDefaults(cfg.Alert)

	if err := service.buildStore(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.buildHTTPServer(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	return service, nil
}

// Handler exposes the HTTP handler chain.
func (s *Service) Handler() http.Handler {
	return s.httpSrv.Handler
}

// AlertDefaults returns the defaults handed to new request builders.
func (s *Service) AlertDefaults() alert.Defaults {
	return *s.defaults.Load()
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	defer shutdownCancel()

	s.cfgMu.Lock()
	cfg := s.cfg
	s.cfgMu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", cfg.HTTP.Listen, "mode", config.NormalizeServiceMode(cfg.Service.Mode))
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if s.sweeper != nil {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-shutdownCtx.Done():
					return
				case <-ticker.C:
					if removed := s.sweeper.Sweep(); removed > 0 {
						s.logger.Debug("expired sessions swept", "removed", removed)
					}
				}
			}
		}()
	}

	if cfg.Service.ReloadEnabled {
		debounce := time.Duration(cfg.Service.ReloadDebounceMS) * time.Millisecond
		go func() {
			err := watchConfig(shutdownCtx, s.source.Path(), debounce, s.logger, func() {
				if err := s.reloadConfig(); err != nil {
					s.logger.Error("reload failed", "error", err.Error())
				}
			})
			if err != nil {
				s.logger.Error("config watcher stopped", "error", err.Error())
			}
		}()
	}

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("session store close failed", "error", err.Error())
		markErr(fmt.Errorf("session store close: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildStore creates the session backend selected by service.mode.
// Params: none.
// Returns: backend connection error.
func (s *Service) buildStore() error {
	switch config.NormalizeServiceMode(s.cfg.Service.Mode) {
	case config.ServiceModeNATS:
		store, err := session.NewNATSStore(config.DeriveNATSSessionConfig(s.cfg))
		if err != nil {
			return err
		}
		s.store = store
	case config.ServiceModeRedis:
		ctx, cancel := context.WithTimeout(context.Background(), storeInitTimeout)
		defer cancel()
		store, err := session.NewRedisStore(ctx, config.DeriveRedisSessionConfig(s.cfg))
		if err != nil {
			return err
		}
		s.store = store
	default:
		store := session.NewMemoryStore(s.clock.Now, s.cfg.Session.IdleTTL())
		s.store = store
		s.sweeper = store
	}
	return nil
}

// buildHTTPServer wires router with demo and health endpoints.
// Params: none.
// Returns: setup error.
func (s *Service) buildHTTPServer() error {
	renderer, err := view.NewRenderer(s.cfg.Alert.ScriptTemplate)
	if err != nil {
		return err
	}

	root := http.NewServeMux()
	root.HandleFunc("GET "+s.cfg.HTTP.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	root.HandleFunc("GET "+s.cfg.HTTP.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})

	// Health checks stay outside the session chain so they never receive a cookie.
	pages := http.NewServeMux()
	s.handlers = web.NewHandlers(renderer, s.logger, s.cfg.Service.Name)
	s.handlers.Register(pages)
	s.sessions = session.NewManager(s.store, s.cfg.Session, s.logger)
	root.Handle("/", s.sessions.Middleware(web.AlertMiddleware(s.AlertDefaults, s.logger)(pages)))

	s.httpSrv = &http.Server{
		Addr:              s.cfg.HTTP.Listen,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// reloadConfig loads a new snapshot and applies its alert settings.
// Params: none.
// Returns: load or apply error; the running config is kept on failure.
func (s *Service) reloadConfig() error {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	nextCfg, err := config.LoadSnapshot(s.source)
	if err != nil {
		return err
	}
	if config.NormalizeServiceMode(nextCfg.Service.Mode) != config.NormalizeServiceMode(s.cfg.Service.Mode) {
		return fmt.Errorf("service.mode change requires restart")
	}
	renderer, err := view.NewRenderer(nextCfg.Alert.ScriptTemplate)
	if err != nil {
		return err
	}

	s.handlers.SetRenderer(renderer)
	s.applyAlertDefaults(nextCfg.Alert)
	s.cfg = nextCfg
	s.logger.Info("configuration reloaded")
	return nil
}

func (s *Service) applyAlertDefaults(cfg config.AlertConfig) {
	defaults := alert.Defaults{}
	if cfg.AutocloseMS != nil {
		autoclose := *cfg.AutocloseMS
		defaults.AutocloseMS = &autoclose
	}
	s.defaults.Store(&defaults)
}
