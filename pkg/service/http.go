package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/config"
)

// HTTPService serves an http.Handler.
type HTTPService struct {
	name            string
	addr            string
	handler         http.Handler
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	maxHeaderBytes  int

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	started  bool
}

// HTTPServiceOption configures an HTTPService.
type HTTPServiceOption func(*HTTPService)

// WithReadTimeout sets the server read timeout.
func WithReadTimeout(d time.Duration) HTTPServiceOption {
	return func(s *HTTPService) { s.readTimeout = d }
}

// WithWriteTimeout sets the server write timeout.
func WithWriteTimeout(d time.Duration) HTTPServiceOption {
	return func(s *HTTPService) { s.writeTimeout = d }
}

// WithShutdownTimeout bounds Stop when its context has no deadline.
func WithShutdownTimeout(d time.Duration) HTTPServiceOption {
	return func(s *HTTPService) { s.shutdownTimeout = d }
}

// WithMaxHeaderBytes sets the maximum request header size.
func WithMaxHeaderBytes(n int) HTTPServiceOption {
	return func(s *HTTPService) { s.maxHeaderBytes = n }
}

// WithServerConfig applies the timeouts and header limit of cfg. Zero
// values keep the defaults.
func WithServerConfig(cfg config.ServerConfig) HTTPServiceOption {
	return func(s *HTTPService) {
		if cfg.ReadTimeout > 0 {
			s.readTimeout = cfg.ReadTimeout
		}
		if cfg.WriteTimeout > 0 {
			s.writeTimeout = cfg.WriteTimeout
		}
		if cfg.ShutdownTimeout > 0 {
			s.shutdownTimeout = cfg.ShutdownTimeout
		}
		if cfg.MaxHeaderBytes > 0 {
			s.maxHeaderBytes = cfg.MaxHeaderBytes
		}
	}
}

// NewHTTPService creates a service serving handler on addr.
func NewHTTPService(name, addr string, handler http.Handler, opts ...HTTPServiceOption) *HTTPService {
	s := &HTTPService{
		name:            name,
		addr:            addr,
		handler:         handler,
		readTimeout:     10 * time.Second,
		writeTimeout:    10 * time.Second,
		shutdownTimeout: 30 * time.Second,
		maxHeaderBytes:  1 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and serves in the background. Request contexts
// derive from ctx.
func (s *HTTPService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("service %s already started", s.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP service %s: %w", s.name, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.readTimeout,
		WriteTimeout:   s.writeTimeout,
		MaxHeaderBytes: s.maxHeaderBytes,
		BaseContext:    func(net.Listener) context.Context { return ctx },
	}
	go func(srv *http.Server) {
		_ = srv.Serve(ln)
	}(s.server)

	s.started = true
	return nil
}

// Stop shuts the server down gracefully.
func (s *HTTPService) Stop(ctx context.Context) error {
	s.mu.Lock()
	server, started := s.server, s.started
	s.mu.Unlock()

	if !started {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}

	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shutdown HTTP service %s: %w", s.name, err)
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return nil
}

// Name returns the service name.
func (s *HTTPService) Name() string {
	return s.name
}

// Addr returns the bound address, or the configured one before Start.
func (s *HTTPService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Health returns an error unless the server is running.
func (s *HTTPService) Health() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return fmt.Errorf("service %s not running", s.name)
	}
	return nil
}
