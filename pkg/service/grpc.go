package service

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// GRPCService serves a gRPC server.
type GRPCService struct {
	name             string
	addr             string
	register         func(*grpc.Server)
	serverOpts       []grpc.ServerOption
	shutdownTimeout  time.Duration
	enableReflection bool

	mu       sync.Mutex
	server   *grpc.Server
	listener net.Listener
	started  bool
}

// GRPCServiceOption configures a GRPCService.
type GRPCServiceOption func(*GRPCService)

// WithGRPCShutdownTimeout bounds Stop when its context has no deadline.
// After it expires in-flight RPCs are cancelled.
func WithGRPCShutdownTimeout(d time.Duration) GRPCServiceOption {
	return func(s *GRPCService) { s.shutdownTimeout = d }
}

// WithReflection registers the reflection service.
func WithReflection(enable bool) GRPCServiceOption {
	return func(s *GRPCService) { s.enableReflection = enable }
}

// WithServerOptions passes opts to grpc.NewServer. Bootstrap.GRPCServerOptions
// returns the trace-aware interceptor chain.
func WithServerOptions(opts ...grpc.ServerOption) GRPCServiceOption {
	return func(s *GRPCService) { s.serverOpts = append(s.serverOpts, opts...) }
}

// NewGRPCService creates a service on addr. register is called with the
// server before it starts serving.
func NewGRPCService(name, addr string, register func(*grpc.Server), opts ...GRPCServiceOption) *GRPCService {
	s := &GRPCService{
		name:            name,
		addr:            addr,
		register:        register,
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and serves in the background.
func (s *GRPCService) Start(ctx context.Context) error {
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
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.server = grpc.NewServer(s.serverOpts...)
	if s.register != nil {
		s.register(s.server)
	}
	if s.enableReflection {
		reflection.Register(s.server)
	}
	go func(srv *grpc.Server) {
		_ = srv.Serve(ln)
	}(s.server)

	s.started = true
	return nil
}

// Stop drains in-flight RPCs, forcing the server down once ctx expires.
func (s *GRPCService) Stop(ctx context.Context) error {
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

	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	var err error
	select {
	case <-stopped:
	case <-ctx.Done():
		server.Stop()
		err = fmt.Errorf("failed to gracefully stop gRPC service %s: %w", s.name, ctx.Err())
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return err
}

// Name returns the service name.
func (s *GRPCService) Name() string {
	return s.name
}

// Addr returns the bound address, or the configured one before Start.
func (s *GRPCService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Health returns an error unless the server is running.
func (s *GRPCService) Health() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return fmt.Errorf("service %s not running", s.name)
	}
	return nil
}
