// Package service runs HTTP and gRPC servers behind the trace-aware middleware
// chain and shuts them down on signal.
//
// Example usage:
//
//	b, err := service.NewBootstrap(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Cleanup(ctx)
//
//	svc := service.NewHTTPService("api", ":8080", b.HTTPHandler(mux))
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	service.WaitForShutdown(ctx, svc)
package service

import "context"

// Service is a server with a start/stop lifecycle.
type Service interface {
	// Start returns once the service accepts connections.
	Start(ctx context.Context) error

	// Stop waits for in-flight work until ctx expires.
	Stop(ctx context.Context) error

	Name() string

	// Health returns nil while the service is running.
	Health() error
}
