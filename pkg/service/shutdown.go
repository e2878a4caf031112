package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/logging"
)

// ShutdownConfig controls WaitForShutdownWithConfig.
type ShutdownConfig struct {
	// Timeout bounds the time given to all services to stop.
	Timeout time.Duration

	// Signals trigger shutdown. Empty means SIGINT and SIGTERM.
	Signals []os.Signal
}

// DefaultShutdownConfig waits 30s for SIGINT or SIGTERM shutdowns.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// WaitForShutdown blocks until SIGINT, SIGTERM or ctx cancellation and then
// stops services in order.
func WaitForShutdown(ctx context.Context, services ...Service) {
	WaitForShutdownWithConfig(ctx, DefaultShutdownConfig(), services...)
}

// WaitForShutdownWithConfig is WaitForShutdown with custom signals and
// timeout. Progress is logged with the logger carried by ctx.
func WaitForShutdownWithConfig(ctx context.Context, cfg ShutdownConfig, services ...Service) {
	logger := logging.FromContext(ctx)

	signals := cfg.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	sigCtx, stop := signal.NotifyContext(ctx, signals...)
	<-sigCtx.Done()
	stop()

	logger.Info().Msg("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	for _, svc := range services {
		if err := svc.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Str(logging.Component, svc.Name()).Msg("service stop failed")
			continue
		}
		logger.Info().Str(logging.Component, svc.Name()).Msg("service stopped")
	}
}

// Run starts services in order and blocks until shutdown. Services started
// before a failing one are stopped again.
func Run(ctx context.Context, services ...Service) error {
	for i, svc := range services {
		if err := svc.Start(ctx); err != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownConfig().Timeout)
			for j := i - 1; j >= 0; j-- {
				_ = services[j].Stop(stopCtx)
			}
			cancel()
			return err
		}
	}
	WaitForShutdown(ctx, services...)
	return nil
}
