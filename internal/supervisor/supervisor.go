// Package supervisor runs the transport adapters as independent tasks under
// a single shutdown signal.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reelbot/internal/domain"

	"golang.org/x/sync/errgroup"
)

// ErrShutdownTimeout is returned when services do not exit within the grace period.
var ErrShutdownTimeout = errors.New("shutdown timed out")

const DefaultShutdownTimeout = 10 * time.Second

type Config struct {
	Logger          *slog.Logger
	ShutdownTimeout time.Duration
}

// Run starts every service and blocks until all of them have returned.
// Cancelling ctx stops them all; so does the first service that fails.
// A service returning nil before shutdown does not stop the others.
func Run(ctx context.Context, cfg Config, services ...domain.Channel) error {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if len(services) == 0 {
		return errors.New("supervisor: no services to run")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("%s panicked: %v", svc.Name(), p)
				}
			}()
			cfg.Logger.Info("service starting", "service", svc.Name())
			if err := svc.Start(gctx); err != nil {
				cfg.Logger.Error("service failed", "service", svc.Name(), "err", err)
				return fmt.Errorf("%s: %w", svc.Name(), err)
			}
			cfg.Logger.Info("service stopped", "service", svc.Name())
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-gctx.Done():
	}

	cfg.Logger.Info("shutting down services", "timeout", cfg.ShutdownTimeout)
	timer := time.NewTimer(cfg.ShutdownTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err == nil {
			cfg.Logger.Info("shutdown complete")
		}
		return err
	case <-timer.C:
		cfg.Logger.Warn("shutdown timed out, forcing exit")
		return ErrShutdownTimeout
	}
}
