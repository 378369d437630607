// Package bridge orchestrates the long-running components of the gateway:
// the HTTP listener, the chat client connection and the maintenance
// scheduler. It owns graceful shutdown ordering.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Connector is the chat client lifecycle consumed by the bridge.
type Connector interface {
	Connect(ctx context.Context) error
	Close()
}

// Bridge runs the gateway's components until the context is cancelled.
type Bridge struct {
	logger          *slog.Logger
	server          *http.Server
	client          Connector
	scheduler       *Scheduler
	shutdownTimeout time.Duration
}

// New creates a Bridge serving handler on addr. scheduler may be nil when no
// periodic tasks are configured.
func New(logger *slog.Logger, addr string, handler http.Handler, client Connector, scheduler *Scheduler, shutdownTimeout time.Duration) *Bridge {
	return &Bridge{
		logger: logger.With("component", "bridge"),
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		client:          client,
		scheduler:       scheduler,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run starts all components and blocks until the context is cancelled or a
// component fails. Shutdown is graceful: the HTTP listener drains in-flight
// requests, the scheduler waits for running jobs, the client disconnects last.
func (b *Bridge) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Connecting chat client...")
		if err := b.client.Connect(gCtx); err != nil {
			return fmt.Errorf("failed to connect chat client: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, disconnecting chat client...")
		b.client.Close()
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting HTTP listener...", "addr", b.server.Addr)
		if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http listener failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), b.shutdownTimeout)
		defer cancel()

		b.logger.Info("Shutting down HTTP listener...")
		if err := b.server.Shutdown(shutdownCtx); err != nil {
			b.logger.Error("HTTP shutdown error", "error", err)
			return fmt.Errorf("http shutdown failed: %w", err)
		}
		return nil
	})

	if b.scheduler != nil {
		g.Go(func() error {
			if err := b.scheduler.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			b.logger.Info("Stopping scheduler...")
			if err := b.scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	b.logger.Info("Bridge running")
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bridge stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bridge stopped gracefully")
	return nil
}
