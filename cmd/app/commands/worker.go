package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/didregistry/internal/app"
	"github.com/allisson/didregistry/internal/config"
)

type eventWorker interface {
	Start(ctx context.Context) error
}

type certificateExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// RunWorker runs the outbox workers and the periodic certificate expiry sweep. Cascade
// outcome metrics are recorded here, so the metrics server is started too when enabled.
func RunWorker(ctx context.Context, version string, expiryInterval time.Duration) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	container := app.NewContainer(cfg).WithVersion(version)
	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))
	defer closeContainer(container, logger)

	worker, err := container.OutboxUseCase(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize outbox worker: %w", err)
	}

	certificates, err := container.CertificateUseCase(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize certificate use case: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var servers []stoppable
	if metricsServer != nil {
		servers = append(servers, metricsServer)
	}
	return runWorker(ctx, logger, worker, certificates, expiryInterval, servers...)
}

func runWorker(
	ctx context.Context,
	logger *slog.Logger,
	worker eventWorker,
	expirer certificateExpirer,
	expiryInterval time.Duration,
	servers ...stoppable,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Start(gctx)
	})
	if expiryInterval > 0 {
		g.Go(func() error {
			return sweepExpired(gctx, logger, expirer, expiryInterval)
		})
	}
	if len(servers) > 0 {
		g.Go(func() error {
			return serve(gctx, logger, servers...)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("worker stopped")
	return nil
}

// sweepExpired marks lapsed certificates EXPIRED every interval. Failures are logged and
// retried on the next tick.
func sweepExpired(ctx context.Context, logger *slog.Logger, expirer certificateExpirer, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			count, err := expirer.ExpireDue(ctx, time.Now().UTC())
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("certificate expiry sweep failed", slog.Any("error", err))
				}
				continue
			}
			if count > 0 {
				logger.Info("certificates expired", slog.Int("count", count))
			}
		}
	}
}

// RunExpireCertificates runs one expiry sweep immediately.
func RunExpireCertificates(
	ctx context.Context,
	expirer certificateExpirer,
	logger *slog.Logger,
	writer io.Writer,
	now time.Time,
	format string,
) error {
	count, err := expirer.ExpireDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to expire certificates: %w", err)
	}

	logger.Info("certificate expiry completed", slog.Int("expired", count))

	if format == "json" {
		return writeJSON(writer, map[string]any{"expired": count, "as_of": now.Format(time.RFC3339)})
	}
	_, _ = fmt.Fprintf(writer, "Expired %d certificate(s) as of %s\n", count, now.Format(time.RFC3339))
	return nil
}
