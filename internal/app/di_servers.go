package app

import (
	"context"
	"fmt"

	"github.com/allisson/didregistry/internal/http"
	outboxDomain "github.com/allisson/didregistry/internal/outbox/domain"
	outboxUseCase "github.com/allisson/didregistry/internal/outbox/usecase"
	"github.com/allisson/didregistry/internal/platform"
	"github.com/allisson/didregistry/internal/resolver"
)

// PlatformBootstrapper returns the platform DID bootstrapper.
func (c *Container) PlatformBootstrapper(ctx context.Context) (*platform.Bootstrapper, error) {
	var err error
	c.bootstrapperInit.Do(func() {
		c.bootstrapper, err = c.initPlatformBootstrapper(ctx)
		if err != nil {
			c.initErrors["bootstrapper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["bootstrapper"]; exists {
		return nil, storedErr
	}
	return c.bootstrapper, nil
}

// ResolverService returns the public resolver service.
func (c *Container) ResolverService(ctx context.Context) (*resolver.Service, error) {
	var err error
	c.resolverServiceInit.Do(func() {
		c.resolverService, err = c.initResolverService(ctx)
		if err != nil {
			c.initErrors["resolverService"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["resolverService"]; exists {
		return nil, storedErr
	}
	return c.resolverService, nil
}

// HTTPServer returns the resolver HTTP server.
func (c *Container) HTTPServer(ctx context.Context) (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer(ctx)
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, providerErr := c.MetricsProvider()
		if providerErr != nil {
			err = fmt.Errorf("failed to get metrics provider for metrics server: %w", providerErr)
			c.initErrors["metricsServer"] = err
			return
		}
		c.metricsServer = http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// OutboxUseCase returns the outbox worker with the certificate cascade and notification
// handlers registered.
func (c *Container) OutboxUseCase(ctx context.Context) (outboxUseCase.UseCase, error) {
	var err error
	c.outboxUseCaseInit.Do(func() {
		c.outboxUseCase, err = c.initOutboxUseCase(ctx)
		if err != nil {
			c.initErrors["outboxUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxUseCase"]; exists {
		return nil, storedErr
	}
	return c.outboxUseCase, nil
}

func (c *Container) initPlatformBootstrapper(ctx context.Context) (*platform.Bootstrapper, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for platform bootstrapper: %w", err)
	}

	audit, err := c.AuditLogUseCase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for platform bootstrapper: %w", err)
	}

	return platform.NewBootstrapper(
		c.config.PlatformDomain,
		c.config.PlatformDIDDir,
		txManager,
		audit,
		c.Logger(),
	), nil
}

func (c *Container) initResolverService(ctx context.Context) (*resolver.Service, error) {
	orgRepo, err := c.OrganizationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get organization repository for resolver: %w", err)
	}

	docRepo, err := c.DocumentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get document repository for resolver: %w", err)
	}

	cache, err := c.ResolverCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get cache for resolver: %w", err)
	}

	return resolver.NewService(
		orgRepo,
		docRepo,
		platform.NewDocumentFile(c.config.PlatformDIDDir),
		cache,
		resolver.Config{
			PlatformDomain: c.config.PlatformDomain,
			PlatformName:   c.config.PlatformName,
			CacheTTL:       c.config.ResolverCacheTTL,
		},
		c.Logger(),
	), nil
}

func (c *Container) initHTTPServer(ctx context.Context) (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	service, err := c.ResolverService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get resolver service for http server: %w", err)
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	if c.redisClient != nil {
		redisClient := c.redisClient
		server.AddCheck("redis", http.CheckFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}
	server.SetupRouter(c.config, resolver.NewHandler(service, logger), provider)

	return server, nil
}

func (c *Container) initOutboxUseCase(ctx context.Context) (outboxUseCase.UseCase, error) {
	logger := c.Logger()

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	cascade, err := c.CascadeUseCase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get cascade use case for outbox use case: %w", err)
	}

	notifier, err := c.NotificationService()
	if err != nil {
		return nil, fmt.Errorf("failed to get notification service for outbox use case: %w", err)
	}

	dispatcher := outboxUseCase.NewDispatcher(logger)
	dispatcher.Register(outboxDomain.EventCertificateRevoked, outboxUseCase.Decode(cascade.HandleRevoked))
	dispatcher.Register(outboxDomain.EventCertificateRotated, outboxUseCase.Decode(cascade.HandleRotated))
	dispatcher.Register(outboxDomain.EventNotificationRequested, outboxUseCase.Decode(notifier.Handle))

	useCaseConfig := outboxUseCase.Config{
		Interval:      c.config.OutboxInterval,
		BatchSize:     c.config.OutboxBatchSize,
		MaxRetries:    c.config.OutboxMaxRetries,
		RetryInterval: c.config.OutboxRetryInterval,
		Workers:       c.config.OutboxWorkers,
	}

	return outboxUseCase.NewOutboxUseCase(useCaseConfig, txManager, outboxRepo, dispatcher, logger), nil
}
