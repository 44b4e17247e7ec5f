package app

import (
	"context"
	"fmt"

	certUseCase "github.com/allisson/didregistry/internal/certificates/usecase"
	docUseCase "github.com/allisson/didregistry/internal/documents/usecase"
	"github.com/allisson/didregistry/internal/integrations/parser"
	"github.com/allisson/didregistry/internal/integrations/registrar"
	"github.com/allisson/didregistry/internal/integrations/signer"
	"github.com/allisson/didregistry/internal/resolver"
)

type signerService interface {
	docUseCase.Signer
	Health(ctx context.Context) error
}

type registrarService interface {
	docUseCase.Registrar
	Health(ctx context.Context) error
}

// Parser returns the remote certificate parser, or the in-process parser when PARSER_URL is
// unset.
func (c *Container) Parser() certUseCase.CertificateParser {
	c.parserInit.Do(func() {
		logger := c.Logger()
		if c.config.ParserURL == "" {
			c.parser = parser.NewLocalParser(logger)
			return
		}
		c.parser = parser.NewClient(c.config.ParserURL, c.config.ParserTimeout, logger)
	})
	return c.parser
}

// Signer returns the signing service client, or the development stub when SIGNER_URL is
// unset.
func (c *Container) Signer() signerService {
	c.signerInit.Do(func() {
		logger := c.Logger()
		if c.config.SignerURL == "" {
			logger.Warn("SIGNER_URL not set, documents are signed with a stub signature")
			c.signer = signer.NewStub(logger)
			return
		}
		c.signer = signer.NewClient(c.config.SignerURL, c.config.SignerWorkerName, c.config.SignerTimeout, logger)
	})
	return c.signer
}

// Registrar returns the DID registrar client, or the development stub when REGISTRAR_URL is
// unset.
func (c *Container) Registrar() registrarService {
	c.registrarInit.Do(func() {
		logger := c.Logger()
		if c.config.RegistrarURL == "" {
			logger.Warn("REGISTRAR_URL not set, DID operations are not forwarded to a registrar")
			c.registrar = registrar.NewStub(logger)
			return
		}
		c.registrar = registrar.NewClient(
			c.config.RegistrarURL,
			c.config.RegistrarNetwork,
			c.config.RegistrarTimeout,
			logger,
		)
	})
	return c.registrar
}

// ResolverCache returns the Redis response cache, or a cache that stores nothing when
// REDIS_URL is unset.
func (c *Container) ResolverCache(ctx context.Context) (resolver.Cache, error) {
	var err error
	c.resolverCacheInit.Do(func() {
		if c.config.RedisURL == "" {
			c.resolverCache = resolver.NopCache{}
			return
		}
		c.redisClient, err = resolver.NewRedisClient(ctx, c.config.RedisURL)
		if err != nil {
			err = fmt.Errorf("failed to connect to redis: %w", err)
			c.initErrors["resolverCache"] = err
			return
		}
		c.resolverCache = resolver.NewRedisCache(c.redisClient, c.config.ResolverCacheTTL)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["resolverCache"]; exists {
		return nil, storedErr
	}
	return c.resolverCache, nil
}
