package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	auditRepository "github.com/allisson/didregistry/internal/audit/repository"
	auditService "github.com/allisson/didregistry/internal/audit/service"
	auditUseCase "github.com/allisson/didregistry/internal/audit/usecase"
	"github.com/allisson/didregistry/internal/authz"
	certRepository "github.com/allisson/didregistry/internal/certificates/repository"
	certUseCase "github.com/allisson/didregistry/internal/certificates/usecase"
	docRepository "github.com/allisson/didregistry/internal/documents/repository"
	docUseCase "github.com/allisson/didregistry/internal/documents/usecase"
	"github.com/allisson/didregistry/internal/keeper"
	"github.com/allisson/didregistry/internal/notifications"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
	orgRepository "github.com/allisson/didregistry/internal/organizations/repository"
	orgUseCase "github.com/allisson/didregistry/internal/organizations/usecase"
	outboxRepository "github.com/allisson/didregistry/internal/outbox/repository"
	outboxUseCase "github.com/allisson/didregistry/internal/outbox/usecase"
	"github.com/allisson/didregistry/internal/resolver"
	revocationUseCase "github.com/allisson/didregistry/internal/revocation/usecase"
)

// organizationStore is everything the modules need from the organization repository.
type organizationStore interface {
	orgUseCase.OrganizationRepository
	GetByID(ctx context.Context, id uuid.UUID) (*orgDomain.Organization, error)
	GetMember(ctx context.Context, organizationID, userID uuid.UUID) (*orgDomain.Member, error)
	ListMembersByRole(ctx context.Context, organizationID uuid.UUID, roles ...orgDomain.Role) ([]*orgDomain.Member, error)
}

// OrganizationRepository returns the organization repository based on database driver.
func (c *Container) OrganizationRepository() (organizationStore, error) {
	var err error
	c.orgRepoInit.Do(func() {
		db, dbErr := c.DB()
		if dbErr != nil {
			err = fmt.Errorf("failed to get database for organization repository: %w", dbErr)
		} else {
			switch c.config.DBDriver {
			case "mysql":
				c.orgRepo = orgRepository.NewMySQLOrganizationRepository(db)
			case "postgres":
				c.orgRepo = orgRepository.NewPostgreSQLOrganizationRepository(db)
			default:
				err = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
			}
		}
		if err != nil {
			c.initErrors["orgRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orgRepo"]; exists {
		return nil, storedErr
	}
	return c.orgRepo, nil
}

// CertificateRepository returns the certificate repository based on database driver.
func (c *Container) CertificateRepository() (certUseCase.CertificateRepository, error) {
	var err error
	c.certRepoInit.Do(func() {
		db, dbErr := c.DB()
		if dbErr != nil {
			err = fmt.Errorf("failed to get database for certificate repository: %w", dbErr)
		} else {
			switch c.config.DBDriver {
			case "mysql":
				c.certRepo = certRepository.NewMySQLCertificateRepository(db)
			case "postgres":
				c.certRepo = certRepository.NewPostgreSQLCertificateRepository(db)
			default:
				err = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
			}
		}
		if err != nil {
			c.initErrors["certRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["certRepo"]; exists {
		return nil, storedErr
	}
	return c.certRepo, nil
}

// DocumentRepository returns the document repository based on database driver.
func (c *Container) DocumentRepository() (docUseCase.DocumentRepository, error) {
	var err error
	c.docRepoInit.Do(func() {
		db, dbErr := c.DB()
		if dbErr != nil {
			err = fmt.Errorf("failed to get database for document repository: %w", dbErr)
		} else {
			switch c.config.DBDriver {
			case "mysql":
				c.docRepo = docRepository.NewMySQLDocumentRepository(db)
			case "postgres":
				c.docRepo = docRepository.NewPostgreSQLDocumentRepository(db)
			default:
				err = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
			}
		}
		if err != nil {
			c.initErrors["docRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["docRepo"]; exists {
		return nil, storedErr
	}
	return c.docRepo, nil
}

// VerificationMethodRepository returns the verification method repository based on database
// driver.
func (c *Container) VerificationMethodRepository() (docUseCase.VerificationMethodRepository, error) {
	var err error
	c.methodRepoInit.Do(func() {
		db, dbErr := c.DB()
		if dbErr != nil {
			err = fmt.Errorf("failed to get database for verification method repository: %w", dbErr)
		} else {
			switch c.config.DBDriver {
			case "mysql":
				c.methodRepo = docRepository.NewMySQLVerificationMethodRepository(db)
			case "postgres":
				c.methodRepo = docRepository.NewPostgreSQLVerificationMethodRepository(db)
			default:
				err = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
			}
		}
		if err != nil {
			c.initErrors["methodRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["methodRepo"]; exists {
		return nil, storedErr
	}
	return c.methodRepo, nil
}

// AuditLogRepository returns the audit log repository based on database driver.
func (c *Container) AuditLogRepository() (auditUseCase.AuditLogRepository, error) {
	var err error
	c.auditRepoInit.Do(func() {
		db, dbErr := c.DB()
		if dbErr != nil {
			err = fmt.Errorf("failed to get database for audit log repository: %w", dbErr)
		} else {
			switch c.config.DBDriver {
			case "mysql":
				c.auditRepo = auditRepository.NewMySQLAuditLogRepository(db)
			case "postgres":
				c.auditRepo = auditRepository.NewPostgreSQLAuditLogRepository(db)
			default:
				err = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
			}
		}
		if err != nil {
			c.initErrors["auditRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditRepo"]; exists {
		return nil, storedErr
	}
	return c.auditRepo, nil
}

// OutboxRepository returns the outbox event repository based on database driver.
func (c *Container) OutboxRepository() (outboxUseCase.OutboxEventRepository, error) {
	var err error
	c.outboxRepoInit.Do(func() {
		db, dbErr := c.DB()
		if dbErr != nil {
			err = fmt.Errorf("failed to get database for outbox repository: %w", dbErr)
		} else {
			switch c.config.DBDriver {
			case "mysql":
				c.outboxRepo = outboxRepository.NewMySQLOutboxEventRepository(db)
			case "postgres":
				c.outboxRepo = outboxRepository.NewPostgreSQLOutboxEventRepository(db)
			default:
				err = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
			}
		}
		if err != nil {
			c.initErrors["outboxRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepo"]; exists {
		return nil, storedErr
	}
	return c.outboxRepo, nil
}

// Authorizer returns the membership-backed authorizer.
func (c *Container) Authorizer() (authz.Authorizer, error) {
	var err error
	c.authorizerInit.Do(func() {
		var orgRepo organizationStore
		orgRepo, err = c.OrganizationRepository()
		if err != nil {
			err = fmt.Errorf("failed to get organization repository for authorizer: %w", err)
			c.initErrors["authorizer"] = err
			return
		}
		c.authorizer = authz.NewAuthorizer(orgRepo)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["authorizer"]; exists {
		return nil, storedErr
	}
	return c.authorizer, nil
}

// AuditLogUseCase returns the audit log use case. It fails when no audit signing key is
// configured.
func (c *Container) AuditLogUseCase(ctx context.Context) (auditUseCase.AuditLogUseCase, error) {
	var err error
	c.auditLogUseCaseInit.Do(func() {
		c.auditLogUseCase, err = c.initAuditLogUseCase(ctx)
		if err != nil {
			c.initErrors["auditLogUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditLogUseCase"]; exists {
		return nil, storedErr
	}
	return c.auditLogUseCase, nil
}

// OrganizationUseCase returns the organization use case.
func (c *Container) OrganizationUseCase(ctx context.Context) (orgUseCase.OrganizationUseCase, error) {
	var err error
	c.organizationUseCaseInit.Do(func() {
		c.organizationUseCase, err = c.initOrganizationUseCase(ctx)
		if err != nil {
			c.initErrors["organizationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["organizationUseCase"]; exists {
		return nil, storedErr
	}
	return c.organizationUseCase, nil
}

// CertificateUseCase returns the certificate use case, wrapped with metrics when enabled.
func (c *Container) CertificateUseCase(ctx context.Context) (certUseCase.CertificateUseCase, error) {
	var err error
	c.certificateUseCaseInit.Do(func() {
		c.certificateUseCase, err = c.initCertificateUseCase(ctx)
		if err != nil {
			c.initErrors["certificateUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["certificateUseCase"]; exists {
		return nil, storedErr
	}
	return c.certificateUseCase, nil
}

// DocumentUseCase returns the document use case, wrapped with metrics when enabled.
func (c *Container) DocumentUseCase(ctx context.Context) (docUseCase.DocumentUseCase, error) {
	var err error
	c.documentUseCaseInit.Do(func() {
		c.documentUseCase, err = c.initDocumentUseCase(ctx)
		if err != nil {
			c.initErrors["documentUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["documentUseCase"]; exists {
		return nil, storedErr
	}
	return c.documentUseCase, nil
}

// CascadeUseCase returns the certificate revocation and rotation cascade.
func (c *Container) CascadeUseCase(ctx context.Context) (revocationUseCase.CascadeUseCase, error) {
	var err error
	c.cascadeUseCaseInit.Do(func() {
		c.cascadeUseCase, err = c.initCascadeUseCase(ctx)
		if err != nil {
			c.initErrors["cascadeUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cascadeUseCase"]; exists {
		return nil, storedErr
	}
	return c.cascadeUseCase, nil
}

// NotificationService returns the notification service delivering through the log notifier.
func (c *Container) NotificationService() (*notifications.Service, error) {
	var err error
	c.notificationInit.Do(func() {
		var orgRepo organizationStore
		orgRepo, err = c.OrganizationRepository()
		if err != nil {
			err = fmt.Errorf("failed to get organization repository for notifications: %w", err)
			c.initErrors["notifications"] = err
			return
		}
		logger := c.Logger()
		c.notificationService = notifications.NewService(orgRepo, notifications.NewLogNotifier(logger), logger)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["notifications"]; exists {
		return nil, storedErr
	}
	return c.notificationService, nil
}

func (c *Container) initAuditLogUseCase(ctx context.Context) (auditUseCase.AuditLogUseCase, error) {
	auditRepo, err := c.AuditLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log repository for audit log use case: %w", err)
	}

	key, err := keeper.NewLoader(nil).Load(ctx, c.config.AuditSigningKeyURI, c.config.AuditSigningKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit signing key: %w", err)
	}

	signer, err := auditService.NewAuditSigner(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit signer: %w", err)
	}

	return auditUseCase.NewAuditLogUseCase(auditRepo, signer), nil
}

func (c *Container) initOrganizationUseCase(ctx context.Context) (orgUseCase.OrganizationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for organization use case: %w", err)
	}

	orgRepo, err := c.OrganizationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get organization repository for organization use case: %w", err)
	}

	authorizer, err := c.Authorizer()
	if err != nil {
		return nil, fmt.Errorf("failed to get authorizer for organization use case: %w", err)
	}

	audit, err := c.AuditLogUseCase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for organization use case: %w", err)
	}

	return orgUseCase.NewOrganizationUseCase(txManager, orgRepo, authorizer, audit, c.Logger()), nil
}

func (c *Container) initCertificateUseCase(ctx context.Context) (certUseCase.CertificateUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for certificate use case: %w", err)
	}

	certRepo, err := c.CertificateRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate repository for certificate use case: %w", err)
	}

	orgRepo, err := c.OrganizationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get organization repository for certificate use case: %w", err)
	}

	authorizer, err := c.Authorizer()
	if err != nil {
		return nil, fmt.Errorf("failed to get authorizer for certificate use case: %w", err)
	}

	audit, err := c.AuditLogUseCase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for certificate use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for certificate use case: %w", err)
	}

	baseUseCase := certUseCase.NewCertificateUseCase(
		txManager,
		certRepo,
		orgRepo,
		c.Parser(),
		authorizer,
		audit,
		outboxUseCase.NewPublisher(outboxRepo),
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for certificate use case: %w", err)
		}
		return certUseCase.NewCertificateUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initDocumentUseCase(ctx context.Context) (docUseCase.DocumentUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for document use case: %w", err)
	}

	docRepo, err := c.DocumentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get document repository for document use case: %w", err)
	}

	methodRepo, err := c.VerificationMethodRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get verification method repository for document use case: %w", err)
	}

	certRepo, err := c.CertificateRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate repository for document use case: %w", err)
	}

	orgRepo, err := c.OrganizationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get organization repository for document use case: %w", err)
	}

	authorizer, err := c.Authorizer()
	if err != nil {
		return nil, fmt.Errorf("failed to get authorizer for document use case: %w", err)
	}

	audit, err := c.AuditLogUseCase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for document use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for document use case: %w", err)
	}

	cache, err := c.ResolverCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get resolver cache for document use case: %w", err)
	}

	logger := c.Logger()
	registrar := c.Registrar()
	pipeline := docUseCase.NewPublishPipeline(certRepo, c.Signer(), registrar, logger)

	baseUseCase := docUseCase.NewDocumentUseCase(
		txManager,
		docRepo,
		methodRepo,
		certRepo,
		orgRepo,
		pipeline,
		registrar,
		authorizer,
		audit,
		outboxUseCase.NewPublisher(outboxRepo),
		resolver.NewInvalidator(cache, logger),
		logger,
		c.config.PlatformDomain,
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for document use case: %w", err)
		}
		return docUseCase.NewDocumentUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initCascadeUseCase(ctx context.Context) (revocationUseCase.CascadeUseCase, error) {
	docRepo, err := c.DocumentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get document repository for cascade use case: %w", err)
	}

	certRepo, err := c.CertificateRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate repository for cascade use case: %w", err)
	}

	documents, err := c.DocumentUseCase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get document use case for cascade use case: %w", err)
	}

	baseUseCase := revocationUseCase.NewCascadeUseCase(
		docRepo,
		certRepo,
		documents,
		c.config.CascadeConcurrency,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for cascade use case: %w", err)
		}
		return revocationUseCase.NewCascadeUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
