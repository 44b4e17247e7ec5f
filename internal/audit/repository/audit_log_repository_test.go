package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	"github.com/allisson/didregistry/internal/testutil"
)

type auditLogRepository interface {
	Create(ctx context.Context, auditLog *auditDomain.AuditLog) error
	List(ctx context.Context, filter auditDomain.Filter, offset, limit int) ([]*auditDomain.AuditLog, error)
}

func runAuditLogRepositoryTests(t *testing.T, repo auditLogRepository) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)
	orgID := uuid.Must(uuid.NewV7())
	actorID := uuid.Must(uuid.NewV7())
	docID := uuid.Must(uuid.NewV7())

	uploaded := &auditDomain.AuditLog{
		ID:             uuid.Must(uuid.NewV7()),
		OrganizationID: &orgID,
		ActorID:        &actorID,
		ActorEmail:     "alice@acme.test",
		Action:         auditDomain.ActionCertUploaded,
		TargetType:     auditDomain.TargetCertificate,
		TargetID:       uuid.Must(uuid.NewV7()),
		Metadata:       map[string]any{"label": "cert-A"},
		Signature:      []byte("sig-1"),
		CreatedAt:      base,
	}
	deactivated := &auditDomain.AuditLog{
		ID:             uuid.Must(uuid.NewV7()),
		OrganizationID: &orgID,
		ActorEmail:     "system",
		Action:         auditDomain.ActionDocDeactivated,
		TargetType:     auditDomain.TargetDIDDocument,
		TargetID:       docID,
		Automatic:      true,
		Signature:      []byte("sig-2"),
		CreatedAt:      base.Add(time.Second),
	}
	require.NoError(t, repo.Create(ctx, uploaded))
	require.NoError(t, repo.Create(ctx, deactivated))

	t.Run("Success_ListAllOldestFirst", func(t *testing.T) {
		logs, err := repo.List(ctx, auditDomain.Filter{}, 0, 10)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, uploaded.ID, logs[0].ID)
		assert.Equal(t, "cert-A", logs[0].Metadata["label"])
		assert.Equal(t, actorID, *logs[0].ActorID)
		assert.Equal(t, []byte("sig-1"), logs[0].Signature)
		assert.True(t, logs[0].CreatedAt.Equal(base))
	})

	t.Run("Success_NilFieldsRoundTrip", func(t *testing.T) {
		logs, err := repo.List(ctx, auditDomain.Filter{TargetID: &docID}, 0, 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Nil(t, logs[0].ActorID)
		assert.Nil(t, logs[0].Metadata)
		assert.True(t, logs[0].Automatic)
	})

	t.Run("Success_FilterByAction", func(t *testing.T) {
		action := auditDomain.ActionDocDeactivated
		logs, err := repo.List(ctx, auditDomain.Filter{OrganizationID: &orgID, Action: &action}, 0, 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, deactivated.ID, logs[0].ID)
	})

	t.Run("Success_FilterByTimeRange", func(t *testing.T) {
		from := base.Add(500 * time.Millisecond)
		logs, err := repo.List(ctx, auditDomain.Filter{CreatedAtFrom: &from}, 0, 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, deactivated.ID, logs[0].ID)
	})

	t.Run("Success_Pagination", func(t *testing.T) {
		logs, err := repo.List(ctx, auditDomain.Filter{}, 1, 1)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, deactivated.ID, logs[0].ID)
	})
}

func TestPostgreSQLAuditLogRepository(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	runAuditLogRepositoryTests(t, NewPostgreSQLAuditLogRepository(db))
}

func TestMySQLAuditLogRepository(t *testing.T) {
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)

	runAuditLogRepositoryTests(t, NewMySQLAuditLogRepository(db))
}
