package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestNewTxManager(t *testing.T) {
	db, _ := newMockDB(t)

	txManager := NewTxManager(db)
	assert.NotNil(t, txManager)
	assert.IsType(t, &sqlTxManager{}, txManager)
}

func TestWithTx(t *testing.T) {
	t.Run("Success_Commit", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE certificates").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
			assert.True(t, InTx(ctx))
			assert.IsType(t, &sql.Tx{}, GetTx(ctx, db))
			_, err := GetTx(ctx, db).ExecContext(ctx, "UPDATE certificates SET version = version + 1")
			return err
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_RollbackOnError", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
			return assert.AnError
		})

		assert.Equal(t, assert.AnError, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_RollbackFailsKeepsCause", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(sql.ErrConnDone)

		err := NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
			return assert.AnError
		})

		assert.ErrorIs(t, err, assert.AnError)
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})

	t.Run("Error_PanicRollsBack", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
				panic("boom")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success_NestedOpensOwnTransaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectCommit()

		tm := NewTxManager(db)
		err := tm.WithTx(context.Background(), func(outer context.Context) error {
			return tm.WithTx(outer, func(inner context.Context) error {
				assert.NotSame(t, GetTx(outer, db), GetTx(inner, db))
				return nil
			})
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_BeginFails", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin().WillReturnError(assert.AnError)

		called := false
		err := NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
			called = true
			return nil
		})

		assert.ErrorIs(t, err, assert.AnError)
		assert.False(t, called)
	})

	t.Run("Error_CommitFails", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(assert.AnError)

		err := NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
			return nil
		})

		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestGetTx_WithoutTransaction(t *testing.T) {
	db, _ := newMockDB(t)

	assert.False(t, InTx(context.Background()))
	assert.Equal(t, db, GetTx(context.Background(), db))
}

func TestWithoutTx(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	ctx := context.Background()
	assert.Equal(t, ctx, WithoutTx(ctx))

	err := NewTxManager(db).WithTx(ctx, func(ctx context.Context) error {
		require.True(t, InTx(ctx))
		detachedCtx := WithoutTx(ctx)
		assert.False(t, InTx(detachedCtx))
		assert.Equal(t, db, GetTx(detachedCtx, db))
		assert.True(t, InTx(ctx))
		return nil
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
