package revoked

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestInsert_Idempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	// second insert conflicts and affects zero rows; still no error
	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs("tok", "p1", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs("tok", "p1", expires).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Insert(ctx, "tok", "p1", expires))
	require.NoError(t, repo.Insert(ctx, "tok", "p1", expires))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContains_ChecksExpiryAtReadTime(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()

	// the WHERE clause excludes logically expired records even when they
	// are still physically present
	mock.ExpectQuery("SELECT 1 FROM revoked_tokens").
		WithArgs("live-tok").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM revoked_tokens").
		WithArgs("expired-tok").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Contains(ctx, "live-tok")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = repo.Contains(ctx, "expired-tok")
	require.NoError(t, err)
	assert.False(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec("DELETE FROM revoked_tokens").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
