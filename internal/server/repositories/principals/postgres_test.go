package principals

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confideapp/confide/internal/errs"
	"github.com/confideapp/confide/internal/server/models"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestCreate_AssignsDefaults(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO principals")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	p, err := repo.Create(context.Background(), &models.Principal{
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "$2a$10$hash",
		ConfirmOTP:   &models.OTPChallenge{Code: "123456", ExpiresAt: now.Add(10 * time.Minute)},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.RoleUser, p.Role)
	assert.Equal(t, models.StatusActive, p.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmail_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM principals WHERE email").
		WithArgs("missing@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "missing@x.com")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.NotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmail_LoadsChallengesAndTokens(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	now := time.Now()
	cols := []string{
		"id", "username", "email", "password_hash", "role", "status", "email_confirmed",
		"confirm_otp", "confirm_otp_expires_at", "reset_otp", "reset_otp_expires_at",
		"profile_image_url", "profile_image_id", "cover_image_url", "cover_image_id",
		"created_at", "updated_at",
	}
	mock.ExpectQuery("SELECT (.+) FROM principals WHERE email").
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"p1", "alice", "a@x.com", "$2a$10$hash", "user", "active", false,
			"123456", now.Add(10*time.Minute), nil, nil,
			"", "", "", "",
			now, now,
		))
	mock.ExpectQuery("SELECT token FROM refresh_tokens").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"token"}).AddRow("rt-1").AddRow("rt-2"))
	mock.ExpectQuery("SELECT provider, subject FROM federated_identities").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"provider", "subject"}).AddRow("google", "g-123"))

	p, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)

	require.NotNil(t, p.ConfirmOTP)
	assert.Equal(t, "123456", p.ConfirmOTP.Code)
	assert.Nil(t, p.ResetOTP)
	assert.Equal(t, []string{"rt-1", "rt-2"}, p.RefreshTokens)
	assert.Equal(t, []models.FederatedIdentity{{Provider: "google", Subject: "g-123"}}, p.Identities)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmEmail_SingleStatement(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec("UPDATE principals").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ConfirmEmail(context.Background(), "p1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenListOps(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs("p1", "rt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM refresh_tokens").
		WithArgs("p1", "rt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("DELETE FROM refresh_tokens").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"token"}).AddRow("rt-2").AddRow("rt-3"))

	require.NoError(t, repo.AppendRefreshToken(ctx, "p1", "rt-1"))
	require.NoError(t, repo.RemoveRefreshToken(ctx, "p1", "rt-1"))

	purged, err := repo.ClearRefreshTokens(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"rt-2", "rt-3"}, purged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetProfileImage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec("UPDATE principals").
		WithArgs("p1", "http://cdn/img.png", "images/2026/1/1/p1/abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetProfileImage(context.Background(), "p1", models.ImageRef{
		URL: "http://cdn/img.png", PublicID: "images/2026/1/1/p1/abc",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetOTP_ResetPurposeTargetsResetColumns(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	expires := time.Now().Add(15 * time.Minute)
	mock.ExpectExec("UPDATE principals").
		WithArgs("p1", "654321", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetOTP(context.Background(), "p1", models.PurposePasswordReset, "654321", expires)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
