package grpc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/confideapp/confide/internal/server/gate"
	"github.com/confideapp/confide/internal/server/keys"
	"github.com/confideapp/confide/internal/server/models"
	"github.com/confideapp/confide/internal/server/repositories/principals/principalstest"
	"github.com/confideapp/confide/internal/server/token"
)

type fakeDenylist struct{ entries map[string]struct{} }

func (f *fakeDenylist) Insert(_ context.Context, token, _ string, _ time.Time) error {
	f.entries[token] = struct{}{}
	return nil
}

func (f *fakeDenylist) Contains(_ context.Context, token string) (bool, error) {
	_, ok := f.entries[token]
	return ok, nil
}

func (f *fakeDenylist) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

func newTestInterceptor(t *testing.T) (grpc.UnaryServerInterceptor, *token.Service, *principalstest.Repository) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tokens := token.NewService(&keys.Material{Private: key, Public: &key.PublicKey},
		"confide-api", "confide-client", 15*time.Minute, 7*24*time.Hour,
		&fakeDenylist{entries: make(map[string]struct{})})
	repo := principalstest.New()
	g := gate.New(tokens, repo)

	skip := map[string]bool{"/confide.Credentials/Login": true}
	return UnaryAuthInterceptor(g, skip), tokens, repo
}

func unaryInfo(method string) *grpc.UnaryServerInfo {
	return &grpc.UnaryServerInfo{FullMethod: method}
}

func TestInterceptor_AttachesPrincipal(t *testing.T) {
	t.Parallel()
	interceptor, tokens, repo := newTestInterceptor(t)

	p := repo.Add(&models.Principal{
		ID: "p1", Email: "a@x.com", Role: models.RoleUser,
		Status: models.StatusActive, EmailConfirmed: true,
	})
	access, err := tokens.IssueAccess(p)
	require.NoError(t, err)

	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(authorizationHeader, "Bearer "+access))

	called := false
	_, err = interceptor(ctx, nil, unaryInfo("/confide.Credentials/Me"),
		func(ctx context.Context, req any) (any, error) {
			called = true
			got, ok := gate.PrincipalFromContext(ctx)
			require.True(t, ok)
			assert.Equal(t, "p1", got.ID)
			return nil, nil
		})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestInterceptor_MissingToken(t *testing.T) {
	t.Parallel()
	interceptor, _, _ := newTestInterceptor(t)

	_, err := interceptor(context.Background(), nil, unaryInfo("/confide.Credentials/Me"),
		func(ctx context.Context, req any) (any, error) {
			t.Fatal("handler must not run")
			return nil, nil
		})
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestInterceptor_SkippedMethod(t *testing.T) {
	t.Parallel()
	interceptor, _, _ := newTestInterceptor(t)

	called := false
	_, err := interceptor(context.Background(), nil, unaryInfo("/confide.Credentials/Login"),
		func(ctx context.Context, req any) (any, error) {
			called = true
			_, ok := gate.PrincipalFromContext(ctx)
			assert.False(t, ok)
			return nil, nil
		})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestInterceptor_FrozenAccount(t *testing.T) {
	t.Parallel()
	interceptor, tokens, repo := newTestInterceptor(t)

	p := repo.Add(&models.Principal{
		ID: "p2", Email: "f@x.com", Status: models.StatusFrozen, EmailConfirmed: true,
	})
	access, err := tokens.IssueAccess(p)
	require.NoError(t, err)

	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(authorizationHeader, "Bearer "+access))

	_, err = interceptor(ctx, nil, unaryInfo("/confide.Credentials/Me"),
		func(ctx context.Context, req any) (any, error) { return nil, nil })
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Contains(t, err.Error(), "account is frozen")
}
