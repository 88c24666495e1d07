package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/url-shortener/app/dto"
	"github.com/amirphl/url-shortener/app/services"
	"github.com/amirphl/url-shortener/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	flow   AuthFlow
	users  *fakeUserRepo
	hasher *countingHasher
	tokens services.TokenService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	inner, err := services.NewBcryptPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := services.NewTokenService(24*time.Hour, "test-issuer", "test-audience", false, "", "", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)

	users := newFakeUserRepo()
	hasher := &countingHasher{inner: inner}
	flow, err := NewAuthFlow(users, hasher, tokens)
	require.NoError(t, err)
	return &authFixture{
		flow:   flow,
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

func TestAuthFlowRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account", func(t *testing.T) {
		f := newAuthFixture(t)
		resp, err := f.flow.Register(ctx, &dto.RegisterRequest{Email: "a@b.co", Password: "secret1"})
		require.NoError(t, err)
		assert.NotZero(t, resp.ID)
		assert.Equal(t, "a@b.co", resp.Email)
		assert.False(t, resp.CreatedAt.IsZero())

		stored, err := f.users.ByID(ctx, resp.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "secret1", stored.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
	})

	t.Run("duplicate email is conflict without write", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.flow.Register(ctx, &dto.RegisterRequest{Email: "a@b.co", Password: "secret1"})
		require.NoError(t, err)

		_, err = f.flow.Register(ctx, &dto.RegisterRequest{Email: "a@b.co", Password: "other12"})
		require.Error(t, err)
		assert.True(t, IsEmailAlreadyExists(err))

		var be *BusinessError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, "EMAIL_EXISTS", be.Code)

		count, err := f.users.Count(ctx, models.UserFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("unique index decides a concurrent duplicate", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.flow.Register(ctx, &dto.RegisterRequest{Email: "race@b.co", Password: "secret1"})
		require.NoError(t, err)

		f.users.skipLookup = true
		_, err = f.flow.Register(ctx, &dto.RegisterRequest{Email: "race@b.co", Password: "secret1"})
		assert.True(t, IsEmailAlreadyExists(err))
	})

	t.Run("store failure", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.lookupErr = errors.New("connection refused")
		_, err := f.flow.Register(ctx, &dto.RegisterRequest{Email: "a@b.co", Password: "secret1"})
		require.Error(t, err)
		assert.False(t, IsEmailAlreadyExists(err))
	})
}

func TestAuthFlowLogin(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	registered, err := f.flow.Register(ctx, &dto.RegisterRequest{Email: "a@b.co", Password: "secret1"})
	require.NoError(t, err)

	t.Run("round trip issues token for the user", func(t *testing.T) {
		resp, err := f.flow.Login(ctx, &dto.LoginRequest{Email: "a@b.co", Password: "secret1"})
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)

		claims, err := f.tokens.ValidateToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, claims.UserID)
		assert.Equal(t, "a@b.co", claims.Email)
		assert.Equal(t, 24*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt))
	})

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "a@b.co", password: "wrong"},
		{name: "unknown email", email: "nobody@b.co", password: "secret1"},
		{name: "email is case sensitive", email: "A@B.CO", password: "secret1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.hasher.compareCount()

			resp, err := f.flow.Login(ctx, &dto.LoginRequest{Email: tt.email, Password: tt.password})
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, IsInvalidCredentials(err))

			// Both failure paths perform exactly one password comparison
			assert.Equal(t, before+1, f.hasher.compareCount())
		})
	}
}

func TestAuthFlowDummyHashIsPrepared(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	assert.Equal(t, 1, f.hasher.hashCount())

	// The first unknown-email login hashes nothing and compares once
	_, err := f.flow.Login(ctx, &dto.LoginRequest{Email: "nobody@b.co", Password: "secret1"})
	assert.True(t, IsInvalidCredentials(err))
	assert.Equal(t, 1, f.hasher.hashCount())
	assert.Equal(t, 1, f.hasher.compareCount())

	t.Run("hasher failure", func(t *testing.T) {
		tokens, err := services.NewTokenService(time.Hour, "test-issuer", "test-audience", false, "", "", "test-secret-key-for-jwt-signing-32-chars")
		require.NoError(t, err)
		flow, err := NewAuthFlow(newFakeUserRepo(), &countingHasher{hashErr: errors.New("boom")}, tokens)
		require.Error(t, err)
		assert.Nil(t, flow)
	})
}
