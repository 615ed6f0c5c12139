package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*UserStore, string) {
	path := filepath.Join(t.TempDir(), ".auth_users.json")
	return NewUserStore(Options{File: path, AdminEmail: "admin@example.com", AdminPassword: "admin123"}), path
}

func TestCreateDefaultIdentity(t *testing.T) {
	s, path := newStore(t)

	require.NoError(t, s.CreateDefaultIdentity())
	assert.True(t, s.Verify("admin@example.com", "admin123"))
	assert.False(t, s.Verify("admin@example.com", "wrong"))

	u, ok := s.Get("ADMIN@example.com ")
	require.True(t, ok)
	assert.True(t, u.IsAdmin)
	assert.NotContains(t, u.PasswordHash, "admin123")

	// second call keeps the existing account
	require.NoError(t, s.ChangePassword("admin@example.com", "admin123", "changed"))
	require.NoError(t, s.CreateDefaultIdentity())
	assert.True(t, s.Verify("admin@example.com", "changed"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCreateUser(t *testing.T) {
	s, _ := newStore(t)

	require.NoError(t, s.CreateUser("user@example.com", "secret", false))
	assert.ErrorIs(t, s.CreateUser("user@example.com", "other", false), ErrUserExists)
	assert.True(t, s.Verify("user@example.com", "secret"))
	assert.False(t, s.Verify("nobody@example.com", "secret"))

	tests := []struct {
		name, email, password string
	}{
		{"no at sign", "user", "secret"},
		{"empty password", "new@example.com", ""},
		{"too long", "new@example.com", strings.Repeat("x", 73)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateUser(tt.email, tt.password, false)
			assert.True(t, commonModels.IsValidation(err), "expected a validation error, got %v", err)
		})
	}
}

func TestChangePassword(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.CreateUser("user@example.com", "old", false))

	assert.ErrorIs(t, s.ChangePassword("user@example.com", "wrong", "new"), ErrInvalidCredentials)
	assert.ErrorIs(t, s.ChangePassword("ghost@example.com", "old", "new"), ErrInvalidCredentials)

	require.NoError(t, s.ChangePassword("user@example.com", "old", "new"))
	assert.False(t, s.Verify("user@example.com", "old"))
	assert.True(t, s.Verify("user@example.com", "new"))
}

func TestVerify_UpgradesLegacyHash(t *testing.T) {
	s, path := newStore(t)
	sum := sha256.Sum256([]byte("admin123"))
	legacy := map[string]User{
		"admin@example.com": {Email: "admin@example.com", PasswordHash: hex.EncodeToString(sum[:]), IsAdmin: true},
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	assert.False(t, s.Verify("admin@example.com", "wrong"))
	assert.True(t, s.Verify("admin@example.com", "admin123"))

	u, ok := s.Get("admin@example.com")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$2"), "hash should be bcrypt after login, got %q", u.PasswordHash)
	assert.True(t, s.Verify("admin@example.com", "admin123"))
}

func TestVerify_CorruptFile(t *testing.T) {
	s, path := newStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	assert.False(t, s.Verify("admin@example.com", "admin123"))
}

func TestTokenService(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	token, err := svc.Generate(User{Email: "user@example.com", IsAdmin: true})
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims.Subject)
	assert.True(t, claims.IsAdmin)

	_, err = NewTokenService("other", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Generate(User{})
	assert.Error(t, err)
}

func TestTokenService_Expired(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	claims := Claims{
		Email: "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RandomSecret(t *testing.T) {
	a := NewTokenService("", time.Hour)
	b := NewTokenService("", time.Hour)
	token, err := a.Generate(User{Email: "user@example.com"})
	require.NoError(t, err)

	_, err = a.Validate(token)
	assert.NoError(t, err)
	_, err = b.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), &Claims{Email: "user@example.com"})
	claims, ok := ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestVerify_ComparesOutsideTheLock(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.CreateDefaultIdentity())

	orig := compareHash
	t.Cleanup(func() { compareHash = orig })
	var calls, lockedDuringCompare int
	compareHash = func(hash, password []byte) error {
		calls++
		if s.mu.TryLock() {
			s.mu.Unlock()
		} else {
			lockedDuringCompare++
		}
		return orig(hash, password)
	}

	tests := []struct {
		name     string
		email    string
		password string
		want     bool
	}{
		{"right password", "admin@example.com", "admin123", true},
		{"wrong password", "admin@example.com", "nope", false},
		{"unknown email", "ghost@example.com", "admin123", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = 0
			assert.Equal(t, tt.want, s.Verify(tt.email, tt.password))
			assert.Equal(t, 1, calls, "every attempt runs exactly one bcrypt comparison")
		})
	}
	assert.Zero(t, lockedDuringCompare)
}
