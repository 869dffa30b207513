// ABOUTME: Tests for the token provider and session manager lifecycle
// ABOUTME: Covers env and file credentials, login/logout notifications, expiry, and teardown

package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tasksync/internal/auth"
)

var testSecret = []byte("identity-test-secret-of-32-bytes")

func mintToken(t *testing.T, sub, name string, ttl time.Duration) string {
	t.Helper()
	v, err := auth.NewJWTVerifier(testSecret)
	require.NoError(t, err)
	token, err := v.Generate(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
		Email:            sub + "@example.com",
		UserMetadata:     auth.UserMetadata{FullName: name, Picture: "https://example.com/" + sub + ".png"},
	}, ttl)
	require.NoError(t, err)
	return token
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	t.Setenv(TokenEnvVar, "")
	path := filepath.Join(t.TempDir(), "tasksync", "token")
	return NewManager(NewTokenProvider(path), nil), path
}

func TestTokenProvider_SignedOut(t *testing.T) {
	t.Setenv(TokenEnvVar, "")
	p := NewTokenProvider(filepath.Join(t.TempDir(), "token"))

	sess, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.NoError(t, p.Clear(context.Background()))
}

func TestTokenProvider_SaveLoad(t *testing.T) {
	t.Setenv(TokenEnvVar, "")
	path := filepath.Join(t.TempDir(), "nested", "token")
	p := NewTokenProvider(path)
	token := mintToken(t, "u1", "Ann", time.Hour)

	saved, err := p.Save(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "u1", saved.Principal.ID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := p.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, token, loaded.Token)
	assert.Equal(t, "file", loaded.Source)
	assert.Equal(t, "Ann", loaded.Principal.FullName)
	assert.NotNil(t, loaded.ExpiresAt)
}

func TestTokenProvider_EnvWins(t *testing.T) {
	p := NewTokenProvider(filepath.Join(t.TempDir(), "token"))
	t.Setenv(TokenEnvVar, "")
	_, err := p.Save(context.Background(), mintToken(t, "file-user", "F", time.Hour))
	require.NoError(t, err)

	t.Setenv(TokenEnvVar, mintToken(t, "env-user", "E", time.Hour))
	sess, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "env-user", sess.Principal.ID)
	assert.Equal(t, "env", sess.Source)
}

func TestTokenProvider_RejectsGarbage(t *testing.T) {
	t.Setenv(TokenEnvVar, "")
	p := NewTokenProvider(filepath.Join(t.TempDir(), "token"))

	_, err := p.Save(context.Background(), "   ")
	assert.Error(t, err)
	_, err = p.Save(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestManager_Lifecycle(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Login(ctx, mintToken(t, "u1", "Ann", time.Hour))
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, m.Init(ctx))
	_, ok := m.Current()
	assert.False(t, ok)
	assert.Empty(t, m.Token())

	var seen []*Session
	cancel := m.Subscribe(func(s *Session) { seen = append(seen, s) })

	_, err = m.Login(ctx, mintToken(t, "u1", "Ann", time.Hour))
	require.NoError(t, err)
	p, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, "Ann", p.DisplayName())
	assert.NotEmpty(t, m.Token())

	require.NoError(t, m.Logout(ctx))
	_, ok = m.Current()
	assert.False(t, ok)

	require.Len(t, seen, 2)
	assert.Equal(t, "u1", seen[0].Principal.ID)
	assert.Nil(t, seen[1])

	cancel()
	_, err = m.Login(ctx, mintToken(t, "u2", "Bo", time.Hour))
	require.NoError(t, err)
	assert.Len(t, seen, 2, "cancelled listener must not be called")
}

func TestManager_InitRestoresStoredSession(t *testing.T) {
	m, path := newTestManager(t)
	_, err := NewTokenProvider(path).Save(context.Background(), mintToken(t, "u1", "Ann", time.Hour))
	require.NoError(t, err)

	require.NoError(t, m.Init(context.Background()))
	p, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "u1", p.ID)
	require.NotNil(t, m.Session())
}

func TestManager_InitIgnoresExpiredToken(t *testing.T) {
	m, path := newTestManager(t)
	_, err := NewTokenProvider(path).Save(context.Background(), mintToken(t, "u1", "Ann", -time.Minute))
	require.NoError(t, err)

	require.NoError(t, m.Init(context.Background()))
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestManager_Teardown(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))

	called := false
	m.Subscribe(func(*Session) { called = true })
	m.Teardown()

	_, err := m.Login(ctx, mintToken(t, "u1", "Ann", time.Hour))
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, m.Init(ctx))
	_, err = m.Login(ctx, mintToken(t, "u1", "Ann", time.Hour))
	require.NoError(t, err)
	assert.False(t, called)
}
