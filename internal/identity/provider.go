// ABOUTME: Token-backed identity provider reading TASKSYNC_TOKEN or a credential file
// ABOUTME: Persists tokens with owner-only permissions and decodes claims without verification

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/2389/tasksync/internal/auth"
)

// TokenEnvVar overrides the credential file when set.
const TokenEnvVar = "TASKSYNC_TOKEN"

// Session is an authenticated principal plus the token that proves it.
type Session struct {
	Principal Principal
	Token     string
	Source    string // "env" | "file"
	ExpiresAt *time.Time
}

// Expired reports whether the token's exp claim has passed.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Provider loads and stores the session credential.
type Provider interface {
	// Load returns the stored session, or nil when signed out.
	Load(ctx context.Context) (*Session, error)
	// Save persists token and returns the session it describes.
	Save(ctx context.Context, token string) (*Session, error)
	// Clear removes the stored credential.
	Clear(ctx context.Context) error
}

// credentials is the on-disk format.
type credentials struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenProvider implements Provider on the environment and a credential file.
type TokenProvider struct {
	path string
}

var _ Provider = (*TokenProvider)(nil)

// NewTokenProvider stores credentials at path.
func NewTokenProvider(path string) *TokenProvider {
	return &TokenProvider{path: path}
}

// Load reads TASKSYNC_TOKEN, falling back to the credential file.
func (p *TokenProvider) Load(_ context.Context) (*Session, error) {
	if env := strings.TrimSpace(os.Getenv(TokenEnvVar)); env != "" {
		return sessionFromToken(stripBearer(env), "env")
	}

	b, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var c credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return sessionFromToken(stripBearer(c.Token), "file")
}

// Save writes token to the credential file with 0600 permissions.
func (p *TokenProvider) Save(_ context.Context, token string) (*Session, error) {
	token = stripBearer(strings.TrimSpace(token))
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	sess, err := sessionFromToken(token, "file")
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(credentials{Token: token, CreatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(p.path, b, 0o600); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	return sess, nil
}

// Clear deletes the credential file. A missing file is not an error.
func (p *TokenProvider) Clear(_ context.Context) error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

func sessionFromToken(token, source string) (*Session, error) {
	claims, err := auth.ParseUnverified(token)
	if err != nil {
		return nil, err
	}
	sess := &Session{Principal: FromClaims(claims), Token: token, Source: source}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		sess.ExpiresAt = &exp
	}
	return sess, nil
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
