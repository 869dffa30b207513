// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid tokens, claim round trips, invalid tokens, and expired tokens

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testSecret is a 32-byte secret that meets MinSecretLength requirement.
var testSecret = []byte("token-test-secret-of-32-bytes!!!")

func newTestVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return v
}

func TestNewJWTVerifier_ShortSecret(t *testing.T) {
	if _, err := NewJWTVerifier([]byte("short")); err == nil {
		t.Error("NewJWTVerifier() should reject a short secret")
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"},
		Email:            "ann@example.com",
		UserMetadata:     UserMetadata{FullName: "Ann", Picture: "https://example.com/p.png"},
	}
	token, err := verifier.Generate(claims, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.Subject != "user-123" {
		t.Errorf("Subject = %q, want %q", got.Subject, "user-123")
	}
	if got.Email != "ann@example.com" {
		t.Errorf("Email = %q", got.Email)
	}
	if got.UserMetadata.FullName != "Ann" || got.UserMetadata.Picture != "https://example.com/p.png" {
		t.Errorf("UserMetadata = %+v", got.UserMetadata)
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	other, err := NewJWTVerifier([]byte("a-different-secret-of-32-bytes!!"))
	if err != nil {
		t.Fatal(err)
	}
	wrongSecret, _ := other.Generate(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}, time.Hour)

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	noSubToken, _ := noSub.SignedString(testSecret)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty token", "", ErrInvalidToken},
		{"garbage token", "not-a-jwt-token", ErrInvalidToken},
		{"malformed JWT", "header.payload.signature", ErrInvalidToken},
		{"wrong secret", wrongSecret, ErrInvalidToken},
		{"missing sub", noSubToken, ErrMissingClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := newTestVerifier(t)

	token, err := verifier.Generate(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}, -time.Minute)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_GenerateRequiresSubject(t *testing.T) {
	verifier := newTestVerifier(t)
	if _, err := verifier.Generate(Claims{}, time.Hour); !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Generate() error = %v, want ErrMissingClaim", err)
	}
}

func TestParseUnverified(t *testing.T) {
	verifier := newTestVerifier(t)
	token, _ := verifier.Generate(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-9"},
		Email:            "nine@example.com",
	}, time.Hour)

	claims, err := ParseUnverified(token)
	if err != nil {
		t.Fatalf("ParseUnverified() error = %v", err)
	}
	if claims.Subject != "user-9" || claims.Email != "nine@example.com" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ParseUnverified("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ParseUnverified(garbage) error = %v", err)
	}
}
