package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/sity/internal/domain"
)

func newTestProvider(t *testing.T) *LocalProvider {
	t.Helper()
	tm, err := NewTokenManager("test-secret", "sity-test")
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	return NewLocalProvider(tm, time.Hour, nil, WithHashCost(bcrypt.MinCost))
}

func TestTokenRoundTrip(t *testing.T) {
	tm, _ := NewTokenManager("test-secret", "")
	token, err := tm.GenerateToken("u1", "a@school.edu", time.Minute)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	claims, err := tm.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != "u1" || claims.Subject != "u1" || claims.Issuer != "sity" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenRejections(t *testing.T) {
	tm, _ := NewTokenManager("test-secret", "sity")
	other, _ := NewTokenManager("other-secret", "sity")
	foreign, _ := NewTokenManager("test-secret", "someone-else")

	wrongKey, _ := other.GenerateToken("u1", "", time.Minute)
	wrongIssuer, _ := foreign.GenerateToken("u1", "", time.Minute)

	past := time.Now().Add(-2 * time.Hour)
	expiredMgr, _ := NewTokenManager("test-secret", "sity")
	expiredMgr.now = func() time.Time { return past }
	expired, _ := expiredMgr.GenerateToken("u1", "", time.Minute)

	for name, token := range map[string]string{
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"garbage":      "not-a-jwt",
	} {
		if _, err := tm.ValidateToken(token); err == nil {
			t.Errorf("%s: expected validation to fail", name)
		}
	}

	if _, err := NewTokenManager("", "sity"); err == nil {
		t.Fatalf("expected empty secret to be rejected")
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ExtractToken(tt.header)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ExtractToken(%q) = %q, %v", tt.header, got, err)
		}
	}
}

func TestLocalProviderFlow(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	id, err := p.CreateIdentity(ctx, "Student@School.edu", "secret1", map[string]any{"name": "Sam"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if id.ID == "" || id.Email != "student@school.edu" {
		t.Fatalf("unexpected identity %+v", id)
	}

	_, err = p.CreateIdentity(ctx, "student@school.edu", "another", nil)
	var up *domain.UpstreamError
	if !errors.As(err, &up) || !up.ClientFault {
		t.Fatalf("expected client-fault upstream error for duplicate, got %v", err)
	}

	if _, err := p.SignIn(ctx, "student@school.edu", "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for bad password, got %v", err)
	}
	if _, err := p.SignIn(ctx, "nobody@school.edu", "secret1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown user, got %v", err)
	}

	session, err := p.SignIn(ctx, "student@school.edu", "secret1")
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if session.UserID != id.ID || session.ExpiresIn != 3600 || session.TokenType != "bearer" {
		t.Fatalf("unexpected session %+v", session)
	}

	userID, err := p.VerifyToken(ctx, session.AccessToken)
	if err != nil || userID != id.ID {
		t.Fatalf("verify returned %q (err=%v)", userID, err)
	}
	if _, err := p.VerifyToken(ctx, "forged"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for forged token, got %v", err)
	}
}
