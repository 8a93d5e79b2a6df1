package auth

import (
	"testing"
	"time"

	"heartline/client/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	service, err := NewService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("service init: %v", err)
	}

	user := models.User{ID: 7, Email: "test@example.com", Nickname: "tester"}
	token, err := service.GenerateToken(user)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	parsed, err := service.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if parsed.UserID != user.ID || parsed.Email != user.Email || parsed.Nickname != user.Nickname {
		t.Fatalf("unexpected identity: %+v", parsed)
	}
}

func TestReadIdentityWithoutSecret(t *testing.T) {
	service, err := NewService("server-only-secret", time.Hour)
	if err != nil {
		t.Fatalf("service init: %v", err)
	}
	token, err := service.GenerateToken(models.User{ID: 12, Nickname: "ana"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	identity, err := ReadIdentity(token)
	if err != nil {
		t.Fatalf("read identity: %v", err)
	}
	if identity.UserID != 12 || identity.Nickname != "ana" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	service, _ := NewService("secret-a", time.Hour)
	other, _ := NewService("secret-b", time.Hour)

	token, err := other.GenerateToken(models.User{ID: 1})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := service.ParseToken(token); err == nil {
		t.Fatalf("expected signature error")
	}
}
