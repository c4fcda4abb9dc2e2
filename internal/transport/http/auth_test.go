package http

import (
	"errors"
	"testing"
	"time"

	"jcert-quiz-service/internal/domain"
)

func TestAuthenticatorRoundTrip(t *testing.T) {
	auth, err := NewAuthenticator("secret", "jcert", "")
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	token, err := auth.Issue(42, "admin", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := auth.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.UserID != 42 || !auth.IsAdmin(id) {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestAuthenticatorRejects(t *testing.T) {
	auth, _ := NewAuthenticator("secret", "jcert", "admin")
	otherKey, _ := NewAuthenticator("different", "jcert", "admin")
	otherIssuer, _ := NewAuthenticator("secret", "someone-else", "admin")

	expired, _ := auth.Issue(1, "", -time.Minute)
	forged, _ := otherKey.Issue(1, "admin", time.Minute)
	foreign, _ := otherIssuer.Issue(1, "admin", time.Minute)
	anonymous, _ := auth.Issue(0, "", time.Minute)

	for name, token := range map[string]string{
		"expired": expired,
		"forged":  forged,
		"issuer":  foreign,
		"no user": anonymous,
		"garbage": "a.b.c",
	} {
		if _, err := auth.Parse(token); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("%s: expected unauthenticated, got %v", name, err)
		}
	}

	if _, err := NewAuthenticator("", "", ""); err == nil {
		t.Fatalf("expected empty secret to be rejected")
	}
}
