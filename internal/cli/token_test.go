package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	transport "jcert-quiz-service/internal/transport/http"
)

func TestTokenCommandMintsParseableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"token", "--user-id", "42", "--role", "admin",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	auth, err := transport.NewAuthenticator("cli-test-secret", "", "")
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	id, err := auth.Parse(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if id.UserID != 42 || id.Role != "admin" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestTokenCommandRequiresUser(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "token"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without --user-id")
	}
}
