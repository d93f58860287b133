package jwt

import (
	"testing"
	"time"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken(RoleAdmin, "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := Parse(token, "secret")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Role != RoleAdmin {
		t.Fatalf("expected admin role, got %q", claims.Role)
	}
	if claims.Issuer != "portfolify" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(RoleAdmin, "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := Parse(token, "other-secret"); err == nil {
		t.Fatal("expected signature validation failure")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := GenerateToken(RoleAdmin, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := Parse(token, "secret"); err == nil {
		t.Fatal("expected expiry validation failure")
	}
}
