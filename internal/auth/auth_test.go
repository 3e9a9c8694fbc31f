package auth

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Fatalf("expected the original password to check out")
	}
	if CheckPassword(hash, "wrong password") {
		t.Fatalf("expected a wrong password to be rejected")
	}
}

func TestGeneratePasswordExcludesAmbiguousCharacters(t *testing.T) {
	pw, err := GeneratePassword()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(pw) != 8 {
		t.Fatalf("expected an 8-char password, got %q", pw)
	}
	if strings.ContainsAny(pw, "0O1lI") {
		t.Fatalf("expected no ambiguous characters in %q", pw)
	}
}

func TestGenerateAccessTokenShapeAndAlphabet(t *testing.T) {
	token, err := GenerateAccessToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(token) != 5 {
		t.Fatalf("expected a 5-char token, got %q", token)
	}
	for _, c := range token {
		if !strings.ContainsRune(accessTokenAlphabet, c) {
			t.Fatalf("expected every character to be from the access token alphabet, got %q in %q", c, token)
		}
	}
}

func TestIssueAndVerifyAdminToken(t *testing.T) {
	issuer := NewIssuer("s3cret")
	raw, err := issuer.IssueAdmin()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Role != RoleAdmin {
		t.Fatalf("expected role admin, got %q", claims.Role)
	}
}

func TestIssueAndVerifyParticipantToken(t *testing.T) {
	issuer := NewIssuer("s3cret")
	raw, err := issuer.IssueParticipant("p-1", "ada@example.com", "Ada")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Role != RoleParticipant || claims.ParticipantID != "p-1" || claims.Email != "ada@example.com" {
		t.Fatalf("expected participant claims to round-trip, got %+v", claims)
	}
}

func TestVerifyRejectsTokenSignedWithDifferentSecret(t *testing.T) {
	raw, err := NewIssuer("secret-a").IssueAdmin()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewIssuer("secret-b").Verify(raw); err == nil {
		t.Fatalf("expected verification to fail under a different signing secret")
	}
}

func TestVerifyRejectsGarbageToken(t *testing.T) {
	issuer := NewIssuer("s3cret")
	if _, err := issuer.Verify("not-a-jwt"); err == nil {
		t.Fatalf("expected a malformed token to be rejected")
	}
}
