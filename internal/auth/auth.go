// Package auth implements the three credential shapes from spec §4.5:
// admin password, participant password, and participant access token, plus
// bearer token issuance and verification.
package auth

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/apierr"
)

// Role is carried as a bearer-token claim.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleParticipant Role = "participant"
)

const tokenTTL = 24 * time.Hour

// passwordAlphabet excludes visually ambiguous characters (0/O, 1/l/I).
const passwordAlphabet = "23456789abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ"

// accessTokenAlphabet is the 32-char alphabet spec §3.1/§4.5 requires:
// uppercase letters and digits minus ambiguous characters.
const accessTokenAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// Claims is the bearer-token payload (§4.5): role and, for participants,
// identity fields. Clients decode these only to read non-sensitive claims
// for UI state — the signature is what makes the token authoritative.
type Claims struct {
	Role          Role   `json:"role"`
	ParticipantID string `json:"participant_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// HashPassword bcrypt-hashes a plaintext password.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether plaintext matches hash. It never
// distinguishes "wrong password" from "unknown account" to the caller —
// callers must use a single generic unauthenticated error for both.
func CheckPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// GeneratePassword returns a fresh random 8-char alphanumeric password with
// ambiguous characters excluded (§4.5 participant password regeneration).
func GeneratePassword() (string, error) {
	return randomFromAlphabet(passwordAlphabet, 8)
}

// GenerateAccessToken returns a fresh 5-char uppercase token from the
// 32-char alphabet (§3.1/§4.5).
func GenerateAccessToken() (string, error) {
	return randomFromAlphabet(accessTokenAlphabet, 5)
}

func randomFromAlphabet(alphabet string, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// Issuer signs and verifies bearer tokens using the signing secret
// persisted in the auth record.
type Issuer struct {
	secret []byte
}

func NewIssuer(signingSecret string) *Issuer {
	return &Issuer{secret: []byte(signingSecret)}
}

// IssueAdmin issues a bearer token with role=admin.
func (i *Issuer) IssueAdmin() (string, error) {
	return i.sign(Claims{Role: RoleAdmin})
}

// IssueParticipant issues a bearer token with role=participant and identity
// claims.
func (i *Issuer) IssueParticipant(participantID, email, name string) (string, error) {
	return i.sign(Claims{
		Role:          RoleParticipant,
		ParticipantID: participantID,
		Email:         email,
		Name:          name,
	})
}

func (i *Issuer) sign(claims Claims) (string, error) {
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token, returning its claims.
// Expiry, signature mismatch, and malformed tokens all return the same
// unauthenticated error.
func (i *Issuer) Verify(raw string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, apierr.Unauthenticated("invalid or expired token")
	}
	return claims, nil
}
