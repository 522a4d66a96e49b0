package session

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// LookupIDLength is the random byte length of the stored lookup id.
	LookupIDLength = 16
	// SecretLength is the random byte length of the bearer secret.
	SecretLength = 32

	separator = "."
)

var (
	lookupIDEncodedLen = base64.RawURLEncoding.EncodedLen(LookupIDLength)
	secretEncodedLen   = base64.RawURLEncoding.EncodedLen(SecretLength)
)

// Credential is a freshly generated bearer value with its storable parts.
type Credential struct {
	Token     string
	SessionID string
	TokenHash string
}

// GenerateCredential builds a bearer value of the form <session_id>.<secret>.
// Only SessionID and TokenHash may be persisted.
func GenerateCredential() (*Credential, error) {
	id, err := randomString(LookupIDLength)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	secret, err := randomString(SecretLength)
	if err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	return &Credential{
		Token:     id + separator + secret,
		SessionID: id,
		TokenHash: HashSecret(secret),
	}, nil
}

// ParseToken splits a bearer value. ok is false for anything that could not
// have been produced by GenerateCredential.
func ParseToken(token string) (sessionID, secret string, ok bool) {
	sessionID, secret, found := strings.Cut(token, separator)
	if !found || len(sessionID) != lookupIDEncodedLen || len(secret) != secretEncodedLen {
		return "", "", false
	}
	if _, err := base64.RawURLEncoding.DecodeString(sessionID); err != nil {
		return "", "", false
	}
	if _, err := base64.RawURLEncoding.DecodeString(secret); err != nil {
		return "", "", false
	}
	return sessionID, secret, true
}

// HashSecret returns the hex SHA-256 of secret. Only this form is stored.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifySecret compares in constant time.
func VerifySecret(secret, tokenHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSecret(secret)), []byte(tokenHash)) == 1
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
