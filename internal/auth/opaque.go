package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const opaqueTokenBytes = 32

// NewOpaqueToken returns 32 random bytes, hex encoded.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the hex SHA-256 digest stored in place of a raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// TokenMatches compares raw against a stored digest in constant time.
func TokenMatches(raw, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(raw)), []byte(storedHash)) == 1
}
