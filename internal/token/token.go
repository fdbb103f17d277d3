// Package token generates and hashes invitation bearer tokens. Plaintext
// tokens exist only in memory between generation and delivery; storage and
// lookup always use the SHA-256 digest.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// tokenBytes gives 256 bits of entropy per token
const tokenBytes = 32

// Generate produces a fresh bearer token and its storage digest
func Generate() (plaintext, hash string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	plaintext = base64.RawURLEncoding.EncodeToString(buf)
	return plaintext, Hash(plaintext), nil
}

// Hash computes the deterministic one-way digest of a plaintext token. Used
// both to store new tokens and to look up presented ones.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the digest of plaintext and compares it against the
// stored hash in constant time.
func Verify(plaintext, storedHash string) bool {
	computed := Hash(plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
