package token

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	plaintext, hash, err := Generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if plaintext == "" || hash == "" {
		t.Fatalf("expected non-empty token and hash")
	}
	if plaintext == hash {
		t.Fatalf("plaintext must not equal its hash")
	}
	if len(hash) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(hash))
	}

	// Two tokens must never collide
	second, _, err := Generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if second == plaintext {
		t.Fatalf("expected unique tokens")
	}
}

func TestHashDeterministic(t *testing.T) {
	if Hash("abc") != Hash("abc") {
		t.Fatalf("hash must be deterministic")
	}
	if Hash("abc") == Hash("abd") {
		t.Fatalf("distinct inputs must not collide")
	}
}

func TestVerify(t *testing.T) {
	plaintext, hash, err := Generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !Verify(plaintext, hash) {
		t.Fatalf("expected round-trip verify to succeed")
	}

	// Mutating any single character must fail verification
	for i := 0; i < len(plaintext); i++ {
		mutated := []byte(plaintext)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if Verify(string(mutated), hash) {
			t.Fatalf("mutated token at index %d must not verify", i)
		}
	}

	if Verify(strings.ToUpper(plaintext), hash) && plaintext != strings.ToUpper(plaintext) {
		t.Fatalf("case-mutated token must not verify")
	}
}
