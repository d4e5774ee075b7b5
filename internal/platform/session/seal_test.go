package session

import (
	"bytes"
	"strings"
	"testing"
)

func testSecret() []byte {
	return []byte(strings.Repeat("s", MinSecretLength))
}

func TestDeriveKey_PurposeSeparation(t *testing.T) {
	a, err := DeriveKey(testSecret(), "cookie")
	if err != nil {
		t.Fatal(err)
	}
	b, err := DeriveKey(testSecret(), "seal")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("key lengths = %d, %d; want 32", len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Error("different purposes produced the same key")
	}
	again, _ := DeriveKey(testSecret(), "cookie")
	if !bytes.Equal(a, again) {
		t.Error("derivation is not deterministic")
	}
}

func TestDeriveKey_EmptySecret(t *testing.T) {
	if _, err := DeriveKey(nil, "cookie"); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestSealer_RoundTrip(t *testing.T) {
	key, _ := DeriveKey(testSecret(), "seal")
	s, err := NewSealer(key)
	if err != nil {
		t.Fatal(err)
	}

	plain := []byte(`{"token":"eyJ..."}`)
	sealed, err := s.Seal(plain)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(sealed, plain) {
		t.Error("sealed blob contains plaintext")
	}

	got, err := s.Open(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Open = %q, want %q", got, plain)
	}
}

func TestSealer_Tampered(t *testing.T) {
	key, _ := DeriveKey(testSecret(), "seal")
	s, _ := NewSealer(key)
	sealed, _ := s.Seal([]byte("data"))
	sealed[len(sealed)-1] ^= 0xff
	if _, err := s.Open(sealed); err == nil {
		t.Error("expected error for tampered ciphertext")
	}
	if _, err := s.Open([]byte("x")); err == nil {
		t.Error("expected error for short ciphertext")
	}
}

func TestNewSealer_BadKey(t *testing.T) {
	if _, err := NewSealer([]byte("short")); err == nil {
		t.Error("expected error for short key")
	}
}
