package crypto

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
}

func TestNewAESEncryptor(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		errorMsg string
	}{
		{"empty key", "", "encryption key is empty"},
		{"invalid base64", "not-valid-base64!@#$", "base64 decode failed"},
		{"key too short", base64.StdEncoding.EncodeToString(make([]byte, 16)), "must be 32 bytes"},
		{"key too long", base64.StdEncoding.EncodeToString(make([]byte, 64)), "must be 32 bytes"},
		{"valid key", testKey(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAESEncryptor(tt.key)
			if tt.errorMsg == "" {
				if err != nil {
					t.Fatalf("NewAESEncryptor() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorMsg) {
				t.Fatalf("NewAESEncryptor() error = %v, want containing %q", err, tt.errorMsg)
			}
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewAESEncryptor(testKey())
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("oauth:verysecrettoken1234")
	ct, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(ct, plaintext) {
		t.Error("ciphertext contains plaintext")
	}
	got, err := enc.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip got %q, want %q", got, plaintext)
	}

	// Each encryption uses a fresh nonce.
	ct2, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(ct, ct2) {
		t.Error("two encryptions produced identical ciphertext")
	}
}

func TestDecryptTampered(t *testing.T) {
	enc, err := NewAESEncryptor(testKey())
	if err != nil {
		t.Fatal(err)
	}
	ct, err := enc.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	ct[len(ct)-1] ^= 0xff
	if _, err := enc.Decrypt(ct); err == nil {
		t.Error("tampered ciphertext decrypted without error")
	}
	if _, err := enc.Decrypt(ct[:4]); err == nil {
		t.Error("truncated ciphertext decrypted without error")
	}
}

func TestStringHelpers(t *testing.T) {
	enc, err := NewAESEncryptor(testKey())
	if err != nil {
		t.Fatal(err)
	}

	// Empty strings pass through unchanged (no token stored yet).
	if s, err := EncryptString(enc, ""); err != nil || s != "" {
		t.Errorf("EncryptString(empty) = %q, %v", s, err)
	}
	if s, err := DecryptString(enc, ""); err != nil || s != "" {
		t.Errorf("DecryptString(empty) = %q, %v", s, err)
	}

	ct, err := EncryptString(enc, "refresh-token-value")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	got, err := DecryptString(enc, ct)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if got != "refresh-token-value" {
		t.Errorf("round trip got %q", got)
	}

	if _, err := DecryptString(enc, "%%%not-base64%%%"); err == nil {
		t.Error("DecryptString accepted invalid base64")
	}
}
