package crypto_test

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/hibiki-ai/hibiki/common/crypto"
)

func testKey() []byte {
	key := make([]byte, crypto.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey()
	plaintext := []byte("service-token-value-123")

	sealed, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatal("ciphertext contains the plaintext")
	}

	opened, err := crypto.Decrypt(key, sealed)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Decrypt() = %q, want %q", opened, plaintext)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	key := testKey()
	c1, _ := crypto.Encrypt(key, []byte("same plaintext"))
	c2, _ := crypto.Encrypt(key, []byte("same plaintext"))
	if bytes.Equal(c1, c2) {
		t.Error("two encryptions produced identical ciphertext")
	}
}

func TestInvalidKeySizes(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33} {
		if _, err := crypto.Encrypt(make([]byte, n), []byte("data")); err == nil {
			t.Errorf("Encrypt() with %d-byte key = nil error", n)
		}
		if _, err := crypto.Decrypt(make([]byte, n), make([]byte, 32)); err == nil {
			t.Errorf("Decrypt() with %d-byte key = nil error", n)
		}
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	key := testKey()
	sealed, err := crypto.Encrypt(key, []byte("tamper test"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	sealed[len(sealed)-1] ^= 0xFF

	if _, err := crypto.Decrypt(key, sealed); err == nil {
		t.Error("Decrypt() of tampered ciphertext = nil error")
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	sealed, err := crypto.Encrypt(testKey(), []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	other := bytes.Repeat([]byte{0x7f}, crypto.KeySize)
	if _, err := crypto.Decrypt(other, sealed); err == nil {
		t.Error("Decrypt() with the wrong key = nil error")
	}
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	if _, err := crypto.Decrypt(testKey(), []byte("short")); err == nil {
		t.Error("Decrypt() of too-short ciphertext = nil error")
	}
}

func TestParseMasterKey(t *testing.T) {
	raw := hex.EncodeToString(testKey())

	key, err := crypto.ParseMasterKey("  " + raw + "\n")
	if err != nil {
		t.Fatalf("ParseMasterKey() error = %v", err)
	}
	if !bytes.Equal(key, testKey()) {
		t.Error("ParseMasterKey() returned a different key")
	}

	for name, input := range map[string]string{
		"empty":        "",
		"not hex":      strings.Repeat("zz", 32),
		"wrong length": "deadbeef",
	} {
		if _, err := crypto.ParseMasterKey(input); err == nil {
			t.Errorf("ParseMasterKey(%s) = nil error", name)
		}
	}
}
