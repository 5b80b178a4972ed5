package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	return h
}

func TestNewPasswordHasher_RejectsCostOutOfRange(t *testing.T) {
	for _, cost := range []int{0, 3, 32} {
		if _, err := NewPasswordHasher(cost); err == nil {
			t.Errorf("cost %d: expected error, got nil", cost)
		}
	}
}

// TestPasswordHasher_HashAndCompare はハッシュが平文を含まず、照合が成功することを検証する。
func TestPasswordHasher_HashAndCompare(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("Passw0rd1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if strings.Contains(hash, "Passw0rd1") {
		t.Fatal("hash must not contain plaintext")
	}

	ok, err := h.Compare(hash, "Passw0rd1")
	if err != nil || !ok {
		t.Errorf("Compare(correct) = %v, %v; want true, nil", ok, err)
	}

	ok, err = h.Compare(hash, "Passw0rd2")
	if err != nil || ok {
		t.Errorf("Compare(wrong) = %v, %v; want false, nil", ok, err)
	}
}

func TestPasswordHasher_HashIsSalted(t *testing.T) {
	h := newTestHasher(t)

	a, _ := h.Hash("Passw0rd1")
	b, _ := h.Hash("Passw0rd1")
	if a == b {
		t.Error("expected different hashes for the same password")
	}
}

func TestPasswordHasher_CompareMalformedHash(t *testing.T) {
	h := newTestHasher(t)

	if _, err := h.Compare("not-a-bcrypt-hash", "Passw0rd1"); err == nil {
		t.Error("expected error for malformed hash")
	}
}
