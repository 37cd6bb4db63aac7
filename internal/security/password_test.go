package security

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_Hash_IsNotPlaintext(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hashed, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if hashed == "secret1" {
		t.Fatal("hash must not equal plaintext")
	}
	if !strings.HasPrefix(hashed, "$2a$") {
		t.Errorf("hash = %q, want bcrypt $2a$ prefix", hashed)
	}
	if len(hashed) > 72 {
		t.Errorf("hash length = %d, must fit the password column (72)", len(hashed))
	}
}

func TestPasswordHasher_Hash_IsSalted(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	first, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	second, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if first == second {
		t.Error("expected different hashes for the same plaintext (salt)")
	}
}

func TestPasswordHasher_Verify(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	hashed, err := h.Hash("senha123")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
		want      bool
	}{
		{"一致するパスワード", "senha123", true},
		{"異なるパスワード", "senhaerrada", false},
		{"大文字小文字違い", "SENHA123", false},
		{"空文字", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Verify(tt.plaintext, hashed)
			if err != nil {
				t.Fatalf("Verify returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Verify(%q) = %v, want %v", tt.plaintext, got, tt.want)
			}
		})
	}
}

func TestPasswordHasher_Verify_MalformedHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	ok, err := h.Verify("secret1", "not-a-bcrypt-hash")
	if ok {
		t.Error("expected false for malformed hash")
	}
	if !errors.Is(err, ErrMalformedHash) {
		t.Errorf("err = %v, want ErrMalformedHash", err)
	}
}

func TestPasswordHasher_Hash_RejectsOverlongPassword(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("a", 73))
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("err = %v, want ErrPasswordTooLong", err)
	}

	// 72バイトちょうどは受け付ける
	if _, err := h.Hash(strings.Repeat("a", 72)); err != nil {
		t.Errorf("72-byte password returned error: %v", err)
	}
}

func TestPasswordHasher_UsesConfiguredCost(t *testing.T) {
	h := NewPasswordHasher(5)

	hashed, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hashed))
	if err != nil {
		t.Fatalf("bcrypt.Cost returned error: %v", err)
	}
	if cost != 5 {
		t.Errorf("cost = %d, want 5", cost)
	}
}

func TestNewPasswordHasher_ClampsCost(t *testing.T) {
	if got := NewPasswordHasher(1).Cost(); got != bcrypt.MinCost {
		t.Errorf("Cost() = %d, want %d", got, bcrypt.MinCost)
	}
	if got := NewPasswordHasher(99).Cost(); got != bcrypt.MaxCost {
		t.Errorf("Cost() = %d, want %d", got, bcrypt.MaxCost)
	}
}
