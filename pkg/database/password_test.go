package database

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"standard password", "mySecurePassword123"},
		{"empty password", ""},
		{"unicode password", "パスワード"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			if err != nil {
				t.Fatalf("HashPassword failed: %v", err)
			}
			if !strings.HasPrefix(hash, "$argon2id$v=19$") {
				t.Fatalf("unexpected hash format %q", hash)
			}

			ok, err := VerifyPassword(hash, tt.password)
			if err != nil || !ok {
				t.Fatalf("expected password to verify, ok=%v err=%v", ok, err)
			}
			if ok, _ := VerifyPassword(hash, tt.password+"x"); ok {
				t.Fatalf("expected modified password to fail")
			}
		})
	}
}

func TestHashPasswordSalted(t *testing.T) {
	a, _ := HashPassword("same")
	b, _ := HashPassword("same")
	if a == b {
		t.Fatalf("expected different salts to produce different hashes")
	}
}

func TestVerifyPasswordMalformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
	} {
		if _, err := VerifyPassword(encoded, "pw"); !errors.Is(err, ErrBadPasswordHash) {
			t.Errorf("VerifyPassword(%q) = %v, want ErrBadPasswordHash", encoded, err)
		}
	}

	acct := &Account{PasswordHash: "garbage"}
	if acct.CheckPassword("pw") {
		t.Fatalf("malformed hash must never match")
	}
}
