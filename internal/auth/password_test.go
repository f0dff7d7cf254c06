package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordHashingLifecycle(t *testing.T) {
	password := "S3curePass!"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("unexpected error hashing password: %v", err)
	}
	if hash == "" {
		t.Fatal("expected hash to be populated")
	}

	if err := VerifyPassword(hash, password); err != nil {
		t.Fatalf("expected password to verify, got error: %v", err)
	}

	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("expected verification to fail for wrong password")
	}
}

func TestHashPasswordRejectsOverlongInput(t *testing.T) {
	_, err := HashPasswordWithCost(strings.Repeat("a", 73), 4)
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestHashPasswordRejectsBlank(t *testing.T) {
	if _, err := HashPassword("   "); err == nil {
		t.Fatal("expected error for blank password")
	}
}

func TestCheckPasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{name: "compliant", password: "Secret123", ok: true},
		{name: "too short", password: "Sec12", ok: false},
		{name: "no upper", password: "secret123", ok: false},
		{name: "no lower", password: "SECRET123", ok: false},
		{name: "no digit", password: "SecretPass", ok: false},
		{name: "unicode letters count", password: "Şifre1234", ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPasswordPolicy(tt.password)
			if tt.ok && err != nil {
				t.Fatalf("expected %q to pass, got %v", tt.password, err)
			}
			if !tt.ok && !errors.Is(err, ErrWeakPassword) {
				t.Fatalf("expected ErrWeakPassword for %q, got %v", tt.password, err)
			}
		})
	}
}
