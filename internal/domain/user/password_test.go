package user

import (
	"errors"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "valid", password: "Str0ng!pass", wantErr: nil},
		{name: "too short", password: "S1!a", wantErr: ErrPasswordTooShort},
		{name: "no uppercase", password: "weak1pass!", wantErr: ErrPasswordNoUppercase},
		{name: "no lowercase", password: "WEAK1PASS!", wantErr: ErrPasswordNoLowercase},
		{name: "no digit", password: "Weakpass!", wantErr: ErrPasswordNoDigit},
		{name: "no special", password: "Weak1pass", wantErr: ErrPasswordNoSpecial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePassword(%q) = %v, want %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!pass")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "Str0ng!pass" {
		t.Fatal("hash equals plaintext")
	}

	if err := VerifyPassword("Str0ng!pass", hash); err != nil {
		t.Errorf("VerifyPassword() with correct password error = %v", err)
	}
	if err := VerifyPassword("Wr0ng!pass", hash); !errors.Is(err, ErrPasswordHashMismatch) {
		t.Errorf("VerifyPassword() with wrong password error = %v, want ErrPasswordHashMismatch", err)
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	if err := VerifyPassword("anything", "not-a-phc-hash"); err == nil {
		t.Error("VerifyPassword() accepted malformed hash")
	}
}
