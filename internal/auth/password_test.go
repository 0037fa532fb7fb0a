package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestValidatePasswordStrength(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost, MinPasswordLength)

	cases := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"strong mixed", "Str0ngPass!", false},
		{"three classes no symbol", "Str0ngPass", false},
		{"too short", "S7!a", true},
		{"only lowercase", "weakpassword", true},
		{"two classes only", "weakpassword1", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := pm.ValidatePasswordStrength(tc.password)
			if tc.wantErr && err == nil {
				t.Errorf("expected %q to be rejected", tc.password)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected %q to be accepted, got %v", tc.password, err)
			}
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost, MinPasswordLength)

	hash, err := pm.HashPassword("Str0ngPass!")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "Str0ngPass!" {
		t.Fatal("hash must not equal the plaintext")
	}

	if !pm.VerifyPassword("Str0ngPass!", hash) {
		t.Error("correct password rejected")
	}
	if pm.VerifyPassword("WrongPass1", hash) {
		t.Error("wrong password accepted")
	}
}

func TestHashRefreshTokenIsDeterministic(t *testing.T) {
	a := HashRefreshToken("token-one")
	b := HashRefreshToken("token-one")
	c := HashRefreshToken("token-two")

	if a != b {
		t.Error("same token must hash to the same value")
	}
	if a == c {
		t.Error("different tokens must hash differently")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(a))
	}
}
