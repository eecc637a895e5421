package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "AVeryStr0ngPassphrase!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword1!", hash)
	req.NoError(err)
	req.False(match)

	_, err = ComparePassword(password, "not-an-encoded-hash")
	req.Error(err)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"alice", "ComplexPass123!"}, false},
		{"Username too short", RegisterRequest{"al", "ComplexPass123!"}, true},
		{"Username not alphanumeric", RegisterRequest{"al ice", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"alice", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"alice", "NoDigitPassword!"}, true},
		{"Missing special char", RegisterRequest{"alice", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"alice", "nouppercase123!"}, true},
		{"Password too long", RegisterRequest{"alice", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenRoundtrip(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("unit-test-secret", time.Hour)

	token, err := manager.Generate(42)
	req.NoError(err)

	claims, err := manager.Validate(token)
	req.NoError(err)
	req.Equal(int64(42), claims.UserID)
	req.Equal("pairchat", claims.Issuer)
}

func TestTokenRejection(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("unit-test-secret", time.Hour)

	token, err := manager.Generate(42)
	req.NoError(err)

	// Wrong signing secret.
	other := NewTokenManager("another-secret", time.Hour)
	_, err = other.Validate(token)
	req.Error(err)

	// Expired token.
	expired := NewTokenManager("unit-test-secret", -time.Minute)
	token, err = expired.Generate(42)
	req.NoError(err)
	_, err = expired.Validate(token)
	req.Error(err)

	_, err = manager.Validate("garbage.token.value")
	req.Error(err)
}
