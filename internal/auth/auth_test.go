package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ajaydeep123/TradeOpx/internal/errs"
)

func TestPasswordHashing(t *testing.T) {
	s := NewService("test-secret", time.Hour)

	hash, err := s.HashPassword("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)

	assert.NoError(t, s.CheckPassword(hash, "password123"))

	err = s.CheckPassword(hash, "wrong-password")
	assert.Equal(t, errs.KindAuth, errs.KindOf(err))
}

func TestSignVerify(t *testing.T) {
	s := NewService("test-secret", time.Hour)

	token, err := s.Sign("user-42")
	require.NoError(t, err)

	id, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id)
}

func TestVerify_Failures(t *testing.T) {
	s := NewService("test-secret", time.Hour)
	other := NewService("other-secret", time.Hour)
	expired := NewService("test-secret", -time.Minute)

	validToken, err := s.Sign("user-42")
	require.NoError(t, err)
	expiredToken, err := expired.Sign("user-42")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"Garbage", "not-a-token"},
		{"Empty", ""},
		{"WrongSecret", validToken + "tampered"},
		{"Expired", expiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Verify(tt.token)
			assert.Equal(t, errs.KindAuth, errs.KindOf(err))
		})
	}

	// A token signed with a different secret is rejected.
	foreign, err := other.Sign("user-42")
	require.NoError(t, err)
	_, err = s.Verify(foreign)
	assert.Equal(t, errs.KindAuth, errs.KindOf(err))
}
