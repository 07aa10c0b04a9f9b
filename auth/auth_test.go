package auth

import (
	"chat-client/errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestRegistrationValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"bob", "bob@example.com", "secret1", true}, false},
		{"Invalid email", RegisterRequest{"bob", "notanemail", "secret1", true}, true},
		{"Username too short", RegisterRequest{"bo", "bob@example.com", "secret1", true}, true},
		{"Password too short", RegisterRequest{"bob", "bob@example.com", "abc", true}, true},
		{"Terms not accepted", RegisterRequest{"bob", "bob@example.com", "secret1", false}, true},
		{"Password too long", RegisterRequest{"bob", "bob@example.com", strings.Repeat("a", 73), true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.ErrorIs(err, errors.ErrInvalidCredentials)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestLoginValidation_Reports_Every_Field(t *testing.T) {
	req := require.New(t)

	err := ValidateLogin(LoginRequest{Email: "nope"})

	req.ErrorIs(err, errors.ErrInvalidCredentials)
	req.Contains(err.Error(), "email: email")
	req.Contains(err.Error(), "password: required")
	req.NoError(ValidateLogin(LoginRequest{Email: "alice@example.com", Password: "x"}))
}

func TestIsExpired(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	sign := func(exp time.Time) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		})
		s, err := token.SignedString([]byte("server-side-secret"))
		req.NoError(err)
		return s
	}

	// Given a token issued by the server with an unknown key
	req.True(IsExpired(sign(now.Add(-time.Minute)), now))
	req.False(IsExpired(sign(now.Add(time.Hour)), now))

	// Opaque tokens are left to the server
	req.False(IsExpired("opaque-session-token", now))
	_, ok := TokenExpiry("opaque-session-token")
	req.False(ok)
}
