package utils

import (
	"testing"
	"time"

	"chat-service/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "secret"

func TestVerifier_Verify(t *testing.T) {
	valid, err := GenerateToken("42", false, testKey, time.Hour)
	require.NoError(t, err)
	pending, err := GenerateToken("42", true, testKey, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("42", false, testKey, -time.Minute)
	require.NoError(t, err)
	otherKey, err := GenerateToken("42", false, "not-the-key", time.Hour)
	require.NoError(t, err)
	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"otp": false,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testKey))
	require.NoError(t, err)
	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "42",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testKey))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr error
	}{
		{name: "valid", token: valid, want: "42"},
		{name: "missing", token: "", wantErr: apperr.ErrMissingCredential},
		{name: "second factor pending", token: pending, wantErr: apperr.ErrSecondFactorPending},
		{name: "expired", token: expired, wantErr: apperr.ErrInvalidCredential},
		{name: "wrong key", token: otherKey, wantErr: apperr.ErrInvalidCredential},
		{name: "no id", token: noID, wantErr: apperr.ErrInvalidCredential},
		{name: "wrong algorithm", token: hs256, wantErr: apperr.ErrInvalidCredential},
		{name: "garbage", token: "not.a.jwt", wantErr: apperr.ErrInvalidCredential},
	}

	v := NewVerifier(testKey)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Verify(tt.token)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateStruct(t *testing.T) {
	type payload struct {
		ConversationID string   `json:"conversationId" validate:"required"`
		MessageIDs     []string `json:"messageIds" validate:"max=2"`
	}

	require.NoError(t, ValidateStruct(payload{ConversationID: "c1"}))

	err := ValidateStruct(payload{MessageIDs: []string{"a", "b", "c"}})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	assert.Equal(t, "conversationId is required; messageIds must be at most 2", apperr.MessageOf(err))
}
