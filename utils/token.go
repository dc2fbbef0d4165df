package utils

import (
	"strconv"
	"time"

	"chat-service/apperr"

	"github.com/golang-jwt/jwt/v5"
)

// TokenMetadata struct to describe metadata in JWT.
type TokenMetadata struct {
	Id  string
	Otp bool
	Exp int64
}

// GenerateToken signs an HS512 access token carrying the user id and the
// otp flag, the same shape the auth service issues.
func GenerateToken(id string, otp bool, key string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{}

	claims["id"] = id
	claims["otp"] = otp
	claims["exp"] = time.Now().Add(ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString([]byte(key))
}

// Verifier checks access tokens issued by the auth service.
type Verifier struct {
	key []byte
}

func NewVerifier(key string) *Verifier {
	return &Verifier{key: []byte(key)}
}

func (v *Verifier) ExtractTokenMetadata(token string) (*TokenMetadata, error) {
	t, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnauthenticated, apperr.ErrInvalidCredential.Error(), err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return nil, apperr.ErrInvalidCredential
	}

	meta := &TokenMetadata{}
	switch id := claims["id"].(type) {
	case string:
		meta.Id = id
	case float64:
		meta.Id = strconv.FormatInt(int64(id), 10)
	}
	meta.Otp, _ = claims["otp"].(bool)
	if exp, ok := claims["exp"].(float64); ok {
		meta.Exp = int64(exp)
	}
	return meta, nil
}

// Verify returns the user id of a valid token. Tokens still waiting for the
// second factor and tokens without an id are refused.
func (v *Verifier) Verify(token string) (string, error) {
	if token == "" {
		return "", apperr.ErrMissingCredential
	}
	meta, err := v.ExtractTokenMetadata(token)
	if err != nil {
		return "", err
	}
	if meta.Otp {
		return "", apperr.ErrSecondFactorPending
	}
	if meta.Id == "" {
		return "", apperr.ErrInvalidCredential
	}
	return meta.Id, nil
}
