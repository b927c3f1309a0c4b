package service

import (
	"testing"
	"time"

	"custody-ledger/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, "test-issuer")
	userID := uuid.New()

	tokenStr, expiresAt, err := svc.Generate(userID, ports.RoleAdmin, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.True(t, claims.IsAdmin())
}

func TestJWTTokenService_MissingRoleDefaultsToUser(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, "test-issuer")

	tokenStr, _, err := svc.Generate(uuid.New(), "", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, ports.RoleUser, claims.Role)
	assert.False(t, claims.IsAdmin())
}

func TestJWTTokenService_UnknownRole(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, "test-issuer")

	tokenStr, _, err := svc.Generate(uuid.New(), "superuser", time.Hour)
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, "test-issuer")

	// Token with -1 hour expiry = already expired
	tokenStr, _, err := svc.Generate(uuid.New(), ports.RoleUser, -1*time.Hour)
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err, "expired token should fail validation")
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	issuer := NewJWTTokenService(testJWTSecret, "someone-else")
	svc := NewJWTTokenService(testJWTSecret, "test-issuer")

	tokenStr, _, err := issuer.Generate(uuid.New(), ports.RoleUser, time.Hour)
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_NoExpiry(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, "")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.New().String()})
	tokenStr, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err, "tokens without exp are refused")
}

func TestJWTTokenService_InvalidSignature(t *testing.T) {
	svc1 := NewJWTTokenService("secret-1", "issuer")
	svc2 := NewJWTTokenService("secret-2", "issuer")

	tokenStr, _, err := svc1.Generate(uuid.New(), ports.RoleUser, time.Hour)
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err, "token signed with different secret should fail")
}

func TestJWTTokenService_InvalidTokenString(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, "issuer")

	_, err := svc.Validate("not.a.valid.jwt")
	assert.Error(t, err)

	_, err = svc.Validate("")
	assert.Error(t, err)
}
