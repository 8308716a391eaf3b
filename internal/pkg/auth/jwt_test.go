package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	m := NewJWTManager(config.JWTConfig{Secret: testSecret, Issuer: "idp"})

	token, err := m.GenerateAccessToken("ada@example.com", "ada@example.com", true, time.Minute)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.PrincipalID())
	assert.True(t, claims.IsAdmin)
}

func TestValidateTokenRejects(t *testing.T) {
	m := NewJWTManager(config.JWTConfig{Secret: testSecret, Issuer: "idp"})

	expired, err := m.GenerateAccessToken("ada", "ada@example.com", false, -time.Minute)
	require.NoError(t, err)

	otherIssuer, err := NewJWTManager(config.JWTConfig{Secret: testSecret, Issuer: "elsewhere"}).
		GenerateAccessToken("ada", "ada@example.com", false, time.Minute)
	require.NoError(t, err)

	otherSecret, err := NewJWTManager(config.JWTConfig{Secret: "ffffffffffffffffffffffffffffffff", Issuer: "idp"}).
		GenerateAccessToken("ada", "ada@example.com", false, time.Minute)
	require.NoError(t, err)

	noSubject, err := m.GenerateAccessToken("", "ada@example.com", false, time.Minute)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ada", Issuer: "idp"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"issuer":     otherIssuer,
		"secret":     otherSecret,
		"no subject": noSubject,
		"alg none":   none,
		"garbage":    "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromHeader("Bearer abc"))
	assert.Equal(t, "", ExtractTokenFromHeader("Basic abc"))
	assert.Equal(t, "", ExtractTokenFromHeader("Bearer "))
}
