package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testValidator() *SessionValidator {
	return NewSessionValidator(SessionConfig{APIKey: "app-key", APISecret: "app-secret"})
}

func TestSessionValidator_RoundTrip(t *testing.T) {
	v := testValidator()

	token, err := v.IssueToken("demo.myshopify.com", "42", time.Minute)
	require.NoError(t, err)

	session, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "demo.myshopify.com", session.Shop)
	assert.Equal(t, "42", session.UserID)
}

func TestSessionValidator_Rejects(t *testing.T) {
	v := testValidator()
	other := NewSessionValidator(SessionConfig{APIKey: "other-key", APISecret: "app-secret"})
	wrongSecret := NewSessionValidator(SessionConfig{APIKey: "app-key", APISecret: "nope"})

	expired, err := v.IssueToken("demo.myshopify.com", "42", -time.Hour)
	require.NoError(t, err)
	foreignAudience, err := other.IssueToken("demo.myshopify.com", "42", time.Minute)
	require.NoError(t, err)
	badSignature, err := wrongSecret.IssueToken("demo.myshopify.com", "42", time.Minute)
	require.NoError(t, err)

	mismatched := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://evil.myshopify.com/admin",
			Audience:  jwt.ClaimStrings{"app-key"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Dest: "https://demo.myshopify.com",
	})
	mismatchedToken, err := mismatched.SignedString([]byte("app-secret"))
	require.NoError(t, err)

	noneAlg := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{Dest: "https://demo.myshopify.com"})
	noneToken, err := noneAlg.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":          expired,
		"foreign audience": foreignAudience,
		"bad signature":    badSignature,
		"issuer mismatch":  mismatchedToken,
		"alg none":         noneToken,
		"garbage":          "not.a.token",
	} {
		_, err := v.ValidateToken(token)
		assert.Error(t, err, name)
	}
}
