// Package auth validates embedded-app session tokens.
package auth

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "skuforge/internal/core/context"
)

// SessionConfig holds the app credentials used to verify session tokens.
type SessionConfig struct {
	// APIKey is the app's client id; tokens must carry it as audience.
	APIKey string
	// APISecret signs tokens with HS256.
	APISecret string
	// Leeway tolerates clock skew on exp/nbf.
	Leeway time.Duration
}

// SessionClaims are the claims of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Dest string `json:"dest"`
	SID  string `json:"sid,omitempty"`
}

// SessionValidator validates session tokens.
type SessionValidator struct {
	config SessionConfig
	parser *jwt.Parser
}

// NewSessionValidator creates a new validator.
func NewSessionValidator(config SessionConfig) *SessionValidator {
	if config.Leeway == 0 {
		config.Leeway = 5 * time.Second
	}
	return &SessionValidator{
		config: config,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithAudience(config.APIKey),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(config.Leeway),
		),
	}
}

// ValidateToken validates a session token and returns the session it describes.
func (v *SessionValidator) ValidateToken(tokenString string) (*appctx.SessionContext, error) {
	claims := &SessionClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(v.config.APISecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	shop, err := hostOf(claims.Dest)
	if err != nil {
		return nil, fmt.Errorf("dest claim: %w", err)
	}
	if issuer, err := hostOf(claims.Issuer); err != nil || issuer != shop {
		return nil, errors.New("issuer does not match destination shop")
	}

	return &appctx.SessionContext{
		Shop:      shop,
		UserID:    claims.Subject,
		SessionID: claims.SID,
	}, nil
}

// IssueToken signs a session token for shop. Used by local tooling and tests.
func (v *SessionValidator) IssueToken(shop, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + shop + "/admin",
			Subject:   userID,
			Audience:  jwt.ClaimStrings{v.config.APIKey},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Dest: "https://" + shop,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(v.config.APISecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	return u.Host, nil
}
