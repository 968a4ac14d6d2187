package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultIssuer = "bidready.portal"

// Claims is the JWT body of a portal session token
type Claims struct {
	jwt.RegisteredClaims
	OrganizationID string `json:"org_id,omitempty"`
	EmailVerified  bool   `json:"email_verified"`
	MFAEnabled     bool   `json:"mfa_enabled"`
}

// TokenIssuer signs and verifies HS256 session tokens
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a new token issuer
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the session
func (t *TokenIssuer) Issue(s Session) (string, error) {
	if s.UserID == "" {
		return "", errors.New("session has no user id")
	}
	now := t.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		EmailVerified: s.EmailVerified,
		MFAEnabled:    s.MFAEnabled,
	}
	if s.OrganizationID != nil {
		claims.OrganizationID = *s.OrganizationID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the session it carries
func (t *TokenIssuer) Verify(tokenString string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}

	s := &Session{
		UserID:        claims.Subject,
		EmailVerified: claims.EmailVerified,
		MFAEnabled:    claims.MFAEnabled,
	}
	if claims.OrganizationID != "" {
		org := claims.OrganizationID
		s.OrganizationID = &org
	}
	return s, nil
}
