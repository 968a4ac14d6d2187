package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Session is the read-only identity of the caller
type Session struct {
	UserID         string  `json:"user_id"`
	OrganizationID *string `json:"organization_id,omitempty"`
	EmailVerified  bool    `json:"email_verified"`
	MFAEnabled     bool    `json:"mfa_enabled"`
}

// ErrNoSession is returned when a request carries no authenticated session
var ErrNoSession = errors.New("no authenticated session")

type contextKey int

const (
	sessionKey contextKey = iota
	tokenKey
)

const ginSessionKey = "auth.session"

// WithSession returns a context carrying the session
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session stored by WithSession
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}

// WithToken returns a context carrying the caller's raw bearer token so that
// outbound calls can forward it.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext returns the bearer token stored by WithToken
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok && t != ""
}

// CurrentSession returns the session the middleware attached to the request
func CurrentSession(c *gin.Context) (*Session, error) {
	if v, ok := c.Get(ginSessionKey); ok {
		if s, ok := v.(*Session); ok {
			return s, nil
		}
	}
	if s, ok := SessionFromContext(c.Request.Context()); ok {
		return s, nil
	}
	return nil, ErrNoSession
}

// CurrentOrganizationID returns the caller's organization, or uuid.Nil when
// the session has none.
func CurrentOrganizationID(c *gin.Context) uuid.UUID {
	session, err := CurrentSession(c)
	if err != nil || session.OrganizationID == nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(*session.OrganizationID)
	if err != nil {
		return uuid.Nil
	}
	return id
}
