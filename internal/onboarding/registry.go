package onboarding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bidready/portal-backend/internal/cache"
)

// DefaultSessionTTL is how long an idle session stays in memory
const DefaultSessionTTL = 30 * time.Minute

// SessionFactory builds an unloaded session for a user
type SessionFactory func(userID string) *Session

// Registry keeps one live Session per user and drops idle ones after a TTL.
// Drafts outlive the registry entry since they are stored by user ID.
type Registry struct {
	sessions *cache.TTLCache[*Session]
	factory  SessionFactory
	logger   *zap.Logger
}

// NewRegistry creates a new session registry
func NewRegistry(ttl time.Duration, factory SessionFactory, logger *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Registry{
		sessions: cache.New[*Session](ttl, ttl/2),
		factory:  factory,
		logger:   logger,
	}
}

func sessionKey(userID string) string {
	return "onboarding:" + userID
}

// Get returns the user's session, loading its state from the backend on
// first use.
func (r *Registry) Get(ctx context.Context, userID string) (*Session, error) {
	key := sessionKey(userID)
	if s, ok := r.sessions.Get(key); ok {
		r.sessions.Touch(key)
		return s, nil
	}

	s := r.factory(userID)
	if err := s.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}

	// another request for the same user may have stored one meanwhile
	stored, created := r.sessions.SetIfAbsent(key, s)
	if !created {
		s.Close()
		return stored, nil
	}
	r.logger.Debug("Onboarding session created", zap.String("user_id", userID))
	return stored, nil
}

// Forget drops the user's session so the next request reloads it
func (r *Registry) Forget(userID string) {
	key := sessionKey(userID)
	if s, ok := r.sessions.Get(key); ok {
		s.Close()
	}
	r.sessions.Delete(key)
}

// Len returns the number of cached sessions
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Stop stops the registry's sweeper
func (r *Registry) Stop() {
	r.sessions.Stop()
}
