// Package sessions keeps server-side login sessions behind a signed cookie.
//
// The cookie holds an HS256 token whose jti is the session id; the values live
// in a Store (Redis or in-process memory). A tampered or expired cookie is
// treated the same as no cookie.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AuthUserIDKey marks the authenticated user in Session.Values.
const AuthUserIDKey = "_auth_user_id"

// ErrNoSession is returned by a Store when the id is unknown or expired.
var ErrNoSession = errors.New("session not found")

// Session is the server-side state behind one cookie.
type Session struct {
	ID     string            `json:"id"`
	Values map[string]string `json:"values"`
	Expiry time.Time         `json:"expiry"`

	isNew bool
}

// New returns an unsaved session that expires after ttl.
func New(ttl time.Duration) *Session {
	return &Session{
		ID:     uuid.NewString(),
		Values: make(map[string]string),
		Expiry: time.Now().Add(ttl),
		isNew:  true,
	}
}

// IsNew reports whether the session has not been loaded from a store.
func (s *Session) IsNew() bool { return s.isNew }

// Get returns the value stored under key.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// Set stores value under key.
func (s *Session) Set(key, value string) {
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	s.Values[key] = value
}

// Delete removes key.
func (s *Session) Delete(key string) {
	delete(s.Values, key)
}

// Store persists sessions.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
