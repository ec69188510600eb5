// Package session resolves the authenticated session of an HTTP request
// through an external authentication service (the Delegate).
//
// A Scope is created for every request and caches the Delegate's answer,
// so however many handlers ask, the Delegate is consulted at most once
// per request. Scopes are never shared between requests.
package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the session half of a Delegate session payload.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}

// User is the authenticated principal.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	EmailVerified bool      `json:"emailVerified"`
	Image         string    `json:"image,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NoFields is the additional-fields type for deployments that attach
// nothing extra to users.
type NoFields struct{}

// Session is an authenticated session as reported by the Delegate. F
// describes the additional fields the Delegate attaches to the user
// object; they are decoded from the same JSON object as User.
type Session[F any] struct {
	Session Record
	User    User
	Fields  F
}

type wireSession struct {
	Session Record          `json:"session"`
	User    json.RawMessage `json:"user"`
}

// Expired reports whether the session has passed its expiry at now.
func (s *Session[F]) Expired(now time.Time) bool {
	return !s.Session.ExpiresAt.IsZero() && !now.Before(s.Session.ExpiresAt)
}

func (s *Session[F]) UnmarshalJSON(data []byte) error {
	var wire wireSession
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Session = wire.Session
	if len(wire.User) == 0 || string(wire.User) == "null" {
		return nil
	}
	if err := json.Unmarshal(wire.User, &s.User); err != nil {
		return fmt.Errorf("decoding user: %w", err)
	}
	if err := json.Unmarshal(wire.User, &s.Fields); err != nil {
		return fmt.Errorf("decoding additional user fields: %w", err)
	}
	return nil
}

// MarshalJSON writes the Delegate's wire shape: additional fields are
// merged into the user object. Core user fields win on name clashes.
func (s Session[F]) MarshalJSON() ([]byte, error) {
	user := map[string]json.RawMessage{}
	extra, err := json.Marshal(s.Fields)
	if err != nil {
		return nil, err
	}
	var extraFields map[string]json.RawMessage
	// Non-object field types have nothing to merge.
	if json.Unmarshal(extra, &extraFields) == nil {
		for k, v := range extraFields {
			user[k] = v
		}
	}

	core, err := json.Marshal(s.User)
	if err != nil {
		return nil, err
	}
	var coreFields map[string]json.RawMessage
	if err := json.Unmarshal(core, &coreFields); err != nil {
		return nil, err
	}
	for k, v := range coreFields {
		user[k] = v
	}

	return json.Marshal(struct {
		Session Record                     `json:"session"`
		User    map[string]json.RawMessage `json:"user"`
	}{s.Session, user})
}
