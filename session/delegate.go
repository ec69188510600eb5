package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoRequestScope is returned when a session is requested from a
// context that was not prepared by Accessor.Middleware. It indicates a
// wiring mistake, not a client error.
var ErrNoRequestScope = errors.New("session: no request scope in context")

// Delegate is the authentication service. It serves the auth HTTP
// protocol and answers session lookups for a set of request headers.
//
// GetSession returns (nil, nil) when the headers carry no valid session.
type Delegate[F any] interface {
	http.Handler
	GetSession(ctx context.Context, header http.Header) (*Session[F], error)
}

// DelegateError reports an unexpected status from a remote Delegate.
type DelegateError struct {
	Status int
	Body   string
}

func (e *DelegateError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("auth delegate returned status %d", e.Status)
	}
	return fmt.Sprintf("auth delegate returned status %d: %s", e.Status, e.Body)
}
