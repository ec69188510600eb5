package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/jmcleod/registrar/internal/uuid"
)

type contextKey int

const scopeKey contextKey = iota

// Scope is the request-scoped state used to resolve a session. It is
// built once per request and dropped when the request ends.
type Scope[F any] struct {
	id       string
	header   http.Header
	delegate Delegate[F]

	once    sync.Once
	session *Session[F]
	err     error
}

// NewScope captures a copy of r's headers for session resolution against
// delegate. The request itself is never modified.
func NewScope[F any](r *http.Request, delegate Delegate[F]) *Scope[F] {
	return &Scope[F]{
		id:       uuid.New(),
		header:   r.Header.Clone(),
		delegate: delegate,
	}
}

// ID identifies the request the scope belongs to.
func (s *Scope[F]) ID() string {
	return s.id
}

// Session returns the request's session, or nil when it has none. The
// Delegate is asked on the first call only; later calls return the same
// result, including the same error. Delegate errors are returned as-is.
func (s *Scope[F]) Session(ctx context.Context) (*Session[F], error) {
	s.once.Do(func() {
		s.session, s.err = s.delegate.GetSession(ctx, s.header)
	})
	return s.session, s.err
}

// WithScope returns a copy of ctx carrying scope.
func WithScope[F any](ctx context.Context, scope *Scope[F]) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// ScopeFromContext returns the Scope installed by Accessor.Middleware.
func ScopeFromContext[F any](ctx context.Context) (*Scope[F], error) {
	scope, ok := ctx.Value(scopeKey).(*Scope[F])
	if !ok || scope == nil {
		return nil, ErrNoRequestScope
	}
	return scope, nil
}

// Accessor wires a Delegate into the request lifecycle.
type Accessor[F any] struct {
	delegate Delegate[F]
}

// NewAccessor creates an Accessor resolving sessions through delegate.
func NewAccessor[F any](delegate Delegate[F]) *Accessor[F] {
	return &Accessor[F]{delegate: delegate}
}

// Delegate returns the underlying Delegate.
func (a *Accessor[F]) Delegate() Delegate[F] {
	return a.delegate
}

// Middleware installs a fresh Scope on every request. An existing Scope
// on the context is kept, so stacking the middleware does not cause a
// second lookup.
func (a *Accessor[F]) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := ScopeFromContext[F](r.Context()); err == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := WithScope(r.Context(), NewScope(r, a.delegate))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Session resolves the session of the request ctx belongs to. It fails
// with ErrNoRequestScope outside of Middleware.
func (a *Accessor[F]) Session(ctx context.Context) (*Session[F], error) {
	scope, err := ScopeFromContext[F](ctx)
	if err != nil {
		return nil, err
	}
	return scope.Session(ctx)
}
