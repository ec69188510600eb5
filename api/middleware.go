package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmcleod/registrar/session"
)

// RequireSession rejects requests that carry no live session. The
// resolved session stays cached on the request scope for the handler.
// Clients that keep failing are locked out with 429 before another
// lookup reaches the authentication service.
func (a *API[F]) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, a.trustedProxies)
		if blocked, retryAfter := a.denied.check(ip); blocked {
			a.audit.logFailure(AuditRateLimited, r, "too many denied requests",
				slog.String("client_ip", ip))
			writeRateLimited(w, retryAfter)
			return
		}

		s, err := a.sessions.Session(r.Context())
		switch {
		case errors.Is(err, session.ErrNoRequestScope):
			a.audit.logFailure(AuditSessionError, r, "no request scope")
			writeError(w, http.StatusInternalServerError, "session scope not configured")
			return
		case err != nil:
			a.audit.logFailure(AuditSessionError, r, "session lookup failed",
				slog.String("error", err.Error()))
			writeError(w, http.StatusBadGateway, "authentication service unavailable")
			return
		case s == nil:
			a.denied.recordDenial(ip)
			a.audit.logFailure(AuditAccessDenied, r, "no session")
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		case s.Expired(time.Now()):
			a.denied.recordDenial(ip)
			a.audit.logFailure(AuditAccessDenied, r, "session expired",
				slog.String("user_id", s.User.ID))
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		a.denied.recordSuccess(ip)
		next.ServeHTTP(w, r)
	})
}
