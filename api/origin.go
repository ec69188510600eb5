package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// CheckOrigin rejects cross-origin mutating requests. Safe methods pass,
// as do requests without an Origin header (non-browser clients). With no
// app origin configured every request passes.
func (a *API[F]) CheckOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.appOrigin == "" || r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		origin := r.Header.Get("Origin")
		if origin == "" || strings.EqualFold(origin, a.appOrigin) {
			next.ServeHTTP(w, r)
			return
		}
		a.audit.logFailure(AuditOriginRejected, r, "cross-origin request",
			slog.String("origin", origin))
		writeError(w, http.StatusForbidden, "cross-origin request rejected")
	})
}

// originOf reduces u to scheme://host, the form browsers send in Origin.
func originOf(u *url.URL) string {
	if u == nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
