package api

import (
	"io"
	"net/http"
	"net/url"

	"github.com/jmcleod/registrar/spotlight"
)

const maxSpotlightBodySize = 4 << 10

// Me handles GET /me. RequireSession has already resolved the session,
// so this reads it from the request scope without a second lookup.
func (a *API[F]) Me(w http.ResponseWriter, r *http.Request) {
	s, err := a.sessions.Session(r.Context())
	if err != nil || s == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	a.audit.logEvent(AuditSessionResolved, r, s.User.ID)
	writeJSON(w, http.StatusOK, s)
}

// GetSpotlight handles GET /spotlight. It echoes the validated search
// state read from the query string.
func (a *API[F]) GetSpotlight(w http.ResponseWriter, r *http.Request) {
	writeSpotlight(w, r, spotlight.FromQuery(r.URL.Query()))
}

// PostSpotlight handles POST /spotlight. Invalid bodies decode to the
// empty search rather than an error.
func (a *API[F]) PostSpotlight(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSpotlightBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeSpotlight(w, r, spotlight.FromJSON(body))
}

// writeSpotlight answers with the search state and points
// Content-Location at the canonical GET URL for it.
func writeSpotlight(w http.ResponseWriter, r *http.Request, s spotlight.Search) {
	loc := url.URL{Path: r.URL.Path, RawQuery: s.Query().Encode()}
	w.Header().Set("Content-Location", loc.String())
	writeJSON(w, http.StatusOK, s)
}
