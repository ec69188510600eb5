package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/registrar/api"
	"github.com/jmcleod/registrar/catalog"
	"github.com/jmcleod/registrar/session"
)

const goodCookie = "registrar.session_token=good"

// stubDelegate plays the authentication service.
type stubDelegate struct {
	lookups  atomic.Int32
	lookupFn func(http.Header) (*session.Session[catalog.UserFields], error)

	mu       sync.Mutex
	forwards []forwarded
}

type forwarded struct {
	method string
	path   string
	query  string
	body   string
	header http.Header
}

func (d *stubDelegate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	d.mu.Lock()
	d.forwards = append(d.forwards, forwarded{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		body:   string(body),
		header: r.Header.Clone(),
	})
	d.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Delegate", "stub")
	w.WriteHeader(http.StatusAccepted)
	io.WriteString(w, `{"delegate":"`+r.Method+" "+r.URL.Path+`"}`)
}

func (d *stubDelegate) GetSession(_ context.Context, header http.Header) (*session.Session[catalog.UserFields], error) {
	d.lookups.Add(1)
	if d.lookupFn != nil {
		return d.lookupFn(header)
	}
	if header.Get("Cookie") != goodCookie {
		return nil, nil
	}
	return &session.Session[catalog.UserFields]{
		Session: session.Record{ID: "sess-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)},
		User:    session.User{ID: "user-1", Email: "ada@example.edu", Name: "Ada"},
		Fields:  catalog.UserFields{Role: catalog.RoleStudent, StudentNumber: "S-100"},
	}, nil
}

func (d *stubDelegate) forwardCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.forwards)
}

func setupServer(t *testing.T, d *stubDelegate, opts ...api.Option) *httptest.Server {
	t.Helper()
	opts = append([]api.Option{api.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	a := api.New[catalog.UserFields](d, opts...)
	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body io.Reader, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, url, body)
	require.NoError(t, err)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestAuthRouteForwardsGet(t *testing.T) {
	d := &stubDelegate{}
	srv := setupServer(t, d)

	resp := do(t, http.MethodGet, srv.URL+"/api/auth/session?disableCookieCache=true", nil,
		http.Header{"Cookie": {goodCookie}})

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"delegate":"GET /api/auth/session"}`, readBody(t, resp))
	assert.Equal(t, "stub", resp.Header.Get("X-Delegate"))
	assert.Empty(t, resp.Header.Get("X-Frame-Options"), "auth responses must not gain headers")

	require.Equal(t, 1, d.forwardCount())
	got := d.forwards[0]
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/api/auth/session", got.path)
	assert.Equal(t, "disableCookieCache=true", got.query)
	assert.Equal(t, goodCookie, got.header.Get("Cookie"))
	assert.Zero(t, d.lookups.Load(), "the auth route never resolves sessions itself")
}

func TestAuthRouteForwardsPost(t *testing.T) {
	d := &stubDelegate{}
	srv := setupServer(t, d)

	body := `{"email":"ada@example.edu","password":"hunter22"}`
	resp := do(t, http.MethodPost, srv.URL+"/api/auth/sign-in/email", strings.NewReader(body),
		http.Header{"Content-Type": {"application/json"}})

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"delegate":"POST /api/auth/sign-in/email"}`, readBody(t, resp))
	require.Equal(t, 1, d.forwardCount())
	assert.Equal(t, body, d.forwards[0].body)
}

func TestAuthRouteRejectsOtherMethods(t *testing.T) {
	for _, method := range []string{http.MethodDelete, http.MethodPut, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			d := &stubDelegate{}
			srv := setupServer(t, d)

			resp := do(t, method, srv.URL+"/api/auth/session", nil, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
			assert.Zero(t, d.forwardCount())
		})
	}
}

func TestAuthRouteCustomBasePath(t *testing.T) {
	d := &stubDelegate{}
	srv := setupServer(t, d, api.WithAuthBasePath("/auth/"))

	resp := do(t, http.MethodGet, srv.URL+"/auth/session", nil, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/auth/session", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, d.forwardCount())
}

func TestMeRequiresSession(t *testing.T) {
	d := &stubDelegate{}
	srv := setupServer(t, d)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var er api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&er))
	assert.Equal(t, "authentication required", er.Error)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestMeReturnsSessionWithOneLookup(t *testing.T) {
	d := &stubDelegate{}
	srv := setupServer(t, d)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/me", nil, http.Header{"Cookie": {goodCookie}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s session.Session[catalog.UserFields]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, "user-1", s.User.ID)
	assert.Equal(t, catalog.RoleStudent, s.Fields.Role)
	assert.Equal(t, int32(1), d.lookups.Load())

	do(t, http.MethodGet, srv.URL+"/api/v1/me", nil, http.Header{"Cookie": {goodCookie}})
	assert.Equal(t, int32(2), d.lookups.Load())
}

func TestMeExpiredSession(t *testing.T) {
	d := &stubDelegate{lookupFn: func(http.Header) (*session.Session[catalog.UserFields], error) {
		return &session.Session[catalog.UserFields]{
			Session: session.Record{ID: "old", ExpiresAt: time.Now().Add(-time.Minute)},
		}, nil
	}}
	srv := setupServer(t, d)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMeDelegateFailure(t *testing.T) {
	d := &stubDelegate{lookupFn: func(http.Header) (*session.Session[catalog.UserFields], error) {
		return nil, errors.New("connection refused")
	}}
	srv := setupServer(t, d)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/me", nil, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestSpotlight(t *testing.T) {
	d := &stubDelegate{}
	srv := setupServer(t, d)

	t.Run("Query", func(t *testing.T) {
		resp := do(t, http.MethodGet, srv.URL+"/api/v1/spotlight?search=%20%20abc%20%20&tab=courses", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"search":"abc"}`, readBody(t, resp))
		assert.Equal(t, "/api/v1/spotlight?search=abc", resp.Header.Get("Content-Location"),
			"unknown keys and whitespace are dropped from the canonical URL")
	})

	t.Run("MissingQuery", func(t *testing.T) {
		resp := do(t, http.MethodGet, srv.URL+"/api/v1/spotlight", nil, nil)
		assert.JSONEq(t, `{"search":""}`, readBody(t, resp))
		assert.Equal(t, "/api/v1/spotlight", resp.Header.Get("Content-Location"))
	})

	t.Run("BodyWrongType", func(t *testing.T) {
		resp := do(t, http.MethodPost, srv.URL+"/api/v1/spotlight", bytes.NewBufferString(`{"search":123}`), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"search":""}`, readBody(t, resp))
	})

	t.Run("BodyTrimmed", func(t *testing.T) {
		resp := do(t, http.MethodPost, srv.URL+"/api/v1/spotlight", bytes.NewBufferString(`{"search":"  calc 101 "}`), nil)
		assert.JSONEq(t, `{"search":"calc 101"}`, readBody(t, resp))
		assert.Equal(t, "/api/v1/spotlight?search=calc+101", resp.Header.Get("Content-Location"))
	})

	assert.Zero(t, d.lookups.Load(), "spotlight does not need a session")
}

func TestOpenAPIServed(t *testing.T) {
	srv := setupServer(t, &stubDelegate{})

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/openapi.yaml", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "/api/v1/me")
}

func TestOriginCheck(t *testing.T) {
	appURL, err := url.Parse("https://registrar.example.edu")
	require.NoError(t, err)
	srv := setupServer(t, &stubDelegate{}, api.WithAppURL(appURL))

	tests := []struct {
		name   string
		method string
		path   string
		origin string
		want   int
	}{
		{"SameOrigin", http.MethodPost, "/api/v1/spotlight", "https://registrar.example.edu", http.StatusOK},
		{"SameOriginCase", http.MethodPost, "/api/v1/spotlight", "HTTPS://Registrar.Example.edu", http.StatusOK},
		{"NoOrigin", http.MethodPost, "/api/v1/spotlight", "", http.StatusOK},
		{"CrossOrigin", http.MethodPost, "/api/v1/spotlight", "https://evil.example", http.StatusForbidden},
		{"OtherScheme", http.MethodPost, "/api/v1/spotlight", "http://registrar.example.edu", http.StatusForbidden},
		{"SafeMethod", http.MethodGet, "/api/v1/spotlight", "https://evil.example", http.StatusOK},
		{"AuthRouteUntouched", http.MethodPost, "/api/auth/sign-in/email", "https://evil.example", http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			resp := do(t, tt.method, srv.URL+tt.path, strings.NewReader(`{"search":"x"}`), header)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestOriginCheckDisabledWithoutAppURL(t *testing.T) {
	srv := setupServer(t, &stubDelegate{})

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/spotlight", strings.NewReader(`{}`),
		http.Header{"Origin": {"https://evil.example"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
