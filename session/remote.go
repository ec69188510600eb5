package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

const maxSessionBodySize = 1 << 20

// Headers copied from the caller onto session lookups.
var sessionLookupHeaders = []string{"Cookie", "Authorization"}

// Remote is a Delegate backed by an authentication service reachable over
// HTTP. Auth requests are proxied verbatim; sessions are looked up with
// GET {target}{basePath}/get-session.
type Remote[F any] struct {
	target   *url.URL
	basePath string
	client   *http.Client
	proxy    *httputil.ReverseProxy
	signer   *serviceTokenSigner
}

var _ Delegate[NoFields] = (*Remote[NoFields])(nil)

type remoteOptions struct {
	client     *http.Client
	authSecret []byte
}

// RemoteOption configures a Remote.
type RemoteOption func(*remoteOptions)

// WithHTTPClient sets the client used for session lookups and as the
// proxy transport. Defaults to http.DefaultClient.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(o *remoteOptions) {
		o.client = c
	}
}

// WithServiceSecret makes session lookups carry a service token derived
// from authSecret. The slice is not retained.
func WithServiceSecret(authSecret []byte) RemoteOption {
	return func(o *remoteOptions) {
		o.authSecret = authSecret
	}
}

// NewRemote creates a Remote delegating to the service at target, whose
// auth routes live under basePath (e.g. "/api/auth").
func NewRemote[F any](target *url.URL, basePath string, opts ...RemoteOption) (*Remote[F], error) {
	if target == nil || !target.IsAbs() || target.Host == "" {
		return nil, errors.New("remote delegate: target must be an absolute URL")
	}
	o := remoteOptions{client: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Remote[F]{
		target:   target,
		basePath: "/" + strings.Trim(basePath, "/"),
		client:   o.client,
	}
	if len(o.authSecret) > 0 {
		signer, err := newServiceTokenSigner(o.authSecret)
		if err != nil {
			return nil, err
		}
		r.signer = signer
	}
	r.proxy = &httputil.ReverseProxy{
		Rewrite:   r.rewrite,
		Transport: o.client.Transport,
	}
	return r, nil
}

// Forwarding headers ReverseProxy strips before Rewrite runs.
var forwardingHeaders = []string{"Forwarded", "X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"}

// rewrite retargets an outbound proxy request. Method, path, query, body,
// headers and Host are left as the client sent them, and no forwarding
// headers are added.
func (r *Remote[F]) rewrite(pr *httputil.ProxyRequest) {
	out := pr.Out
	out.URL.Scheme = r.target.Scheme
	out.URL.Host = r.target.Host
	if r.target.Path != "" {
		if out.URL.RawPath != "" {
			out.URL.RawPath = r.target.EscapedPath() + out.URL.RawPath
		}
		out.URL.Path = r.target.Path + out.URL.Path
	}
	out.Host = pr.In.Host
	for _, h := range forwardingHeaders {
		if v, ok := pr.In.Header[h]; ok {
			out.Header[h] = append([]string(nil), v...)
		}
	}
}

// ServeHTTP forwards an auth request to the service.
func (r *Remote[F]) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.proxy.ServeHTTP(w, req)
}

// GetSession asks the service for the session identified by header.
func (r *Remote[F]) GetSession(ctx context.Context, header http.Header) (*Session[F], error) {
	u := r.target.JoinPath(r.basePath, "get-session")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for _, name := range sessionLookupHeaders {
		for _, v := range header.Values(name) {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if r.signer != nil {
		token, err := r.signer.sign()
		if err != nil {
			return nil, fmt.Errorf("signing service token: %w", err)
		}
		req.Header.Set(ServiceTokenHeader, token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSessionBodySize))
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, nil
	default:
		return nil, &DelegateError{Status: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), 256)}
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var s Session[F]
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &s, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
