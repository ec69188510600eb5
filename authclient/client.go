// Package authclient talks to the registrar's auth endpoint on behalf of
// Go callers: sign up, sign in, sign out and fetch the current session.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/jmcleod/registrar/internal/util"
	"github.com/jmcleod/registrar/session"
)

// DefaultBasePath is the path the auth route is mounted on.
const DefaultBasePath = "/api/auth"

// Client issues auth operations against baseURL+basePath. Cookies set by
// the auth service are kept in the client's jar, so a signed-in Client
// stays signed in across calls. F is the additional user fields type.
type Client[F any] struct {
	endpoint *url.URL
	http     *http.Client
	plugins  []Plugin
}

type options struct {
	httpClient *http.Client
	basePath   string
	plugins    []Plugin
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the HTTP client. A client without a cookie jar is
// copied and given one.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithBasePath overrides DefaultBasePath.
func WithBasePath(path string) Option {
	return func(o *options) {
		o.basePath = path
	}
}

// WithPlugins registers plugins with the client.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugins...)
	}
}

// New returns a Client for the auth service at baseURL.
func New[F any](baseURL string, opts ...Option) (*Client[F], error) {
	o := options{basePath: DefaultBasePath}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := util.ParseBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if bp := strings.Trim(o.basePath, "/"); bp != "" {
		u.Path += "/" + bp
	}

	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		c := *hc
		c.Jar = jar
		hc = &c
	}

	seen := make(map[string]bool, len(o.plugins))
	var plugins []Plugin
	for _, p := range o.plugins {
		if p == nil || seen[p.ID()] {
			continue
		}
		seen[p.ID()] = true
		plugins = append(plugins, p)
	}

	return &Client[F]{endpoint: u, http: hc, plugins: plugins}, nil
}

// Plugins returns the registered plugins in registration order.
func (c *Client[F]) Plugins() []Plugin {
	return append([]Plugin(nil), c.plugins...)
}

// Endpoint returns the absolute URL of the auth route.
func (c *Client[F]) Endpoint() string {
	return c.endpoint.String()
}

// SignUpRequest creates an email/password account.
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Image    string `json:"image,omitempty"`
}

// SignInRequest signs in with email and password.
type SignInRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe *bool  `json:"rememberMe,omitempty"`
}

// AuthResponse is returned by sign up and sign in.
type AuthResponse[F any] struct {
	Token  string
	User   session.User
	Fields F
}

func (a *AuthResponse[F]) UnmarshalJSON(data []byte) error {
	var wire struct {
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	a.Token = wire.Token
	if len(wire.User) == 0 || string(wire.User) == "null" {
		return nil
	}
	if err := json.Unmarshal(wire.User, &a.User); err != nil {
		return fmt.Errorf("decoding user: %w", err)
	}
	if err := json.Unmarshal(wire.User, &a.Fields); err != nil {
		return fmt.Errorf("decoding additional user fields: %w", err)
	}
	return nil
}

// SignUpEmail creates an account and, when the service signs new users
// in, stores the session cookie.
func (c *Client[F]) SignUpEmail(ctx context.Context, req SignUpRequest) (*AuthResponse[F], error) {
	var out AuthResponse[F]
	if err := c.do(ctx, http.MethodPost, "/sign-up/email", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignInEmail signs in and stores the session cookie.
func (c *Client[F]) SignInEmail(ctx context.Context, req SignInRequest) (*AuthResponse[F], error) {
	var out AuthResponse[F]
	if err := c.do(ctx, http.MethodPost, "/sign-in/email", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignOut ends the current session.
func (c *Client[F]) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/sign-out", struct{}{}, nil)
}

// GetSession returns the current session, or nil when signed out.
func (c *Client[F]) GetSession(ctx context.Context) (*session.Session[F], error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/get-session", nil, &raw); err != nil {
		var e *Error
		if errors.As(err, &e) && e.Status == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s session.Session[F]
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &s, nil
}

func (c *Client[F]) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
