// Package config loads the registrar server configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/caarlos0/env/v11"

	"github.com/jmcleod/registrar/internal/secret"
	"github.com/jmcleod/registrar/internal/util"
)

// ErrInvalidSecret is returned when REGISTRAR_AUTH_SECRET is not a
// hex-encoded secret of secret.Size bytes.
var ErrInvalidSecret = errors.New("invalid auth secret")

// Config is the validated server configuration.
type Config struct {
	// AppURL is the public base URL of the application. Its origin is the
	// only one allowed to send mutating /api/v1 requests from a browser.
	AppURL *url.URL
	// AuthURL is where the authentication service listens.
	AuthURL *url.URL
	// AuthBasePath is the path prefix the auth routes live under, on both
	// this server and the authentication service.
	AuthBasePath string
	Addr         string
	// AuthSecret holds the raw secret bytes sealed in memory.
	AuthSecret *memguard.Enclave

	// TrustedProxies are the peers whose forwarding headers identify
	// clients for rate limiting.
	TrustedProxies []netip.Prefix
	// AlertWebhookURL receives anomaly alerts when set.
	AlertWebhookURL string
	// AlertWebhookAuth is an optional "Header: Value" sent with alerts.
	AlertWebhookAuth string
}

type rawEnv struct {
	AppURL       string `env:"REGISTRAR_APP_URL,required"`
	AuthURL      string `env:"REGISTRAR_AUTH_URL,required"`
	AuthSecret   string `env:"REGISTRAR_AUTH_SECRET,required,unset"`
	AuthBasePath string `env:"REGISTRAR_AUTH_BASE_PATH" envDefault:"/api/auth"`
	Addr         string `env:"REGISTRAR_ADDR"           envDefault:":3000"`

	TrustedProxies   []string `env:"REGISTRAR_TRUSTED_PROXIES"`
	AlertWebhookURL  string   `env:"REGISTRAR_ALERT_WEBHOOK_URL"`
	AlertWebhookAuth string   `env:"REGISTRAR_ALERT_WEBHOOK_AUTH,unset"`
}

// Load reads and validates configuration from environment variables. Any
// error is a configuration error and should stop the process.
func Load() (*Config, error) {
	var raw rawEnv
	if err := ParseEnv(&raw); err != nil {
		return nil, err
	}
	return fromRaw(raw)
}

func fromRaw(raw rawEnv) (*Config, error) {
	appURL, err := util.ParseBaseURL(raw.AppURL)
	if err != nil {
		return nil, fmt.Errorf("REGISTRAR_APP_URL: %w", err)
	}
	authURL, err := util.ParseBaseURL(raw.AuthURL)
	if err != nil {
		return nil, fmt.Errorf("REGISTRAR_AUTH_URL: %w", err)
	}
	basePath := "/" + strings.Trim(raw.AuthBasePath, "/")
	if basePath == "/" {
		return nil, errors.New("REGISTRAR_AUTH_BASE_PATH: must not be the root path")
	}

	key, err := util.HexDecodeExact(strings.TrimSpace(raw.AuthSecret), secret.Size)
	if err != nil {
		return nil, fmt.Errorf("REGISTRAR_AUTH_SECRET: %w: %v", ErrInvalidSecret, err)
	}

	var proxies []netip.Prefix
	for _, p := range raw.TrustedProxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(p)
		if err != nil {
			util.WipeBytes(key)
			return nil, fmt.Errorf("REGISTRAR_TRUSTED_PROXIES: %w", err)
		}
		proxies = append(proxies, prefix)
	}

	if raw.AlertWebhookURL != "" {
		if _, err := util.ParseBaseURL(raw.AlertWebhookURL); err != nil {
			util.WipeBytes(key)
			return nil, fmt.Errorf("REGISTRAR_ALERT_WEBHOOK_URL: %w", err)
		}
	}

	return &Config{
		AppURL:           appURL,
		AuthURL:          authURL,
		AuthBasePath:     basePath,
		Addr:             raw.Addr,
		AuthSecret:       memguard.NewEnclave(key),
		TrustedProxies:   proxies,
		AlertWebhookURL:  raw.AlertWebhookURL,
		AlertWebhookAuth: raw.AlertWebhookAuth,
	}, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
