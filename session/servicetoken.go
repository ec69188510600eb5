package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jmcleod/registrar/internal/util"
	"github.com/jmcleod/registrar/internal/uuid"
)

const (
	// ServiceTokenHeader carries the short-lived token that identifies
	// this server on session lookups.
	ServiceTokenHeader = "X-Service-Token"

	serviceTokenIssuer   = "registrar"
	serviceTokenAudience = "auth"
	serviceTokenTTL      = time.Minute
	serviceTokenKeyInfo  = "registrar:service-token:v1"
)

// ErrInvalidServiceToken is returned by VerifyServiceToken for tokens that
// are malformed, expired, or signed with another key.
var ErrInvalidServiceToken = errors.New("invalid service token")

type serviceTokenSigner struct {
	key []byte
	now func() time.Time
}

// DeriveServiceKey derives the service-token HMAC key from the auth
// secret. The auth secret itself is never used as a signing key.
func DeriveServiceKey(authSecret []byte) ([]byte, error) {
	if len(authSecret) == 0 {
		return nil, errors.New("auth secret is empty")
	}
	return util.HKDF(authSecret, nil, []byte(serviceTokenKeyInfo))
}

func newServiceTokenSigner(authSecret []byte) (*serviceTokenSigner, error) {
	key, err := DeriveServiceKey(authSecret)
	if err != nil {
		return nil, fmt.Errorf("deriving service token key: %w", err)
	}
	return &serviceTokenSigner{key: key, now: time.Now}, nil
}

func (s *serviceTokenSigner) sign() (string, error) {
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    serviceTokenIssuer,
		Audience:  jwt.ClaimStrings{serviceTokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(serviceTokenTTL)),
		ID:        uuid.New(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// VerifyServiceToken checks a token produced for session lookups. It is
// what the authentication service runs on ServiceTokenHeader.
func VerifyServiceToken(token string, authSecret []byte) (*jwt.RegisteredClaims, error) {
	key, err := DeriveServiceKey(authSecret)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(serviceTokenIssuer),
		jwt.WithAudience(serviceTokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServiceToken, err)
	}
	return &claims, nil
}
