package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

var (
	// ErrInvalidAccessToken indicates the token is malformed or signature validation failed.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the token has elapsed its validity window.
	ErrExpiredAccessToken = errors.New("access token expired")
)

const minSecretLength = 32

// AccessTokenClaims carries the identity snapshot embedded in every access
// token. Validity additionally depends on the referenced session being
// active, which the codec cannot decide on its own.
type AccessTokenClaims struct {
	UserID      string   `json:"uid"`
	SessionID   string   `json:"sid"`
	Role        string   `json:"role"`
	Permissions []string `json:"perms,omitempty"`
	DeviceID    string   `json:"did,omitempty"`
	Actor       string   `json:"act,omitempty"`
	jwt.RegisteredClaims
}

// RemainingLifetime returns how long the token stays valid from the supplied moment.
func (c *AccessTokenClaims) RemainingLifetime(at time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(at)
}

// TokenParams describes the identity snapshot to embed when signing.
type TokenParams struct {
	UserID      string
	SessionID   string
	Role        string
	Permissions []string
	DeviceID    string
	Actor       string
	// TTL overrides the codec default when positive (impersonation grants).
	TTL time.Duration
}

// TokenCodec signs and verifies compact HMAC-SHA256 bearer tokens.
type TokenCodec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenCodec constructs a codec for the supplied signing secret.
func NewTokenCodec(secret, issuer string, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", minSecretLength)
	}
	if strings.TrimSpace(issuer) == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &TokenCodec{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: issuer,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the internal clock for deterministic tests.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	if now != nil {
		c.now = now
	}
	return c
}

// AccessTokenTTL returns the default lifetime of signed tokens.
func (c *TokenCodec) AccessTokenTTL() time.Duration {
	return c.ttl
}

// Sign issues a signed access token embedding the supplied identity snapshot.
func (c *TokenCodec) Sign(params TokenParams) (string, *AccessTokenClaims, error) {
	if params.UserID == "" {
		return "", nil, fmt.Errorf("user id is required")
	}
	if params.SessionID == "" {
		return "", nil, fmt.Errorf("session id is required")
	}

	now := c.now()
	ttl := c.ttl
	if params.TTL > 0 {
		ttl = params.TTL
	}

	claims := &AccessTokenClaims{
		UserID:      params.UserID,
		SessionID:   params.SessionID,
		Role:        params.Role,
		Permissions: params.Permissions,
		DeviceID:    params.DeviceID,
		Actor:       params.Actor,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   params.UserID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return signed, claims, nil
}

// Verify validates the token signature and registered claims.
func (c *TokenCodec) Verify(token string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidAccessToken
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithAudience(c.audience), jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidAccessToken
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.SessionID) == "" {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}

// DecodeUnverified extracts claims without checking the signature. Used only
// to recover the session id for the blacklist pre-check; callers must still
// Verify before trusting anything else in the payload.
func (c *TokenCodec) DecodeUnverified(token string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidAccessToken
	}

	claims := &AccessTokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}
