package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingCredential means the request carried no bearer token. It is not
	// fatal: the request continues unauthenticated.
	ErrMissingCredential = errors.New("auth: missing credential")
	// ErrMalformedToken covers structural, signature and claim shape failures.
	ErrMalformedToken = errors.New("auth: malformed token")
	// ErrExpiredToken means the signature verified but expiresAt has passed.
	ErrExpiredToken = errors.New("auth: expired token")
	// ErrUnknownSubject means the token subject no longer resolves to a user.
	ErrUnknownSubject = errors.New("auth: unknown subject")
)

// Claims is the payload carried inside an identity token.
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Roles    string `json:"roles"`
	jwt.RegisteredClaims
}

// Role returns the single role encoded in the token.
func (c *Claims) Role() string { return c.Roles }

// TokenCodec issues and verifies HS256 identity tokens with a single signing
// key. The key is copied at construction and never changes afterwards, so a
// codec can be shared by all request goroutines.
type TokenCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// CodecOption customises a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewTokenCodec(secret string, ttl time.Duration, opts ...CodecOption) (*TokenCodec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be greater than zero")
	}
	c := &TokenCodec{
		key: []byte(secret),
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL reports the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue signs a token for the identity valid from now until now+TTL.
func (c *TokenCodec) Issue(id Identity) (string, error) {
	if strings.TrimSpace(id.Username) == "" {
		return "", errors.New("identity username is required")
	}
	now := c.now()
	claims := Claims{
		UserID:   id.ID,
		Username: id.Username,
		Roles:    id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and the expiry of token. Failures wrap
// ErrMalformedToken or ErrExpiredToken so callers can tell them apart.
func (c *TokenCodec) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	if !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing timestamps", ErrMalformedToken)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, fmt.Errorf("%w: expiry precedes issued-at", ErrMalformedToken)
	}
	if c.now().After(claims.ExpiresAt.Time) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}
