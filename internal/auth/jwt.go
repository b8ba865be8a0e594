// Package auth issues and verifies the blog's session tokens and runs the
// GitHub OAuth exchange.
//
// SESSION TOKEN FORMAT:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:    {"alg":"HS256","typ":"JWT"}
//	- Payload:   {"userId":1,"username":"octocat","avatar":"...","name":"...","exp":...,"iat":...}
//	- Signature: HMAC-SHA256(header + "." + payload, secret)
//
// Every segment is unpadded base64url. A token is valid only when the signature
// verifies against the shared secret and now < exp. There is no revocation
// list; rotating the secret invalidates every outstanding session.
package auth

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/blog-edge/internal/model"
)

// SessionTTL is the fixed validity window of a session token.
const SessionTTL = 30 * 24 * time.Hour

// Verification failures. Consumers treat all of them as "no session"; they
// exist so logs and tests can tell the cases apart.
var (
	ErrMalformedToken   = errors.New("auth: malformed token")
	ErrBadSignature     = errors.New("auth: bad signature")
	ErrMalformedPayload = errors.New("auth: malformed payload")
	ErrExpiredToken     = errors.New("auth: token expired")
)

// Claims is the session token payload.
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// User returns the identity part of the claims.
func (c *Claims) User() model.User {
	return model.User{
		UserID:   c.UserID,
		Username: c.Username,
		Avatar:   c.Avatar,
		Name:     c.Name,
	}
}

// strictPayload is the only payload shape Verify accepts. Pointers let us tell
// a missing field from a zero value.
type strictPayload struct {
	UserID    *int64  `json:"userId"`
	Username  *string `json:"username"`
	Avatar    *string `json:"avatar"`
	Name      *string `json:"name"`
	IssuedAt  *int64  `json:"iat"`
	ExpiresAt *int64  `json:"exp"`
}

// TokenService handles session token creation and validation.
//
// It holds the HMAC secret and a clock. It keeps no per-request state, so one
// instance is shared by every handler.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a TokenService.
type Option func(*TokenService)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

// WithTTL overrides the validity window. Used by tests.
func WithTTL(d time.Duration) Option {
	return func(s *TokenService) { s.ttl = d }
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: BLOGEDGE_AUTH_JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, opts ...Option) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	s := &TokenService{
		secret: []byte(secret),
		ttl:    SessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a session token for the given user. iat is the current second
// and exp is iat plus the session TTL.
func (s *TokenService) Issue(user model.User) (string, error) {
	now := s.now().Truncate(time.Second)

	c := Claims{
		UserID:   user.UserID,
		Username: user.Username,
		Avatar:   user.Avatar,
		Name:     user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and verifies a session token and returns its claims.
//
// Checks, in order:
//   - exactly three non-empty base64url segments      (ErrMalformedToken)
//   - header alg is HS256, signature matches          (ErrBadSignature)
//   - payload is JSON of the expected shape           (ErrMalformedPayload)
//   - now < exp                                       (ErrExpiredToken)
//
// The alg check closes the "none"/algorithm-confusion hole: a token that names
// any other algorithm is rejected before its signature is looked at.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: want 3 segments, got %d", ErrMalformedToken, len(parts))
	}
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: segment %d is empty", ErrMalformedToken, i)
		}
	}
	if _, err := decodeSegment(parts[0]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}
	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if _, err := decodeSegment(parts[2]); err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformedToken, err)
	}

	c := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenStr,
		c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, translateError(err)
	}
	if !token.Valid {
		return nil, ErrBadSignature
	}

	if err := checkPayloadShape(payload); err != nil {
		return nil, err
	}

	return c, nil
}

// translateError folds golang-jwt's error set into ours. Signature problems
// are checked first: a forged token never reports "expired".
func translateError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

// checkPayloadShape rejects payloads with unknown fields or missing identity.
func checkPayloadShape(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var p strictPayload
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch {
	case p.UserID == nil || *p.UserID <= 0:
		return fmt.Errorf("%w: userId must be a positive integer", ErrMalformedPayload)
	case p.Username == nil || *p.Username == "":
		return fmt.Errorf("%w: username is required", ErrMalformedPayload)
	case p.Avatar == nil, p.Name == nil:
		return fmt.Errorf("%w: avatar and name are required", ErrMalformedPayload)
	case p.IssuedAt == nil || p.ExpiresAt == nil:
		return fmt.Errorf("%w: iat and exp are required", ErrMalformedPayload)
	}
	return nil
}

func decodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.Strict().DecodeString(seg)
}
