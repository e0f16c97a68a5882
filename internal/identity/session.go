package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionTTL is the lifetime of a session credential.
const DefaultSessionTTL = 72 * time.Hour

// ErrEmptySecret is returned when an issuer is built without a signing secret.
var ErrEmptySecret = errors.New("session signing secret is empty")

// SessionClaims are the JWT claims of a user session.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
}

// SessionIssuer issues and verifies session JWTs with a shared HMAC secret.
type SessionIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration

	// Now returns the current time. Tests replace it with a fake clock.
	Now func() time.Time
}

// NewSessionIssuer creates a SessionIssuer. A zero ttl means DefaultSessionTTL.
func NewSessionIssuer(secret, issuer string, ttl time.Duration) (*SessionIssuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		Now:    time.Now,
	}, nil
}

// TTL reports the lifetime of issued sessions.
func (s *SessionIssuer) TTL() time.Duration { return s.ttl }

// Issue creates a signed session token for the given user.
func (s *SessionIssuer) Issue(userID, handle string) (string, error) {
	now := s.Now().UTC()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.New().String(),
		},
		UserID: userID,
		Handle: handle,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (s *SessionIssuer) Verify(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&SessionClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify session token: %w", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token claims")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("session token has no user")
	}
	return claims, nil
}
