// Package auth issues and validates player session tokens. A token binds a
// player id to the room they joined, so transports can authorize actions
// without the engine tracking sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken indicates the token is definitively invalid.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrMissingSecret is returned when an issuer is built without a key.
	ErrMissingSecret = errors.New("auth: signing secret required")
)

// DefaultTTL bounds how long a session token stays valid.
const DefaultTTL = 12 * time.Hour

// Identity is the player a token was issued to.
type Identity struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	TokenID  string `json:"token_id"`
}

// Validator validates session tokens.
type Validator interface {
	// Validate returns the identity a token was issued to, or an error
	// wrapping ErrInvalidToken.
	Validate(ctx context.Context, token string) (*Identity, error)
}

type claims struct {
	Room string `json:"room"`
	jwt.RegisteredClaims
}

// Issuer signs HS256 session tokens and validates them.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  quartz.Clock
}

// NewIssuer creates an issuer. A zero ttl uses DefaultTTL; a nil clock uses
// the real clock.
func NewIssuer(secret string, ttl time.Duration, clock quartz.Clock) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

// Issue signs a token for playerID in roomID.
func (i *Issuer) Issue(roomID, playerID string) (string, error) {
	now := i.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Room: roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks the signature, method and expiry of a token.
func (i *Issuer) Validate(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.clock.Now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Subject == "" || c.Room == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{RoomID: c.Room, PlayerID: c.Subject, TokenID: c.ID}, nil
}
