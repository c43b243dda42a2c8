package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers bad signatures, malformed tokens and expired tokens alike.
var ErrInvalidToken = errors.New("invalid token")

// Payload is the capability carried by a play link. Exactly one of InlineMessageID or the
// (ChatID, MessageID) pair identifies the placement; the codec does not check that.
type Payload struct {
	Game            string `json:"game,omitempty"`
	UserID          int64  `json:"user_id"`
	InlineMessageID string `json:"inline_message_id,omitempty"`
	ChatID          int64  `json:"chat_id,omitempty"`
	MessageID       int    `json:"message_id,omitempty"`
	IsAdmin         bool   `json:"is_admin,omitempty"`
}

type Claims struct {
	Payload
	jwt.RegisteredClaims
}

// Codec signs and verifies capability tokens with a key that only lives in memory.
// Tokens minted by one Codec are rejected by every other, including one created after a restart.
type Codec struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewCodec(issuer string) (*Codec, error) {
	key := make([]byte, 64)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return &Codec{key: key, issuer: issuer, now: time.Now}, nil
}

// WithClock returns a copy of c sharing its key but reading time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *Codec) Sign(p Payload, ttl time.Duration) (string, error) {
	if p.UserID == 0 {
		return "", errors.New("missing user id")
	}
	if ttl <= 0 {
		return "", errors.New("invalid expiry")
	}

	now := c.now()
	claims := Claims{
		Payload: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(c.key)
}

// Verify checks signature, structure and freshness. Semantic completeness of the payload is
// left to the caller.
func (c *Codec) Verify(tokenString string) (Payload, error) {
	if tokenString == "" {
		return Payload{}, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS512 {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.key, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Payload{}, ErrInvalidToken
	}
	return claims.Payload, nil
}
