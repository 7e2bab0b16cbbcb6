package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of issued tokens.
const DefaultTTL = 24 * time.Hour

var (
	ErrNoSecret     = errors.New("JWT secret not set")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims represents the JWT payload. Operator names who runs maintenance.
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// Tokens issues and validates HS256 operator tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken creates a signed JWT for the given operator
func (t *Tokens) GenerateToken(operator string) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrNoSecret
	}
	if operator == "" {
		return "", errors.New("operator is required")
	}

	now := t.now()
	claims := Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a JWT string
func (t *Tokens) ValidateToken(tokenStr string) (*Claims, error) {
	if len(t.secret) == 0 {
		return nil, ErrNoSecret
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Operator == "" {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}
