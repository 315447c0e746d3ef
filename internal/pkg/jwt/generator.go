// internal/pkg/jwt/generator.go
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

var ErrMissingSecret = errors.New("jwt secret is not configured")

type Generator struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

func NewGenerator(secret, issuer, audience string, ttl time.Duration) *Generator {
	return &Generator{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
	}
}

// Generate signs an HS256 token for subject. It returns the token and its jti.
func (g *Generator) Generate(subject, email string, roles []string) (string, string, error) {
	if len(g.secret) == 0 {
		return "", "", ErrMissingSecret
	}

	now := time.Now()
	jti := ulid.Make().String()

	claims := &Claims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   subject,
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	return signed, jti, err
}
