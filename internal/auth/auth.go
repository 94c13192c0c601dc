// Package auth resolves the caller of an HTTP request into a
// models.Identity. The walks core never sees tokens or headers.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/walk-matching/internal/models"
)

var ErrUnauthenticated = errors.New("missing or invalid credentials")

type Authenticator interface {
	Authenticate(r *http.Request) (models.Identity, error)
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWT validates HS256 bearer tokens carrying sub and role claims.
type JWT struct {
	secret []byte
	leeway time.Duration
}

func NewJWT(secret string) (*JWT, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWT{secret: []byte(secret), leeway: 30 * time.Second}, nil
}

// Sign issues a token for id valid for ttl. Used by tests and local tooling.
func (j *JWT) Sign(id models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(j.secret)
}

func (j *JWT) Parse(raw string) (models.Identity, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(token *jwt.Token) (any, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(j.leeway), jwt.WithExpirationRequired())
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return models.Identity{}, fmt.Errorf("%w: invalid token claims", ErrUnauthenticated)
	}
	return identity(c.Subject, c.Role)
}

func (j *JWT) Authenticate(r *http.Request) (models.Identity, error) {
	raw, ok := bearer(r)
	if !ok {
		return models.Identity{}, ErrUnauthenticated
	}
	return j.Parse(raw)
}

// Headers trusts X-User-ID and X-User-Role set by an upstream gateway.
type Headers struct{}

func (Headers) Authenticate(r *http.Request) (models.Identity, error) {
	return identity(r.Header.Get("X-User-ID"), r.Header.Get("X-User-Role"))
}

// Chain tries each authenticator in order and returns the first identity.
type Chain []Authenticator

func (c Chain) Authenticate(r *http.Request) (models.Identity, error) {
	err := ErrUnauthenticated
	for _, a := range c {
		id, aerr := a.Authenticate(r)
		if aerr == nil {
			return id, nil
		}
		err = aerr
	}
	return models.Identity{}, err
}

func identity(userID, role string) (models.Identity, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.Identity{}, fmt.Errorf("%w: no subject", ErrUnauthenticated)
	}
	r, ok := models.ParseRole(role)
	if !ok {
		return models.Identity{}, fmt.Errorf("%w: unknown role %q", ErrUnauthenticated, role)
	}
	return models.Identity{UserID: userID, Role: r}, nil
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:]), true
	}
	// Browsers cannot set headers on websocket upgrades.
	if t := r.URL.Query().Get("access_token"); t != "" {
		return t, true
	}
	return "", false
}
