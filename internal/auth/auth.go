// Package auth verifies the identity provider's bearer tokens.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Principal is the authenticated caller.
type Principal struct {
	Subject   string
	Email     string
	UserID    int64
	SessionID string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// Claims are the session claims issued by the identity provider.
type Claims struct {
	Email           string `json:"email"`
	UserID          int64  `json:"userId"`
	SessionID       string `json:"sid"`
	AuthorizedParty string `json:"azp,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks RS256 tokens against a static PEM public key.
type JWTVerifier struct {
	key     *rsa.PublicKey
	parties []string
	now     func() time.Time
}

// NewJWTVerifier parses pemKey. Literal "\n" sequences are accepted so the key
// can be passed through a single-line environment variable. An empty party
// list, or one containing "*", accepts any authorized party.
func NewJWTVerifier(pemKey string, authorizedParties []string) (*JWTVerifier, error) {
	pemKey = strings.ReplaceAll(strings.TrimSpace(pemKey), `\n`, "\n")
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PEM public key: %w", err)
	}

	var parties []string
	for _, p := range authorizedParties {
		if p == "*" {
			parties = nil
			break
		}
		if p = strings.TrimSpace(p); p != "" {
			parties = append(parties, p)
		}
	}
	return &JWTVerifier{key: key, parties: parties, now: time.Now}, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return v.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.AuthorizedParty != "" && len(v.parties) > 0 && !contains(v.parties, claims.AuthorizedParty) {
		return nil, fmt.Errorf("%w: unauthorized party %q", ErrInvalidToken, claims.AuthorizedParty)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !strings.Contains(claims.Email, "@") {
		return nil, fmt.Errorf("%w: invalid email in token", ErrInvalidToken)
	}

	return &Principal{
		Subject:   claims.Subject,
		Email:     claims.Email,
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
	}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DenyAll rejects every token. It stands in when no public key is configured.
type DenyAll struct{}

func (DenyAll) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	return nil, fmt.Errorf("%w: token verification is not configured", ErrInvalidToken)
}
