package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/latidos/ledger-engine/ledger"
)

// =============================================================================
// TENANT AUTH - Bearer JWT, org_id claim is the tenant
// =============================================================================

var (
	ErrMissingToken = errors.New("authorization header required")
	ErrInvalidToken = errors.New("invalid token")
	ErrNoTenant     = errors.New("token carries no org_id")
)

// Claims is the narrow contract with the identity provider.
type Claims struct {
	OrgID string `json:"org_id"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Tenant ledger.TenantID
	UserID string
	Name   string
}

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller set by the auth middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator issues and verifies HS256 tenant tokens.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue mints a token for a user of tenant. Used by the CLI and tests.
func (a *Authenticator) Issue(tenant ledger.TenantID, userID, name string, ttl time.Duration) (string, error) {
	if tenant == "" {
		return "", ErrNoTenant
	}
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		OrgID: string(tenant),
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(a.secret)
}

// Parse verifies a raw token and returns its principal.
func (a *Authenticator) Parse(raw string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.OrgID == "" {
		return Principal{}, ErrNoTenant
	}
	return Principal{Tenant: ledger.TenantID(claims.OrgID), UserID: claims.Subject, Name: claims.Name}, nil
}

// Middleware rejects requests without a valid bearer token with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeFailure(w, http.StatusUnauthorized, "unauthorized", ErrMissingToken.Error(), nil)
			return
		}
		raw := header
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			raw = header[7:]
		}

		p, err := a.Parse(strings.TrimSpace(raw))
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "unauthorized", "invalid token", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// tenantOf is only called behind Middleware.
func tenantOf(r *http.Request) ledger.TenantID {
	p, _ := PrincipalFrom(r.Context())
	return p.Tenant
}
