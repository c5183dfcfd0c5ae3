// Package auth resolves the business owner behind an HTTP request.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cassa/internal/log"
)

// DefaultOwnerHeader carries the owner id when a trusted proxy authenticates requests.
const DefaultOwnerHeader = "X-Owner-ID"

const cookieName = "auth_token"

var (
	ErrMissingToken = errors.New("authorization token not provided")
	ErrInvalidToken = errors.New("invalid or expired token")
)

type ownerKey struct{}

// WithOwner stores the authenticated owner id in ctx.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the owner id set by the middleware.
func OwnerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	return id, ok && id != ""
}

type Config struct {
	// Secret signs HS256 tokens. Empty means identity comes from OwnerHeader.
	Secret string
	Issuer string
	// OwnerHeader defaults to DefaultOwnerHeader.
	OwnerHeader string
}

type Authenticator struct {
	secret []byte
	issuer string
	header string
	logger *log.Logger
}

func New(cfg Config, logger *log.Logger) *Authenticator {
	if logger == nil {
		logger = log.Discard(log.ComponentAuth)
	}
	header := cfg.OwnerHeader
	if header == "" {
		header = DefaultOwnerHeader
	}
	return &Authenticator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		header: header,
		logger: logger,
	}
}

// UsesTokens reports whether requests must carry a signed token.
func (a *Authenticator) UsesTokens() bool { return len(a.secret) > 0 }

// Identify returns the owner id of r.
func (a *Authenticator) Identify(r *http.Request) (string, error) {
	if !a.UsesTokens() {
		id := strings.TrimSpace(r.Header.Get(a.header))
		if id == "" {
			return "", ErrMissingToken
		}
		return id, nil
	}

	raw := bearerToken(r)
	if raw == "" {
		return "", ErrMissingToken
	}
	return a.ParseToken(raw)
}

// ParseToken validates an HS256 token and returns its subject.
func (a *Authenticator) ParseToken(raw string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// IssueToken signs a token for ownerID valid for ttl.
func (a *Authenticator) IssueToken(ownerID string, ttl time.Duration, now time.Time) (string, error) {
	if !a.UsesTokens() {
		return "", errors.New("no signing secret configured")
	}
	if strings.TrimSpace(ownerID) == "" {
		return "", errors.New("owner id is required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   ownerID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects unauthenticated requests with 401 and stores the owner id in the
// request context otherwise.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := a.Identify(r)
		if err != nil {
			a.logger.WarnContext(r.Context(), "Authentication failed",
				log.FieldPath, r.URL.Path,
				log.FieldError, err)
			unauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter, err error) {
	msg := ErrInvalidToken.Error()
	if errors.Is(err, ErrMissingToken) {
		msg = ErrMissingToken.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="cassa"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
