package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func protected(a *Authenticator) http.Handler {
	return a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, ok := OwnerFromContext(r.Context())
		if !ok {
			http.Error(w, "no owner", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(owner))
	}))
}

func TestMiddlewareWithTokens(t *testing.T) {
	a := New(Config{Secret: "s3cret", Issuer: "cassa"}, nil)
	now := time.Now()
	valid, err := a.IssueToken("owner-1", time.Hour, now)
	if err != nil {
		t.Fatal(err)
	}
	expired, _ := a.IssueToken("owner-1", time.Minute, now.Add(-time.Hour))
	otherIssuer, _ := New(Config{Secret: "s3cret", Issuer: "someone-else"}, nil).IssueToken("owner-1", time.Hour, now)
	otherSecret, _ := New(Config{Secret: "different", Issuer: "cassa"}, nil).IssueToken("owner-1", time.Hour, now)
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "owner-1",
		Issuer:    "cassa",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		body   string
	}{
		{"bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) }, http.StatusOK, "owner-1"},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+valid) }, http.StatusOK, "owner-1"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "auth_token", Value: valid}) }, http.StatusOK, "owner-1"},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized, "not provided"},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, http.StatusUnauthorized, "not provided"},
		{"expired", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, http.StatusUnauthorized, "invalid"},
		{"wrong issuer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+otherIssuer) }, http.StatusUnauthorized, "invalid"},
		{"wrong secret", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+otherSecret) }, http.StatusUnauthorized, "invalid"},
		{"none algorithm", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+noneAlg) }, http.StatusUnauthorized, "invalid"},
		{"header ignored", func(r *http.Request) { r.Header.Set(DefaultOwnerHeader, "owner-1") }, http.StatusUnauthorized, "not provided"},
	}

	h := protected(a)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/balances", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestMiddlewareTrustedHeader(t *testing.T) {
	a := New(Config{}, nil)
	if a.UsesTokens() {
		t.Fatal("no secret means header identity")
	}
	h := protected(a)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DefaultOwnerHeader, " owner-9 ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "owner-9" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header must be 401, got %d", rec.Code)
	}
}

func TestParseTokenRequiresSubject(t *testing.T) {
	a := New(Config{Secret: "k"}, nil)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.ParseToken(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestIssueTokenRequiresSecretAndOwner(t *testing.T) {
	if _, err := New(Config{}, nil).IssueToken("o", time.Hour, time.Now()); err == nil {
		t.Error("expected error without secret")
	}
	if _, err := New(Config{Secret: "k"}, nil).IssueToken(" ", time.Hour, time.Now()); err == nil {
		t.Error("expected error without owner")
	}
}
