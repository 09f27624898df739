package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/mailrelay/internal/domain"
)

const testSecret = "jwt-secret-de-test"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuthExtractsCompany(t *testing.T) {
	t.Parallel()

	var gotCompany string
	h := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCompany = CompanyID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/email-configs", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"companyId": "acme"}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotCompany != "acme" {
		t.Fatalf("companyId = %q", gotCompany)
	}
}

func TestAuthRejections(t *testing.T) {
	t.Parallel()

	h := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("el handler no puede ejecutarse sin auth válida")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"sin header", ""},
		{"esquema incorrecto", "Basic abc"},
		{"token basura", "Bearer no-es-un-jwt"},
		{"sin claim companyId", "Bearer " + signTokenStatic(t, jwt.MapClaims{"sub": "user"})},
		{"firmado con otra clave", "Bearer " + signWith(t, "otra-clave", jwt.MapClaims{"companyId": "acme"})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/email-configs", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}

func signTokenStatic(t *testing.T, claims jwt.MapClaims) string {
	return signWith(t, testSecret, claims)
}

func signWith(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestWriteDomainErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
	}{
		{&domain.ValidationError{Field: "x", Message: "y"}, http.StatusBadRequest},
		{&domain.NotFoundError{Resource: "email config"}, http.StatusNotFound},
		{domain.ErrQueueUnavailable, http.StatusServiceUnavailable},
		{&domain.SmtpError{Phase: domain.PhaseSend, Detail: "550"}, http.StatusBadGateway},
		{errors.New("algo"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		WriteDomainError(w, tc.err)
		if w.Code != tc.status {
			t.Errorf("WriteDomainError(%v) = %d, want %d", tc.err, w.Code, tc.status)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"/":                    "/",
		"/email-configs":       "/email-configs",
		"/email-config/41ddcd4f-98d2-4a37-8a9c-7d2f5c9b3a10": "/email-config/:id",
		"/email-config/41ddcd4f-98d2-4a37-8a9c-7d2f5c9b3a10/test": "/email-config/:id/test",
		"/logs/12345": "/logs/:id",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
