package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/mailrelay/internal/observability/logger"
)

type companyKey struct{}

// CompanyID extrae la identidad de empresa inyectada por el middleware de
// auth. Vacío si el request no pasó por él.
func CompanyID(ctx context.Context) string {
	v, _ := ctx.Value(companyKey{}).(string)
	return v
}

// WithCompanyID inyecta la empresa en el contexto (lo usan los tests de
// handlers para saltear el JWT).
func WithCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, companyKey{}, companyID)
}

// Auth valida el bearer token de la plataforma (HMAC) y extrae el claim
// companyId. La emisión y el ciclo de vida del token son del colaborador
// externo de auth; acá solo se consume.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(raw, "Bearer ") {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "falta bearer token")
				return
			}
			tok, err := jwt.Parse(strings.TrimPrefix(raw, "Bearer "), func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "token inválido")
				return
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "claims inválidos")
				return
			}
			companyID, _ := claims["companyId"].(string)
			if companyID == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "falta claim companyId")
				return
			}

			ctx := WithCompanyID(r.Context(), companyID)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.CompanyID(companyID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger loguea cada request con método, path, status y duración.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		logger.From(r.Context()).Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Duration(time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
