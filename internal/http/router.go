package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Registrar lo implementan los handlers que se montan en el router.
type Registrar interface {
	Register(r chi.Router)
}

// RouterOptions junta todo lo que el router necesita del main.
type RouterOptions struct {
	JWTSecret string
	Metrics   http.Handler // handler de /metrics; nil lo deshabilita
	Ping      func(ctx context.Context) error
	Protected []Registrar
}

// NewRouter arma el árbol de rutas: /healthz y /metrics públicos, el resto
// detrás del middleware de auth.
func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger)
	r.Use(WithMetrics)

	r.Get("/healthz", healthz(opts.Ping))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(Auth(opts.JWTSecret))
		for _, h := range opts.Protected {
			h.Register(r)
		}
	})
	return r
}

func healthz(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				WriteError(w, http.StatusServiceUnavailable, "unhealthy", err.Error())
				return
			}
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
