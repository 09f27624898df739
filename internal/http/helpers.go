// Package http arma la superficie HTTP del servicio sobre chi. La
// autenticación real vive en la plataforma; acá solo se valida el JWT
// emitido por ella para extraer la identidad de la empresa.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dropDatabas3/mailrelay/internal/domain"
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Error: code, ErrorDescription: desc})
}

// WriteJSON: respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodifica el body validando Content-Type y limitando a 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Content-Type debe ser application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "invalid_json", "json inválido")
		return false
	}
	return true
}

// WriteDomainError mapea la taxonomía de errores del core a status codes.
func WriteDomainError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		WriteError(w, http.StatusBadRequest, "validation_error", ve.Error())
		return
	}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		WriteError(w, http.StatusNotFound, "not_found", nf.Error())
		return
	}
	if errors.Is(err, domain.ErrQueueUnavailable) {
		WriteError(w, http.StatusServiceUnavailable, "queue_unavailable", err.Error())
		return
	}
	var se *domain.SmtpError
	if errors.As(err, &se) {
		WriteError(w, http.StatusBadGateway, "smtp_error", err.Error())
		return
	}
	WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
}
