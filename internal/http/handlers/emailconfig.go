// Package handlers contiene los handlers chi del servicio. Cada handler es
// un struct con sus dependencias y un Register(chi.Router).
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/mailrelay/internal/emailconfig"
	httpx "github.com/dropDatabas3/mailrelay/internal/http"
)

// EmailConfigHandler expone el CRUD de configuraciones SMTP y el test de
// verificación. Todas las rutas asumen el middleware de auth ya corrido:
// la empresa sale del contexto, nunca del body.
type EmailConfigHandler struct {
	Service *emailconfig.Service
}

func (h *EmailConfigHandler) Register(r chi.Router) {
	r.Post("/email-config", h.create)
	r.Get("/email-config", h.active)
	r.Get("/email-configs", h.list)
	r.Put("/email-config/{id}", h.update)
	r.Delete("/email-config/{id}", h.remove)
	r.Post("/email-config/{id}/test", h.test)
}

func (h *EmailConfigHandler) create(w http.ResponseWriter, r *http.Request) {
	companyID := httpx.CompanyID(r.Context())
	var in emailconfig.CreateInput
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	cfg, err := h.Service.Create(r.Context(), companyID, in)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, cfg)
}

// active devuelve la config activa, o null si la empresa no tiene.
func (h *EmailConfigHandler) active(w http.ResponseWriter, r *http.Request) {
	companyID := httpx.CompanyID(r.Context())
	cfg, err := h.Service.Active(r.Context(), companyID)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cfg)
}

func (h *EmailConfigHandler) list(w http.ResponseWriter, r *http.Request) {
	companyID := httpx.CompanyID(r.Context())
	cfgs, err := h.Service.List(r.Context(), companyID)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cfgs)
}

func (h *EmailConfigHandler) update(w http.ResponseWriter, r *http.Request) {
	companyID := httpx.CompanyID(r.Context())
	id := chi.URLParam(r, "id")
	var in emailconfig.UpdateInput
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	cfg, err := h.Service.Update(r.Context(), companyID, id, in)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cfg)
}

func (h *EmailConfigHandler) remove(w http.ResponseWriter, r *http.Request) {
	companyID := httpx.CompanyID(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.Service.Delete(r.Context(), companyID, id); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

type testRequest struct {
	TestEmail string `json:"testEmail"`
}

func (h *EmailConfigHandler) test(w http.ResponseWriter, r *http.Request) {
	companyID := httpx.CompanyID(r.Context())
	id := chi.URLParam(r, "id")
	var in testRequest
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	result, err := h.Service.Test(r.Context(), companyID, id, in.TestEmail)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}
