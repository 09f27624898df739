package handlers

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/mailrelay/internal/dispatch"
	"github.com/dropDatabas3/mailrelay/internal/domain"
	httpx "github.com/dropDatabas3/mailrelay/internal/http"
)

// QueueHandler expone el encolado de envíos y la administración de la cola
// (stats y purge, las consume el CLI).
type QueueHandler struct {
	Queue dispatch.Queue
}

func (h *QueueHandler) Register(r chi.Router) {
	r.Post("/email/send", h.send)
	r.Get("/email-queue/stats", h.stats)
	r.Post("/email-queue/purge", h.purge)
}

type sendRequest struct {
	To            string         `json:"to"`
	RecipientName string         `json:"recipientName"`
	Subject       string         `json:"subject"`
	HTML          string         `json:"html"`
	Text          string         `json:"text"`
	TemplateID    string         `json:"templateId"`
	WebhookLinkID *string        `json:"webhookLinkId"`
	Variables     map[string]any `json:"variables"`
	Metadata      map[string]any `json:"metadata"`

	// Delay + DelayUnit pasan por CalculateDelay; unit vacío = immediate.
	Delay     int    `json:"delay"`
	DelayUnit string `json:"delayUnit"`
}

type sendResponse struct {
	JobID  string `json:"jobId"`
	Queued bool   `json:"queued"`
}

func (h *QueueHandler) send(w http.ResponseWriter, r *http.Request) {
	companyID := httpx.CompanyID(r.Context())
	var in sendRequest
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if err := in.validate(); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}

	job := &dispatch.Job{
		To:            in.To,
		RecipientName: in.RecipientName,
		Subject:       in.Subject,
		HTML:          in.HTML,
		Text:          in.Text,
		CompanyID:     companyID,
		TemplateID:    in.TemplateID,
		WebhookLinkID: in.WebhookLinkID,
		Variables:     in.Variables,
		Metadata:      in.Metadata,
	}
	id, err := h.Queue.Enqueue(job, dispatch.CalculateDelay(in.Delay, in.DelayUnit))
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, sendResponse{JobID: id, Queued: true})
}

func (in sendRequest) validate() error {
	if _, err := mail.ParseAddress(in.To); err != nil {
		return &domain.ValidationError{Field: "to", Message: "destinatario inválido"}
	}
	if strings.TrimSpace(in.Subject) == "" {
		return &domain.ValidationError{Field: "subject", Message: "subject es obligatorio"}
	}
	if in.HTML == "" && in.Text == "" {
		return &domain.ValidationError{Field: "html", Message: "se necesita html o text"}
	}
	return nil
}

func (h *QueueHandler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Queue.Stats()
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

type purgeRequest struct {
	// GraceSeconds: se borran jobs terminados hace más de este tiempo.
	GraceSeconds int `json:"graceSeconds"`
}

func (h *QueueHandler) purge(w http.ResponseWriter, r *http.Request) {
	var in purgeRequest
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.GraceSeconds < 0 {
		httpx.WriteDomainError(w, &domain.ValidationError{Field: "graceSeconds", Message: "no puede ser negativo"})
		return
	}
	if err := h.Queue.PurgeOlderThan(time.Duration(in.GraceSeconds) * time.Second); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
