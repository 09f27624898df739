// Package domain define las entidades y el vocabulario de errores del
// pipeline de despacho de emails. No tiene dependencias de infraestructura:
// store, transporte y cola dependen de este paquete, nunca al revés.
package domain

import "time"

// EmailConfig es la configuración SMTP de una empresa. Una empresa puede
// tener varias filas, pero a lo sumo una con IsActive=true.
type EmailConfig struct {
	ID        string `json:"id"`
	CompanyID string `json:"companyId"`

	// Transporte
	SMTPHost     string `json:"smtpHost"`
	SMTPPort     int    `json:"smtpPort"`
	SMTPSecure   bool   `json:"smtpSecure"` // true: TLS-on-connect; false: STARTTLS
	SMTPUser     string `json:"smtpUser"`
	SMTPPassword string `json:"-"` // siempre el token cifrado, nunca se serializa

	// Identidad del remitente
	FromName  string `json:"fromName"`
	FromEmail string `json:"fromEmail"`
	ReplyTo   string `json:"replyTo"`

	// Estado
	IsActive      bool       `json:"isActive"`
	IsVerified    bool       `json:"isVerified"`
	LastTestAt    *time.Time `json:"lastTestAt"`
	LastTestError *string    `json:"lastTestError"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EmailStatus es el ciclo de vida de un registro EmailLog.
type EmailStatus string

const (
	EmailPending EmailStatus = "PENDING"
	EmailSent    EmailStatus = "SENT"
	EmailFailed  EmailStatus = "FAILED"
)

// EmailLog es el registro de auditoría de un intento de envío.
// Se crea PENDING al comenzar a procesar un job; pasa a SENT en éxito.
// Cada intento fallido agrega una fila FAILED nueva (la PENDING queda),
// preservando el historial completo de intentos.
type EmailLog struct {
	ID             string         `json:"id"`
	TemplateID     string         `json:"templateId"`
	WebhookLinkID  *string        `json:"webhookLinkId"`
	CompanyID      string         `json:"companyId"`
	RecipientEmail string         `json:"recipientEmail"`
	RecipientName  *string        `json:"recipientName"`
	Subject        string         `json:"subject"`
	Variables      map[string]any `json:"variables"`
	Metadata       map[string]any `json:"metadata"`
	Status         EmailStatus    `json:"status"`
	SentAt         *time.Time     `json:"sentAt"`
	FailedAt       *time.Time     `json:"failedAt"`
	ErrorMessage   *string        `json:"errorMessage"`
	CreatedAt      time.Time      `json:"createdAt"`
}
