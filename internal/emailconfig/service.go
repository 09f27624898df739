// Package emailconfig implementa el service de configuraciones SMTP por
// empresa: CRUD con la invariante de "una sola activa", cifrado del
// password en reposo y el workflow síncrono de verificación.
package emailconfig

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/dropDatabas3/mailrelay/internal/domain"
	mailx "github.com/dropDatabas3/mailrelay/internal/mail"
	"github.com/dropDatabas3/mailrelay/internal/observability/logger"
	"github.com/dropDatabas3/mailrelay/internal/security/secretbox"
	"github.com/dropDatabas3/mailrelay/internal/store"
)

// Service orquesta store, codec y transporte. Todas las operaciones están
// scoped a la empresa autenticada: un id de otra empresa es NotFound, no
// un leak.
type Service struct {
	Store     store.ConfigStore
	Codec     *secretbox.Codec
	Transport mailx.Transport
	Resolver  *mailx.Resolver // para invalidar el cache en mutaciones
}

// CreateInput son los campos de una config nueva. IsActive nil significa
// "activala si la empresa no tiene ninguna activa".
type CreateInput struct {
	SMTPHost     string `json:"smtpHost"`
	SMTPPort     int    `json:"smtpPort"`
	SMTPSecure   *bool  `json:"smtpSecure"`
	SMTPUser     string `json:"smtpUser"`
	SMTPPassword string `json:"smtpPassword"`
	FromName     string `json:"fromName"`
	FromEmail    string `json:"fromEmail"`
	ReplyTo      string `json:"replyTo"`
	IsActive     *bool  `json:"isActive"`
}

// UpdateInput son campos parciales; nil = sin cambio.
type UpdateInput struct {
	SMTPHost     *string `json:"smtpHost"`
	SMTPPort     *int    `json:"smtpPort"`
	SMTPSecure   *bool   `json:"smtpSecure"`
	SMTPUser     *string `json:"smtpUser"`
	SMTPPassword *string `json:"smtpPassword"`
	FromName     *string `json:"fromName"`
	FromEmail    *string `json:"fromEmail"`
	ReplyTo      *string `json:"replyTo"`
	IsActive     *bool   `json:"isActive"`
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.SMTPHost) == "" {
		return &domain.ValidationError{Field: "smtpHost", Message: "host SMTP es obligatorio"}
	}
	if in.SMTPPort < 1 || in.SMTPPort > 65535 {
		return &domain.ValidationError{Field: "smtpPort", Message: "puerto fuera de rango (1-65535)"}
	}
	if in.SMTPUser == "" {
		return &domain.ValidationError{Field: "smtpUser", Message: "usuario SMTP es obligatorio"}
	}
	if in.SMTPPassword == "" {
		return &domain.ValidationError{Field: "smtpPassword", Message: "password SMTP es obligatoria"}
	}
	if strings.TrimSpace(in.FromName) == "" {
		return &domain.ValidationError{Field: "fromName", Message: "nombre del remitente es obligatorio"}
	}
	if !validEmail(in.FromEmail) {
		return &domain.ValidationError{Field: "fromEmail", Message: "email inválido"}
	}
	if in.ReplyTo != "" && !validEmail(in.ReplyTo) {
		return &domain.ValidationError{Field: "replyTo", Message: "email inválido"}
	}
	return nil
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	_, err := mail.ParseAddress(s)
	return err == nil
}

// Create valida, cifra el password y aplica la regla de activación:
// IsActive=true explícito desactiva a las hermanas; IsActive ausente activa
// solo si la empresa no tiene ninguna activa.
func (s *Service) Create(ctx context.Context, companyID string, in CreateInput) (*domain.EmailConfig, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	encrypted, err := s.Codec.Encrypt(in.SMTPPassword)
	if err != nil {
		return nil, fmt.Errorf("encrypt password: %w", err)
	}

	secure := true // default: TLS-on-connect, como el modelo original
	if in.SMTPSecure != nil {
		secure = *in.SMTPSecure
	}
	replyTo := in.ReplyTo
	if replyTo == "" {
		replyTo = in.FromEmail
	}

	activate := false
	if in.IsActive != nil {
		activate = *in.IsActive
	} else {
		// sin isActive explícito: activa por defecto si no hay otra activa
		_, err := s.Store.FindActiveConfig(ctx, companyID)
		activate = errors.Is(err, store.ErrNotFound)
	}

	cfg := &domain.EmailConfig{
		CompanyID:    companyID,
		SMTPHost:     in.SMTPHost,
		SMTPPort:     in.SMTPPort,
		SMTPSecure:   secure,
		SMTPUser:     in.SMTPUser,
		SMTPPassword: encrypted,
		FromName:     in.FromName,
		FromEmail:    in.FromEmail,
		ReplyTo:      replyTo,
	}
	if err := s.Store.CreateConfig(ctx, cfg); err != nil {
		return nil, err
	}
	if activate {
		if err := s.Store.SetActiveExclusive(ctx, companyID, cfg.ID); err != nil {
			return nil, err
		}
		cfg.IsActive = true
	}
	s.invalidate(companyID)

	logger.From(ctx).Info("email config created",
		logger.Component("emailconfig"),
		logger.CompanyID(companyID),
		logger.ConfigID(cfg.ID),
		logger.Bool("active", cfg.IsActive),
	)
	return cfg, nil
}

// Update aplica cambios parciales scoped a la empresa dueña.
func (s *Service) Update(ctx context.Context, companyID, id string, in UpdateInput) (*domain.EmailConfig, error) {
	cfg, err := s.Store.GetConfig(ctx, companyID, id)
	if err != nil {
		return nil, s.mapNotFound(err)
	}

	if in.SMTPHost != nil {
		if strings.TrimSpace(*in.SMTPHost) == "" {
			return nil, &domain.ValidationError{Field: "smtpHost", Message: "host SMTP no puede ser vacío"}
		}
		cfg.SMTPHost = *in.SMTPHost
	}
	if in.SMTPPort != nil {
		if *in.SMTPPort < 1 || *in.SMTPPort > 65535 {
			return nil, &domain.ValidationError{Field: "smtpPort", Message: "puerto fuera de rango (1-65535)"}
		}
		cfg.SMTPPort = *in.SMTPPort
	}
	if in.SMTPSecure != nil {
		cfg.SMTPSecure = *in.SMTPSecure
	}
	if in.SMTPUser != nil {
		cfg.SMTPUser = *in.SMTPUser
	}
	if in.FromName != nil {
		cfg.FromName = *in.FromName
	}
	if in.FromEmail != nil {
		if !validEmail(*in.FromEmail) {
			return nil, &domain.ValidationError{Field: "fromEmail", Message: "email inválido"}
		}
		cfg.FromEmail = *in.FromEmail
	}
	if in.ReplyTo != nil {
		if *in.ReplyTo != "" && !validEmail(*in.ReplyTo) {
			return nil, &domain.ValidationError{Field: "replyTo", Message: "email inválido"}
		}
		cfg.ReplyTo = *in.ReplyTo
	}
	if in.SMTPPassword != nil && *in.SMTPPassword != "" {
		encrypted, err := s.Codec.Encrypt(*in.SMTPPassword)
		if err != nil {
			return nil, fmt.Errorf("encrypt password: %w", err)
		}
		cfg.SMTPPassword = encrypted
	}
	// UpdateConfig nunca escribe IsActive; el flag se mueve aparte, por las
	// operaciones del store que lo sostienen atómico. Si este update se
	// cruza con una activación concurrente, el snapshot viejo no la pisa.
	if err := s.Store.UpdateConfig(ctx, cfg); err != nil {
		return nil, s.mapNotFound(err)
	}
	if in.IsActive != nil {
		if *in.IsActive {
			err = s.Store.SetActiveExclusive(ctx, companyID, id)
		} else {
			// desactivar sin activar otra es un estado válido: aplica el fallback
			err = s.Store.Deactivate(ctx, companyID, id)
		}
		if err != nil {
			return nil, s.mapNotFound(err)
		}
	}
	s.invalidate(companyID)

	updated, err := s.Store.GetConfig(ctx, companyID, id)
	if err != nil {
		return nil, s.mapNotFound(err)
	}
	return updated, nil
}

// List ordena: activa primero, luego las más nuevas.
func (s *Service) List(ctx context.Context, companyID string) ([]*domain.EmailConfig, error) {
	return s.Store.ListConfigs(ctx, companyID)
}

// Active devuelve la config activa de la empresa, o nil si no hay.
func (s *Service) Active(ctx context.Context, companyID string) (*domain.EmailConfig, error) {
	cfg, err := s.Store.FindActiveConfig(ctx, companyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return cfg, err
}

func (s *Service) Delete(ctx context.Context, companyID, id string) error {
	if err := s.Store.DeleteConfig(ctx, companyID, id); err != nil {
		return s.mapNotFound(err)
	}
	s.invalidate(companyID)
	return nil
}

func (s *Service) invalidate(companyID string) {
	if s.Resolver != nil {
		s.Resolver.Invalidate(companyID)
	}
}

func (s *Service) mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &domain.NotFoundError{Resource: "email config"}
	}
	return err
}
