package emailconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/mailrelay/internal/domain"
	mailx "github.com/dropDatabas3/mailrelay/internal/mail"
	"github.com/dropDatabas3/mailrelay/internal/observability/logger"
)

// TestResult es la respuesta del workflow de verificación.
type TestResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	MessageID string `json:"messageId,omitempty"`
}

const testSubject = "Prueba de configuración SMTP"

const testBody = `<html><body>
<h3>Configuración SMTP validada</h3>
<p>Si recibiste este email, tu configuración SMTP funciona correctamente.
Los emails transaccionales del sistema van a salir con estas credenciales.</p>
</body></html>`

// Test es el workflow síncrono de verificación: descifra el secreto
// guardado, hace el handshake de conectividad y entrega un mensaje de
// diagnóstico fijo. No pasa por la cola y no se reintenta: es una acción
// interactiva del usuario.
//
// Cualquier fallo persiste isVerified=false + lastTestAt + lastTestError en
// la fila y devuelve el mismo mensaje; el éxito persiste isVerified=true y
// limpia lastTestError.
func (s *Service) Test(ctx context.Context, companyID, id, testEmail string) (*TestResult, error) {
	if !validEmail(testEmail) {
		return nil, &domain.ValidationError{Field: "testEmail", Message: "email de prueba inválido"}
	}

	cfg, err := s.Store.GetConfig(ctx, companyID, id)
	if err != nil {
		return nil, s.mapNotFound(err)
	}

	log := logger.From(ctx).With(
		logger.Component("emailconfig"),
		logger.Op("Test"),
		logger.CompanyID(companyID),
		logger.ConfigID(id),
	)

	run := func() (string, error) {
		password, err := s.Codec.Decrypt(cfg.SMTPPassword)
		if err != nil {
			// acá el descifrado fallido es fallo duro, no fallback
			return "", err
		}
		replyTo := cfg.ReplyTo
		if replyTo == "" {
			replyTo = cfg.FromEmail
		}
		params := mailx.Params{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Secure:    cfg.SMTPSecure,
			User:      cfg.SMTPUser,
			Password:  password,
			FromName:  cfg.FromName,
			FromEmail: cfg.FromEmail,
			ReplyTo:   replyTo,
		}
		if err := s.Transport.VerifyConnectivity(ctx, params); err != nil {
			return "", err
		}
		return s.Transport.Deliver(ctx, params, mailx.Message{
			To:      testEmail,
			Subject: testSubject,
			HTML:    testBody,
		})
	}

	now := time.Now().UTC()
	messageID, runErr := run()

	cfg.LastTestAt = &now
	if runErr != nil {
		msg := runErr.Error()
		cfg.IsVerified = false
		cfg.LastTestError = &msg
	} else {
		cfg.IsVerified = true
		cfg.LastTestError = nil
	}
	if err := s.Store.UpdateConfig(ctx, cfg); err != nil {
		log.Error("test outcome persist failed", logger.Err(err))
	}
	s.invalidate(companyID)

	if runErr != nil {
		log.Warn("config test failed", logger.Err(runErr))
		return nil, fmt.Errorf("fallo el envío de prueba: %w", runErr)
	}

	log.Info("config test succeeded", logger.String("message_id", messageID))
	return &TestResult{
		Success:   true,
		Message:   "Email de prueba enviado con éxito",
		MessageID: messageID,
	}, nil
}
