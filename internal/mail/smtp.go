package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/google/uuid"

	"github.com/dropDatabas3/mailrelay/internal/domain"
	"github.com/dropDatabas3/mailrelay/internal/observability/logger"
)

// SMTPTransport implementa Transport usando go-mail.
type SMTPTransport struct {
	// Timeout acota connect/auth/send; un server colgado no puede
	// clavar un worker del pool.
	Timeout time.Duration

	// InsecureSkipVerify solo para dev contra servers con certs truchos.
	InsecureSkipVerify bool
}

func NewSMTPTransport(timeout time.Duration) *SMTPTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMTPTransport{Timeout: timeout}
}

func (t *SMTPTransport) dialer(p Params) *mail.Dialer {
	d := mail.NewDialer(p.Host, p.Port, p.User, p.Password)
	d.Timeout = t.Timeout
	d.TLSConfig = &tls.Config{
		ServerName:         p.Host,
		InsecureSkipVerify: t.InsecureSkipVerify,
	}
	// secure=true: TLS-on-connect (smtps); secure=false: STARTTLS negociado.
	d.SSL = p.Secure
	return d
}

// VerifyConnectivity abre la sesión (dial + auth) y la cierra sin enviar.
func (t *SMTPTransport) VerifyConnectivity(ctx context.Context, p Params) error {
	d := t.dialer(p)
	sc, err := d.Dial()
	if err != nil {
		return dialError(err)
	}
	return sc.Close()
}

// Deliver entrega el mensaje y devuelve el Message-ID generado.
func (t *SMTPTransport) Deliver(ctx context.Context, p Params, msg Message) (string, error) {
	log := logger.From(ctx).With(
		logger.Component("SMTPTransport"),
		logger.String("host", p.Host),
		logger.Int("port", p.Port),
	)

	m := mail.NewMessage()
	m.SetHeader("From", p.From())
	if msg.RecipientName != "" {
		m.SetAddressHeader("To", msg.To, msg.RecipientName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	if p.ReplyTo != "" {
		m.SetHeader("Reply-To", p.ReplyTo)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), p.Host)
	m.SetHeader("Message-Id", messageID)

	// multipart/alternative cuando hay ambos; html cae a text si falta
	html := msg.HTML
	if html == "" {
		html = msg.Text
	}
	if msg.Text != "" && msg.HTML != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", html)
	}

	d := t.dialer(p)
	sc, err := d.Dial()
	if err != nil {
		log.Debug("smtp dial failed", logger.Err(err))
		return "", dialError(err)
	}
	defer sc.Close()

	if err := mail.Send(sc, m); err != nil {
		log.Debug("smtp send failed", logger.Err(err))
		return "", &domain.SmtpError{Phase: domain.PhaseSend, Detail: err.Error(), Err: err}
	}

	log.Debug("email delivered", logger.String("message_id", messageID))
	return messageID, nil
}

// dialError separa fallos de autenticación de fallos de conexión:
// el dial de go-mail cubre ambos pasos del handshake.
func dialError(err error) error {
	phase := domain.PhaseConnect
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "535") || strings.Contains(s, "auth") ||
		strings.Contains(s, "username and password not accepted") {
		phase = domain.PhaseAuth
	}
	return &domain.SmtpError{Phase: phase, Detail: err.Error(), Err: err}
}
