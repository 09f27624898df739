package dispatch

import (
	"context"
	"time"

	"github.com/dropDatabas3/mailrelay/internal/domain"
	"github.com/dropDatabas3/mailrelay/internal/mail"
	"github.com/dropDatabas3/mailrelay/internal/metrics"
	"github.com/dropDatabas3/mailrelay/internal/observability/logger"
	"github.com/dropDatabas3/mailrelay/internal/store"
)

// Processor ejecuta un intento de un job: crea la fila PENDING, resuelve
// credenciales, entrega y finaliza el log. Lo comparten ambos backends.
type Processor struct {
	Logs      store.LogStore
	Resolver  *mail.Resolver
	Transport mail.Transport
}

// Process corre un intento. Contrato de auditoría: el primer intento crea
// la fila PENDING y deja su id en el job; el éxito actualiza ESA fila a
// SENT; cada fallo agrega una fila FAILED nueva (la PENDING queda) antes
// de propagar el error, así ningún fallo se pierde en silencio.
func (p *Processor) Process(ctx context.Context, job *Job) error {
	log := logger.From(ctx).With(
		logger.Component("dispatch"),
		logger.JobID(job.ID),
		logger.CompanyID(job.CompanyID),
		logger.Attempt(job.Attempt+1),
	)
	log.Info("processing email job", logger.Recipient(job.To))

	if job.LogID == "" {
		pending := &domain.EmailLog{
			TemplateID:     job.TemplateID,
			WebhookLinkID:  job.WebhookLinkID,
			CompanyID:      job.CompanyID,
			RecipientEmail: job.To,
			RecipientName:  optional(job.RecipientName),
			Subject:        job.Subject,
			Variables:      job.Variables,
			Metadata:       job.Metadata,
			Status:         domain.EmailPending,
		}
		if err := p.Logs.CreateLog(ctx, pending); err != nil {
			log.Error("pending log create failed", logger.Err(err))
			// también este fallo deja su fila FAILED, best effort
			p.appendFailure(ctx, job, err)
			return err
		}
		job.LogID = pending.ID
	}

	params, fallback := p.Resolver.Resolve(ctx, job.CompanyID)
	if fallback {
		log.Info("using global SMTP fallback")
	}

	msg := mail.Message{
		To:            job.To,
		RecipientName: job.RecipientName,
		Subject:       job.Subject,
		HTML:          job.HTML,
		Text:          job.Text,
	}

	messageID, err := p.Transport.Deliver(ctx, params, msg)
	if err != nil {
		diag := mail.Classify(err)
		log.Error("delivery failed",
			logger.Err(err),
			logger.String("diag", diag.Code),
			logger.Bool("temporary", diag.Temporary),
		)
		metrics.RecordAttempt("failed", diag.Code)
		p.appendFailure(ctx, job, err)
		return err
	}

	if err := p.Logs.MarkSent(ctx, job.LogID); err != nil {
		// El email salió; un log que no cierra no debe disparar un reenvío.
		log.Error("mark sent failed", logger.Err(err))
	}
	metrics.RecordAttempt("sent", "")
	log.Info("email sent", logger.String("message_id", messageID))
	return nil
}

// appendFailure agrega la fila FAILED del intento. Best effort: si el
// store también falla solo se loguea, el error original ya va a la
// política de retry.
func (p *Processor) appendFailure(ctx context.Context, job *Job, cause error) {
	now := time.Now().UTC()
	msg := cause.Error()
	failed := &domain.EmailLog{
		TemplateID:     job.TemplateID,
		WebhookLinkID:  job.WebhookLinkID,
		CompanyID:      job.CompanyID,
		RecipientEmail: job.To,
		RecipientName:  optional(job.RecipientName),
		Subject:        job.Subject,
		Variables:      job.Variables,
		Metadata:       job.Metadata,
		Status:         domain.EmailFailed,
		FailedAt:       &now,
		ErrorMessage:   &msg,
	}
	if err := p.Logs.CreateLog(ctx, failed); err != nil {
		logger.From(ctx).Error("failed log create failed",
			logger.JobID(job.ID), logger.Err(err))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
