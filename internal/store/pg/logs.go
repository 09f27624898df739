package pg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/mailrelay/internal/domain"
	"github.com/dropDatabas3/mailrelay/internal/store"
)

func (s *Store) CreateLog(ctx context.Context, l *domain.EmailLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = time.Now().UTC()

	vars, err := json.Marshal(l.Variables)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(l.Metadata)
	if err != nil {
		return err
	}

	const q = `INSERT INTO email_logs
		(id, template_id, webhook_link_id, company_id, recipient_email, recipient_name,
		 subject, variables, metadata, status, sent_at, failed_at, error_message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err = s.pool.Exec(ctx, q,
		l.ID, l.TemplateID, l.WebhookLinkID, l.CompanyID, l.RecipientEmail, l.RecipientName,
		l.Subject, vars, meta, l.Status, l.SentAt, l.FailedAt, l.ErrorMessage, l.CreatedAt,
	)
	return err
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE email_logs SET status = $2, sent_at = $3 WHERE id = $1`,
		id, domain.EmailSent, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, companyID string, limit int) ([]*domain.EmailLog, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, template_id, webhook_link_id, company_id, recipient_email, recipient_name,
		subject, variables, metadata, status, sent_at, failed_at, error_message, created_at
		FROM email_logs WHERE company_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, q, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.EmailLog
	for rows.Next() {
		var l domain.EmailLog
		var vars, meta []byte
		if err := rows.Scan(
			&l.ID, &l.TemplateID, &l.WebhookLinkID, &l.CompanyID, &l.RecipientEmail, &l.RecipientName,
			&l.Subject, &vars, &meta, &l.Status, &l.SentAt, &l.FailedAt, &l.ErrorMessage, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(vars) > 0 {
			_ = json.Unmarshal(vars, &l.Variables)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &l.Metadata)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
