package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/mailrelay/internal/domain"
	"github.com/dropDatabas3/mailrelay/internal/store"
)

const configCols = `id, company_id, smtp_host, smtp_port, smtp_secure, smtp_user, smtp_password,
	from_name, from_email, reply_to, is_active, is_verified, last_test_at, last_test_error,
	created_at, updated_at`

func scanConfig(row pgx.Row) (*domain.EmailConfig, error) {
	var c domain.EmailConfig
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.SMTPHost, &c.SMTPPort, &c.SMTPSecure, &c.SMTPUser, &c.SMTPPassword,
		&c.FromName, &c.FromEmail, &c.ReplyTo, &c.IsActive, &c.IsVerified, &c.LastTestAt, &c.LastTestError,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateConfig(ctx context.Context, cfg *domain.EmailConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	const q = `INSERT INTO email_configs
		(id, company_id, smtp_host, smtp_port, smtp_secure, smtp_user, smtp_password,
		 from_name, from_email, reply_to, is_active, is_verified, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := s.pool.Exec(ctx, q,
		cfg.ID, cfg.CompanyID, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPSecure, cfg.SMTPUser, cfg.SMTPPassword,
		cfg.FromName, cfg.FromEmail, cfg.ReplyTo, cfg.IsActive, cfg.IsVerified, cfg.CreatedAt, cfg.UpdatedAt,
	)
	return err
}

func (s *Store) GetConfig(ctx context.Context, companyID, id string) (*domain.EmailConfig, error) {
	const q = `SELECT ` + configCols + ` FROM email_configs WHERE id = $1 AND company_id = $2`
	return scanConfig(s.pool.QueryRow(ctx, q, id, companyID))
}

func (s *Store) FindActiveConfig(ctx context.Context, companyID string) (*domain.EmailConfig, error) {
	const q = `SELECT ` + configCols + ` FROM email_configs
		WHERE company_id = $1 AND is_active = TRUE LIMIT 1`
	return scanConfig(s.pool.QueryRow(ctx, q, companyID))
}

func (s *Store) ListConfigs(ctx context.Context, companyID string) ([]*domain.EmailConfig, error) {
	const q = `SELECT ` + configCols + ` FROM email_configs
		WHERE company_id = $1 ORDER BY is_active DESC, created_at DESC`
	rows, err := s.pool.Query(ctx, q, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.EmailConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateConfig no escribe is_active: el flag solo lo mueven
// SetActiveExclusive y Deactivate, para que un read-modify-write con
// snapshot viejo no pueda pisar una activación concurrente.
func (s *Store) UpdateConfig(ctx context.Context, cfg *domain.EmailConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	const q = `UPDATE email_configs SET
		smtp_host=$3, smtp_port=$4, smtp_secure=$5, smtp_user=$6, smtp_password=$7,
		from_name=$8, from_email=$9, reply_to=$10, is_verified=$11,
		last_test_at=$12, last_test_error=$13, updated_at=$14
		WHERE id = $1 AND company_id = $2`
	tag, err := s.pool.Exec(ctx, q,
		cfg.ID, cfg.CompanyID,
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPSecure, cfg.SMTPUser, cfg.SMTPPassword,
		cfg.FromName, cfg.FromEmail, cfg.ReplyTo, cfg.IsVerified,
		cfg.LastTestAt, cfg.LastTestError, cfg.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Deactivate(ctx context.Context, companyID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE email_configs SET is_active = FALSE, updated_at = $3
		 WHERE id = $1 AND company_id = $2`,
		id, companyID, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteConfig(ctx context.Context, companyID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM email_configs WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetActiveExclusive limpia las hermanas y activa la fila indicada en una
// transacción: dos activaciones concurrentes de la misma empresa se
// serializan en la DB y nunca quedan dos filas activas.
func (s *Store) SetActiveExclusive(ctx context.Context, companyID, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE email_configs SET is_active = FALSE, updated_at = $2
		 WHERE company_id = $1 AND is_active = TRUE AND id <> $3`,
		companyID, now, id); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE email_configs SET is_active = TRUE, updated_at = $3
		 WHERE id = $1 AND company_id = $2`,
		id, companyID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return tx.Commit(ctx)
}
