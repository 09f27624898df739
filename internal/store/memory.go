package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/mailrelay/internal/domain"
	"github.com/google/uuid"
)

// Memory es la implementación en memoria del Store. Respaldada por maps y
// un mutex; SetActiveExclusive es atómica bajo el lock, igual que la
// transacción de pg.
type Memory struct {
	mu      sync.RWMutex
	configs map[string]*domain.EmailConfig // id -> config
	logs    []*domain.EmailLog
}

func NewMemory() *Memory {
	return &Memory{configs: make(map[string]*domain.EmailConfig)}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close()                         {}

// ---- ConfigStore ----

func (m *Memory) CreateConfig(ctx context.Context, cfg *domain.EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	cp := *cfg
	m.configs[cfg.ID] = &cp
	return nil
}

func (m *Memory) GetConfig(ctx context.Context, companyID, id string) (*domain.EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[id]
	if !ok || c.CompanyID != companyID {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) FindActiveConfig(ctx context.Context, companyID string) (*domain.EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.configs {
		if c.CompanyID == companyID && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListConfigs(ctx context.Context, companyID string) ([]*domain.EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.EmailConfig
	for _, c := range m.configs {
		if c.CompanyID == companyID {
			cp := *c
			out = append(out, &cp)
		}
	}
	// activa primero, luego más nueva primero
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsActive != out[j].IsActive {
			return out[i].IsActive
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) UpdateConfig(ctx context.Context, cfg *domain.EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.configs[cfg.ID]
	if !ok || cur.CompanyID != cfg.CompanyID {
		return ErrNotFound
	}
	cfg.CreatedAt = cur.CreatedAt
	cfg.UpdatedAt = time.Now().UTC()
	cp := *cfg
	// IsActive no se escribe acá: solo SetActiveExclusive/Deactivate lo
	// tocan. Un snapshot viejo del caller no puede reactivar la fila.
	cp.IsActive = cur.IsActive
	m.configs[cfg.ID] = &cp
	return nil
}

func (m *Memory) Deactivate(ctx context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok || c.CompanyID != companyID {
		return ErrNotFound
	}
	c.IsActive = false
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) DeleteConfig(ctx context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok || c.CompanyID != companyID {
		return ErrNotFound
	}
	delete(m.configs, id)
	return nil
}

func (m *Memory) SetActiveExclusive(ctx context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.configs[id]
	if !ok || target.CompanyID != companyID {
		return ErrNotFound
	}
	now := time.Now().UTC()
	for _, c := range m.configs {
		if c.CompanyID == companyID && c.ID != id && c.IsActive {
			c.IsActive = false
			c.UpdatedAt = now
		}
	}
	target.IsActive = true
	target.UpdatedAt = now
	return nil
}

// ---- LogStore ----

func (m *Memory) CreateLog(ctx context.Context, l *domain.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = time.Now().UTC()
	cp := *l
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *Memory) MarkSent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.ID == id {
			now := time.Now().UTC()
			l.Status = domain.EmailSent
			l.SentAt = &now
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) ListLogs(ctx context.Context, companyID string, limit int) ([]*domain.EmailLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.EmailLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].CompanyID == companyID {
			cp := *m.logs[i]
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
