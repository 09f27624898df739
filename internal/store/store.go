// Package store define el acceso a datos del core como un keyed store
// abstracto. La tecnología de persistencia es irrelevante para la
// correctitud: hay una implementación en memoria (tests, modo dev) y una
// sobre Postgres en store/pg.
package store

import (
	"context"
	"errors"

	"github.com/dropDatabas3/mailrelay/internal/domain"
)

// ErrNotFound lo devuelven las operaciones scoped cuando la fila no existe
// o no pertenece a la empresa solicitante.
var ErrNotFound = errors.New("store: not found")

// ConfigStore persiste las configuraciones SMTP por empresa.
type ConfigStore interface {
	CreateConfig(ctx context.Context, cfg *domain.EmailConfig) error

	// GetConfig busca por id scoped a la empresa dueña.
	GetConfig(ctx context.Context, companyID, id string) (*domain.EmailConfig, error)

	// FindActiveConfig es el hot path del resolver: la config con
	// IsActive=true de la empresa, o ErrNotFound.
	FindActiveConfig(ctx context.Context, companyID string) (*domain.EmailConfig, error)

	// ListConfigs ordena: activa primero, luego por creación descendente.
	ListConfigs(ctx context.Context, companyID string) ([]*domain.EmailConfig, error)

	// UpdateConfig persiste los campos mutables de la fila EXCEPTO IsActive:
	// el estado de activación solo cambia vía SetActiveExclusive/Deactivate.
	// Así un read-modify-write concurrente con una activación nunca puede
	// resucitar un snapshot viejo del flag.
	UpdateConfig(ctx context.Context, cfg *domain.EmailConfig) error
	DeleteConfig(ctx context.Context, companyID, id string) error

	// Deactivate apaga IsActive en la fila indicada (scoped). Dejar a la
	// empresa sin ninguna config activa es un estado válido: aplica el
	// fallback global.
	Deactivate(ctx context.Context, companyID, id string) error

	// SetActiveExclusive limpia IsActive en todas las hermanas de la empresa
	// y activa la fila indicada, como unidad atómica. Es la única operación
	// que puede dejar una config activa; sostiene la invariante de "a lo
	// sumo una activa por empresa" incluso bajo activaciones concurrentes.
	SetActiveExclusive(ctx context.Context, companyID, id string) error
}

// LogStore persiste el registro de auditoría EmailLog.
type LogStore interface {
	CreateLog(ctx context.Context, l *domain.EmailLog) error

	// MarkSent transiciona la fila PENDING creada al inicio del job a SENT.
	MarkSent(ctx context.Context, id string) error

	ListLogs(ctx context.Context, companyID string, limit int) ([]*domain.EmailLog, error)
}

// Store agrupa todo lo que el core necesita de la persistencia.
type Store interface {
	ConfigStore
	LogStore
	Ping(ctx context.Context) error
	Close()
}
