// Package dispatch implementa la cola durable, asíncrona y con retry que
// convierte un "mandá este email" en una llamada al transporte y una fila
// de auditoría.
//
// Máquina de estados por job:
//
//	ENQUEUED → PROCESSING → {SENT | RETRY_SCHEDULED → PROCESSING | FAILED_TERMINAL}
//
// Hay dos backends detrás del mismo contrato: memoria (tests, single-node)
// y redis (durable). Los retries se agendan con una eligibilidad futura,
// nunca se spinea.
package dispatch

import (
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/mailrelay/internal/domain"
)

// ErrClosed lo devuelve Enqueue después de Close.
var ErrClosed = errors.New("dispatch: queue closed")

// JobState es el estado de un job dentro de la cola.
type JobState string

const (
	StateEnqueued       JobState = "ENQUEUED"
	StateProcessing     JobState = "PROCESSING"
	StateSent           JobState = "SENT"
	StateRetryScheduled JobState = "RETRY_SCHEDULED"
	StateFailedTerminal JobState = "FAILED_TERMINAL"
)

// Job es una petición de envío encolada. Es propiedad exclusiva de la cola
// desde Enqueue hasta su estado terminal.
type Job struct {
	ID string `json:"id"`

	To            string `json:"to"`
	RecipientName string `json:"recipientName,omitempty"`
	Subject       string `json:"subject"`
	HTML          string `json:"html"`
	Text          string `json:"text,omitempty"`

	CompanyID     string         `json:"companyId"`
	TemplateID    string         `json:"templateId"`
	WebhookLinkID *string        `json:"webhookLinkId,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`

	// Attempt es el número de intentos ya ejecutados.
	Attempt int `json:"attempt"`

	// LogID es la fila PENDING de auditoría creada en el primer intento.
	// Viaja con el job para que un retry no cree otra PENDING y para que
	// el éxito cierre la fila original.
	LogID string `json:"logId,omitempty"`

	// LastError guarda el último error de transporte (para inspección).
	LastError string `json:"lastError,omitempty"`

	EnqueuedAt time.Time `json:"enqueuedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
	State      JobState  `json:"state"`
}

// Stats es la ocupación de la cola al momento de la llamada. Bajo mutación
// concurrente los conteos son eventualmente consistentes.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Queue es el contrato de la cola de despacho.
type Queue interface {
	// Enqueue persiste el job para procesamiento asíncrono. delay <= 0
	// significa elegible ya; un delay positivo es cota inferior, no
	// agenda exacta. Si el backend está caído devuelve un error que
	// envuelve domain.ErrQueueUnavailable: nunca se descarta en silencio.
	Enqueue(job *Job, delay time.Duration) (string, error)

	// Stats refleja la ocupación actual {waiting, active, completed, failed}.
	Stats() (Stats, error)

	// PurgeOlderThan borra completados y fallidos terminados hace más de
	// grace. Seguro de llamar con la cola procesando.
	PurgeOlderThan(grace time.Duration) error

	// Close detiene los workers y espera a que terminen el job en curso.
	Close() error
}

// Options parametriza la política de retry y retención de ambos backends.
type Options struct {
	Workers       int
	MaxAttempts   int           // default 3
	BackoffBase   time.Duration // default 2s; duplica en cada retry
	KeepCompleted int           // default 100, se desaloja el más viejo
	KeepFailed    int           // default 50
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2000 * time.Millisecond
	}
	if o.KeepCompleted <= 0 {
		o.KeepCompleted = 100
	}
	if o.KeepFailed <= 0 {
		o.KeepFailed = 50
	}
}

// backoff devuelve la espera antes del intento attempt+1: exponencial
// desde BackoffBase, duplicando por intento fallido.
func (o Options) backoff(attempt int) time.Duration {
	d := o.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// retryEligible decide si un intento fallido se reagenda: el error tiene
// que ser reintentable (validación y not-found no lo son) y tiene que
// quedar presupuesto de intentos.
func retryEligible(err error, attempt, maxAttempts int) bool {
	return domain.IsRetryable(err) && attempt < maxAttempts
}

// CalculateDelay convierte (valor, unidad) a duración. Unidades:
// immediate | seconds | minutes | hours | days. "immediate" o valor no
// positivo => 0.
func CalculateDelay(value int, unit string) time.Duration {
	if value <= 0 {
		return 0
	}
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "seconds":
		return time.Duration(value) * time.Second
	case "minutes":
		return time.Duration(value) * time.Minute
	case "hours":
		return time.Duration(value) * time.Hour
	case "days":
		return time.Duration(value) * 24 * time.Hour
	default: // "immediate" y unidades desconocidas
		return 0
	}
}
