package domain

import (
	"errors"
	"fmt"
)

// Taxonomía de errores del core. Los kinds permiten que la política de
// retry de la cola excluya los errores no reintentables (validación,
// not-found) y que la capa HTTP mapee a status codes sin inspeccionar
// strings.

// ValidationError: campo requerido ausente o malformado. Nunca se reintenta.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
	}
	return "validation: " + e.Message
}

// NotFoundError: el recurso no existe o no pertenece al tenant que lo pide.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// DecryptionError: token cifrado malformado o que no autentica.
// El resolver lo degrada a fallback; el workflow de verificación lo
// trata como fallo duro.
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string {
	return "decryption failed: " + e.Reason
}

// SMTPPhase indica en qué fase falló el transporte.
type SMTPPhase string

const (
	PhaseConnect SMTPPhase = "connect"
	PhaseAuth    SMTPPhase = "auth"
	PhaseSend    SMTPPhase = "send"
)

// SmtpError: fallo de transporte. La cola lo reintenta; el workflow de
// verificación lo reporta una sola vez.
type SmtpError struct {
	Phase  SMTPPhase
	Detail string
	Err    error
}

func (e *SmtpError) Error() string {
	return fmt.Sprintf("smtp %s: %s", e.Phase, e.Detail)
}

func (e *SmtpError) Unwrap() error { return e.Err }

// ErrQueueUnavailable: backend de la cola inaccesible. Enqueue debe fallar
// ruidosamente, nunca descartar en silencio.
var ErrQueueUnavailable = errors.New("dispatch queue unavailable")

// IsRetryable reporta si un error de procesamiento de job amerita retry.
// Validación y not-found son errores del caller; no se reintentan.
func IsRetryable(err error) bool {
	var ve *ValidationError
	var nf *NotFoundError
	if errors.As(err, &ve) || errors.As(err, &nf) {
		return false
	}
	return true
}
