package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar del dominio. Usarlos mantiene los nombres consistentes
// entre services, workers y middlewares.

// CompanyID crea un campo para el ID de la empresa (tenant).
func CompanyID(v string) zap.Field {
	return zap.String("company_id", v)
}

// JobID crea un campo para el ID de un job de la cola.
func JobID(v string) zap.Field {
	return zap.String("job_id", v)
}

// ConfigID crea un campo para el ID de una configuración SMTP.
func ConfigID(v string) zap.Field {
	return zap.String("config_id", v)
}

// Recipient crea un campo para el destinatario (usar con cuidado en prod).
func Recipient(v string) zap.Field {
	return zap.String("recipient", v)
}

// Attempt crea un campo para el número de intento de un job.
func Attempt(v int) zap.Field {
	return zap.Int("attempt", v)
}

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Duration crea un campo para una duración.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
