package mail

import (
	"errors"
	"net"
	"strings"

	"github.com/dropDatabas3/mailrelay/internal/domain"
)

// Diag clasifica un fallo de transporte para la política de retry y las
// métricas. Temporary marca los fallos que suelen resolverse reintentando.
type Diag struct {
	Code      string // auth|tls|dial|timeout|rate_limited|invalid_recipient|rejected|network|unknown
	Temporary bool
}

// Classify deriva el diagnóstico de un error de entrega. La fase del
// SmtpError decide la familia; el detalle solo refina dentro de ella, así
// un "authentication failed" citado en un rebote no se confunde con un
// fallo de credenciales propio.
func Classify(err error) Diag {
	if err == nil {
		return Diag{Code: "unknown"}
	}
	var se *domain.SmtpError
	if errors.As(err, &se) {
		detail := strings.ToLower(se.Detail)
		switch se.Phase {
		case domain.PhaseAuth:
			return Diag{Code: "auth"}
		case domain.PhaseConnect:
			return classifyConnect(detail)
		case domain.PhaseSend:
			return classifySend(detail)
		}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return Diag{Code: "timeout", Temporary: true}
		}
		return Diag{Code: "network", Temporary: true}
	}
	return Diag{Code: "unknown"}
}

// classifyConnect: la sesión nunca llegó a autenticar. Un cert que no
// valida es permanente; el resto de los fallos de red se reintentan.
func classifyConnect(detail string) Diag {
	switch {
	case strings.Contains(detail, "timeout"):
		return Diag{Code: "timeout", Temporary: true}
	case strings.Contains(detail, "x509:"), strings.Contains(detail, "tls"):
		return Diag{Code: "tls"}
	default:
		return Diag{Code: "dial", Temporary: true}
	}
}

// classifySend: el server aceptó la sesión y rechazó el mensaje. Acá
// manda el código SMTP del detalle: 4xx transitorio, 5xx permanente.
func classifySend(detail string) Diag {
	switch {
	case strings.Contains(detail, "4.7.0"),
		strings.Contains(detail, "rate limit"),
		strings.Contains(detail, "try again later"):
		return Diag{Code: "rate_limited", Temporary: true}
	case strings.Contains(detail, "5.1.1"),
		strings.Contains(detail, "user unknown"),
		strings.Contains(detail, "mailbox not found"):
		return Diag{Code: "invalid_recipient"}
	case strings.Contains(detail, "5.7.1"),
		strings.Contains(detail, "message rejected"),
		strings.Contains(detail, "dmarc"),
		strings.Contains(detail, "spf"):
		return Diag{Code: "rejected"}
	case strings.HasPrefix(detail, "4"):
		return Diag{Code: "rejected", Temporary: true}
	case strings.HasPrefix(detail, "5"):
		return Diag{Code: "rejected"}
	default:
		return Diag{Code: "unknown"}
	}
}
