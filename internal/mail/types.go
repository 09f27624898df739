// Package mail contiene el transporte SMTP y el resolver de credenciales.
// El transporte es un único intento best-effort: el retry vive en la cola
// de despacho, nunca acá.
package mail

import "context"

// Params son los parámetros de transporte + identidad de remitente ya
// resueltos (config de la empresa o fallback global).
type Params struct {
	Host     string
	Port     int
	Secure   bool // true: TLS-on-connect; false: STARTTLS
	User     string
	Password string

	FromName  string
	FromEmail string
	ReplyTo   string
}

// From devuelve el remitente formateado como "Nombre <email>".
func (p Params) From() string {
	if p.FromName == "" {
		return p.FromEmail
	}
	return p.FromName + " <" + p.FromEmail + ">"
}

// Message es un email a entregar. HTML cae al cuerpo de texto si falta.
type Message struct {
	To            string
	RecipientName string
	Subject       string
	Text          string
	HTML          string
}

// Transport abre una sesión SMTP y entrega un mensaje.
type Transport interface {
	// Deliver entrega msg y devuelve el Message-ID generado.
	Deliver(ctx context.Context, p Params, msg Message) (string, error)

	// VerifyConnectivity hace solo el handshake connect+auth, sin enviar.
	// Lo usa el workflow de verificación de configs.
	VerifyConnectivity(ctx context.Context, p Params) error
}
