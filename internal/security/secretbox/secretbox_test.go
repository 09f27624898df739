package secretbox

import (
	"errors"
	"strings"
	"testing"

	"github.com/dropDatabas3/mailrelay/internal/domain"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()
	c, err := New("una-clave-de-32-caracteres-justa")
	if err != nil {
		t.Fatalf("New err: %v", err)
	}

	for _, msg := range []string{"hola mundo ✓ — secreto", "", "x", strings.Repeat("p", 100)} {
		ct, err := c.Encrypt(msg)
		if err != nil {
			t.Fatalf("Encrypt(%q) err: %v", msg, err)
		}
		pt, err := c.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt err: %v", err)
		}
		if pt != msg {
			t.Fatalf("plaintext mismatch: got %q want %q", pt, msg)
		}
	}
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	t.Parallel()
	c, _ := New("clave-corta") // se paddea a 32 bytes

	a, err := c.Encrypt("mismo plaintext")
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Encrypt("mismo plaintext")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("dos cifrados iguales: el IV no es aleatorio")
	}
	// ambos deben descifrar igual
	for _, tok := range []string{a, b} {
		if pt, err := c.Decrypt(tok); err != nil || pt != "mismo plaintext" {
			t.Fatalf("Decrypt(%q) = %q, %v", tok, pt, err)
		}
	}
}

func TestDecrypt_MalformedToken(t *testing.T) {
	t.Parallel()
	c, _ := New("una-clave-de-32-caracteres-justa")

	cases := []string{
		"",
		"sin-separador",
		"a:b:c",
		"zzzz:deadbeef",                      // iv no-hex
		"00112233445566778899aabbccddeeff:zz", // ct no-hex
		"0011:deadbeef",                      // iv corto
	}
	for _, tok := range cases {
		_, err := c.Decrypt(tok)
		if err == nil {
			t.Fatalf("Decrypt(%q): esperaba error", tok)
		}
		var de *domain.DecryptionError
		if !errors.As(err, &de) {
			t.Fatalf("Decrypt(%q): esperaba DecryptionError, got %T: %v", tok, err, err)
		}
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	t.Parallel()
	a, _ := New("clave-numero-uno")
	b, _ := New("clave-numero-dos")

	ct, err := a.Encrypt("top secret")
	if err != nil {
		t.Fatal(err)
	}
	// Con otra clave el padding casi siempre no cierra; si llegara a cerrar,
	// el plaintext no puede coincidir.
	if pt, err := b.Decrypt(ct); err == nil && pt == "top secret" {
		t.Fatalf("descifrado con clave incorrecta")
	}
}
