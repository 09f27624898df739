// Package secretbox cifra y descifra los passwords SMTP en reposo.
//
// Formato del token: hex(iv) + ":" + hex(ciphertext), AES-256-CBC con IV
// aleatorio de 16 bytes por llamada. Dos cifrados del mismo plaintext
// producen tokens distintos; el IV viaja en el token, nunca es fijo.
package secretbox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/dropDatabas3/mailrelay/internal/domain"
)

const (
	keyLength = 32 // AES-256
	ivLength  = aes.BlockSize
	sep       = ":"
)

// Codec es el cifrador simétrico. Se construye una vez con la clave del
// proceso y se inyecta donde haga falta; no lee env vars.
type Codec struct {
	key []byte
}

// New deriva la clave de trabajo desde el secreto configurado:
// se trunca a 32 bytes si sobra, se paddea con ceros si falta.
func New(secret string) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("secretbox: clave vacía")
	}
	key := make([]byte, keyLength)
	copy(key, []byte(secret))
	return &Codec{key: key}, nil
}

// Encrypt cifra plainText y devuelve hex(iv):hex(ciphertext).
// Nunca loguea el plaintext ni la clave.
func (c *Codec) Encrypt(plainText string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("secretbox: aes.NewCipher: %w", err)
	}

	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("secretbox: iv random: %w", err)
	}

	padded := pkcs7Pad([]byte(plainText), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return hex.EncodeToString(iv) + sep + hex.EncodeToString(ct), nil
}

// Decrypt recibe hex(iv):hex(ciphertext) y devuelve el texto plano.
// Token malformado o padding que no cierra => domain.DecryptionError.
func (c *Codec) Decrypt(token string) (string, error) {
	parts := strings.Split(token, sep)
	if len(parts) != 2 {
		return "", &domain.DecryptionError{Reason: "formato inválido: esperado hex(iv):hex(ciphertext)"}
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivLength {
		return "", &domain.DecryptionError{Reason: "iv inválido"}
	}
	ct, err := hex.DecodeString(parts[1])
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", &domain.DecryptionError{Reason: "ciphertext inválido"}
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("secretbox: aes.NewCipher: %w", err)
	}

	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	unpadded, err := pkcs7Unpad(pt, aes.BlockSize)
	if err != nil {
		return "", &domain.DecryptionError{Reason: "padding inválido"}
	}
	return string(unpadded), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("longitud inválida")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, fmt.Errorf("padding fuera de rango")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("padding inconsistente")
		}
	}
	return b[:len(b)-n], nil
}
