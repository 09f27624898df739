// enc cifra un password SMTP con la clave maestra del servicio, para
// cargar configs a mano o verificar tokens existentes.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	sec "github.com/dropDatabas3/mailrelay/internal/security/secretbox"
)

func main() {
	_ = godotenv.Load(".env")
	key := os.Getenv("ENCRYPTION_KEY")
	if key == "" {
		log.Fatal("ENCRYPTION_KEY not set")
	}
	if len(os.Args) < 2 {
		log.Fatal("usage: enc <plaintext>")
	}
	codec, err := sec.New(key)
	if err != nil {
		log.Fatalf("secretbox: %v", err)
	}
	token, err := codec.Encrypt(os.Args[1])
	if err != nil {
		log.Fatalf("encrypt: %v", err)
	}
	fmt.Println(token)
}
