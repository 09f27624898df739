// mailrelay-cli es el cliente de administración: pega contra la API HTTP
// del servicio con un JWT de plataforma.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	var v any
	if json.Unmarshal(body, &v) == nil {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(p))
		return
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	c := &client{HTTP: &http.Client{Timeout: 30 * time.Second}}

	root := &cobra.Command{
		Use:           "mailrelay-cli",
		Short:         "Cliente admin del servicio de despacho de emails",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.BaseURL, "base-url", envOr("MAILRELAY_URL", "http://localhost:8080"), "URL base del servicio")
	root.PersistentFlags().StringVar(&c.Token, "token", os.Getenv("MAILRELAY_TOKEN"), "JWT de plataforma")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Ocupación de la cola {waiting, active, completed, failed}",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := c.do(http.MethodGet, "/email-queue/stats", nil)
			if err != nil {
				return err
			}
			c.print(status, body)
			return nil
		},
	}

	var graceSeconds int
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Borra jobs terminados hace más de --grace-seconds",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]int{"graceSeconds": graceSeconds})
			status, out, err := c.do(http.MethodPost, "/email-queue/purge", body)
			if err != nil {
				return err
			}
			c.print(status, out)
			return nil
		},
	}
	purge.Flags().IntVar(&graceSeconds, "grace-seconds", 3600, "antigüedad mínima a borrar")

	var to, subject, html, text, templateID, delayUnit string
	var delay int
	send := &cobra.Command{
		Use:   "send",
		Short: "Encola un envío de prueba",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]any{
				"to":         to,
				"subject":    subject,
				"html":       html,
				"text":       text,
				"templateId": templateID,
				"delay":      delay,
				"delayUnit":  delayUnit,
			})
			status, out, err := c.do(http.MethodPost, "/email/send", body)
			if err != nil {
				return err
			}
			c.print(status, out)
			return nil
		},
	}
	send.Flags().StringVar(&to, "to", "", "destinatario")
	send.Flags().StringVar(&subject, "subject", "", "subject")
	send.Flags().StringVar(&html, "html", "", "cuerpo html")
	send.Flags().StringVar(&text, "text", "", "cuerpo texto plano")
	send.Flags().StringVar(&templateID, "template-id", "", "id de template (audit)")
	send.Flags().IntVar(&delay, "delay", 0, "valor de delay")
	send.Flags().StringVar(&delayUnit, "delay-unit", "immediate", "immediate|seconds|minutes|hours|days")
	_ = send.MarkFlagRequired("to")
	_ = send.MarkFlagRequired("subject")

	configs := &cobra.Command{
		Use:   "configs",
		Short: "Lista las configs SMTP de la empresa del token",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := c.do(http.MethodGet, "/email-configs", nil)
			if err != nil {
				return err
			}
			c.print(status, body)
			return nil
		},
	}

	root.AddCommand(stats, purge, send, configs)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
