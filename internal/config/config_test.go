package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "clave-de-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Storage.Driver != "memory" || cfg.Queue.Backend != "memory" {
		t.Fatalf("drivers por defecto: %s/%s", cfg.Storage.Driver, cfg.Queue.Backend)
	}
	if cfg.SMTP.Port != 587 || cfg.SMTP.Timeout != 10*time.Second {
		t.Fatalf("smtp por defecto: %+v", cfg.SMTP)
	}
	if cfg.Queue.MaxAttempts != 3 || cfg.Queue.BackoffBase != 2000*time.Millisecond {
		t.Fatalf("retry por defecto: %+v", cfg.Queue)
	}
	if cfg.Queue.KeepCompleted != 100 || cfg.Queue.KeepFailed != 50 {
		t.Fatalf("retención por defecto: %+v", cfg.Queue)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "clave-de-test")
	t.Setenv("MAIL_HOST", "smtp.env.test")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "5")
	t.Setenv("QUEUE_BACKOFF_BASE", "3000") // ms crudos

	p := writeYAML(t, `
server:
  addr: ":9090"
smtp:
  host: smtp.yaml.test
  port: 2525
queue:
  backend: memory
  workers: 8
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	// env pisa yaml
	if cfg.SMTP.Host != "smtp.env.test" {
		t.Fatalf("host = %q", cfg.SMTP.Host)
	}
	if cfg.SMTP.Port != 2525 || cfg.Queue.Workers != 8 {
		t.Fatalf("yaml no aplicado: %+v", cfg)
	}
	if cfg.Queue.MaxAttempts != 5 {
		t.Fatalf("max attempts = %d", cfg.Queue.MaxAttempts)
	}
	if cfg.Queue.BackoffBase != 3*time.Second {
		t.Fatalf("backoff = %v", cfg.Queue.BackoffBase)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	if _, err := Load(""); err == nil {
		t.Fatal("sin encryption key tiene que fallar")
	}

	t.Setenv("ENCRYPTION_KEY", "clave")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("STORAGE_DSN", "")
	if _, err := Load(""); err == nil {
		t.Fatal("postgres sin dsn tiene que fallar")
	}

	t.Setenv("STORAGE_DRIVER", "cassandra")
	if _, err := Load(""); err == nil {
		t.Fatal("driver desconocido tiene que fallar")
	}
}
