// Package config carga y valida la configuración del proceso.
// Se lee una sola vez al arranque (YAML + overrides por env) y se inyecta
// explícitamente en los componentes; el core nunca lee env vars ad hoc.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	// SMTP global: fallback cuando la empresa no tiene config activa.
	SMTP struct {
		Host     string        `yaml:"host"`
		Port     int           `yaml:"port"`
		Secure   bool          `yaml:"secure"` // true: TLS-on-connect; false: STARTTLS
		User     string        `yaml:"user"`
		Password string        `yaml:"password"`
		FromName string        `yaml:"from_name"`
		From     string        `yaml:"from"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"smtp"`

	Security struct {
		// Clave simétrica para cifrar passwords SMTP en reposo.
		// Se trunca/paddea a 32 bytes (AES-256).
		EncryptionKey string `yaml:"encryption_key"`
	} `yaml:"security"`

	Queue struct {
		// memory | redis
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Workers       int           `yaml:"workers"`
		MaxAttempts   int           `yaml:"max_attempts"`
		BackoffBase   time.Duration `yaml:"backoff_base"`
		KeepCompleted int           `yaml:"keep_completed"`
		KeepFailed    int           `yaml:"keep_failed"`
	} `yaml:"queue"`

	Resolver struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"resolver"`

	Auth struct {
		// Secreto HMAC del JWT emitido por la plataforma (colaborador externo);
		// acá solo se valida para extraer companyId.
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
}

func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.Timeout == 0 {
		c.SMTP.Timeout = 10 * time.Second
	}
	if c.Queue.Backend == "" {
		c.Queue.Backend = "memory"
	}
	if c.Queue.Redis.Addr == "" {
		c.Queue.Redis.Addr = "localhost:6379"
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.MaxAttempts == 0 {
		c.Queue.MaxAttempts = 3
	}
	if c.Queue.BackoffBase == 0 {
		c.Queue.BackoffBase = 2000 * time.Millisecond
	}
	if c.Queue.KeepCompleted == 0 {
		c.Queue.KeepCompleted = 100
	}
	if c.Queue.KeepFailed == 0 {
		c.Queue.KeepFailed = 50
	}
	if c.Resolver.CacheTTL == 0 {
		c.Resolver.CacheTTL = 2 * time.Minute
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyEnvOverrides pisa valores del YAML con env vars (útil en containers).
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}

	if v, ok := getEnvStr("MAIL_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("MAIL_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvBool("MAIL_SECURE"); ok {
		c.SMTP.Secure = v
	}
	if v, ok := getEnvStr("MAIL_USER"); ok {
		c.SMTP.User = v
	}
	if v, ok := getEnvStr("MAIL_PASS"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("MAIL_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("MAIL_FROM_NAME"); ok {
		c.SMTP.FromName = v
	}

	if v, ok := getEnvStr("ENCRYPTION_KEY"); ok {
		c.Security.EncryptionKey = v
	}
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}

	if v, ok := getEnvStr("QUEUE_BACKEND"); ok {
		c.Queue.Backend = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Queue.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Queue.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Queue.Redis.DB = v
	}
	if v, ok := getEnvInt("QUEUE_WORKERS"); ok {
		c.Queue.Workers = v
	}
	if v, ok := getEnvInt("QUEUE_MAX_ATTEMPTS"); ok {
		c.Queue.MaxAttempts = v
	}
	if v, ok := getEnvDur("QUEUE_BACKOFF_BASE"); ok {
		c.Queue.BackoffBase = v
	}
	if v, ok := getEnvInt("QUEUE_KEEP_COMPLETED"); ok {
		c.Queue.KeepCompleted = v
	}
	if v, ok := getEnvInt("QUEUE_KEEP_FAILED"); ok {
		c.Queue.KeepFailed = v
	}
}

// Validate chequea la coherencia mínima para arrancar.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Security.EncryptionKey) == "" {
		return fmt.Errorf("config: security.encryption_key es requerida (env ENCRYPTION_KEY)")
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("config: storage.dsn es requerido con driver postgres")
		}
	default:
		return fmt.Errorf("config: storage.driver desconocido: %q", c.Storage.Driver)
	}
	switch c.Queue.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: queue.backend desconocido: %q", c.Queue.Backend)
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("config: queue.max_attempts debe ser >= 1")
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("config: smtp.port fuera de rango: %d", c.SMTP.Port)
	}
	return nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
		// también aceptar milisegundos crudos (compat con la config vieja)
		if ms, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return time.Duration(ms) * time.Millisecond, true
		}
	}
	return 0, false
}
