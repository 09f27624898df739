package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/mailrelay/internal/config"
	"github.com/dropDatabas3/mailrelay/internal/dispatch"
	"github.com/dropDatabas3/mailrelay/internal/emailconfig"
	httpx "github.com/dropDatabas3/mailrelay/internal/http"
	"github.com/dropDatabas3/mailrelay/internal/http/handlers"
	mailx "github.com/dropDatabas3/mailrelay/internal/mail"
	"github.com/dropDatabas3/mailrelay/internal/observability/logger"
	"github.com/dropDatabas3/mailrelay/internal/security/secretbox"
	"github.com/dropDatabas3/mailrelay/internal/store"
	pgstore "github.com/dropDatabas3/mailrelay/internal/store/pg"
)

func main() {
	_ = godotenv.Load(".env")

	cfgPath := flag.String("config", "", "ruta del yaml de configuración (opcional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "mailrelay",
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store: memoria para dev/tests, postgres para producción.
	var st store.Store
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := pgstore.New(ctx, cfg.Storage.DSN)
		if err != nil {
			logger.L().Fatal("postgres store", logger.Err(err))
		}
		defer pg.Close()
		st = pg
	default:
		st = store.NewMemory()
	}

	codec, err := secretbox.New(cfg.Security.EncryptionKey)
	if err != nil {
		logger.L().Fatal("secretbox", logger.Err(err))
	}

	transport := mailx.NewSMTPTransport(cfg.SMTP.Timeout)
	fallback := mailx.Params{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Secure:    cfg.SMTP.Secure,
		User:      cfg.SMTP.User,
		Password:  cfg.SMTP.Password,
		FromName:  cfg.SMTP.FromName,
		FromEmail: cfg.SMTP.From,
		ReplyTo:   cfg.SMTP.From,
	}
	resolver := mailx.NewResolver(st, codec, fallback, cfg.Resolver.CacheTTL)

	proc := &dispatch.Processor{
		Logs:      st,
		Resolver:  resolver,
		Transport: transport,
	}
	opts := dispatch.Options{
		Workers:       cfg.Queue.Workers,
		MaxAttempts:   cfg.Queue.MaxAttempts,
		BackoffBase:   cfg.Queue.BackoffBase,
		KeepCompleted: cfg.Queue.KeepCompleted,
		KeepFailed:    cfg.Queue.KeepFailed,
	}

	var queue dispatch.Queue
	switch cfg.Queue.Backend {
	case "redis":
		rq, err := dispatch.NewRedisQueue(ctx, cfg.Queue.Redis.Addr, cfg.Queue.Redis.Password, cfg.Queue.Redis.DB, proc, opts)
		if err != nil {
			logger.L().Fatal("redis queue", logger.Err(err))
		}
		queue = rq
	default:
		queue = dispatch.NewMemoryQueue(proc, opts)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.L().Warn("queue close", logger.Err(err))
		}
	}()

	svc := &emailconfig.Service{
		Store:     st,
		Codec:     codec,
		Transport: transport,
		Resolver:  resolver,
	}

	metricsHandler, err := httpx.RegisterMetrics(prometheus.DefaultRegisterer, func() (int64, int64, int64, int64, error) {
		s, err := queue.Stats()
		return s.Waiting, s.Active, s.Completed, s.Failed, err
	})
	if err != nil {
		logger.L().Fatal("metrics", logger.Err(err))
	}

	router := httpx.NewRouter(httpx.RouterOptions{
		JWTSecret: cfg.Auth.JWTSecret,
		Metrics:   metricsHandler,
		Ping:      st.Ping,
		Protected: []httpx.Registrar{
			&handlers.EmailConfigHandler{Service: svc},
			&handlers.QueueHandler{Queue: queue},
		},
	})

	logger.L().Info("mailrelay listening",
		logger.String("addr", cfg.Server.Addr),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("queue", cfg.Queue.Backend),
	)
	if err := httpx.Serve(ctx, cfg.Server.Addr, router); err != nil {
		logger.L().Fatal("http server", logger.Err(err))
	}
}
