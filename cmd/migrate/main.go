// migrate aplica las migraciones SQL contra el postgres configurado.
// Por defecto usa las migraciones embebidas en el binario; -dir permite
// apuntar a un directorio externo.
// Uso: migrate [-config path] [-dir path] [up|down] [steps]
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/dropDatabas3/mailrelay/internal/config"
	migrations "github.com/dropDatabas3/mailrelay/migrations/postgres"
)

func main() {
	var (
		configPath = flag.String("config", "", "ruta del yaml de configuración")
		dir        = flag.String("dir", "", "directorio con *_up.sql y *_down.sql (vacío: migraciones embebidas)")
	)
	flag.Parse()

	_ = godotenv.Load(".env")

	action := "up"
	steps := 0
	args := flag.Args()
	if len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			steps = n
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if cfg.Storage.DSN == "" {
		log.Fatal("storage.dsn vacío (env STORAGE_DSN)")
	}

	var fsys fs.FS = migrations.PostgresFS
	if *dir != "" {
		fsys = os.DirFS(*dir)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	switch action {
	case "up":
		files, err := listSQL(fsys, "_up.sql")
		if err != nil {
			log.Fatalf("list up: %v", err)
		}
		sort.Strings(files)
		if steps > 0 && steps < len(files) {
			files = files[:steps]
		}
		apply(ctx, pool, fsys, files)

	case "down":
		files, err := listSQL(fsys, "_down.sql")
		if err != nil {
			log.Fatalf("list down: %v", err)
		}
		sort.Strings(files)
		reverseInPlace(files)
		if steps > 0 && steps < len(files) {
			files = files[:steps]
		}
		apply(ctx, pool, fsys, files)

	default:
		log.Fatalf("acción desconocida %q. Uso: up | down [steps]", action)
	}
}

func apply(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, files []string) {
	if len(files) == 0 {
		log.Println("nada para aplicar")
		return
	}
	log.Printf("aplicando %d migración(es)...", len(files))
	for _, f := range files {
		if err := execSQLFile(ctx, pool, fsys, f); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}
	}
	log.Println("listo")
}

func listSQL(fsys fs.FS, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func reverseInPlace(ss []string) {
	for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
		ss[i], ss[j] = ss[j], ss[i]
	}
}

func execSQLFile(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, name string) error {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	start := time.Now()
	if _, err := pool.Exec(ctx, string(b)); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	log.Printf("OK %s (%s)", name, time.Since(start).Truncate(time.Millisecond))
	return nil
}
