package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/mailrelay/internal/domain"
)

func newConfig(companyID string) *domain.EmailConfig {
	return &domain.EmailConfig{
		CompanyID:    companyID,
		SMTPHost:     "smtp.test",
		SMTPPort:     587,
		SMTPUser:     "user",
		SMTPPassword: "token",
		FromName:     "Test",
		FromEmail:    "from@test.local",
	}
}

func TestMemoryConfigScoping(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	cfg := newConfig("acme")
	if err := m.CreateConfig(ctx, cfg); err != nil {
		t.Fatalf("create: %v", err)
	}

	// otra empresa no puede ver la config, ni por id
	if _, err := m.GetConfig(ctx, "otra", cfg.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant get: err = %v, want ErrNotFound", err)
	}
	if err := m.DeleteConfig(ctx, "otra", cfg.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant delete: err = %v, want ErrNotFound", err)
	}
	if err := m.SetActiveExclusive(ctx, "otra", cfg.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant activate: err = %v, want ErrNotFound", err)
	}

	got, err := m.GetConfig(ctx, "acme", cfg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SMTPHost != "smtp.test" {
		t.Fatalf("config inesperada: %+v", got)
	}
}

func TestMemorySetActiveExclusive(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	a := newConfig("acme")
	b := newConfig("acme")
	other := newConfig("otra")
	for _, c := range []*domain.EmailConfig{a, b, other} {
		if err := m.CreateConfig(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := m.SetActiveExclusive(ctx, "otra", other.ID); err != nil {
		t.Fatalf("activate other: %v", err)
	}

	if err := m.SetActiveExclusive(ctx, "acme", a.ID); err != nil {
		t.Fatalf("activate a: %v", err)
	}
	if err := m.SetActiveExclusive(ctx, "acme", b.ID); err != nil {
		t.Fatalf("activate b: %v", err)
	}

	countActive := func(companyID string) int {
		list, err := m.ListConfigs(ctx, companyID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		n := 0
		for _, c := range list {
			if c.IsActive {
				n++
			}
		}
		return n
	}
	if n := countActive("acme"); n != 1 {
		t.Fatalf("activas de acme = %d, want 1", n)
	}
	active, err := m.FindActiveConfig(ctx, "acme")
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if active.ID != b.ID {
		t.Fatal("la última activación tiene que ganar")
	}
	// activar en acme no toca a la otra empresa
	if n := countActive("otra"); n != 1 {
		t.Fatalf("activas de otra = %d, want 1", n)
	}
}

func TestMemorySetActiveExclusiveConcurrent(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		c := newConfig("acme")
		if err := m.CreateConfig(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, c.ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.SetActiveExclusive(ctx, "acme", ids[i%len(ids)])
		}(i)
	}
	wg.Wait()

	list, err := m.ListConfigs(ctx, "acme")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	active := 0
	for _, c := range list {
		if c.IsActive {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("después de activaciones concurrentes hay %d activas, want 1", active)
	}
}

func TestMemoryUpdateConfigPreservesActiveFlag(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	cfg := newConfig("acme")
	if err := m.CreateConfig(ctx, cfg); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.SetActiveExclusive(ctx, "acme", cfg.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	// snapshot viejo con IsActive=false: el update no debe apagar el flag
	stale, err := m.GetConfig(ctx, "acme", cfg.ID)
	if err != nil {
		t.Fatal(err)
	}
	stale.IsActive = false
	stale.SMTPHost = "smtp2.test"
	if err := m.UpdateConfig(ctx, stale); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := m.GetConfig(ctx, "acme", cfg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SMTPHost != "smtp2.test" {
		t.Fatalf("host no actualizado: %s", got.SMTPHost)
	}
	if !got.IsActive {
		t.Fatal("UpdateConfig apagó IsActive; solo SetActiveExclusive/Deactivate lo mueven")
	}

	// y al revés: un snapshot con IsActive=true no reactiva
	if err := m.Deactivate(ctx, "acme", cfg.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	stale.IsActive = true
	if err := m.UpdateConfig(ctx, stale); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = m.GetConfig(ctx, "acme", cfg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Fatal("UpdateConfig reactivó la config desde un snapshot viejo")
	}
}

func TestMemoryDeactivateScoped(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	cfg := newConfig("acme")
	if err := m.CreateConfig(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	if err := m.SetActiveExclusive(ctx, "acme", cfg.ID); err != nil {
		t.Fatal(err)
	}

	if err := m.Deactivate(ctx, "otra", cfg.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant deactivate: err = %v, want ErrNotFound", err)
	}
	if err := m.Deactivate(ctx, "acme", cfg.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := m.FindActiveConfig(ctx, "acme"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("sigue habiendo activa: err = %v", err)
	}
}

func TestMemoryListConfigsOrder(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	older := newConfig("acme")
	if err := m.CreateConfig(ctx, older); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	newer := newConfig("acme")
	if err := m.CreateConfig(ctx, newer); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	newest := newConfig("acme")
	if err := m.CreateConfig(ctx, newest); err != nil {
		t.Fatal(err)
	}
	if err := m.SetActiveExclusive(ctx, "acme", older.ID); err != nil {
		t.Fatal(err)
	}

	list, err := m.ListConfigs(ctx, "acme")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	// activa primero aunque sea la más vieja; el resto por createdAt desc
	if list[0].ID != older.ID || list[1].ID != newest.ID || list[2].ID != newer.ID {
		t.Fatalf("orden inesperado: %s %s %s", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestMemoryLogs(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	l := &domain.EmailLog{
		CompanyID:      "acme",
		RecipientEmail: "dest@test.local",
		Subject:        "hola",
		Status:         domain.EmailPending,
	}
	if err := m.CreateLog(ctx, l); err != nil {
		t.Fatalf("create log: %v", err)
	}
	if err := m.MarkSent(ctx, l.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := m.MarkSent(ctx, "no-existe"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mark sent inexistente: err = %v", err)
	}

	logs, err := m.ListLogs(ctx, "acme", 0)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != domain.EmailSent || logs[0].SentAt == nil {
		t.Fatalf("log inesperado: %+v", logs[0])
	}
}

func TestMemoryListLogsLimitAndOrder(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := m.CreateLog(ctx, &domain.EmailLog{
			CompanyID:      "acme",
			RecipientEmail: "dest@test.local",
			Subject:        fmt.Sprintf("msg-%d", i),
			Status:         domain.EmailPending,
		}); err != nil {
			t.Fatal(err)
		}
	}

	logs, err := m.ListLogs(ctx, "acme", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 3 {
		t.Fatalf("len = %d, want 3", len(logs))
	}
	// más nuevo primero
	if logs[0].Subject != "msg-4" {
		t.Fatalf("primer log = %s, want msg-4", logs[0].Subject)
	}
}
