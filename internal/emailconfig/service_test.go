package emailconfig

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mailrelay/internal/domain"
	mailx "github.com/dropDatabas3/mailrelay/internal/mail"
	"github.com/dropDatabas3/mailrelay/internal/security/secretbox"
	"github.com/dropDatabas3/mailrelay/internal/store"
)

// stubTransport cumple mail.Transport con comportamiento configurable.
type stubTransport struct {
	mu         sync.Mutex
	verifyErr  error
	deliverErr error
	delivered  []mailx.Message
}

func (s *stubTransport) Deliver(ctx context.Context, p mailx.Params, msg mailx.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliverErr != nil {
		return "", s.deliverErr
	}
	s.delivered = append(s.delivered, msg)
	return "<stub@localhost>", nil
}

func (s *stubTransport) VerifyConnectivity(ctx context.Context, p mailx.Params) error {
	return s.verifyErr
}

func newTestService(t *testing.T) (*Service, *store.Memory, *stubTransport) {
	t.Helper()
	st := store.NewMemory()
	codec, err := secretbox.New("clave-de-test")
	require.NoError(t, err)
	tr := &stubTransport{}
	svc := &Service{Store: st, Codec: codec, Transport: tr}
	return svc, st, tr
}

func validCreate() CreateInput {
	return CreateInput{
		SMTPHost:     "smtp.acme.test",
		SMTPPort:     465,
		SMTPUser:     "acme",
		SMTPPassword: "secreto",
		FromName:     "Acme",
		FromEmail:    "no-reply@acme.test",
	}
}

func TestCreateFirstConfigAutoActivates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)
	require.True(t, cfg.IsActive, "la primera config sin isActive explícito se activa sola")
	require.True(t, cfg.SMTPSecure, "secure defaultea a TLS-on-connect")
	require.Equal(t, "no-reply@acme.test", cfg.ReplyTo, "replyTo vacío cae a fromEmail")
	require.NotEqual(t, "secreto", cfg.SMTPPassword, "la password nunca se guarda en claro")

	plain, err := svc.Codec.Decrypt(cfg.SMTPPassword)
	require.NoError(t, err)
	require.Equal(t, "secreto", plain)
}

func TestCreateSecondDefaultStaysInactive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)

	second, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)
	require.False(t, second.IsActive, "con una activa existente, isActive ausente no activa")

	active, err := svc.Active(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, first.ID, active.ID)
}

func TestCreateExplicitActiveFlipsSibling(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)

	in := validCreate()
	yes := true
	in.IsActive = &yes
	second, err := svc.Create(ctx, "acme", in)
	require.NoError(t, err)
	require.True(t, second.IsActive)

	// la primera quedó desactivada; nunca hay dos activas
	got, err := st.GetConfig(ctx, "acme", first.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	list, err := svc.List(ctx, "acme")
	require.NoError(t, err)
	var actives int
	for _, c := range list {
		if c.IsActive {
			actives++
		}
	}
	require.Equal(t, 1, actives)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"host vacío", func(in *CreateInput) { in.SMTPHost = " " }, "smtpHost"},
		{"puerto cero", func(in *CreateInput) { in.SMTPPort = 0 }, "smtpPort"},
		{"puerto fuera de rango", func(in *CreateInput) { in.SMTPPort = 70000 }, "smtpPort"},
		{"sin user", func(in *CreateInput) { in.SMTPUser = "" }, "smtpUser"},
		{"sin password", func(in *CreateInput) { in.SMTPPassword = "" }, "smtpPassword"},
		{"sin fromName", func(in *CreateInput) { in.FromName = "" }, "fromName"},
		{"fromEmail inválido", func(in *CreateInput) { in.FromEmail = "no-es-email" }, "fromEmail"},
		{"replyTo inválido", func(in *CreateInput) { in.ReplyTo = "tampoco" }, "replyTo"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validCreate()
			tc.mutate(&in)
			_, err := svc.Create(ctx, "acme", in)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestUpdatePartialAndReencrypt(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)
	originalToken := cfg.SMTPPassword

	host := "smtp2.acme.test"
	updated, err := svc.Update(ctx, "acme", cfg.ID, UpdateInput{SMTPHost: &host})
	require.NoError(t, err)
	require.Equal(t, "smtp2.acme.test", updated.SMTPHost)
	require.Equal(t, originalToken, updated.SMTPPassword, "sin password nueva el token no cambia")

	newPass := "otro-secreto"
	updated, err = svc.Update(ctx, "acme", cfg.ID, UpdateInput{SMTPPassword: &newPass})
	require.NoError(t, err)
	require.NotEqual(t, originalToken, updated.SMTPPassword)
	plain, err := svc.Codec.Decrypt(updated.SMTPPassword)
	require.NoError(t, err)
	require.Equal(t, "otro-secreto", plain)

	// password vacía explícita = sin cambio, no "borrar la password"
	empty := ""
	updated, err = svc.Update(ctx, "acme", cfg.ID, UpdateInput{SMTPPassword: &empty})
	require.NoError(t, err)
	plain, err = svc.Codec.Decrypt(updated.SMTPPassword)
	require.NoError(t, err)
	require.Equal(t, "otro-secreto", plain)
}

func TestUpdateActivationAndDeactivation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)
	second, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)

	yes := true
	updated, err := svc.Update(ctx, "acme", second.ID, UpdateInput{IsActive: &yes})
	require.NoError(t, err)
	require.True(t, updated.IsActive)

	active, err := svc.Active(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)

	// desactivar sin activar otra deja cero activas: estado válido (fallback)
	no := false
	_, err = svc.Update(ctx, "acme", second.ID, UpdateInput{IsActive: &no})
	require.NoError(t, err)

	active, err = svc.Active(ctx, "acme")
	require.NoError(t, err)
	require.Nil(t, active)
	_ = first
}

func TestUpdateScopedToCompany(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)

	host := "pirata.test"
	_, err = svc.Update(ctx, "otra", cfg.ID, UpdateInput{SMTPHost: &host})
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)

	err = svc.Delete(ctx, "otra", cfg.ID)
	require.ErrorAs(t, err, &nf)
}

func TestConcurrentActivationKeepsSingleActive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		cfg, err := svc.Create(ctx, "acme", validCreate())
		require.NoError(t, err)
		ids = append(ids, cfg.ID)
	}

	yes := true
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = svc.Update(ctx, "acme", ids[i%len(ids)], UpdateInput{IsActive: &yes})
		}(i)
	}
	wg.Wait()

	list, err := svc.List(ctx, "acme")
	require.NoError(t, err)
	actives := 0
	for _, c := range list {
		if c.IsActive {
			actives++
		}
	}
	require.Equal(t, 1, actives)
}

// gatedStore frena el UpdateConfig de una fila puntual entre el GetConfig
// del service y su persistencia, para poder meter otra operación en la
// ventana del read-modify-write.
type gatedStore struct {
	*store.Memory
	gateID  string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) UpdateConfig(ctx context.Context, cfg *domain.EmailConfig) error {
	if cfg.ID == g.gateID {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return g.Memory.UpdateConfig(ctx, cfg)
}

func TestUpdateInterleavedWithActivationKeepsSingleActive(t *testing.T) {
	st := store.NewMemory()
	codec, err := secretbox.New("clave-de-test")
	require.NoError(t, err)
	gs := &gatedStore{Memory: st, entered: make(chan struct{}), release: make(chan struct{})}
	svc := &Service{Store: gs, Codec: codec, Transport: &stubTransport{}}
	ctx := context.Background()

	x, err := svc.Create(ctx, "acme", validCreate()) // queda activa
	require.NoError(t, err)
	y, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)
	gs.gateID = x.ID

	// update de X que no toca isActive, frenado a mitad de camino
	done := make(chan error, 1)
	go func() {
		host := "smtp2.acme.test"
		_, err := svc.Update(ctx, "acme", x.ID, UpdateInput{SMTPHost: &host})
		done <- err
	}()
	<-gs.entered

	// en la ventana, Y se activa (y desactiva a X)
	yes := true
	_, err = svc.Update(ctx, "acme", y.ID, UpdateInput{IsActive: &yes})
	require.NoError(t, err)

	close(gs.release)
	require.NoError(t, <-done)

	// el snapshot viejo de X no puede resucitar su flag: sigue habiendo
	// exactamente una activa, y es Y
	list, err := svc.List(ctx, "acme")
	require.NoError(t, err)
	actives := 0
	for _, c := range list {
		if c.IsActive {
			actives++
		}
	}
	require.Equal(t, 1, actives)

	active, err := svc.Active(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, y.ID, active.ID)

	gotX, err := st.GetConfig(ctx, "acme", x.ID)
	require.NoError(t, err)
	require.False(t, gotX.IsActive)
	require.Equal(t, "smtp2.acme.test", gotX.SMTPHost, "el update de campos sí se aplica")
}

func TestListOrdersActiveFirst(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, "acme", validCreate())
		require.NoError(t, err)
	}
	list, err := svc.List(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.True(t, list[0].IsActive, "la activa va primera")
	require.False(t, list[1].IsActive)
	require.False(t, list[2].IsActive)
}
