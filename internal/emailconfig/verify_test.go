package emailconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mailrelay/internal/domain"
)

func TestTestSuccessPersistsVerified(t *testing.T) {
	svc, st, tr := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)

	res, err := svc.Test(ctx, "acme", cfg.ID, "inbox@test.local")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "<stub@localhost>", res.MessageID)

	// se entregó el mensaje de diagnóstico con el password descifrado
	require.Len(t, tr.delivered, 1)
	require.Equal(t, "inbox@test.local", tr.delivered[0].To)
	require.Equal(t, testSubject, tr.delivered[0].Subject)

	got, err := st.GetConfig(ctx, "acme", cfg.ID)
	require.NoError(t, err)
	require.True(t, got.IsVerified)
	require.NotNil(t, got.LastTestAt)
	require.Nil(t, got.LastTestError)
}

func TestTestConnectivityFailurePersistsOutcome(t *testing.T) {
	svc, st, tr := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)

	tr.verifyErr = &domain.SmtpError{Phase: domain.PhaseAuth, Detail: "535 credenciales"}
	_, err = svc.Test(ctx, "acme", cfg.ID, "inbox@test.local")
	require.Error(t, err)
	require.Empty(t, tr.delivered, "si la conectividad falla no se intenta entregar")

	got, err := st.GetConfig(ctx, "acme", cfg.ID)
	require.NoError(t, err)
	require.False(t, got.IsVerified)
	require.NotNil(t, got.LastTestAt)
	require.NotNil(t, got.LastTestError)
	require.Contains(t, *got.LastTestError, "535")
}

func TestTestBrokenTokenIsHardFailure(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)

	// romper el token directo en el store: acá NO hay fallback
	raw, err := st.GetConfig(ctx, "acme", cfg.ID)
	require.NoError(t, err)
	raw.SMTPPassword = "token-roto"
	require.NoError(t, st.UpdateConfig(ctx, raw))

	_, err = svc.Test(ctx, "acme", cfg.ID, "inbox@test.local")
	var de *domain.DecryptionError
	require.ErrorAs(t, err, &de)

	got, err := st.GetConfig(ctx, "acme", cfg.ID)
	require.NoError(t, err)
	require.False(t, got.IsVerified)
	require.NotNil(t, got.LastTestError)
}

func TestTestValidatesInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)

	_, err = svc.Test(ctx, "acme", cfg.ID, "no-es-email")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = svc.Test(ctx, "acme", "id-inexistente", "inbox@test.local")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)

	// config de otra empresa = NotFound, no leak
	_, err = svc.Test(ctx, "otra", cfg.ID, "inbox@test.local")
	require.ErrorAs(t, err, &nf)
}

func TestTestFailurePersistEvenIfDeliverFails(t *testing.T) {
	svc, st, tr := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Create(ctx, "acme", validCreate())
	require.NoError(t, err)

	tr.deliverErr = &domain.SmtpError{Phase: domain.PhaseSend, Detail: "550 rechazado"}
	_, err = svc.Test(ctx, "acme", cfg.ID, "inbox@test.local")
	require.Error(t, err)

	got, err := st.GetConfig(ctx, "acme", cfg.ID)
	require.NoError(t, err)
	require.False(t, got.IsVerified)
	require.Contains(t, *got.LastTestError, "550")
}
