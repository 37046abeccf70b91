package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clearmind-health/identity/internal/identity/provider"
	"github.com/clearmind-health/identity/internal/identity/store/drivers/sqlite"
	"github.com/clearmind-health/identity/pkg/jwtx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

func newTestApp(t *testing.T, cfg Config) *Application {
	t.Helper()

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	signer, err := jwtx.NewSigner([]byte("0123456789abcdef0123456789abcdef"), "test-issuer")
	require.NoError(t, err)

	return &Application{
		cfg:    cfg,
		logger: slogx.New(slogx.Config{Service: "identity-service", Level: "error", Format: "text"}),
		db:     db,
		signer: signer,
	}
}

func TestInitProvidersLocalPrimary(t *testing.T) {
	app := newTestApp(t, Config{PrimaryProvider: "local"})
	require.NoError(t, app.initProviders())
	require.Equal(t, provider.TypeLocal, app.resolver.PrimaryType())
}

func TestInitProvidersUserPoolPrimary(t *testing.T) {
	app := newTestApp(t, Config{
		PrimaryProvider: "userpool",
		PoolEndpoint:    "https://pool.example.com",
	})
	require.NoError(t, app.initProviders())
	require.Equal(t, provider.TypeUserPool, app.resolver.PrimaryType())
}

func TestInitProvidersRejectsUnknownPrimary(t *testing.T) {
	app := newTestApp(t, Config{PrimaryProvider: "cognito"})
	err := app.initProviders()
	require.ErrorContains(t, err, "not a configured provider")
	require.Nil(t, app.resolver)
}

func TestInitProvidersRejectsUserPoolWithoutEndpoint(t *testing.T) {
	app := newTestApp(t, Config{PrimaryProvider: "userpool"})
	err := app.initProviders()
	require.ErrorContains(t, err, "USERPOOL_ENDPOINT")
}
