package sqlite

import (
	"context"
	"database/sql"

	"github.com/clearmind-health/identity/internal/identity/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // nothing to close; outer DB stays open

// Ping is a no-op for transactions. The connection is already established
// when the transaction is created.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users                       { return &usersRepo{db: t.tx} }
func (t *txStore) ProviderMappings() store.ProviderMappings { return &providerMappingsRepo{db: t.tx} }
func (t *txStore) LocalPrincipals() store.LocalPrincipals   { return &localPrincipalsRepo{db: t.tx} }
func (t *txStore) RefreshTokens() store.RefreshTokens       { return &refreshTokensRepo{db: t.tx} }
func (t *txStore) Lockouts() store.Lockouts                 { return &lockoutsRepo{db: t.tx} }
func (t *txStore) MFA() store.MFA                           { return &mfaRepo{db: t.tx} }
func (t *txStore) BackupCodes() store.BackupCodes           { return &backupCodesRepo{db: t.tx} }
func (t *txStore) Sessions() store.Sessions                 { return &sessionsRepo{db: t.tx} }
func (t *txStore) Devices() store.Devices                   { return &devicesRepo{db: t.tx} }
func (t *txStore) Roles() store.Roles                       { return &rolesRepo{db: t.tx} }
func (t *txStore) Audit() store.Audit                       { return &auditRepo{db: t.tx} }
func (t *txStore) Compliance() store.Compliance             { return &complianceRepo{db: t.tx} }

func (t *txStore) ApplyMigrations() error { return nil } // no-op; migrations run before any tx starts
