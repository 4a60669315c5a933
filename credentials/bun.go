package credentials

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var _ Store = (*BunStore)(nil)

// CredentialModel is the Bun model backing BunStore.
type CredentialModel struct {
	bun.BaseModel `bun:"table:credentials,alias:cred"`

	Key       string    `bun:"credential_key,pk"`
	Value     string    `bun:"credential_value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// BunStore persists credentials in a SQL table through Bun.
type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

// NewBunStore creates a store on top of an open Bun database.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db, now: time.Now}
}

// OpenSQLite opens a SQLite database through sqliteshim, which picks the cgo
// or pure Go driver depending on the build.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers anyway, a single connection also keeps
	// in-memory databases alive across queries.
	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Migrate creates the credentials table if needed.
func (s *BunStore) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*CredentialModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *BunStore) Get(ctx context.Context, key string) (string, error) {
	var model CredentialModel
	err := s.db.NewSelect().
		Model(&model).
		Where("credential_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return model.Value, nil
}

func (s *BunStore) Set(ctx context.Context, key, value string) error {
	model := &CredentialModel{
		Key:       key,
		Value:     value,
		UpdatedAt: s.now().UTC(),
	}

	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (credential_key) DO UPDATE").
		Set("credential_value = EXCLUDED.credential_value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *BunStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*CredentialModel)(nil)).
		Where("credential_key = ?", key).
		Exec(ctx)
	return err
}

func (s *BunStore) RemoveIf(ctx context.Context, key, expected string) (bool, error) {
	if expected == "" {
		return false, nil
	}

	res, err := s.db.NewDelete().
		Model((*CredentialModel)(nil)).
		Where("credential_key = ?", key).
		Where("credential_value = ?", expected).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
