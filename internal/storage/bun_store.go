package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/smilemakc/retecore/internal/errs"
)

// kvModel backs Store.Put/Get/Delete: a flat key/value table.
type kvModel struct {
	bun.BaseModel `bun:"table:retecore_kv,alias:kv"`

	Key   string `bun:"key,pk"`
	Value []byte `bun:"value,type:bytea,notnull"`
}

// checkpointModel backs Store.Checkpoint/Restore/ListCheckpoints/
// CleanupExpired.
type checkpointModel struct {
	bun.BaseModel `bun:"table:retecore_checkpoints,alias:cp"`

	Name      string    `bun:"name,pk"`
	Value     []byte    `bun:"value,type:bytea,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	ExpiresAt time.Time `bun:"expires_at,nullzero"`
}

// BunStore is a Postgres-backed Store (spec §6 state store), grounded
// on the teacher's bun_store.go (sql.OpenDB + pgdriver + pgdialect).
type BunStore struct {
	db *bun.DB
}

// NewBunStore opens a Postgres connection pool for dsn via bun/pgdriver.
func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return &BunStore{db: bun.NewDB(sqldb, pgdialect.New())}
}

// InitSchema creates the store's tables if they don't already exist.
func (s *BunStore) InitSchema(ctx context.Context) error {
	models := []interface{}{(*kvModel)(nil), (*checkpointModel)(nil)}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return errs.New(errs.CodeInvalidState, "creating storage schema", err)
		}
	}
	return nil
}

func (s *BunStore) Put(ctx context.Context, key string, value []byte) error {
	row := &kvModel{Key: key, Value: value}
	_, err := s.db.NewInsert().Model(row).On("CONFLICT (key) DO UPDATE").Exec(ctx)
	if err != nil {
		return errs.New(errs.CodeInvalidState, "storage put failed", err)
	}
	return nil
}

func (s *BunStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := new(kvModel)
	err := s.db.NewSelect().Model(row).Where("key = ?", key).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.CodeInvalidState, "storage get failed", err)
	}
	return row.Value, true, nil
}

func (s *BunStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().Model((*kvModel)(nil)).Where("key = ?", key).Exec(ctx)
	if err != nil {
		return errs.New(errs.CodeInvalidState, "storage delete failed", err)
	}
	return nil
}

func (s *BunStore) Checkpoint(ctx context.Context, name string, value []byte, ttl time.Duration) error {
	row := &checkpointModel{Name: name, Value: value, CreatedAt: time.Now()}
	if ttl > 0 {
		row.ExpiresAt = row.CreatedAt.Add(ttl)
	}
	_, err := s.db.NewInsert().Model(row).On("CONFLICT (name) DO UPDATE").Exec(ctx)
	if err != nil {
		return errs.New(errs.CodeInvalidState, "checkpoint failed", err)
	}
	return nil
}

func (s *BunStore) Restore(ctx context.Context, name string) ([]byte, bool, error) {
	row := new(checkpointModel)
	err := s.db.NewSelect().Model(row).Where("name = ?", name).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.CodeInvalidState, "restore failed", err)
	}
	return row.Value, true, nil
}

func (s *BunStore) ListCheckpoints(ctx context.Context) ([]CheckpointInfo, error) {
	var rows []checkpointModel
	if err := s.db.NewSelect().Model(&rows).Order("created_at DESC").Scan(ctx); err != nil {
		return nil, errs.New(errs.CodeInvalidState, "listing checkpoints failed", err)
	}
	out := make([]CheckpointInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, CheckpointInfo{Name: r.Name, CreatedAt: r.CreatedAt, ExpiresAt: r.ExpiresAt})
	}
	return out, nil
}

func (s *BunStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.NewDelete().
		Model((*checkpointModel)(nil)).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, errs.New(errs.CodeInvalidState, "cleanup expired checkpoints failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.New(errs.CodeInvalidState, "reading cleanup row count failed", err)
	}
	return int(n), nil
}
