package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/retypeset/internal/common"
	"github.com/joseph-ayodele/retypeset/internal/entity"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	fingerprint BYTEA PRIMARY KEY,
	content     BYTEA NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PGConfig tunes the shared Postgres cache pool.
type PGConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// PGStore is a Postgres-backed store for batch farms where several hosts
// share one cache. Row-level upserts give the same per-fingerprint write
// serialization as the sqlite store, with no global lock.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres connects the shared cache pool and ensures the schema.
func OpenPostgres(ctx context.Context, cfg PGConfig, logger *slog.Logger) (*PGStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("cache.postgres.connecting", "dsn", cfg.DSN)

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse cache dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "retypeset"

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect cache db: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	logger.Info("cache.postgres.connected")
	return &PGStore{pool: pool, logger: logger}, nil
}

func (s *PGStore) Get(ctx context.Context, fp entity.Fingerprint) ([]byte, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT content FROM cache_entries WHERE fingerprint = $1`, fp[:]).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache select: %w", err)
	}
	return blob, nil
}

func (s *PGStore) Put(ctx context.Context, fp entity.Fingerprint, blob []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cache_entries (fingerprint, content, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (fingerprint) DO UPDATE SET
			content = EXCLUDED.content,
			created_at = EXCLUDED.created_at`,
		fp[:], blob)
	if err != nil {
		return fmt.Errorf("cache upsert: %w", err)
	}
	return nil
}

func (s *PGStore) Contains(ctx context.Context, fp entity.Fingerprint) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM cache_entries WHERE fingerprint = $1)`, fp[:]).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("cache exists: %w", err)
	}
	return exists, nil
}

func (s *PGStore) List(ctx context.Context) ([]EntryMeta, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT fingerprint, length(content), created_at::text FROM cache_entries ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	var out []EntryMeta
	for rows.Next() {
		var (
			key  []byte
			meta EntryMeta
		)
		if err := rows.Scan(&key, &meta.Size, &meta.CreatedAt); err != nil {
			return nil, fmt.Errorf("cache list scan: %w", err)
		}
		copy(meta.Fingerprint[:], key)
		out = append(out, meta)
	}
	return out, rows.Err()
}

func (s *PGStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
