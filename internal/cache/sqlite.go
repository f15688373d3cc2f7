package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/retypeset/internal/common"
	"github.com/joseph-ayodele/retypeset/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	fingerprint BLOB PRIMARY KEY,
	content     BLOB NOT NULL,
	created_at  TEXT NOT NULL
);`

// SQLiteStore is the default durable store: a single-file database so a
// batch run survives process restart without any external service.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the cache database at path.
// An unopenable backing store is a configuration-time error.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	logger.Info("cache.sqlite.opened", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, fp entity.Fingerprint) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM cache_entries WHERE fingerprint = ?`, fp[:]).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache select: %w", err)
	}
	return blob, nil
}

// Put overwrites the whole row transactionally, so readers never observe a
// partially written entry.
func (s *SQLiteStore) Put(ctx context.Context, fp entity.Fingerprint, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (fingerprint, content, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			content = excluded.content,
			created_at = excluded.created_at`,
		fp[:], blob, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("cache upsert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Contains(ctx context.Context, fp entity.Fingerprint) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM cache_entries WHERE fingerprint = ?`, fp[:]).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache exists: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]EntryMeta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, length(content), created_at FROM cache_entries ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("cache.sqlite.rows_close_error", "error", err)
		}
	}()

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

func (s *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
