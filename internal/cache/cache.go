// Package cache persists extraction results keyed by fingerprint.
//
// The cache is correctness-sensitive in one direction only: a missing or
// unreadable entry is always safe (the page is recomputed), a wrong entry is
// not. Stores therefore never partially update a row, and every decode
// failure on read degrades to a miss.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/joseph-ayodele/retypeset/internal/common"
	"github.com/joseph-ayodele/retypeset/internal/entity"
)

// Store is a durable fingerprint -> blob mapping. Get returns
// common.ErrNotFound for absent keys. Put is an idempotent whole-value
// overwrite; the pipeline's determinism guarantees concurrent writers for
// the same fingerprint carry identical bytes.
type Store interface {
	Get(ctx context.Context, fp entity.Fingerprint) ([]byte, error)
	Put(ctx context.Context, fp entity.Fingerprint, blob []byte) error
	Contains(ctx context.Context, fp entity.Fingerprint) (bool, error)
	Close() error
}

// EntryMeta describes one stored entry for admin listings.
type EntryMeta struct {
	Fingerprint entity.Fingerprint
	Size        int
	CreatedAt   string
}

// AdminStore is the optional admin surface of a Store.
type AdminStore interface {
	List(ctx context.Context) ([]EntryMeta, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// ResultCache wraps a Store with the content codec and the
// at-most-one-computation-per-fingerprint guarantee.
type ResultCache struct {
	store  Store
	logger *slog.Logger
	group  singleflight.Group
}

func New(store Store, logger *slog.Logger) *ResultCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultCache{store: store, logger: logger}
}

// Get looks up a fingerprint. Store errors and corrupt entries are logged
// and reported as misses, never as failures.
func (c *ResultCache) Get(ctx context.Context, fp entity.Fingerprint) (*entity.ExtractedContent, bool) {
	blob, err := c.store.Get(ctx, fp)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			c.logger.Warn("cache.get.error", "fingerprint", fp.Hex(), "error", err)
		}
		return nil, false
	}
	content, err := Decode(blob)
	if err != nil {
		c.logger.Warn("cache.get.corrupt_entry", "fingerprint", fp.Hex(), "error", err)
		return nil, false
	}
	return content, true
}

// Contains reports whether the fingerprint has a stored entry.
func (c *ResultCache) Contains(ctx context.Context, fp entity.Fingerprint) bool {
	ok, err := c.store.Contains(ctx, fp)
	if err != nil {
		c.logger.Warn("cache.contains.error", "fingerprint", fp.Hex(), "error", err)
		return false
	}
	return ok
}

// Put stores content under its fingerprint, overwriting wholesale.
func (c *ResultCache) Put(ctx context.Context, fp entity.Fingerprint, content *entity.ExtractedContent) error {
	blob, err := Encode(content)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", common.ErrCacheIO, err)
	}
	if err := c.store.Put(ctx, fp, blob); err != nil {
		return fmt.Errorf("%w: put: %v", common.ErrCacheIO, err)
	}
	return nil
}

// GetOrCompute returns the cached content for fp, or runs compute exactly
// once per in-flight fingerprint and stores the result. The returned bool
// reports whether the content came from the cache. A store write failure
// after a successful compute is a warning, not an error: the content was
// already derived and the next run simply recomputes it.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	fp entity.Fingerprint,
	compute func(ctx context.Context) (*entity.ExtractedContent, error),
) (*entity.ExtractedContent, bool, error) {
	type result struct {
		content *entity.ExtractedContent
		cached  bool
	}

	v, err, _ := c.group.Do(fp.Hex(), func() (any, error) {
		if content, ok := c.Get(ctx, fp); ok {
			return result{content: content, cached: true}, nil
		}
		content, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Put(ctx, fp, content); err != nil {
			c.logger.Warn("cache.put.failed", "fingerprint", fp.Hex(), "error", err)
		}
		return result{content: content, cached: false}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(result)
	return r.content, r.cached, nil
}
