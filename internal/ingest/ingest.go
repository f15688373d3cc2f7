package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/retypeset/constants"
)

// FileResult is the outcome for one scanned file.
type FileResult struct {
	Path         string
	HashHex      string
	Deduplicated bool
	Err          string
}

// DirStats aggregates one directory scan.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Accepted     uint32
	Deduplicated uint32
	Failed       uint32
}

// Scanner finds ingestible PDFs under a directory and drops content
// duplicates: two files with the same sha256 are the same scan, whatever
// their names.
type Scanner struct {
	logger *slog.Logger
	seen   map[[32]byte]string
}

func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger, seen: make(map[[32]byte]string)}
}

// ScanDirectory walks root, filters by allowed extension, skips hidden
// entries, and hashes each match. A walk error on one entry fails that
// entry, never the scan.
func (s *Scanner) ScanDirectory(ctx context.Context, root string) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if isHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !constants.AllowedExt(constants.NormalizeExt(filepath.Ext(path))) {
			return nil
		}
		stats.Matched++

		sum, err := hashFile(path)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if prev, dup := s.seen[sum]; dup {
			s.logger.Info("ingest.duplicate", "path", path, "same_as", prev)
			results = append(results, FileResult{Path: path, HashHex: hex.EncodeToString(sum[:]), Deduplicated: true})
			stats.Deduplicated++
			return nil
		}
		s.seen[sum] = path
		results = append(results, FileResult{Path: path, HashHex: hex.EncodeToString(sum[:])})
		stats.Accepted++
		return nil
	})
	if err != nil {
		return results, stats, err
	}

	s.logger.Info("ingest.scan.done", "root", root,
		"matched", stats.Matched, "accepted", stats.Accepted,
		"deduplicated", stats.Deduplicated, "failed", stats.Failed)
	return results, stats, nil
}

// Accepted filters a result list down to the paths worth processing.
func Accepted(results []FileResult) []string {
	var out []string
	for _, r := range results {
		if r.Err == "" && !r.Deduplicated {
			out = append(out, r.Path)
		}
	}
	return out
}

func hashFile(path string) ([32]byte, error) {
	var sum [32]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
