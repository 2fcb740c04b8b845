// Package advisorydb provides RustSec advisory database synchronization for
// external tools.
//
// The primary type is Synchronizer, which maintains a local git checkout of
// the advisory database and keeps it synchronized with the upstream
// repository. Tools that want to scan the advisories themselves can run a
// Synchronizer and then read the checkout from disk; the on-disk layout is
// the upstream one (crates/<name>/RUSTSEC-*.md).
//
// Thread safety: Synchronizer instances are NOT thread-safe. Concurrent
// executions against the same checkout are serialized through the checkout
// lock, so create separate instances for concurrent operations and expect
// lock timeouts.
package advisorydb

import (
	"context"
	"errors"
	"strings"
	"time"

	internal "github.com/rustsec/cargo-audit-go/internal/advisorydb"
)

// Synchronizer defines the interface for advisory database synchronization.
// It provides a contract for maintaining a local checkout of the RustSec
// advisory database.
type Synchronizer interface {
	// Execute synchronizes the checkout with the upstream database.
	// If no checkout exists on disk, it is cloned. If it exists, the latest
	// advisories are fetched and checked out.
	//
	// Returns an error if synchronization fails or the database is stale.
	Execute(ctx context.Context) error

	// Close releases any resources held by the synchronizer.
	// It should be called when the synchronizer is no longer needed.
	Close(ctx context.Context)
}

// NewFromDatabaseConfig creates a new Synchronizer for external users using a
// database configuration map. This is the recommended constructor for
// external projects integrating with this package.
//
// The dbConfig map may contain the following fields:
//   - "url" (string, optional): advisory database git URL, https:// only.
//     Defaults to the canonical RustSec upstream.
//   - "lock_timeout_seconds" (int, optional): how long Execute waits for the
//     checkout lock held by other processes. Zero fails immediately.
//   - "staleness_days" (int, optional): freshness window for the latest
//     advisory commit. Defaults to 90 days.
//   - "stale" (bool, optional): tolerate checkouts older than the freshness
//     window.
//
// Example usage:
//
//	dbConfig := map[string]any{
//	    "url":                  "https://github.com/RustSec/advisory-db.git",
//	    "lock_timeout_seconds": 300,
//	}
//	syncer, err := advisorydb.NewFromDatabaseConfig("/var/lib/advisory-db", dbConfig)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = syncer.Execute(ctx)
func NewFromDatabaseConfig(path string, dbConfig map[string]any) (Synchronizer, error) {
	if path == "" {
		return nil, errors.New("database config: 'path' is required")
	}

	opts := internal.FetchOptions{Path: path}

	if url, ok := dbConfig["url"].(string); ok && url != "" {
		if !strings.HasPrefix(url, "https://") {
			return nil, errors.New("database config: 'url' must use https")
		}
		opts.URL = url
	}

	if secs, ok := intField(dbConfig, "lock_timeout_seconds"); ok {
		opts.LockTimeout = time.Duration(secs) * time.Second
	}

	if days, ok := intField(dbConfig, "staleness_days"); ok {
		opts.Staleness = time.Duration(days) * 24 * time.Hour
	}

	if stale, ok := dbConfig["stale"].(bool); ok {
		opts.AllowStale = stale
	}

	return &synchronizer{opts: opts}, nil
}

// intField reads an integer that may arrive as an int or, when the config
// map came through JSON unmarshaling, as a float64.
func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

type synchronizer struct {
	opts internal.FetchOptions
}

func (s *synchronizer) Execute(ctx context.Context) error {
	_, err := internal.Fetch(ctx, s.opts)
	return err
}

// Close implements Synchronizer. The checkout lock is only held while
// Execute runs, so there is nothing to release.
func (s *synchronizer) Close(ctx context.Context) {}
