// advisorydb package maintains a local git checkout of a vulnerability
// advisory database. It fetches the upstream repository's default branch,
// reconciles the local HEAD with the fetched remote HEAD and validates that
// the database has not gone stale. A cross-process file lock serializes
// access to the checkout, so concurrent invocations are safe; within a
// process the caller handles concurrency.
package advisorydb

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/rustsec/cargo-audit-go/internal/lock"
	"github.com/rustsec/cargo-audit-go/internal/logging"
	"github.com/rustsec/cargo-audit-go/internal/metrics"
)

const (
	// DefaultURL is the upstream advisory database for crates.io.
	DefaultURL = "https://github.com/RustSec/advisory-db.git"

	// Directory under the cargo home where the checkout is kept.
	Directory = "advisory-db"

	// DefaultLockTimeout bounds how long Fetch waits for the checkout lock
	// held by another process. A zero timeout fails on the first conflict
	// instead of waiting.
	DefaultLockTimeout = 5 * time.Minute

	// DefaultStaleness is how old the latest commit may be before the
	// database is considered stale.
	DefaultStaleness = 90 * 24 * time.Hour

	// refSpec fetches the remote HEAD into the remote-tracking ref,
	// forcing non-fast-forward updates.
	refSpec = "+HEAD:refs/remotes/origin/HEAD"

	// originHEAD is where refSpec lands the fetched commit.
	originHEAD = "refs/remotes/origin/HEAD"

	remoteName = "origin"

	// committerName is written to the repository config for the duration
	// of a fetch and restored afterwards. The email is deliberately empty.
	committerName = "rustsec"
)

// Repository is a local advisory database checkout.
type Repository struct {
	path string
	repo *git.Repository
	log  *logging.Logger
}

// FetchOptions configures Fetch. The zero value fetches the default
// upstream into the default path, fails immediately on lock conflicts and
// enforces freshness.
type FetchOptions struct {
	// URL of the advisory database repository. Must start with https://.
	// Empty means DefaultURL.
	URL string

	// Path of the local checkout. Empty means DefaultPath().
	Path string

	// LockTimeout bounds the wait for the checkout lock. Zero fails
	// immediately on conflict.
	LockTimeout time.Duration

	// Staleness overrides the freshness window. Zero means
	// DefaultStaleness.
	Staleness time.Duration

	// AllowStale skips the freshness validation after sync.
	AllowStale bool

	// Progress receives sideband progress from the transport, if set.
	Progress io.Writer

	Logger *logging.Logger
}

func (o FetchOptions) withDefaults() FetchOptions {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.Path == "" {
		o.Path = DefaultPath()
	}
	if o.Staleness == 0 {
		o.Staleness = DefaultStaleness
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	return o
}

// DefaultPath is the location of the default advisory-db checkout,
// $CARGO_HOME/advisory-db.
func DefaultPath() string {
	if home := os.Getenv("CARGO_HOME"); home != "" {
		return filepath.Join(home, Directory)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Directory
	}
	return filepath.Join(home, ".cargo", Directory)
}

// Fetch synchronizes the local checkout with the upstream advisory database
// and returns the open repository. If no checkout exists at the path, or the
// existing checkout tracks a different upstream, the repository is cloned
// fresh; otherwise the existing checkout is fetched into. Afterwards the
// local HEAD and the worktree both match the freshly fetched remote HEAD.
//
// The checkout lock is held from before the open-or-clone decision until the
// freshness validation finished, and released exactly once on every return
// path.
func Fetch(ctx context.Context, opts FetchOptions) (*Repository, error) {
	opts = opts.withDefaults()

	if !strings.HasPrefix(opts.URL, "https://") {
		return nil, Errorf(KindBadParam, "expected %s to start with https://", opts.URL)
	}
	parent := filepath.Dir(opts.Path)
	if parent == opts.Path {
		return nil, Errorf(KindBadParam, "invalid directory: %s", opts.Path)
	}

	start := time.Now()
	metrics.SyncCount.Inc()
	metrics.LastSyncStart.Set(float64(start.Unix()))

	repo, err := fetch(ctx, opts)
	if err != nil {
		metrics.SyncFailed.WithLabelValues(errorLabel(err)).Inc()
		metrics.SyncDuration.WithLabelValues("failure").Observe(time.Since(start).Seconds())
		return nil, err
	}

	metrics.SyncDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
	metrics.LastSyncEnd.Set(float64(time.Now().Unix()))
	return repo, nil
}

func fetch(ctx context.Context, opts FetchOptions) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, Wrap(KindRepo, err, "failed to create parent directory")
	}

	// A leftover empty directory from an interrupted clone would make the
	// open below fail; remove it up front.
	if entries, err := os.ReadDir(opts.Path); err == nil && len(entries) == 0 {
		if err := os.Remove(opts.Path); err != nil {
			return nil, Wrap(KindRepo, err, "failed to remove empty directory %s", opts.Path)
		}
	}

	// Cancellation checkpoint before any lock wait begins.
	if err := ctx.Err(); err != nil {
		return nil, Wrap(KindRepo, err, "sync of %s aborted", opts.Path)
	}

	policy := lock.FailImmediate()
	if opts.LockTimeout > 0 {
		policy = lock.BackoffUntil(opts.LockTimeout)
	}
	markerPath := lock.MarkerPath(withExtension(opts.Path, "rustsec"))
	lockStart := time.Now()
	marker, err := lock.Acquire(ctx, markerPath, policy)
	if err != nil {
		var timeout *lock.TimeoutError
		if errors.As(err, &timeout) {
			return nil, Wrap(KindLockTimeout, err, "directory %q still locked after %d seconds",
				markerPath, int(opts.LockTimeout.Seconds()))
		}
		return nil, Wrap(KindRepo, err, "failed to lock %s", opts.Path)
	}
	metrics.LockWaitDuration.Observe(time.Since(lockStart).Seconds())
	defer marker.Release()

	return fetchLocked(ctx, opts)
}

func fetchLocked(ctx context.Context, opts FetchOptions) (*Repository, error) {
	repo, cloned, err := openOrClone(ctx, opts)
	if err != nil {
		return nil, err
	}
	r := &Repository{path: opts.Path, repo: repo, log: opts.Logger}

	if cloned {
		// The clone has already fetched and checked out; record the
		// resulting commit in FETCH_HEAD like a fetch would have.
		head, err := repo.Head()
		if err != nil {
			return nil, Wrap(KindRepo, err, "unable to locate HEAD")
		}
		if err := r.writeFetchHead(head.Hash(), opts.URL); err != nil {
			return nil, err
		}
	} else {
		if err := r.performFetch(ctx, opts); err != nil {
			return nil, err
		}
	}

	latest, err := r.LatestCommit()
	if err != nil {
		return nil, err
	}
	if err := r.reset(latest); err != nil {
		return nil, err
	}
	opts.Logger.Debugf("advisory database at %s synchronized to %s (%s)", r.path, latest.Hash, latest.Summary)

	if !opts.AllowStale && !latest.IsFresh(time.Now(), opts.Staleness) {
		return nil, &Error{kind: KindRepo, err: &StaleError{CommitTime: latest.CommitTime, Window: opts.Staleness}}
	}

	return r, nil
}

// openOrClone reuses the checkout at the path when it tracks the requested
// URL through its origin remote. A checkout of a different upstream is
// removed entirely and cloned fresh. The returned bool reports whether a
// fresh clone was made.
func openOrClone(ctx context.Context, opts FetchOptions) (*git.Repository, bool, error) {
	repo, err := git.PlainOpen(opts.Path)
	switch {
	case err == nil:
		if originURL(repo) == opts.URL {
			opts.Logger.Debugf("reusing advisory database checkout at %s", opts.Path)
			return repo, false, nil
		}
		opts.Logger.Warnf("checkout at %s tracks a different upstream, recloning from %s", opts.Path, opts.URL)
		if err := os.RemoveAll(opts.Path); err != nil {
			return nil, false, Wrap(KindRepo, err, "failed to remove %s", opts.Path)
		}
	case errors.Is(err, git.ErrRepositoryNotExists):
	default:
		return nil, false, Wrap(KindRepo, err, "failed to open repository at '%s'", opts.Path)
	}

	opts.Logger.Debugf("cloning %s into %s", opts.URL, opts.Path)
	repo, err = git.PlainCloneContext(ctx, opts.Path, false, &git.CloneOptions{
		URL:          opts.URL,
		RemoteName:   remoteName,
		SingleBranch: true,
		Progress:     opts.Progress,
	})
	if err != nil {
		return nil, false, Wrap(KindRepo, err, "failed to fetch repo")
	}
	return repo, true, nil
}

func originURL(repo *git.Repository) string {
	remote, err := repo.Remote(remoteName)
	if err != nil {
		return ""
	}
	if urls := remote.Config().URLs; len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// Open opens an existing checkout without locking, fetching or validating.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, Wrap(KindRepo, err, "failed to open repository at '%s'", path)
	}
	return &Repository{path: path, repo: repo, log: logging.Default()}, nil
}

// Path of the local checkout.
func (r *Repository) Path() string {
	return r.path
}

// HasRelativePath determines if the tree pointed to by HEAD contains the
// given slash-separated relative path.
func (r *Repository) HasRelativePath(rel string) bool {
	head, err := r.repo.Head()
	if err != nil {
		return false
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return false
	}
	tree, err := commit.Tree()
	if err != nil {
		return false
	}
	_, err = tree.FindEntry(rel)
	return err == nil
}

// withExtension replaces the extension of the final path element, matching
// how other advisory database clients derive their lock resource name. The
// lock file must be shared between implementations operating on the same
// checkout.
func withExtension(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
}
