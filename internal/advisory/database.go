package advisory

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rustsec/cargo-audit-go/internal/advisorydb"
	audit_fs "github.com/rustsec/cargo-audit-go/internal/fs"
	"github.com/rustsec/cargo-audit-go/internal/logging"
	"github.com/rustsec/cargo-audit-go/internal/metrics"
	"github.com/rustsec/cargo-audit-go/internal/progress"
	"github.com/rustsec/cargo-audit-go/internal/util"
)

// advisoryFiles matches advisory files relative to the checkout root. The
// checkout also contains metadata directories and the rust/ advisories for
// the toolchain itself, which audits of crate dependencies skip.
var advisoryFiles = audit_fs.MustFilter("crates/*/RUSTSEC-*.md")

// Database is the set of advisories loaded from a checkout, indexed by id
// and by package name.
type Database struct {
	advisories []*Advisory
	byID       map[ID]*Advisory
	byPackage  map[string][]*Advisory
}

// Loader loads a Database. The zero value loads silently; set Progress to
// report per-file progress and Logger to log the summary.
type Loader struct {
	Progress *progress.Bar
	Logger   *logging.Logger
}

// Load reads the advisory database from a checkout directory.
func Load(dir string) (*Database, error) {
	return Loader{}.Load(dir)
}

// LoadFS reads the advisory database from a filesystem rooted at the
// checkout.
func LoadFS(fsys fs.FS) (*Database, error) {
	return Loader{}.LoadFS(fsys)
}

func (l Loader) Load(dir string) (*Database, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, advisorydb.Wrap(advisorydb.KindNotFound, err, "advisory database not found at %s", dir)
	}
	fsys := os.DirFS(dir)
	ok, err := audit_fs.FSContainsFiles(fsys)
	if err != nil {
		return nil, advisorydb.Wrap(advisorydb.KindRepo, err, "failed to scan %s", dir)
	}
	if !ok {
		return nil, advisorydb.Errorf(advisorydb.KindNotFound, "advisory database at %s is empty, fetch it first", dir)
	}
	return l.LoadFS(fsys)
}

func (l Loader) LoadFS(fsys fs.FS) (*Database, error) {
	log := l.Logger
	if log == nil {
		log = logging.Default()
	}
	if log.Level() >= logging.LogLevelDebug {
		fsys = util.NewTraceFS(fsys, log)
	}

	var paths []string
	err := fs.WalkDir(fsys, "crates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !advisoryFiles.Match(p) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, advisorydb.Errorf(advisorydb.KindNotFound, "checkout has no crates directory, expected a RustSec advisory database")
	case err != nil:
		return nil, advisorydb.Wrap(advisorydb.KindRepo, err, "failed to scan the advisory database")
	}
	l.Progress.AddMax(len(paths))
	defer l.Progress.Finish()

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	var (
		mu         sync.Mutex
		advisories []*Advisory
		malformed  []error
	)
	for _, p := range paths {
		g.Go(func() error {
			b, err := fs.ReadFile(fsys, p)
			if err != nil {
				return err
			}
			adv, perr := Parse(b)
			mu.Lock()
			defer mu.Unlock()
			l.Progress.Add(1)
			if perr != nil {
				metrics.AdvisoryParseFailed.Inc()
				malformed = append(malformed, fmt.Errorf("%s: %w", p, perr))
				return nil
			}
			advisories = append(advisories, adv)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, advisorydb.Wrap(advisorydb.KindRepo, err, "failed to read advisories")
	}
	if len(malformed) > 0 {
		return nil, advisorydb.Wrap(advisorydb.KindParse, errors.Join(malformed...), "%d malformed advisories", len(malformed))
	}

	slices.SortFunc(advisories, func(a, b *Advisory) int {
		return cmp.Compare(a.Metadata.ID, b.Metadata.ID)
	})

	db := &Database{
		advisories: advisories,
		byID:       make(map[ID]*Advisory, len(advisories)),
		byPackage:  make(map[string][]*Advisory),
	}
	for _, adv := range db.advisories {
		db.byID[adv.Metadata.ID] = adv
		db.byPackage[adv.Metadata.Package] = append(db.byPackage[adv.Metadata.Package], adv)
	}
	metrics.AdvisoriesLoaded.Set(float64(len(advisories)))
	log.Debugf("loaded %d advisories covering %d packages", len(advisories), len(db.byPackage))
	return db, nil
}

// Find returns the advisory with the given id, or nil.
func (db *Database) Find(id ID) *Advisory {
	return db.byID[id]
}

// ByPackage returns the advisories affecting the named package, ordered by
// id.
func (db *Database) ByPackage(name string) []*Advisory {
	return db.byPackage[name]
}

// Len is the number of loaded advisories.
func (db *Database) Len() int {
	return len(db.advisories)
}
