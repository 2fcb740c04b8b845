// Package lockfile parses Cargo.lock files, the pinned dependency set an
// audit runs against.
package lockfile

import (
	"errors"
	"io/fs"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"

	"github.com/rustsec/cargo-audit-go/internal/advisorydb"
)

// DefaultPath is the lockfile location relative to the working directory.
const DefaultPath = "Cargo.lock"

// Lockfile is a parsed Cargo.lock. The version header has changed over the
// years but the [[package]] table shape is stable across them.
type Lockfile struct {
	Version  int       `toml:"version"`
	Packages []Package `toml:"package"`
}

// Package is one [[package]] entry.
type Package struct {
	Name         string          `toml:"name"`
	Version      *semver.Version `toml:"version"`
	Source       string          `toml:"source"`
	Checksum     string          `toml:"checksum"`
	Dependencies []string        `toml:"dependencies"`
}

// Load reads and parses the lockfile at path. A missing file is a not-found
// error naming the path.
func Load(path string) (*Lockfile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, advisorydb.Wrap(advisorydb.KindNotFound, err, "no lockfile at %s", path)
		}
		return nil, advisorydb.Wrap(advisorydb.KindBadParam, err, "failed to read lockfile %s", path)
	}
	lf, err := Parse(b)
	if err != nil {
		return nil, advisorydb.Wrap(advisorydb.KindParse, err, "failed to parse %s", path)
	}
	return lf, nil
}

// Parse parses Cargo.lock content.
func Parse(b []byte) (*Lockfile, error) {
	var lf Lockfile
	if err := toml.Unmarshal(b, &lf); err != nil {
		return nil, advisorydb.Wrap(advisorydb.KindParse, err, "invalid lockfile")
	}
	for i, p := range lf.Packages {
		if p.Name == "" {
			return nil, advisorydb.Errorf(advisorydb.KindParse, "package entry %d has no name", i)
		}
		if p.Version == nil {
			return nil, advisorydb.Errorf(advisorydb.KindParse, "package %s has no version", p.Name)
		}
	}
	return &lf, nil
}
