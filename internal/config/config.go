// Package config loads and validates audit.toml configuration files.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/rustsec/cargo-audit-go/internal/advisorydb"
	"github.com/rustsec/cargo-audit-go/internal/util"
)

// Output formats accepted by the output.format setting.
const (
	FormatTerminal = "terminal"
	FormatJSON     = "json"
)

// Config is the top-level audit.toml structure. The zero value is a valid
// configuration that leaves every setting at its default.
type Config struct {
	Database   DatabaseConfig   `toml:"database,omitempty" json:"database,omitzero"`
	Advisories AdvisoriesConfig `toml:"advisories,omitempty" json:"advisories,omitzero"`
	Output     OutputConfig     `toml:"output,omitempty" json:"output,omitzero"`

	_ struct{} `additionalProperties:"false"`
}

// DatabaseConfig controls where the advisory database lives and how it is
// synchronized. Fetch and Stale are pointers so that an explicit `false` in
// the file can be told apart from the setting being absent.
type DatabaseConfig struct {
	URL                string `toml:"url,omitempty" json:"url,omitempty"`
	Path               string `toml:"path,omitempty" json:"path,omitempty"`
	Fetch              *bool  `toml:"fetch,omitempty" json:"fetch,omitempty"`
	Stale              *bool  `toml:"stale,omitempty" json:"stale,omitempty"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds,omitempty" json:"lock_timeout_seconds,omitempty" minimum:"0"`
	StalenessDays      int    `toml:"staleness_days,omitempty" json:"staleness_days,omitempty" minimum:"0"`

	_ struct{} `additionalProperties:"false"`
}

// AdvisoriesConfig tunes which advisories are reported.
type AdvisoriesConfig struct {
	Ignore []string `toml:"ignore,omitempty" json:"ignore,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// OutputConfig controls how audit results are rendered.
type OutputConfig struct {
	Format string `toml:"format,omitempty" json:"format,omitempty" enum:"terminal,json"`
	Quiet  bool   `toml:"quiet,omitempty" json:"quiet,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// DefaultPath returns the audit.toml location probed when no config file is
// given on the command line, relative to the working directory.
func DefaultPath() string {
	return filepath.Join(".cargo", "audit.toml")
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, advisorydb.Wrap(advisorydb.KindNotFound, err, "no config file at %s", path)
		}
		return nil, advisorydb.Wrap(advisorydb.KindBadParam, err, "failed to read config file %s", path)
	}

	return Parse(bs)
}

// LoadDefault loads the configuration from DefaultPath. A missing file is not
// an error: audits run with a zero configuration when no audit.toml exists.
func LoadDefault() (*Config, error) {
	config, err := Load(DefaultPath())
	if advisorydb.IsKind(err, advisorydb.KindNotFound) {
		return &Config{}, nil
	}

	return config, err
}

// Parse validates bs against the audit.toml schema and unmarshals it.
func Parse(bs []byte) (*Config, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	var config Config
	if err := toml.Unmarshal(bs, &config); err != nil {
		return nil, advisorydb.Wrap(advisorydb.KindParse, err, "failed to unmarshal config")
	}

	return &config, nil
}

// Overrides carries command line settings. Merge applies them on top of the
// file-provided configuration.
type Overrides struct {
	URL    string
	Path   string
	Fetch  *bool
	Stale  *bool
	Format string
	Quiet  *bool
	Ignore []string
}

// Merge applies o to c. Scalar overrides replace the file values, the ignore
// list is additive.
func (c *Config) Merge(o Overrides) {
	if o.URL != "" {
		c.Database.URL = o.URL
	}
	if o.Path != "" {
		c.Database.Path = o.Path
	}
	if o.Fetch != nil {
		c.Database.Fetch = o.Fetch
	}
	if o.Stale != nil {
		c.Database.Stale = o.Stale
	}
	if o.Format != "" {
		c.Output.Format = o.Format
	}
	if o.Quiet != nil {
		c.Output.Quiet = *o.Quiet
	}
	c.Advisories.Ignore = append(c.Advisories.Ignore, o.Ignore...)
}

// DatabaseURL returns the configured advisory database URL or the default.
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return advisorydb.DefaultURL
}

// DatabasePath returns the configured checkout path or the default under
// CARGO_HOME.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return advisorydb.DefaultPath()
}

// FetchEnabled reports whether the database should be synchronized before the
// audit. Fetching is on unless the file or flags turned it off.
func (c *Config) FetchEnabled() bool {
	return c.Database.Fetch == nil || *c.Database.Fetch
}

// AllowStale reports whether an out-of-date database checkout is acceptable.
func (c *Config) AllowStale() bool {
	return c.Database.Stale != nil && *c.Database.Stale
}

// LockTimeout returns how long to wait for the database directory lock.
func (c *Config) LockTimeout() time.Duration {
	if c.Database.LockTimeoutSeconds > 0 {
		return time.Duration(c.Database.LockTimeoutSeconds) * time.Second
	}
	return advisorydb.DefaultLockTimeout
}

// Staleness returns the maximum acceptable age of the latest database commit.
func (c *Config) Staleness() time.Duration {
	if c.Database.StalenessDays > 0 {
		return time.Duration(c.Database.StalenessDays) * 24 * time.Hour
	}
	return advisorydb.DefaultStaleness
}

// OutputFormat returns the configured report format or FormatTerminal.
func (c *Config) OutputFormat() string {
	if c.Output.Format != "" {
		return c.Output.Format
	}
	return FormatTerminal
}

// Equal reports whether two configurations are equivalent. The ignore list is
// compared as a set.
func (c *Config) Equal(other *Config) bool {
	return util.FastEqual(c, other, func(c, other *Config) bool {
		return c.Database.Equal(other.Database) &&
			c.Advisories.Equal(other.Advisories) &&
			c.Output == other.Output
	})
}

func (d DatabaseConfig) Equal(other DatabaseConfig) bool {
	return d.URL == other.URL &&
		d.Path == other.Path &&
		util.PtrEqual(d.Fetch, other.Fetch) &&
		util.PtrEqual(d.Stale, other.Stale) &&
		d.LockTimeoutSeconds == other.LockTimeoutSeconds &&
		d.StalenessDays == other.StalenessDays
}

func (a AdvisoriesConfig) Equal(other AdvisoriesConfig) bool {
	return util.SetEqual(a.Ignore, other.Ignore,
		func(id string) string { return id },
		func(a, b string) bool { return a == b })
}
