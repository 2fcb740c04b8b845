// Package advisory parses RustSec V3 advisories and holds the database of
// advisories loaded from a synchronized checkout. A V3 advisory file is a
// fenced toml block with the machine-readable metadata, followed by a
// markdown body whose first heading is the title.
package advisory

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"

	"github.com/rustsec/cargo-audit-go/internal/advisorydb"
)

// Advisory is a single parsed advisory.
type Advisory struct {
	Metadata Metadata `toml:"advisory"`
	Versions Versions `toml:"versions"`

	// Title and Description come from the markdown body, not the front
	// matter.
	Title       string `toml:"-"`
	Description string `toml:"-"`
}

// Metadata is the [advisory] table of the front matter. Unknown keys are
// tolerated so newer database schemas still load.
type Metadata struct {
	ID            ID       `toml:"id"`
	Package       string   `toml:"package"`
	Date          Date     `toml:"date"`
	Aliases       []ID     `toml:"aliases"`
	URL           string   `toml:"url"`
	Categories    []string `toml:"categories"`
	Keywords      []string `toml:"keywords"`
	CVSS          string   `toml:"cvss"`
	Withdrawn     *Date    `toml:"withdrawn"`
	Informational string   `toml:"informational"`
}

// Withdrawn advisories stay in the database but never match during audits.
func (a *Advisory) Withdrawn() bool {
	return a.Metadata.Withdrawn != nil
}

// Informational advisories (unmaintained, unsound, notice) describe concerns
// rather than vulnerabilities and are reported separately from them.
func (a *Advisory) Informational() bool {
	return a.Metadata.Informational != ""
}

// Versions is the [versions] table: the constraint lists deciding which
// versions of the package are affected.
type Versions struct {
	Patched    []Constraint `toml:"patched"`
	Unaffected []Constraint `toml:"unaffected"`
}

// Vulnerable reports whether the version satisfies none of the patched and
// none of the unaffected constraints. An advisory with empty constraint
// lists affects every version.
func (vs Versions) Vulnerable(v *semver.Version) bool {
	for _, c := range vs.Patched {
		if c.Check(v) {
			return false
		}
	}
	for _, c := range vs.Unaffected {
		if c.Check(v) {
			return false
		}
	}
	return true
}

// Constraint is a single version requirement such as ">= 0.5.2" or
// ">= 0.3.0, < 0.4.0". It keeps the raw text for reporting alongside the
// parsed range.
type Constraint struct {
	raw string
	c   *semver.Constraints
}

func NewConstraint(s string) (Constraint, error) {
	c, err := semver.NewConstraint(s)
	if err != nil {
		return Constraint{}, fmt.Errorf("invalid version requirement %q: %w", s, err)
	}
	return Constraint{raw: s, c: c}, nil
}

func (c *Constraint) UnmarshalText(b []byte) error {
	parsed, err := NewConstraint(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Constraint) MarshalText() ([]byte, error) {
	return []byte(c.raw), nil
}

func (c Constraint) Check(v *semver.Version) bool {
	return c.c != nil && c.c.Check(v)
}

func (c Constraint) String() string {
	return c.raw
}

const (
	fenceOpen  = "```toml"
	fenceClose = "\n```"
)

// Parse reads a V3 advisory file: a ```toml fence holding the [advisory]
// and [versions] tables, then a markdown body starting with a `# Title`
// heading whose remainder is the description.
func Parse(b []byte) (*Advisory, error) {
	text := string(b)
	if !strings.HasPrefix(text, fenceOpen) {
		return nil, advisorydb.Errorf(advisorydb.KindParse, "advisory is missing its toml front matter fence")
	}
	rest := text[len(fenceOpen):]
	end := strings.Index(rest, fenceClose)
	if end < 0 {
		return nil, advisorydb.Errorf(advisorydb.KindParse, "advisory front matter fence is unterminated")
	}
	front := rest[:end]
	body := strings.TrimSpace(rest[end+len(fenceClose):])

	var adv Advisory
	if err := toml.Unmarshal([]byte(front), &adv); err != nil {
		return nil, advisorydb.Wrap(advisorydb.KindParse, err, "invalid advisory front matter")
	}
	if adv.Metadata.ID == "" {
		return nil, advisorydb.Errorf(advisorydb.KindParse, "advisory front matter is missing the id")
	}
	if adv.Metadata.Package == "" {
		return nil, advisorydb.Errorf(advisorydb.KindParse, "advisory %s is missing the package name", adv.Metadata.ID)
	}

	title, description, _ := strings.Cut(body, "\n")
	if !strings.HasPrefix(title, "# ") {
		return nil, advisorydb.Errorf(advisorydb.KindParse, "advisory %s body must start with a # heading", adv.Metadata.ID)
	}
	adv.Title = strings.TrimSpace(strings.TrimPrefix(title, "# "))
	adv.Description = strings.TrimSpace(description)
	return &adv, nil
}
