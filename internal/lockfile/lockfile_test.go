package lockfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rustsec/cargo-audit-go/internal/advisorydb"
)

const cargoLock = `# This file is automatically @generated by Cargo.
# It is not intended for manual editing.
version = 3

[[package]]
name = "base64"
version = "0.5.0"
source = "registry+https://github.com/rust-lang/crates.io-index"
checksum = "30e93c03064e7590d0466209155251b90c22e37fab1daf2771582598b5827557"
dependencies = [
 "byteorder",
 "safemem",
]

[[package]]
name = "byteorder"
version = "1.0.0"
source = "registry+https://github.com/rust-lang/crates.io-index"

[[package]]
name = "hello-world"
version = "0.1.0"
dependencies = [
 "base64",
]
`

func TestParse(t *testing.T) {
	lf, err := Parse([]byte(cargoLock))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if lf.Version != 3 {
		t.Fatalf("expected version 3, got %d", lf.Version)
	}
	if len(lf.Packages) != 3 {
		t.Fatalf("expected 3 packages, got %d", len(lf.Packages))
	}

	base64 := lf.Packages[0]
	if base64.Name != "base64" {
		t.Fatalf("expected base64, got %q", base64.Name)
	}
	if got := base64.Version.String(); got != "0.5.0" {
		t.Fatalf("expected version 0.5.0, got %q", got)
	}
	if base64.Source == "" || base64.Checksum == "" {
		t.Fatalf("expected source and checksum, got %q / %q", base64.Source, base64.Checksum)
	}
	if len(base64.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %v", base64.Dependencies)
	}

	// Workspace members carry no source or checksum.
	if local := lf.Packages[2]; local.Source != "" || local.Checksum != "" {
		t.Fatalf("expected empty source and checksum for %s", local.Name)
	}
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
	}{
		{"malformed toml", "[[package\nname = \"x\"\n"},
		{"missing name", "[[package]]\nversion = \"1.0.0\"\n"},
		{"missing version", "[[package]]\nname = \"base64\"\n"},
		{"unparseable version", "[[package]]\nname = \"base64\"\nversion = \"not-semver\"\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.text))
			if !advisorydb.IsKind(err, advisorydb.KindParse) {
				t.Fatalf("expected parse error, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cargo.lock")
	if err := os.WriteFile(path, []byte(cargoLock), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	lf, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(lf.Packages) != 3 {
		t.Fatalf("expected 3 packages, got %d", len(lf.Packages))
	}
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cargo.lock")
	_, err := Load(path)
	if !advisorydb.IsKind(err, advisorydb.KindNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to name %s, got %q", path, err)
	}
}
