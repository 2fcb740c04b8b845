package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rustsec/cargo-audit-go/internal/advisory"
	"github.com/rustsec/cargo-audit-go/internal/audit"
	"github.com/rustsec/cargo-audit-go/internal/lockfile"
	"github.com/rustsec/cargo-audit-go/internal/util"
)

const base64Advisory = "```toml\n" + `[advisory]
id = "RUSTSEC-2017-0004"
package = "base64"
date = "2017-05-03"
aliases = ["CVE-2017-1000430"]

[versions]
patched = [">= 0.5.2"]
` + "```\n# Integer overflow leading to heap buffer overflow\n\nDetails.\n"

const unmaintainedAdvisory = "```toml\n" + `[advisory]
id = "RUSTSEC-2020-0036"
package = "failure"
date = "2020-05-02"
informational = "unmaintained"

[versions]
patched = []
` + "```\n# failure is officially deprecated/unmaintained\n\nSwitch to anyhow.\n"

func testReport(t *testing.T, lock string) *audit.Report {
	t.Helper()
	db, err := advisory.LoadFS(util.MapFS(map[string]string{
		"crates/base64/RUSTSEC-2017-0004.md":  base64Advisory,
		"crates/failure/RUSTSEC-2020-0036.md": unmaintainedAdvisory,
	}))
	if err != nil {
		t.Fatalf("load database: %v", err)
	}
	lf, err := lockfile.Parse([]byte(lock))
	if err != nil {
		t.Fatalf("parse lockfile: %v", err)
	}
	return audit.NewAuditor(db, audit.Options{}).Audit(lf)
}

const vulnerableLock = `[[package]]
name = "base64"
version = "0.5.0"
`

const cleanLock = `[[package]]
name = "base64"
version = "0.5.2"
`

func TestWriteJSON(t *testing.T) {
	rep := testReport(t, vulnerableLock)
	rep.Database.LastCommit = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, rep); err != nil {
		t.Fatalf("write: %v", err)
	}

	var doc struct {
		Database struct {
			AdvisoryCount int    `json:"advisory-count"`
			LastCommit    string `json:"last-commit"`
		} `json:"database"`
		Lockfile struct {
			DependencyCount int `json:"dependency-count"`
		} `json:"lockfile"`
		Vulnerabilities struct {
			Found bool `json:"found"`
			Count int  `json:"count"`
			List  []struct {
				Advisory struct {
					ID      string   `json:"id"`
					Package string   `json:"package"`
					Date    string   `json:"date"`
					Aliases []string `json:"aliases"`
				} `json:"advisory"`
				Versions struct {
					Patched    []string `json:"patched"`
					Unaffected []string `json:"unaffected"`
				} `json:"versions"`
				Package struct {
					Name    string `json:"name"`
					Version string `json:"version"`
				} `json:"package"`
			} `json:"list"`
		} `json:"vulnerabilities"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !doc.Vulnerabilities.Found || doc.Vulnerabilities.Count != 1 {
		t.Fatalf("expected found with count 1, got %+v", doc.Vulnerabilities)
	}
	if len(doc.Vulnerabilities.List) != doc.Vulnerabilities.Count {
		t.Fatalf("count %d does not match list length %d", doc.Vulnerabilities.Count, len(doc.Vulnerabilities.List))
	}
	entry := doc.Vulnerabilities.List[0]
	if entry.Advisory.ID != "RUSTSEC-2017-0004" {
		t.Fatalf("expected advisory id RUSTSEC-2017-0004, got %q", entry.Advisory.ID)
	}
	if entry.Advisory.Package != "base64" || entry.Advisory.Date != "2017-05-03" {
		t.Fatalf("unexpected advisory %+v", entry.Advisory)
	}
	if len(entry.Advisory.Aliases) != 1 || entry.Advisory.Aliases[0] != "CVE-2017-1000430" {
		t.Fatalf("unexpected aliases %v", entry.Advisory.Aliases)
	}
	if len(entry.Versions.Patched) != 1 || entry.Versions.Patched[0] != ">= 0.5.2" {
		t.Fatalf("unexpected patched %v", entry.Versions.Patched)
	}
	if entry.Package.Name != "base64" || entry.Package.Version != "0.5.0" {
		t.Fatalf("unexpected package %+v", entry.Package)
	}
	if doc.Database.AdvisoryCount != 2 {
		t.Fatalf("expected advisory-count 2, got %d", doc.Database.AdvisoryCount)
	}
	if doc.Database.LastCommit == "" {
		t.Fatal("expected last-commit to be set")
	}
	if doc.Lockfile.DependencyCount != 1 {
		t.Fatalf("expected dependency-count 1, got %d", doc.Lockfile.DependencyCount)
	}
}

func TestWriteJSONClean(t *testing.T) {
	rep := testReport(t, cleanLock)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, rep); err != nil {
		t.Fatalf("write: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	vulns := doc["vulnerabilities"].(map[string]any)
	if vulns["found"] != false || vulns["count"] != float64(0) {
		t.Fatalf("expected empty result, got %v", vulns)
	}
	list, ok := vulns["list"].([]any)
	if !ok || len(list) != 0 {
		t.Fatalf("expected empty list, got %v", vulns["list"])
	}
	// A zero commit time is omitted rather than emitted as year one.
	db := doc["database"].(map[string]any)
	if _, present := db["last-commit"]; present {
		t.Fatalf("expected last-commit to be omitted, got %v", db["last-commit"])
	}
}

func TestWriteHuman(t *testing.T) {
	rep := testReport(t, vulnerableLock)

	var buf bytes.Buffer
	if err := WriteHuman(&buf, rep, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Crate:", "base64",
		"Version:", "0.5.0",
		"ID:", "RUSTSEC-2017-0004",
		// No url in the front matter, the block links the RustSec page.
		"https://rustsec.org/advisories/RUSTSEC-2017-0004",
		"upgrade to >= 0.5.2",
		"error: 1 vulnerability found!",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestWriteHumanPlural(t *testing.T) {
	rep := testReport(t, vulnerableLock+`
[[package]]
name = "base64"
version = "0.5.1"
`)

	var buf bytes.Buffer
	if err := WriteHuman(&buf, rep, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "error: 2 vulnerabilities found!") {
		t.Fatalf("expected plural summary, got:\n%s", buf.String())
	}
}

func TestWriteHumanClean(t *testing.T) {
	rep := testReport(t, cleanLock)

	var buf bytes.Buffer
	if err := WriteHuman(&buf, rep, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "No vulnerable crates found!") {
		t.Fatalf("expected success line, got:\n%s", buf.String())
	}
}

func TestWriteHumanQuiet(t *testing.T) {
	rep := testReport(t, vulnerableLock)

	var buf bytes.Buffer
	if err := WriteHuman(&buf, rep, true); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := buf.String(); got != "error: 1 vulnerability found!\n" {
		t.Fatalf("expected only the summary line, got %q", got)
	}

	buf.Reset()
	if err := WriteHuman(&buf, testReport(t, cleanLock), true); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestWriteHumanWarnings(t *testing.T) {
	rep := testReport(t, `[[package]]
name = "failure"
version = "0.1.8"
`)

	var buf bytes.Buffer
	if err := WriteHuman(&buf, rep, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "unmaintained") {
		t.Fatalf("expected warning block, got:\n%s", out)
	}
	if !strings.Contains(out, "warning: 1 warning found") {
		t.Fatalf("expected warning summary, got:\n%s", out)
	}
	if strings.Contains(out, "error:") {
		t.Fatalf("expected warnings to not fail the audit, got:\n%s", out)
	}
}
