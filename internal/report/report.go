// Package report renders audit outcomes, either as the JSON structure
// consumed by tooling or as human-readable terminal output.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/rustsec/cargo-audit-go/internal/advisory"
	"github.com/rustsec/cargo-audit-go/internal/audit"
)

// The JSON field names are a wire contract; tooling reads
// /vulnerabilities/count and /vulnerabilities/list/N/advisory/id.
type jsonReport struct {
	Database        jsonDatabase                   `json:"database"`
	Lockfile        jsonLockfile                   `json:"lockfile"`
	Vulnerabilities jsonVulnerabilities            `json:"vulnerabilities"`
	Warnings        map[string][]jsonVulnerability `json:"warnings,omitempty"`
}

type jsonDatabase struct {
	AdvisoryCount int       `json:"advisory-count"`
	LastCommit    time.Time `json:"last-commit,omitzero"`
}

type jsonLockfile struct {
	DependencyCount int `json:"dependency-count"`
}

type jsonVulnerabilities struct {
	Found bool                `json:"found"`
	Count int                 `json:"count"`
	List  []jsonVulnerability `json:"list"`
}

type jsonVulnerability struct {
	Advisory jsonAdvisory `json:"advisory"`
	Versions jsonVersions `json:"versions"`
	Package  jsonPackage  `json:"package"`
}

type jsonAdvisory struct {
	ID          string   `json:"id"`
	Package     string   `json:"package"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Aliases     []string `json:"aliases"`
	URL         string   `json:"url,omitempty"`
	Categories  []string `json:"categories"`
	Keywords    []string `json:"keywords"`
	CVSS        string   `json:"cvss,omitempty"`
}

type jsonVersions struct {
	Patched    []string `json:"patched"`
	Unaffected []string `json:"unaffected"`
}

type jsonPackage struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Source   string `json:"source,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

// WriteJSON emits the report as a single JSON document followed by a
// newline.
func WriteJSON(w io.Writer, rep *audit.Report) error {
	out := jsonReport{
		Database: jsonDatabase{
			AdvisoryCount: rep.Database.AdvisoryCount,
			LastCommit:    rep.Database.LastCommit,
		},
		Lockfile: jsonLockfile{DependencyCount: rep.Lockfile.DependencyCount},
		Vulnerabilities: jsonVulnerabilities{
			Found: rep.Found(),
			Count: rep.Count(),
			List:  make([]jsonVulnerability, 0, rep.Count()),
		},
	}
	for _, v := range rep.Vulnerabilities {
		out.Vulnerabilities.List = append(out.Vulnerabilities.List, toJSONVulnerability(v.Advisory, v.Package.Name, v.Package.Version.String(), v.Package.Source, v.Package.Checksum))
	}
	if len(rep.Warnings) > 0 {
		out.Warnings = make(map[string][]jsonVulnerability)
		for _, wng := range rep.Warnings {
			out.Warnings[wng.Kind] = append(out.Warnings[wng.Kind],
				toJSONVulnerability(wng.Advisory, wng.Package.Name, wng.Package.Version.String(), wng.Package.Source, wng.Package.Checksum))
		}
	}
	enc := json.NewEncoder(w)
	// Version requirements like ">= 0.5.2" must survive encoding verbatim.
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func toJSONVulnerability(adv *advisory.Advisory, name, version, source, checksum string) jsonVulnerability {
	aliases := make([]string, 0, len(adv.Metadata.Aliases))
	for _, a := range adv.Metadata.Aliases {
		aliases = append(aliases, a.String())
	}
	return jsonVulnerability{
		Advisory: jsonAdvisory{
			ID:          adv.Metadata.ID.String(),
			Package:     adv.Metadata.Package,
			Title:       adv.Title,
			Description: adv.Description,
			Date:        adv.Metadata.Date.String(),
			Aliases:     aliases,
			URL:         adv.Metadata.URL,
			Categories:  emptyNotNil(adv.Metadata.Categories),
			Keywords:    emptyNotNil(adv.Metadata.Keywords),
			CVSS:        adv.Metadata.CVSS,
		},
		Versions: jsonVersions{
			Patched:    constraintStrings(adv.Versions.Patched),
			Unaffected: constraintStrings(adv.Versions.Unaffected),
		},
		Package: jsonPackage{Name: name, Version: version, Source: source, Checksum: checksum},
	}
}

func constraintStrings(cs []advisory.Constraint) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.String())
	}
	return out
}

func emptyNotNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// WriteHuman renders one block per finding and a closing summary line.
// quiet suppresses everything except the error summary.
func WriteHuman(w io.Writer, rep *audit.Report, quiet bool) error {
	if !quiet {
		for _, v := range rep.Vulnerabilities {
			if err := writeBlock(w, v.Advisory, v.Package.Name, v.Package.Version.String(), ""); err != nil {
				return err
			}
		}
		for _, wng := range rep.Warnings {
			if err := writeBlock(w, wng.Advisory, wng.Package.Name, wng.Package.Version.String(), wng.Kind); err != nil {
				return err
			}
		}
		if n := len(rep.Warnings); n > 0 {
			fmt.Fprintf(w, "warning: %d %s found\n", n, plural(n, "warning", "warnings"))
		}
	}

	if rep.Found() {
		n := rep.Count()
		_, err := fmt.Fprintf(w, "error: %d %s found!\n", n, plural(n, "vulnerability", "vulnerabilities"))
		return err
	}
	if !quiet {
		_, err := fmt.Fprintln(w, "No vulnerable crates found!")
		return err
	}
	return nil
}

func writeBlock(w io.Writer, adv *advisory.Advisory, name, version, warning string) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
			MaxWidth: 80,
			Behavior: tw.Behavior{TrimSpace: tw.Off},
		}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleNone),
			Borders: tw.Border{
				Left:   tw.Off,
				Top:    tw.Off,
				Right:  tw.Off,
				Bottom: tw.Off,
			},
		}),
	)

	rows := [][]string{
		{"Crate:", name},
		{"Version:", version},
		{"Title:", adv.Title},
		{"Date:", adv.Metadata.Date.String()},
		{"ID:", adv.Metadata.ID.String()},
		{"URL:", advisoryURL(adv)},
	}
	if warning != "" {
		rows = append(rows, []string{"Warning:", warning})
	} else {
		rows = append(rows, []string{"Solution:", solution(adv)})
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

// advisoryURL prefers the advisory's own link and falls back to the RustSec
// page for RUSTSEC ids.
func advisoryURL(adv *advisory.Advisory) string {
	if adv.Metadata.URL != "" {
		return adv.Metadata.URL
	}
	if adv.Metadata.ID.Kind() == advisory.IDKindRustsec {
		return fmt.Sprintf("https://rustsec.org/advisories/%s", adv.Metadata.ID)
	}
	return ""
}

func solution(adv *advisory.Advisory) string {
	patched := constraintStrings(adv.Versions.Patched)
	if len(patched) == 0 {
		return "no safe upgrade is available!"
	}
	return "upgrade to " + strings.Join(patched, " or ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
