// Package audit matches a project's pinned dependencies against the
// advisory database.
package audit

import (
	"errors"
	"time"

	"github.com/rustsec/cargo-audit-go/internal/advisory"
	"github.com/rustsec/cargo-audit-go/internal/lockfile"
	"github.com/rustsec/cargo-audit-go/internal/logging"
	"github.com/rustsec/cargo-audit-go/internal/metrics"
)

// ErrVulnerabilitiesFound is returned by the audit boundary when the report
// contains vulnerabilities, so callers can map it to a dedicated exit code.
var ErrVulnerabilitiesFound = errors.New("vulnerabilities found")

// Options configures an Auditor.
type Options struct {
	// Ignore lists advisory ids that never produce vulnerabilities.
	// Matching is by exact id.
	Ignore []advisory.ID

	// LastCommit is the commit time of the database checkout, carried into
	// the report metadata.
	LastCommit time.Time

	Logger *logging.Logger
}

// Auditor scans lockfiles against a loaded advisory database.
type Auditor struct {
	db         *advisory.Database
	ignore     map[advisory.ID]struct{}
	lastCommit time.Time
	log        *logging.Logger
}

func NewAuditor(db *advisory.Database, opts Options) *Auditor {
	ignore := make(map[advisory.ID]struct{}, len(opts.Ignore))
	for _, id := range opts.Ignore {
		ignore[id] = struct{}{}
	}
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}
	return &Auditor{db: db, ignore: ignore, lastCommit: opts.LastCommit, log: log}
}

// Vulnerability is an advisory matched against a concrete dependency.
type Vulnerability struct {
	Advisory *advisory.Advisory
	Package  lockfile.Package
}

// Warning is an informational advisory (unmaintained, unsound, notice)
// matched against a dependency. Warnings never fail an audit.
type Warning struct {
	Kind     string
	Advisory *advisory.Advisory
	Package  lockfile.Package
}

// Report is the outcome of one audit.
type Report struct {
	Database        DatabaseInfo
	Lockfile        LockfileInfo
	Vulnerabilities []Vulnerability
	Warnings        []Warning
}

type DatabaseInfo struct {
	AdvisoryCount int
	LastCommit    time.Time
}

type LockfileInfo struct {
	DependencyCount int
}

// Found reports whether the audit turned up any vulnerabilities.
func (r *Report) Found() bool {
	return len(r.Vulnerabilities) > 0
}

func (r *Report) Count() int {
	return len(r.Vulnerabilities)
}

// Audit scans every package of the lockfile. Withdrawn advisories and ids in
// the ignore set never match; informational advisories become warnings
// instead of vulnerabilities. The result is deterministic: packages in
// lockfile order, advisories per package ordered by id.
func (a *Auditor) Audit(lf *lockfile.Lockfile) *Report {
	start := time.Now()
	metrics.AuditCount.Inc()

	rep := &Report{
		Database: DatabaseInfo{AdvisoryCount: a.db.Len(), LastCommit: a.lastCommit},
		Lockfile: LockfileInfo{DependencyCount: len(lf.Packages)},
	}
	for _, pkg := range lf.Packages {
		for _, adv := range a.db.ByPackage(pkg.Name) {
			if adv.Withdrawn() {
				continue
			}
			if _, ok := a.ignore[adv.Metadata.ID]; ok {
				a.log.Debugf("ignoring %s for %s %s", adv.Metadata.ID, pkg.Name, pkg.Version)
				continue
			}
			if !adv.Versions.Vulnerable(pkg.Version) {
				continue
			}
			if adv.Informational() {
				rep.Warnings = append(rep.Warnings, Warning{
					Kind:     adv.Metadata.Informational,
					Advisory: adv,
					Package:  pkg,
				})
				continue
			}
			metrics.VulnerabilitiesFound.WithLabelValues(pkg.Name).Inc()
			rep.Vulnerabilities = append(rep.Vulnerabilities, Vulnerability{Advisory: adv, Package: pkg})
		}
	}

	metrics.AuditDuration.Observe(time.Since(start).Seconds())
	a.log.Debugf("audited %d dependencies against %d advisories: %d vulnerabilities, %d warnings",
		len(lf.Packages), a.db.Len(), len(rep.Vulnerabilities), len(rep.Warnings))
	return rep
}
