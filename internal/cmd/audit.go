package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustsec/cargo-audit-go/internal/advisory"
	"github.com/rustsec/cargo-audit-go/internal/advisorydb"
	"github.com/rustsec/cargo-audit-go/internal/audit"
	"github.com/rustsec/cargo-audit-go/internal/config"
	"github.com/rustsec/cargo-audit-go/internal/lockfile"
	"github.com/rustsec/cargo-audit-go/internal/logging"
	"github.com/rustsec/cargo-audit-go/internal/progress"
	"github.com/rustsec/cargo-audit-go/internal/report"
)

type auditParams struct {
	configFile string
	db         string
	file       string
	url        string
	json       bool
	ignore     []string
	noFetch    bool
	stale      bool
	quiet      bool
}

func newAuditCommand(root *rootParams) *cobra.Command {
	var params auditParams

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit Cargo.lock for crates with security vulnerabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAudit(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), root, &params)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&params.configFile, "config", "c", "", "audit.toml configuration file")
	fs.StringVarP(&params.db, "db", "d", "", "advisory database git checkout directory")
	fs.StringVarP(&params.file, "file", "f", lockfile.DefaultPath, "Cargo.lock file to audit")
	fs.StringVarP(&params.url, "url", "u", "", "advisory database git URL")
	fs.BoolVar(&params.json, "json", false, "output report in JSON format")
	fs.StringArrayVar(&params.ignore, "ignore", nil, "advisory id to ignore (can be repeated)")
	fs.BoolVarP(&params.noFetch, "no-fetch", "n", false, "do not perform a git fetch on the advisory database")
	fs.BoolVar(&params.stale, "stale", false, "allow a stale advisory database (more than 90 days old)")
	fs.BoolVarP(&params.quiet, "quiet", "q", false, "avoid printing unnecessary information")

	return cmd
}

func runAudit(ctx context.Context, stdout, stderr io.Writer, root *rootParams, params *auditParams) error {
	logger := root.logger()

	cfg, err := loadConfig(params)
	if err != nil {
		return err
	}
	cfg.Merge(overrides(params))

	path := cfg.DatabasePath()

	// Status lines and progress stay off stdout so that JSON output remains
	// machine readable.
	quiet := cfg.Output.Quiet || cfg.OutputFormat() == config.FormatJSON

	var repo *advisorydb.Repository
	if cfg.FetchEnabled() {
		if root.logLevel == logging.LogLevelDebug {
			advisorydb.InstallDebugTransport(logger)
		}
		opts := advisorydb.FetchOptions{
			URL:         cfg.DatabaseURL(),
			Path:        path,
			LockTimeout: cfg.LockTimeout(),
			Staleness:   cfg.Staleness(),
			AllowStale:  cfg.AllowStale(),
			Logger:      logger,
		}
		if !quiet {
			fmt.Fprintf(stderr, "    Fetching advisory database from `%s`\n", opts.URL)
			opts.Progress = stderr
		}
		repo, err = advisorydb.Fetch(ctx, opts)
	} else {
		repo, err = advisorydb.Open(path)
	}
	if err != nil {
		return err
	}

	var lastCommit time.Time
	if commit, err := repo.LatestCommit(); err != nil {
		logger.Debugf("no latest commit for %s: %v", path, err)
	} else {
		lastCommit = commit.CommitTime
	}

	loader := advisory.Loader{
		Progress: progress.New("Loading advisories", quiet),
		Logger:   logger,
	}
	db, err := loader.Load(path)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(stderr, "      Loaded %d security advisories (from %s)\n", db.Len(), path)
	}

	lf, err := lockfile.Load(params.file)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(stderr, "    Scanning %s for vulnerabilities (%d crate dependencies)\n",
			params.file, len(lf.Packages))
	}

	auditor := audit.NewAuditor(db, audit.Options{
		Ignore:     ignoreIDs(cfg.Advisories.Ignore),
		LastCommit: lastCommit,
		Logger:     logger,
	})
	rep := auditor.Audit(lf)

	switch cfg.OutputFormat() {
	case config.FormatJSON:
		err = report.WriteJSON(stdout, rep)
	default:
		err = report.WriteHuman(stdout, rep, cfg.Output.Quiet)
	}
	if err != nil {
		return err
	}

	if rep.Found() {
		return audit.ErrVulnerabilitiesFound
	}
	return nil
}

func loadConfig(params *auditParams) (*config.Config, error) {
	if params.configFile != "" {
		return config.Load(params.configFile)
	}
	return config.LoadDefault()
}

func overrides(params *auditParams) config.Overrides {
	o := config.Overrides{
		URL:    params.url,
		Path:   params.db,
		Ignore: params.ignore,
	}
	if params.noFetch {
		noFetch := false
		o.Fetch = &noFetch
	}
	if params.stale {
		stale := true
		o.Stale = &stale
	}
	if params.json {
		o.Format = config.FormatJSON
	}
	if params.quiet {
		quiet := true
		o.Quiet = &quiet
	}
	return o
}

func ignoreIDs(ids []string) []advisory.ID {
	out := make([]advisory.ID, 0, len(ids))
	for _, id := range ids {
		out = append(out, advisory.ID(id))
	}
	return out
}
