// Package cmd implements the cargo-audit command line interface.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/rustsec/cargo-audit-go/internal/logging"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

type rootParams struct {
	logLevel  int
	logFormat int
}

var logLevelIds = map[int][]string{
	logging.LogLevelError: {"error"},
	logging.LogLevelWarn:  {"warn", "warning"},
	logging.LogLevelInfo:  {"info"},
	logging.LogLevelDebug: {"debug"},
}

var logFormatIds = map[int][]string{
	logging.LogFormatText:       {"text"},
	logging.LogFormatJSON:       {"json"},
	logging.LogFormatJSONPretty: {"json-pretty"},
}

// New returns the root cargo-audit command. The audit subcommand carries the
// actual work so that the binary also behaves as a cargo subcommand, where
// cargo invokes it as `cargo-audit audit`.
func New() *cobra.Command {
	params := rootParams{
		logLevel:  logging.LogLevelWarn,
		logFormat: logging.LogFormatText,
	}

	root := &cobra.Command{
		Use:           "cargo-audit",
		Short:         "Audit Cargo.lock files for crates with security vulnerabilities",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().Var(
		enumflag.New(&params.logLevel, "level", logLevelIds, enumflag.EnumCaseInsensitive),
		"log-level", "log level (error, warn, info, debug)")
	root.PersistentFlags().Var(
		enumflag.New(&params.logFormat, "format", logFormatIds, enumflag.EnumCaseInsensitive),
		"log-format", "log format (text, json, json-pretty)")

	root.AddCommand(newAuditCommand(&params))

	return root
}

func (p *rootParams) logger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: p.logLevel, Format: p.logFormat})
}
