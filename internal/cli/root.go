package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/roach88/roundtrip/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	NoColor    bool

	level slog.LevelVar
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the roundtrip CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "roundtrip",
		Short: "Round-trip integration checks for document stores",
		Long: heredoc.Doc(`
			Connect to a document store with an explicit pool configuration,
			write documents, read them back by point lookup or through a cursor
			carrying a read preference, and check what came back.

			Every sequence closes its connection on every path. Failures are
			reported as connection_error, write_error, read_error, not_found,
			assertion_failure or timeout.

			Settings come from flags, ROUNDTRIP_* environment variables and an
			optional --config YAML file, in that order.
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (per-operation trace, debug logs)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML settings file")
	cmd.PersistentFlags().String(config.KeyLogLevel, "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable coloured output")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
		Color:     !o.NoColor && o.Format != "json",
	}
}

// logger builds a text logger on w. --verbose lowers the level to debug.
func (o *RootOptions) logger(w io.Writer, level slog.Level) *slog.Logger {
	if o.Verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	o.level.Set(level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &o.level}))
}
