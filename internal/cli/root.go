package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/roach88/flowdoc/internal/store"
)

// DBEnv names the environment variable read when --db is not given.
const DBEnv = "FLOWDOC_DB"

// defaultEnvFile is loaded, when present, before DBEnv is read.
const defaultEnvFile = ".env"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DB      string // path to the SQLite database
	EnvFile string // dotenv file loaded before reading DBEnv

	// Now overrides the wall clock (for testing). Defaults to time.Now.
	Now func() time.Time

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the flowdoc CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "flowdoc",
		Short: "flowdoc - workflow job and flow documents",
		Long: `Manage workflow flows and their jobs stored as documents in SQLite.

Flows are submitted from YAML or CUE files. Jobs keep their dependency graph
in the flow document, which can be inspected, reset and amended with
dynamic responses.`,
		SilenceErrors: true, // main prints errors not already reported by a command
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
			opts.loadEnv()
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to SQLite database (default $"+DBEnv+")")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", defaultEnvFile, "dotenv file to load")

	// Add subcommands
	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewFlowsCommand(opts))
	cmd.AddCommand(NewJobsCommand(opts))
	cmd.AddCommand(NewGraphCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewDynamicCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newLogger builds the diagnostic logger. Logs go to w so they never mix
// with command output.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadEnv loads the dotenv file and, when --db was not given, takes the
// database path from DBEnv. Variables already set in the environment win
// over the file.
func (o *RootOptions) loadEnv() {
	if o.EnvFile != "" {
		if err := godotenv.Load(o.EnvFile); err != nil {
			if o.EnvFile != defaultEnvFile {
				o.Logger().Warn("env file could not be loaded", "path", o.EnvFile, "error", err)
			} else {
				o.Logger().Debug("env file not loaded", "path", o.EnvFile, "error", err)
			}
		}
	}
	if o.DB == "" {
		o.DB = os.Getenv(DBEnv)
	}
}

// Logger returns the command logger, falling back to slog.Default when the
// root pre-run did not execute.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

func (o *RootOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// openStore opens the configured database.
func (o *RootOptions) openStore() (*store.Store, error) {
	if o.DB == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set "+DBEnv)
	}
	st, err := store.Open(o.DB, store.WithLogger(o.Logger()))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// closeStore closes st, logging rather than returning the error.
func (o *RootOptions) closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		o.Logger().Error("error closing database", "error", err)
	}
}
