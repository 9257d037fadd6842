package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/spec"
	"github.com/roach88/flowdoc/internal/store"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Worker string

	// NewID overrides uuid generation for flows and jobs without one
	// (for testing). If nil, random uuids are used.
	NewID func() string
}

// SubmitResult is the output of the submit command.
type SubmitResult struct {
	FlowID string       `json:"flow_id"`
	Name   string       `json:"name"`
	Jobs   []JobIDEntry `json:"jobs"`
}

// JobIDEntry identifies one registered job version.
type JobIDEntry struct {
	DBID  int64  `json:"db_id"`
	UUID  string `json:"uuid"`
	Index int    `json:"index"`
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit <flow-file>",
		Short: "Register a flow and its jobs",
		Long: `Register a flow described in a YAML (.yaml, .yml, .json) or CUE (.cue)
file. Jobs without parents start READY, the others WAITING.

Example:
  flowdoc submit --db ./flows.db ./relax.yaml
  flowdoc submit --db ./flows.db --worker cluster ./relax.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Worker, "worker", "local", "worker for jobs that do not name one")

	return cmd
}

func runSubmit(opts *SubmitOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	fs, err := spec.LoadFile(path, spec.LoadOptions{NewID: opts.NewID})
	if err != nil {
		if errs.KindOf(err) == "" {
			err = WrapExitError(ExitCommandError, "failed to load flow file", err)
		}
		return formatter.Fail(err)
	}
	formatter.VerboseLog("Loaded flow %s with %d job(s) from %s", fs.UUID, len(fs.Jobs), path)

	st, err := opts.openStore()
	if err != nil {
		return formatter.Fail(err)
	}
	defer opts.closeStore(st)

	flow, err := st.SubmitFlow(cmd.Context(), *fs, store.JobDefaults{Worker: opts.Worker}, opts.now())
	if err != nil {
		return formatter.Fail(err)
	}

	result := SubmitResult{FlowID: flow.UUID, Name: flow.Name, Jobs: make([]JobIDEntry, 0, len(flow.IDs))}
	for _, id := range flow.IDs {
		result.Jobs = append(result.Jobs, JobIDEntry{DBID: id.DBID, UUID: id.UUID, Index: id.Index})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Submitted flow %s (%s) with %d job(s)\n", result.FlowID, result.Name, len(result.Jobs))
	for _, j := range result.Jobs {
		fmt.Fprintf(formatter.Writer, "  db_id %d  %s\n", j.DBID, j.UUID)
	}
	return nil
}
