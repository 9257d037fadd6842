package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/spec"
	"github.com/roach88/flowdoc/internal/state"
	"github.com/roach88/flowdoc/internal/store"
)

// DynamicOptions holds flags for the dynamic command.
type DynamicOptions struct {
	*RootOptions
	Type     string
	JobsFile string
	Worker   string

	// NewID overrides uuid generation for jobs without one (for testing).
	NewID func() string
}

// NewDynamicCommand creates the dynamic command.
func NewDynamicCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DynamicOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dynamic <flow-uuid> <job-uuid>",
		Short: "Apply a dynamic response emitted by a job",
		Long: `Apply a dynamic response emitted by a job of a flow.

The jobs are read from a flow file; its flow-level fields are ignored and
parents may only name jobs of the same file.

  replace   the file holds one job, registered as the next version of <job-uuid>
  detour    the jobs run after <job-uuid> and before its current children
  addition  the jobs run after <job-uuid>

Example:
  flowdoc dynamic --db ./flows.db --type detour --jobs ./fix.yaml 5b1f... 9c2e...`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDynamic(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "response type (replace|detour|addition)")
	cmd.Flags().StringVar(&opts.JobsFile, "jobs", "", "flow file holding the new jobs")
	cmd.Flags().StringVar(&opts.Worker, "worker", "local", "worker for jobs that do not name one")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("jobs")

	return cmd
}

func runDynamic(opts *DynamicOptions, flowUUID, jobUUID string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	typ, err := state.ParseDynamicResponseType(opts.Type)
	if err != nil {
		return formatter.Fail(err)
	}
	fs, err := spec.LoadFile(opts.JobsFile, spec.LoadOptions{NewID: opts.NewID})
	if err != nil {
		if errs.KindOf(err) == "" {
			err = WrapExitError(ExitCommandError, "failed to load jobs file", err)
		}
		return formatter.Fail(err)
	}

	st, err := opts.openStore()
	if err != nil {
		return formatter.Fail(err)
	}
	defer opts.closeStore(st)

	before, err := st.LoadFlow(cmd.Context(), flowUUID)
	if err != nil {
		return formatter.Fail(err)
	}
	known := len(before.IDs)

	flow, err := st.ApplyDynamic(cmd.Context(), flowUUID, jobUUID, typ, fs.Jobs,
		store.JobDefaults{Worker: opts.Worker}, opts.now())
	if err != nil {
		return formatter.Fail(err)
	}

	result := SubmitResult{FlowID: flow.UUID, Name: flow.Name, Jobs: []JobIDEntry{}}
	for _, id := range flow.IDs[known:] {
		result.Jobs = append(result.Jobs, JobIDEntry{DBID: id.DBID, UUID: id.UUID, Index: id.Index})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Applied %s from job %s to flow %s\n", typ, jobUUID, flow.UUID)
	for _, j := range result.Jobs {
		fmt.Fprintf(formatter.Writer, "  db_id %d  %s#%d\n", j.DBID, j.UUID, j.Index)
	}
	return nil
}
