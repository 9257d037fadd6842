package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/flowdoc/internal/errs"
)

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <db-id>",
		Short: "Clear the run data of a job",
		Long: `Bring a job back to a clean pre-run state: the attempt counter is zeroed
and queue, error, retry and timing fields are cleared. The job state and
parents are kept. A locked job cannot be reset.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runReset(opts *RootOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	dbID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || dbID < 1 {
		return formatter.Fail(errs.Validation("cli.reset", "invalid db_id %q", arg))
	}

	st, err := opts.openStore()
	if err != nil {
		return formatter.Fail(err)
	}
	defer opts.closeStore(st)

	if err := st.ResetJob(cmd.Context(), dbID, opts.now()); err != nil {
		return formatter.Fail(err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]int64{"db_id": dbID})
	}
	fmt.Fprintf(formatter.Writer, "✓ Reset job %d\n", dbID)
	return nil
}
