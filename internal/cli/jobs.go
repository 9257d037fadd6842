package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/flowdoc/internal/projection"
	"github.com/roach88/flowdoc/internal/query"
	"github.com/roach88/flowdoc/internal/state"
)

// JobsOptions holds flags for the jobs command.
type JobsOptions struct {
	*RootOptions
	State  string
	Worker string
}

// JobView is the listed form of a job version.
type JobView struct {
	DBID     int64          `json:"db_id"`
	UUID     string         `json:"uuid"`
	Index    int            `json:"index"`
	Name     string         `json:"name"`
	State    state.JobState `json:"state"`
	Worker   string         `json:"worker"`
	Parents  []string       `json:"parents"`
	Locked   bool           `json:"locked"`
	Error    *string        `json:"error,omitempty"`
	RunTime  *float64       `json:"run_time_seconds,omitempty"`
	Priority int            `json:"priority"`
}

// NewJobsCommand creates the jobs command.
func NewJobsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JobsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs",
		Long: `List job versions ordered by db_id.

Example:
  flowdoc jobs --db ./flows.db --state READY
  flowdoc jobs --db ./flows.db --worker cluster --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobs(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.State, "state", "", "only jobs in this state")
	cmd.Flags().StringVar(&opts.Worker, "worker", "", "only jobs assigned to this worker")

	return cmd
}

func runJobs(opts *JobsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var preds []query.Predicate
	if opts.State != "" {
		js, err := state.ParseJobState(opts.State)
		if err != nil {
			return formatter.Fail(err)
		}
		preds = append(preds, query.FieldEquals("state", string(js)))
	}
	if opts.Worker != "" {
		preds = append(preds, query.FieldEquals("worker", opts.Worker))
	}
	var filter query.Predicate
	if len(preds) > 0 {
		filter = query.And{Predicates: preds}
	}

	st, err := opts.openStore()
	if err != nil {
		return formatter.Fail(err)
	}
	defer opts.closeStore(st)

	rows, err := st.JobInfoRows(cmd.Context(), filter)
	if err != nil {
		return formatter.Fail(err)
	}
	views := make([]JobView, 0, len(rows))
	for _, row := range rows {
		s, err := projection.JobSummaryFromRow(row)
		if err != nil {
			return formatter.Fail(err)
		}
		views = append(views, jobView(s))
	}

	if formatter.Format == "json" {
		return formatter.Success(views)
	}
	if len(views) == 0 {
		fmt.Fprintln(formatter.Writer, "No jobs")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DB ID\tUUID\tINDEX\tNAME\tSTATE\tWORKER\tLOCKED\tRUN TIME")
	for _, v := range views {
		locked := ""
		if v.Locked {
			locked = "*"
		}
		runTime := "-"
		if v.RunTime != nil {
			runTime = time.Duration(*v.RunTime * float64(time.Second)).String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			v.DBID, v.UUID, v.Index, v.Name, v.State, v.Worker, locked, runTime)
	}
	return tw.Flush()
}

func jobView(s projection.JobSummary) JobView {
	v := JobView{
		DBID:     s.DBID,
		UUID:     s.UUID,
		Index:    s.Index,
		Name:     s.Name,
		State:    s.State,
		Worker:   s.Worker,
		Parents:  s.Parents,
		Locked:   s.IsLocked(),
		Error:    s.Error,
		Priority: s.Priority,
	}
	if v.Parents == nil {
		v.Parents = []string{}
	}
	if d, ok := s.RunTime(); ok {
		secs := d.Seconds()
		v.RunTime = &secs
	}
	return v
}
