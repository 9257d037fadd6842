package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/flowdoc/internal/projection"
	"github.com/roach88/flowdoc/internal/query"
	"github.com/roach88/flowdoc/internal/state"
)

// FlowsOptions holds flags for the flows command.
type FlowsOptions struct {
	*RootOptions
	State string
}

// FlowView is the listed form of a flow.
type FlowView struct {
	FlowID    string          `json:"flow_id"`
	Name      string          `json:"name"`
	State     state.FlowState `json:"state"`
	UpdatedOn time.Time       `json:"updated_on"`
	Jobs      []FlowJobView   `json:"jobs"`
}

// FlowJobView is one job version of a listed flow.
type FlowJobView struct {
	DBID   int64          `json:"db_id"`
	UUID   string         `json:"uuid"`
	Index  int            `json:"index"`
	Name   string         `json:"name"`
	State  state.JobState `json:"state"`
	Worker string         `json:"worker"`
}

// NewFlowsCommand creates the flows command.
func NewFlowsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FlowsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "flows",
		Short:         "List flows with the state of their jobs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlows(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.State, "state", "", "only flows in this state")

	return cmd
}

func runFlows(opts *FlowsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var filter query.Predicate
	if opts.State != "" {
		fs, err := state.ParseFlowState(opts.State)
		if err != nil {
			return formatter.Fail(err)
		}
		filter = query.FieldEquals("state", string(fs))
	}

	st, err := opts.openStore()
	if err != nil {
		return formatter.Fail(err)
	}
	defer opts.closeStore(st)

	rows, err := st.FlowInfoRows(cmd.Context(), filter)
	if err != nil {
		return formatter.Fail(err)
	}

	views := make([]FlowView, 0, len(rows))
	for _, row := range rows {
		s, err := projection.FlowSummaryFromRow(row)
		if err != nil {
			return formatter.Fail(err)
		}
		views = append(views, flowView(s))
	}

	if formatter.Format == "json" {
		return formatter.Success(views)
	}
	if len(views) == 0 {
		fmt.Fprintln(formatter.Writer, "No flows")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FLOW ID\tNAME\tSTATE\tJOBS\tUPDATED")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			v.FlowID, v.Name, v.State, jobStateCounts(v.Jobs), v.UpdatedOn.Format(time.DateTime))
	}
	return tw.Flush()
}

func flowView(s projection.FlowSummary) FlowView {
	v := FlowView{
		FlowID:    s.FlowID,
		Name:      s.Name,
		State:     s.State,
		UpdatedOn: s.UpdatedOn,
		Jobs:      make([]FlowJobView, 0, len(s.DBIDs)),
	}
	for i := range s.DBIDs {
		j := FlowJobView{DBID: s.DBIDs[i], UUID: s.JobIDs[i], Index: s.JobIndexes[i]}
		// the joined job columns can be shorter when a job document is missing
		if i < len(s.JobNames) {
			j.Name = s.JobNames[i]
			j.State = s.JobStates[i]
			j.Worker = s.Workers[i]
		}
		v.Jobs = append(v.Jobs, j)
	}
	return v
}

// jobStateCounts summarizes job states as "2 COMPLETED, 1 READY" in order
// of first appearance.
func jobStateCounts(jobs []FlowJobView) string {
	var order []state.JobState
	counts := make(map[state.JobState]int)
	for _, j := range jobs {
		if counts[j.State] == 0 {
			order = append(order, j.State)
		}
		counts[j.State]++
	}
	if len(order) == 0 {
		return "-"
	}
	parts := make([]string, len(order))
	for i, s := range order {
		parts[i] = fmt.Sprintf("%d %s", counts[s], s)
	}
	return strings.Join(parts, ", ")
}
