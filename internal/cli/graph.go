package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flowdoc/internal/record"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	Descendants string
}

// GraphView is the dependency graph of a flow.
type GraphView struct {
	FlowID      string        `json:"flow_id"`
	Versions    []VersionView `json:"versions"`
	Cycles      []CycleView   `json:"cycles"`
	Descendants []RefView     `json:"descendants,omitempty"`
}

// VersionView is one job version with its parents and children.
type VersionView struct {
	DBID     int64     `json:"db_id"`
	UUID     string    `json:"uuid"`
	Index    int       `json:"index"`
	Parents  []string  `json:"parents"`
	Children []RefView `json:"children"`
}

// RefView names a job version.
type RefView struct {
	UUID  string `json:"uuid"`
	Index int    `json:"index"`
}

// CycleView is a dependency cycle between job uuids.
type CycleView struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph <flow-uuid>",
		Short: "Show the job dependency graph of a flow",
		Long: `Show every job version of a flow with its parents and children, report
dependency cycles, and optionally list the descendants of one job.

Example:
  flowdoc graph --db ./flows.db 5b1f...
  flowdoc graph --db ./flows.db 5b1f... --descendants 9c2e...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Descendants, "descendants", "", "also list the descendants of this job uuid")

	return cmd
}

func runGraph(opts *GraphOptions, flowUUID string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := opts.openStore()
	if err != nil {
		return formatter.Fail(err)
	}
	defer opts.closeStore(st)

	flow, err := st.LoadFlow(cmd.Context(), flowUUID)
	if err != nil {
		return formatter.Fail(err)
	}
	view, err := graphView(flow, opts.Descendants)
	if err != nil {
		return formatter.Fail(err)
	}

	if formatter.Format == "json" {
		return formatter.Success(view)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Flow %s\n", view.FlowID)
	for _, v := range view.Versions {
		fmt.Fprintf(w, "  [%d] %s#%d\n", v.DBID, v.UUID, v.Index)
		if len(v.Parents) > 0 {
			fmt.Fprintf(w, "      parents:  %s\n", strings.Join(v.Parents, ", "))
		}
		if len(v.Children) > 0 {
			fmt.Fprintf(w, "      children: %s\n", refList(v.Children))
		}
	}
	for _, c := range view.Cycles {
		fmt.Fprintf(w, "✗ %s\n", c.Message)
	}
	if opts.Descendants != "" {
		fmt.Fprintf(w, "Descendants of %s: %s\n", opts.Descendants, refList(view.Descendants))
	}
	return nil
}

func graphView(flow *record.FlowRecord, descendantsOf string) (GraphView, error) {
	parents, err := flow.IndexParents()
	if err != nil {
		return GraphView{}, err
	}
	children, err := flow.Children()
	if err != nil {
		return GraphView{}, err
	}

	view := GraphView{
		FlowID:   flow.UUID,
		Versions: make([]VersionView, 0, len(flow.IDs)),
		Cycles:   []CycleView{},
	}
	for _, id := range flow.IDs {
		v := VersionView{
			DBID:     id.DBID,
			UUID:     id.UUID,
			Index:    id.Index,
			Parents:  parents[id.UUID][id.Index],
			Children: refViews(children[id.UUID]),
		}
		if v.Parents == nil {
			v.Parents = []string{}
		}
		view.Versions = append(view.Versions, v)
	}
	for _, c := range flow.Cycles() {
		view.Cycles = append(view.Cycles, CycleView{Path: c.Path, Message: c.Message})
	}

	if descendantsOf != "" {
		if _, err := flow.Versions(descendantsOf); err != nil {
			return GraphView{}, err
		}
		refs, err := flow.Descendants(descendantsOf)
		if err != nil {
			return GraphView{}, err
		}
		view.Descendants = refViews(refs)
	}
	return view, nil
}

func refViews(refs []record.JobRef) []RefView {
	out := make([]RefView, len(refs))
	for i, r := range refs {
		out[i] = RefView{UUID: r.UUID, Index: r.Index}
	}
	return out
}

func refList(refs []RefView) string {
	if len(refs) == 0 {
		return "none"
	}
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = fmt.Sprintf("%s#%d", r.UUID, r.Index)
	}
	return strings.Join(parts, ", ")
}
