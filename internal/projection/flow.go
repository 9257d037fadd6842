package projection

import (
	"time"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/record"
	"github.com/roach88/flowdoc/internal/state"
)

// JobsListKey is the row key holding the job documents joined to a flow.
const JobsListKey = "jobs_list"

// FlowSummary is the listing view of a flow.
type FlowSummary struct {
	FlowID     string
	Name       string
	State      state.FlowState
	UpdatedOn  time.Time // local time
	DBIDs      []int64
	JobIDs     []string
	JobIndexes []int
	Workers    []string
	JobStates  []state.JobState
	JobNames   []string
}

// FlowSummaryFromRow builds a summary from a flow document carrying its job
// documents under JobsListKey. The id columns follow the flow's ids
// registry; the worker, state and name columns follow the joined job list.
func FlowSummaryFromRow(row doc.Map) (FlowSummary, error) {
	const op = "projection.flow_summary"

	base := row
	if _, ok := row[JobsListKey]; ok {
		base = make(doc.Map, len(row))
		for k, v := range row {
			if k != JobsListKey {
				base[k] = v
			}
		}
	}
	flow, err := record.DecodeFlowRecord(base)
	if err != nil {
		return FlowSummary{}, err
	}

	s := FlowSummary{
		FlowID:     flow.UUID,
		Name:       flow.Name,
		State:      flow.State,
		UpdatedOn:  flow.UpdatedOn.Local(),
		DBIDs:      make([]int64, 0, len(flow.IDs)),
		JobIDs:     make([]string, 0, len(flow.IDs)),
		JobIndexes: make([]int, 0, len(flow.IDs)),
		Workers:    []string{},
		JobStates:  []state.JobState{},
		JobNames:   []string{},
	}
	for _, id := range flow.IDs {
		s.DBIDs = append(s.DBIDs, id.DBID)
		s.JobIDs = append(s.JobIDs, id.UUID)
		s.JobIndexes = append(s.JobIndexes, id.Index)
	}

	jobs, _ := row[JobsListKey].(doc.Array)
	for i, v := range jobs {
		job, ok := v.(doc.Map)
		if !ok {
			return FlowSummary{}, errs.Validation(op, "flow %s: %s[%d] is %T, not a job document", flow.UUID, JobsListKey, i, v)
		}
		name, _ := job.Lookup("job.name")
		worker, _ := job["worker"].(doc.String)
		stateName, _ := job["state"].(doc.String)
		nameStr, ok := name.(doc.String)
		if !ok {
			return FlowSummary{}, errs.Validation(op, "flow %s: %s[%d] has no job.name", flow.UUID, JobsListKey, i)
		}
		js, err := state.ParseJobState(string(stateName))
		if err != nil {
			return FlowSummary{}, errs.Wrap(errs.KindValidation, op, err, "flow %s: %s[%d]", flow.UUID, JobsListKey, i)
		}
		s.JobNames = append(s.JobNames, string(nameStr))
		s.Workers = append(s.Workers, string(worker))
		s.JobStates = append(s.JobStates, js)
	}
	return s, nil
}
