package record

import (
	"slices"
	"strconv"
	"time"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/spec"
	"github.com/roach88/flowdoc/internal/state"
)

// JobID is one entry of the flow's ids registry.
type JobID struct {
	DBID  int64
	UUID  string
	Index int
}

// Ref returns the (uuid, index) part of the id.
func (id JobID) Ref() JobRef {
	return JobRef{UUID: id.UUID, Index: id.Index}
}

// JobRef identifies one job version.
type JobRef struct {
	UUID  string
	Index int
}

// FlowRecord is the persisted document of a flow.
type FlowRecord struct {
	UUID      string
	Jobs      []string // member job uuids
	State     state.FlowState
	Name      string
	LockID    *string
	LockTime  *time.Time
	CreatedOn time.Time
	UpdatedOn time.Time
	Metadata  doc.Map

	// Parents maps child uuid -> decimal index -> parent uuids.
	Parents map[string]map[string][]string
	// IDs registers every job version ever created in the flow.
	IDs []JobID

	views *graphViews
}

// BuildInitialFlow creates the flow record for a freshly registered set of
// jobs. Every job must be the first version (index 1) of its uuid.
func BuildInitialFlow(flow spec.FlowSpec, jobs []*JobRecord, now time.Time) (*FlowRecord, error) {
	const op = "record.build_initial_flow"

	if flow.UUID == "" {
		return nil, errs.Validation(op, "flow uuid is required")
	}
	metadata := doc.Map{}
	if flow.Metadata != nil {
		var err error
		if metadata, err = doc.MapFromGo(flow.Metadata); err != nil {
			return nil, errs.Wrap(errs.KindValidation, op, err, "flow %s metadata", flow.UUID)
		}
	}

	now = doc.NormalizeTime(now)
	f := &FlowRecord{
		UUID:      flow.UUID,
		Jobs:      make([]string, 0, len(jobs)),
		State:     state.FlowReady,
		Name:      flow.Name,
		CreatedOn: now,
		UpdatedOn: now,
		Metadata:  metadata,
		Parents:   make(map[string]map[string][]string, len(jobs)),
		IDs:       make([]JobID, 0, len(jobs)),
	}
	for _, j := range jobs {
		if j.Index != 1 {
			return nil, errs.Validation(op, "job %s: initial index %d, want 1", j.UUID, j.Index)
		}
		f.Jobs = append(f.Jobs, j.UUID)
		f.Parents[j.UUID] = map[string][]string{"1": append([]string{}, j.Parents...)}
		f.IDs = append(f.IDs, JobID{DBID: j.DBID, UUID: j.UUID, Index: 1})
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// IsLocked reports whether the flow is checked out.
func (f *FlowRecord) IsLocked() bool {
	return f.LockID != nil
}

// Invalidate drops the cached graph views. The mutators in this package call
// it; code that edits Parents or IDs directly must call it too.
func (f *FlowRecord) Invalidate() {
	f.views = nil
}

// Clone returns a deep copy of the flow without cached views.
func (f *FlowRecord) Clone() *FlowRecord {
	out := *f
	out.views = nil
	out.Jobs = slices.Clone(f.Jobs)
	out.IDs = slices.Clone(f.IDs)
	if f.LockID != nil {
		id := *f.LockID
		out.LockID = &id
	}
	if f.LockTime != nil {
		t := *f.LockTime
		out.LockTime = &t
	}
	if f.Metadata != nil {
		out.Metadata = doc.Clone(f.Metadata).(doc.Map)
	}
	if f.Parents != nil {
		out.Parents = make(map[string]map[string][]string, len(f.Parents))
		for child, byIndex := range f.Parents {
			cp := make(map[string][]string, len(byIndex))
			for idx, parents := range byIndex {
				cp[idx] = slices.Clone(parents)
			}
			out.Parents[child] = cp
		}
	}
	return &out
}

// AddJobVersion registers a new job version with its parents. The index must
// be 1 for a uuid new to the flow and the next consecutive index otherwise;
// the db_id must be unused and every parent must already be registered.
func (f *FlowRecord) AddJobVersion(id JobID, parents []string) error {
	const op = "record.flow.add_job_version"

	ids := f.IDsMapping()
	if slices.ContainsFunc(f.IDs, func(e JobID) bool { return e.DBID == id.DBID }) {
		return errs.GraphIntegrity(op, "db_id %d already registered", id.DBID)
	}
	if want := len(ids[id.UUID]) + 1; id.Index != want {
		return errs.GraphIntegrity(op, "job %s: index %d, want %d", id.UUID, id.Index, want)
	}
	for _, p := range parents {
		if p == id.UUID {
			return errs.GraphIntegrity(op, "job %s: cannot be its own parent", id.UUID)
		}
		if _, ok := ids[p]; !ok {
			return errs.GraphIntegrity(op, "job %s: parent %s is not in flow %s", id.UUID, p, f.UUID)
		}
	}

	if _, ok := ids[id.UUID]; !ok {
		f.Jobs = append(f.Jobs, id.UUID)
	}
	f.IDs = append(f.IDs, id)
	if f.Parents == nil {
		f.Parents = make(map[string]map[string][]string)
	}
	if f.Parents[id.UUID] == nil {
		f.Parents[id.UUID] = make(map[string][]string)
	}
	f.Parents[id.UUID][strconv.Itoa(id.Index)] = append([]string{}, parents...)
	f.Invalidate()
	return nil
}

// SetParents replaces the parents of an existing job version.
func (f *FlowRecord) SetParents(uuid string, index int, parents []string) error {
	const op = "record.flow.set_parents"

	ids := f.IDsMapping()
	if _, ok := ids[uuid][index]; !ok {
		return errs.Lookup(op, "job %s index %d not in flow %s", uuid, index, f.UUID)
	}
	for _, p := range parents {
		if _, ok := ids[p]; !ok {
			return errs.GraphIntegrity(op, "job %s: parent %s is not in flow %s", uuid, p, f.UUID)
		}
	}

	if f.Parents == nil {
		f.Parents = make(map[string]map[string][]string)
	}
	if f.Parents[uuid] == nil {
		f.Parents[uuid] = make(map[string][]string)
	}
	f.Parents[uuid][strconv.Itoa(index)] = append([]string{}, parents...)
	f.Invalidate()
	return nil
}

// AppendParents adds parents to an existing job version, skipping ones
// already present.
func (f *FlowRecord) AppendParents(uuid string, index int, parents []string) error {
	current := f.Parents[uuid][strconv.Itoa(index)]
	merged := slices.Clone(current)
	for _, p := range parents {
		if !slices.Contains(merged, p) {
			merged = append(merged, p)
		}
	}
	return f.SetParents(uuid, index, merged)
}

// LatestIndex returns the highest registered index of uuid.
func (f *FlowRecord) LatestIndex(uuid string) (int, error) {
	versions, err := f.Versions(uuid)
	if err != nil {
		return 0, err
	}
	return versions[len(versions)-1], nil
}

// NextDBID returns one more than the largest registered db_id.
func (f *FlowRecord) NextDBID() int64 {
	var maxID int64
	for _, id := range f.IDs {
		maxID = max(maxID, id.DBID)
	}
	return maxID + 1
}

// AppendJob registers job as a new version in the flow, with the job's own
// parents as the parents of that version.
func (f *FlowRecord) AppendJob(job *JobRecord) error {
	return f.AddJobVersion(JobID{DBID: job.DBID, UUID: job.UUID, Index: job.Index}, job.Parents)
}
