package record

import (
	"slices"
	"time"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/spec"
	"github.com/roach88/flowdoc/internal/state"
)

// RemoteInfo holds the fields maintained while a job runs on a queue backend.
type RemoteInfo struct {
	StepAttempts   int
	QueueState     *state.QueueState
	ProcessID      *string
	RetryTimeLimit *time.Time
	Error          *string
}

// JobRecord is the persisted document of one job version.
type JobRecord struct {
	Job           doc.Map // normalized job specification
	UUID          string
	Index         int
	DBID          int64
	Worker        string
	State         state.JobState
	Remote        RemoteInfo
	Parents       []string
	PreviousState *state.JobState
	Error         *string
	LockID        *string
	LockTime      *time.Time
	RunDir        *string
	StartTime     *time.Time
	EndTime       *time.Time
	CreatedOn     time.Time
	UpdatedOn     time.Time
	Priority      int
	ExecConfig    *spec.ExecConfig
	Resources     *spec.Resources
	StoredData    doc.Map
	History       []string
}

// IsLocked reports whether the record is checked out.
func (r *JobRecord) IsLocked() bool {
	return r.LockID != nil
}

// Ref returns the (uuid, index) of the record.
func (r *JobRecord) Ref() JobRef {
	return JobRef{UUID: r.UUID, Index: r.Index}
}

// BuildInitialJob creates the first record of a job version being registered
// in a flow.
//
// Worker, execution config and resources set in the job's own manager config
// win over the defaults passed here; the defaults apply only where the job
// carries none. The record starts WAITING when parents is non-empty and READY
// otherwise.
func BuildInitialJob(
	job spec.JobSpec,
	parents []string,
	dbID int64,
	worker string,
	execConfig *spec.ExecConfig,
	resources *spec.Resources,
	now time.Time,
) (*JobRecord, error) {
	const op = "record.build_initial_job"

	jobDoc, err := job.Document()
	if err != nil {
		return nil, err
	}
	if dbID < 1 {
		return nil, errs.Validation(op, "job %s: db_id %d, want >= 1", job.UUID, dbID)
	}

	mc := job.Config.Manager
	if mc.Worker != "" {
		worker = mc.Worker
	}
	if mc.ExecConfig != nil {
		execConfig = mc.ExecConfig
	}
	if mc.Resources != nil {
		resources = mc.Resources
	}
	if worker == "" {
		return nil, errs.Validation(op, "job %s: no worker configured", job.UUID)
	}

	st := state.JobReady
	if len(parents) > 0 {
		st = state.JobWaiting
	}

	now = doc.NormalizeTime(now)
	rec := &JobRecord{
		Job:        jobDoc,
		UUID:       job.UUID,
		Index:      job.Index,
		DBID:       dbID,
		Worker:     worker,
		State:      st,
		Parents:    append([]string{}, parents...),
		History:    []string{},
		CreatedOn:  now,
		UpdatedOn:  now,
		ExecConfig: execConfig,
		Resources:  resources,
	}

	// Surface unstorable caller defaults now rather than at the first write.
	if _, err := rec.Serialize(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Name returns the job name recorded in the job specification.
func (r *JobRecord) Name() string {
	if s, ok := r.Job["name"].(doc.String); ok {
		return string(s)
	}
	return ""
}

// HasParent reports whether uuid is among the record's parents.
func (r *JobRecord) HasParent(uuid string) bool {
	return slices.Contains(r.Parents, uuid)
}
