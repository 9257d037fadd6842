package projection

import (
	"time"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/record"
	"github.com/roach88/flowdoc/internal/state"
)

// JobInfoFields lists the job document paths a store query must return for
// JobSummaryFromRow.
var JobInfoFields = []string{
	"uuid",
	"index",
	"db_id",
	"worker",
	"state",
	"remote",
	"parents",
	"previous_state",
	"error",
	"lock_id",
	"lock_time",
	"run_dir",
	"start_time",
	"end_time",
	"created_on",
	"updated_on",
	"priority",
	"job.name",
	"job.metadata",
}

// JobSummary is the listing view of one job version.
type JobSummary struct {
	UUID          string
	Index         int
	DBID          int64
	Worker        string
	Name          string
	State         state.JobState
	Remote        record.RemoteInfo
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
	Metadata      doc.Map
}

// JobSummaryFromRow builds a summary from a job row projected on
// JobInfoFields. The job name and metadata are lifted out of the nested job
// specification.
func JobSummaryFromRow(row doc.Map) (JobSummary, error) {
	rec, err := record.DecodeJobRecord(row)
	if err != nil {
		return JobSummary{}, err
	}
	name, ok := rec.Job["name"].(doc.String)
	if !ok {
		return JobSummary{}, errs.Validation("projection.job_summary", "job %s: row has no job.name", rec.UUID)
	}
	metadata, _ := rec.Job["metadata"].(doc.Map)

	return JobSummary{
		UUID:          rec.UUID,
		Index:         rec.Index,
		DBID:          rec.DBID,
		Worker:        rec.Worker,
		Name:          string(name),
		State:         rec.State,
		Remote:        rec.Remote,
		Parents:       rec.Parents,
		PreviousState: rec.PreviousState,
		Error:         rec.Error,
		LockID:        rec.LockID,
		LockTime:      rec.LockTime,
		RunDir:        rec.RunDir,
		StartTime:     rec.StartTime,
		EndTime:       rec.EndTime,
		CreatedOn:     rec.CreatedOn,
		UpdatedOn:     rec.UpdatedOn,
		Priority:      rec.Priority,
		Metadata:      metadata,
	}, nil
}

// IsLocked reports whether the job is checked out.
func (s JobSummary) IsLocked() bool {
	return s.LockID != nil
}

// RunTime returns the time between start and end. ok is false unless both
// are set.
func (s JobSummary) RunTime() (d time.Duration, ok bool) {
	if s.StartTime == nil || s.EndTime == nil {
		return 0, false
	}
	return s.EndTime.Sub(*s.StartTime), true
}

// ElapsedTime returns the time since a running job started. ok is false if
// it has not started or has already ended.
func (s JobSummary) ElapsedTime(now time.Time) (d time.Duration, ok bool) {
	if s.StartTime == nil || s.EndTime != nil {
		return 0, false
	}
	return now.Sub(*s.StartTime), true
}
