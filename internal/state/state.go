package state

import (
	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
)

// JobState is the lifecycle state of one job version.
type JobState string

const (
	JobWaiting        JobState = "WAITING"
	JobReady          JobState = "READY"
	JobCheckedOut     JobState = "CHECKED_OUT"
	JobUploaded       JobState = "UPLOADED"
	JobSubmitted      JobState = "SUBMITTED"
	JobRunning        JobState = "RUNNING"
	JobTerminated     JobState = "TERMINATED"
	JobDownloaded     JobState = "DOWNLOADED"
	JobRemoteError    JobState = "REMOTE_ERROR"
	JobCompleted      JobState = "COMPLETED"
	JobFailed         JobState = "FAILED"
	JobPaused         JobState = "PAUSED"
	JobStopped        JobState = "STOPPED"
	JobUserStopped    JobState = "USER_STOPPED"
	JobBatchSubmitted JobState = "BATCH_SUBMITTED"
	JobBatchRunning   JobState = "BATCH_RUNNING"
)

var jobStates = map[JobState]bool{
	JobWaiting: true, JobReady: true, JobCheckedOut: true, JobUploaded: true,
	JobSubmitted: true, JobRunning: true, JobTerminated: true, JobDownloaded: true,
	JobRemoteError: true, JobCompleted: true, JobFailed: true, JobPaused: true,
	JobStopped: true, JobUserStopped: true, JobBatchSubmitted: true, JobBatchRunning: true,
}

// ParseJobState validates s as a JobState.
func ParseJobState(s string) (JobState, error) {
	if !jobStates[JobState(s)] {
		return "", errs.Validation("state.parse_job_state", "unknown job state %q", s)
	}
	return JobState(s), nil
}

// String returns the stored value.
func (s JobState) String() string { return string(s) }

// ToDocument implements doc.Marshaler.
func (s JobState) ToDocument() (doc.Value, error) { return doc.String(s), nil }

// IsFinal reports whether no further transitions are expected without
// external intervention.
func (s JobState) IsFinal() bool {
	switch s {
	case JobCompleted, JobFailed, JobRemoteError, JobStopped, JobUserStopped:
		return true
	default:
		return false
	}
}

// FlowState is the aggregate state of a flow.
type FlowState string

const (
	FlowWaiting   FlowState = "WAITING"
	FlowReady     FlowState = "READY"
	FlowRunning   FlowState = "RUNNING"
	FlowCompleted FlowState = "COMPLETED"
	FlowFailed    FlowState = "FAILED"
	FlowPaused    FlowState = "PAUSED"
	FlowStopped   FlowState = "STOPPED"
)

var flowStates = map[FlowState]bool{
	FlowWaiting: true, FlowReady: true, FlowRunning: true, FlowCompleted: true,
	FlowFailed: true, FlowPaused: true, FlowStopped: true,
}

// ParseFlowState validates s as a FlowState.
func ParseFlowState(s string) (FlowState, error) {
	if !flowStates[FlowState(s)] {
		return "", errs.Validation("state.parse_flow_state", "unknown flow state %q", s)
	}
	return FlowState(s), nil
}

// String returns the stored value.
func (s FlowState) String() string { return string(s) }

// ToDocument implements doc.Marshaler.
func (s FlowState) ToDocument() (doc.Value, error) { return doc.String(s), nil }

// QueueState is the state reported by a queue backend for a submitted job.
// Only the field shape is defined here; backends populate it.
type QueueState string

const (
	QueueUndetermined QueueState = "UNDETERMINED"
	QueueQueued       QueueState = "QUEUED"
	QueueQueuedHeld   QueueState = "QUEUED_HELD"
	QueueRunning      QueueState = "RUNNING"
	QueueSuspended    QueueState = "SUSPENDED"
	QueueRequeued     QueueState = "REQUEUED"
	QueueDone         QueueState = "DONE"
	QueueFailed       QueueState = "FAILED"
)

var queueStates = map[QueueState]bool{
	QueueUndetermined: true, QueueQueued: true, QueueQueuedHeld: true, QueueRunning: true,
	QueueSuspended: true, QueueRequeued: true, QueueDone: true, QueueFailed: true,
}

// ParseQueueState validates s as a QueueState.
func ParseQueueState(s string) (QueueState, error) {
	if !queueStates[QueueState(s)] {
		return "", errs.Validation("state.parse_queue_state", "unknown queue state %q", s)
	}
	return QueueState(s), nil
}

// String returns the stored value.
func (s QueueState) String() string { return string(s) }

// ToDocument implements doc.Marshaler.
func (s QueueState) ToDocument() (doc.Value, error) { return doc.String(s), nil }
