package record

import (
	"time"

	"github.com/roach88/flowdoc/internal/doc"
)

// ResetFields returns the partial update that brings a job document back to
// a clean pre-run state: attempt counter zeroed, retry, queue, error and
// timing fields cleared, and updated_on set to now. State, parents and lock
// fields are left alone; callers decide those separately.
func ResetFields(now time.Time) doc.Update {
	return doc.Update{
		"remote.step_attempts":    doc.Int(0),
		"remote.retry_time_limit": doc.Null{},
		"previous_state":          doc.Null{},
		"remote.queue_state":      doc.Null{},
		"remote.error":            doc.Null{},
		"error":                   doc.Null{},
		"updated_on":              doc.NewTime(now),
		"start_time":              doc.Null{},
		"end_time":                doc.Null{},
	}
}

// ApplyUpdate applies a partial update to the record through its document
// form. The record is left unchanged when the update or the resulting
// document is invalid.
func (r *JobRecord) ApplyUpdate(u doc.Update) error {
	m, err := r.Serialize()
	if err != nil {
		return err
	}
	updated, err := doc.Apply(m, u)
	if err != nil {
		return err
	}
	rec, err := DecodeJobRecord(updated)
	if err != nil {
		return err
	}
	*r = *rec
	return nil
}
