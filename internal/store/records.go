package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/query"
	"github.com/roach88/flowdoc/internal/record"
	"github.com/roach88/flowdoc/internal/spec"
)

// JobDefaults are applied to jobs whose own manager config leaves a field
// unset.
type JobDefaults struct {
	Worker     string
	ExecConfig *spec.ExecConfig
	Resources  *spec.Resources
}

// JobKey returns the document key of a job.
func JobKey(dbID int64) string {
	return strconv.FormatInt(dbID, 10)
}

// SubmitFlow registers a flow and all of its jobs in one transaction.
// db_ids are allocated in job order. Submitting a flow uuid that already
// exists is a validation error.
func (s *Store) SubmitFlow(ctx context.Context, fs spec.FlowSpec, defaults JobDefaults, now time.Time) (*record.FlowRecord, error) {
	const op = "store.submit_flow"

	if err := fs.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("submit flow %s: begin tx: %w", fs.UUID, err)
	}
	defer tx.Rollback() // No-op if committed

	// Flow uuids are never reused.
	if _, _, err := getDoc(ctx, tx, Flows, fs.UUID); err == nil {
		return nil, errs.Validation(op, "flow %s already exists", fs.UUID)
	} else if !errs.IsLookup(err) {
		return nil, err
	}

	// An empty flow reserves nothing.
	var ids []int64
	if len(fs.Jobs) > 0 {
		if ids, err = nextDBIDs(ctx, tx, len(fs.Jobs)); err != nil {
			return nil, err
		}
	}

	jobs := make([]*record.JobRecord, 0, len(fs.Jobs))
	for i, js := range fs.Jobs {
		j, err := record.BuildInitialJob(js, js.Parents, ids[i], defaults.Worker,
			defaults.ExecConfig, defaults.Resources, now)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	flow, err := record.BuildInitialFlow(fs, jobs, now)
	if err != nil {
		return nil, err
	}

	// Jobs first, then the flow that lists them.
	for _, j := range jobs {
		m, err := j.Serialize()
		if err != nil {
			return nil, err
		}
		if err := upsertDoc(ctx, tx, Jobs, JobKey(j.DBID), m); err != nil {
			return nil, err
		}
	}
	fm, err := flow.Serialize()
	if err != nil {
		return nil, err
	}
	if err := upsertDoc(ctx, tx, Flows, flow.UUID, fm); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("submit flow %s: commit: %w", fs.UUID, err)
	}

	s.metrics.allocated(len(ids))
	s.metrics.wrote(Jobs, len(jobs))
	s.metrics.wrote(Flows, 1)
	s.logger.Info("flow submitted", "flow", flow.UUID, "name", flow.Name, "jobs", len(jobs))
	return flow, nil
}

// SaveJob writes a job record, replacing the stored version.
func (s *Store) SaveJob(ctx context.Context, j *record.JobRecord) error {
	m, err := j.Serialize()
	if err != nil {
		return err
	}
	return s.Upsert(ctx, Jobs, JobKey(j.DBID), m)
}

// SaveFlow writes a flow record, replacing the stored version.
func (s *Store) SaveFlow(ctx context.Context, f *record.FlowRecord) error {
	m, err := f.Serialize()
	if err != nil {
		return err
	}
	return s.Upsert(ctx, Flows, f.UUID, m)
}

// LoadJob reads the job with the given db_id.
func (s *Store) LoadJob(ctx context.Context, dbID int64) (*record.JobRecord, error) {
	m, err := s.Get(ctx, Jobs, JobKey(dbID))
	if err != nil {
		return nil, err
	}
	return record.DecodeJobRecord(m)
}

// LoadJobVersion reads the job version (uuid, index).
func (s *Store) LoadJobVersion(ctx context.Context, uuid string, index int) (*record.JobRecord, error) {
	docs, err := s.Find(ctx, Jobs, query.And{Predicates: []query.Predicate{
		query.FieldEquals("uuid", uuid),
		query.Equals{Field: "index", Value: doc.Int(index)},
	}})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errs.Lookup("store.load_job_version", "job %s index %d not found", uuid, index)
	}
	return record.DecodeJobRecord(docs[0])
}

// LoadFlow reads the flow with the given uuid.
func (s *Store) LoadFlow(ctx context.Context, uuid string) (*record.FlowRecord, error) {
	m, err := s.Get(ctx, Flows, uuid)
	if err != nil {
		return nil, err
	}
	return record.DecodeFlowRecord(m)
}

// ResetJob brings the job back to a clean pre-run state (see
// record.ResetFields). A locked job cannot be reset.
func (s *Store) ResetJob(ctx context.Context, dbID int64, now time.Time) error {
	const op = "store.reset_job"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reset job %d: begin tx: %w", dbID, err)
	}
	defer tx.Rollback() // No-op if committed

	key := JobKey(dbID)
	m, _, err := getDoc(ctx, tx, Jobs, key)
	if err != nil {
		return err
	}
	if held, ok := m["lock_id"].(doc.String); ok {
		s.metrics.lockConflict(Jobs)
		return errs.Locked(op, "job %d is locked by %s", dbID, held)
	}
	if err := updateDoc(ctx, tx, Jobs, key, record.ResetFields(now)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reset job %d: commit: %w", dbID, err)
	}

	s.metrics.wrote(Jobs, 1)
	s.logger.Info("job reset", "db_id", dbID)
	return nil
}
