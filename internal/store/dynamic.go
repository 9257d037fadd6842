package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/dynamic"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/record"
	"github.com/roach88/flowdoc/internal/spec"
	"github.com/roach88/flowdoc/internal/state"
)

// ApplyDynamic records the dynamic response emitted by job jobUUID of flow
// flowUUID and returns the updated flow.
//
// For a replace, jobs holds exactly one spec: the next version of jobUUID
// (its uuid and index are overwritten). For a detour or an addition, jobs are
// new jobs; those declaring no parents run after jobUUID.
//
// New job documents, the flow's graph fields and the parents of jobs
// rerouted by a detour are written in one transaction. A locked flow is
// rejected.
func (s *Store) ApplyDynamic(
	ctx context.Context,
	flowUUID, jobUUID string,
	typ state.DynamicResponseType,
	jobs []spec.JobSpec,
	defaults JobDefaults,
	now time.Time,
) (*record.FlowRecord, error) {
	const op = "store.apply_dynamic"

	if len(jobs) == 0 {
		return nil, errs.Validation(op, "%s from job %s: no jobs", typ, jobUUID)
	}
	if typ == state.DynamicReplace && len(jobs) != 1 {
		return nil, errs.Validation(op, "replace from job %s: got %d jobs, want 1", jobUUID, len(jobs))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("apply dynamic %s: begin tx: %w", flowUUID, err)
	}
	defer tx.Rollback() // No-op if committed

	// Read the flow inside the tx so the graph edit applies to what is stored.
	fm, _, err := getDoc(ctx, tx, Flows, flowUUID)
	if err != nil {
		return nil, err
	}
	flow, err := record.DecodeFlowRecord(fm)
	if err != nil {
		return nil, err
	}
	if flow.IsLocked() {
		s.metrics.lockConflict(Flows)
		return nil, errs.Locked(op, "flow %s is locked by %s", flowUUID, *flow.LockID)
	}

	// db_ids come from the same tx; a rollback hands them back.
	ids, err := nextDBIDs(ctx, tx, len(jobs))
	if err != nil {
		return nil, err
	}

	specs := slices.Clone(jobs)
	resp := dynamic.Response{Type: typ, Job: jobUUID}
	if typ == state.DynamicReplace {
		// The replacement is the next version of the emitting job.
		latest, err := flow.LatestIndex(jobUUID)
		if err != nil {
			return nil, err
		}
		specs[0].UUID = jobUUID
		specs[0].Index = latest + 1
		resp.ReplaceDBID = ids[0]
	} else {
		for i := range specs {
			if specs[i].UUID == "" {
				return nil, errs.Validation(op, "%s from job %s: job %q has no uuid", typ, jobUUID, specs[i].Name)
			}
			specs[i].Index = 1
			// Unparented jobs hang off the job that emitted them.
			if len(specs[i].Parents) == 0 {
				specs[i].Parents = []string{jobUUID}
			}
			resp.Jobs = append(resp.Jobs, dynamic.NewJob{
				UUID:    specs[i].UUID,
				DBID:    ids[i],
				Parents: specs[i].Parents,
			})
		}
	}

	// Keep the old graph to find which children were rerouted.
	before := flow.Clone()
	update, err := dynamic.Apply(flow, resp)
	if err != nil {
		return nil, err
	}
	flow.UpdatedOn = doc.NormalizeTime(now)
	update["updated_on"] = doc.NewTime(now)
	if err := updateDoc(ctx, tx, Flows, flowUUID, update); err != nil {
		return nil, err
	}

	// New job documents take their parents from the updated flow.
	indexed, err := flow.IndexParents()
	if err != nil {
		return nil, err
	}
	for i, js := range specs {
		j, err := record.BuildInitialJob(js, indexed[js.UUID][js.Index], ids[i],
			defaults.Worker, defaults.ExecConfig, defaults.Resources, now)
		if err != nil {
			return nil, err
		}
		m, err := j.Serialize()
		if err != nil {
			return nil, err
		}
		if err := upsertDoc(ctx, tx, Jobs, JobKey(j.DBID), m); err != nil {
			return nil, err
		}
	}
	rerouted, err := syncJobParents(ctx, tx, before, flow, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("apply dynamic %s: commit: %w", flowUUID, err)
	}

	s.metrics.allocated(len(ids))
	s.metrics.wrote(Jobs, len(specs)+rerouted)
	s.metrics.wrote(Flows, 1)
	s.metrics.dynamic(string(typ))
	s.logger.Info("dynamic response applied",
		"flow", flowUUID, "job", jobUUID, "type", typ, "db_ids", ids)
	return flow, nil
}

// syncJobParents copies the parents of every pre-existing job whose latest
// version changed them in after onto that version's job document. It returns
// the number of documents updated.
func syncJobParents(ctx context.Context, q queryer, before, after *record.FlowRecord, now time.Time) (int, error) {
	old, err := before.IndexParents()
	if err != nil {
		return 0, err
	}
	cur, err := after.IndexParents()
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, uuid := range before.Jobs {
		latest, err := after.LatestIndex(uuid)
		if err != nil {
			return 0, err
		}
		// Versions added by this response have no old entry; they were
		// written with their parents already.
		parents, ok := old[uuid][latest]
		if !ok || slices.Equal(parents, cur[uuid][latest]) {
			continue
		}
		dbID, err := after.DBID(uuid, latest)
		if err != nil {
			return 0, err
		}
		if err := updateDoc(ctx, q, Jobs, JobKey(dbID), doc.Update{
			"parents":    doc.Strings(cur[uuid][latest]),
			"updated_on": doc.NewTime(now),
		}); err != nil {
			return 0, err
		}
		updated++
	}
	return updated, nil
}
