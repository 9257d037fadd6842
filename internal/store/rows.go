package store

import (
	"context"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/projection"
	"github.com/roach88/flowdoc/internal/query"
)

// flowJobFields are the job fields embedded in flow rows.
var flowJobFields = []string{"db_id", "job.name", "state", "worker"}

// JobInfoRows returns job rows projected on projection.JobInfoFields,
// ordered by db_id.
func (s *Store) JobInfoRows(ctx context.Context, filter query.Predicate) ([]doc.Map, error) {
	docs, err := s.Find(ctx, Jobs, filter, "db_id")
	if err != nil {
		return nil, err
	}
	rows := make([]doc.Map, len(docs))
	for i, m := range docs {
		rows[i] = m.Project(projection.JobInfoFields)
	}
	return rows, nil
}

// FlowInfoRows returns flow documents ordered by uuid, each carrying the
// name, state and worker of its jobs under projection.JobsListKey in the
// order of the flow's ids registry.
func (s *Store) FlowInfoRows(ctx context.Context, filter query.Predicate) ([]doc.Map, error) {
	flows, err := s.Find(ctx, Flows, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]doc.Map, 0, len(flows))
	for _, flow := range flows {
		dbIDs := idsColumn(flow)
		jobs := []doc.Map{}
		if len(dbIDs) > 0 {
			jobs, err = s.Find(ctx, Jobs, query.In{Field: "db_id", Values: dbIDs})
			if err != nil {
				return nil, err
			}
		}
		byID := make(map[doc.Int]doc.Map, len(jobs))
		for _, j := range jobs {
			if id, ok := j["db_id"].(doc.Int); ok {
				byID[id] = j.Project(flowJobFields)
			}
		}

		list := doc.Array{}
		for _, id := range dbIDs {
			if j, ok := byID[id.(doc.Int)]; ok {
				list = append(list, j)
			}
		}
		flow[projection.JobsListKey] = list
		rows = append(rows, flow)
	}
	return rows, nil
}

// idsColumn returns the db_ids of a flow document's ids registry.
func idsColumn(flow doc.Map) []doc.Value {
	ids, _ := flow["ids"].(doc.Array)
	out := make([]doc.Value, 0, len(ids))
	for _, entry := range ids {
		triple, ok := entry.(doc.Array)
		if !ok || len(triple) != 3 {
			continue
		}
		if id, ok := triple[0].(doc.Int); ok {
			out = append(out, id)
		}
	}
	return out
}
