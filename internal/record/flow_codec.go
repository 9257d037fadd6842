package record

import (
	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/state"
)

// Serialize returns the storage document of the flow. Parents indices are
// decimal string keys and each ids entry is a [db_id, uuid, index] array.
func (f *FlowRecord) Serialize() (doc.Map, error) {
	parents := make(doc.Map, len(f.Parents))
	for child, byIndex := range f.Parents {
		m := make(doc.Map, len(byIndex))
		for idx, ps := range byIndex {
			m[idx] = doc.Strings(ps)
		}
		parents[child] = m
	}

	ids := make(doc.Array, len(f.IDs))
	for i, id := range f.IDs {
		ids[i] = doc.Array{doc.Int(id.DBID), doc.String(id.UUID), doc.Int(id.Index)}
	}

	metadata := f.Metadata
	if metadata == nil {
		metadata = doc.Map{}
	}

	return doc.Map{
		"uuid":       doc.String(f.UUID),
		"jobs":       doc.Strings(f.Jobs),
		"state":      doc.String(f.State),
		"name":       doc.String(f.Name),
		"lock_id":    doc.OptString(f.LockID),
		"lock_time":  doc.OptTime(f.LockTime),
		"created_on": doc.NewTime(f.CreatedOn),
		"updated_on": doc.NewTime(f.UpdatedOn),
		"metadata":   doc.Clone(metadata),
		"parents":    parents,
		"ids":        ids,
	}, nil
}

// DecodeFlowRecord rebuilds a FlowRecord from its storage document.
// The graph is not validated; call Validate for that.
func DecodeFlowRecord(m doc.Map) (*FlowRecord, error) {
	const op = "record.flow.decode"

	r := newReader(op, m)
	f := &FlowRecord{
		UUID:      r.str("uuid"),
		Jobs:      r.strings("jobs"),
		Name:      derefOr(r.optStr("name")),
		LockID:    r.optStr("lock_id"),
		LockTime:  r.optTime("lock_time"),
		CreatedOn: r.time("created_on"),
		UpdatedOn: r.time("updated_on"),
		Metadata:  r.mapping("metadata"),
	}
	stateName := r.str("state")
	parents := r.mapping("parents")
	rawIDs, _ := r.value("ids")
	if r.err != nil {
		return nil, r.err
	}
	if f.Jobs == nil {
		f.Jobs = []string{}
	}
	if f.Metadata == nil {
		f.Metadata = doc.Map{}
	}

	var err error
	if f.State, err = state.ParseFlowState(stateName); err != nil {
		return nil, errs.Wrap(errs.KindValidation, op, err, "flow %s", f.UUID)
	}

	f.Parents = make(map[string]map[string][]string, len(parents))
	pr := newReader(op, parents)
	for _, child := range parents.SortedKeys() {
		byIndex := pr.sub(child)
		entry := make(map[string][]string, len(byIndex.m))
		for _, idx := range byIndex.m.SortedKeys() {
			entry[idx] = byIndex.strings(idx)
		}
		pr.merge(byIndex)
		f.Parents[child] = entry
	}
	if pr.err != nil {
		return nil, pr.err
	}

	if f.IDs, err = decodeIDs(f.UUID, rawIDs); err != nil {
		return nil, err
	}
	return f, nil
}

func decodeIDs(flowUUID string, v doc.Value) ([]JobID, error) {
	const op = "record.flow.decode_ids"

	if v == nil {
		return []JobID{}, nil
	}
	arr, ok := v.(doc.Array)
	if !ok {
		return nil, errs.Validation(op, "flow %s: ids: want list, got %T", flowUUID, v)
	}
	out := make([]JobID, 0, len(arr))
	for i, elem := range arr {
		triple, ok := elem.(doc.Array)
		if !ok || len(triple) != 3 {
			return nil, errs.Validation(op, "flow %s: ids[%d]: want [db_id, uuid, index]", flowUUID, i)
		}
		dbID, ok1 := triple[0].(doc.Int)
		uuid, ok2 := triple[1].(doc.String)
		index, ok3 := triple[2].(doc.Int)
		if !ok1 || !ok2 || !ok3 {
			return nil, errs.Validation(op, "flow %s: ids[%d]: want [db_id, uuid, index], got [%T, %T, %T]",
				flowUUID, i, triple[0], triple[1], triple[2])
		}
		out = append(out, JobID{DBID: int64(dbID), UUID: string(uuid), Index: int(index)})
	}
	return out, nil
}
