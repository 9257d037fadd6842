package record

import (
	"cmp"
	"maps"
	"slices"
	"strconv"

	"github.com/roach88/flowdoc/internal/errs"
)

type graphViews struct {
	indexParents map[string]map[int][]string
	children     map[string][]JobRef
	ids          map[string]map[int]int64
}

func (f *FlowRecord) cache() *graphViews {
	if f.views == nil {
		f.views = &graphViews{}
	}
	return f.views
}

// IndexParents returns the parents table with integer indices.
// A key that is not a positive decimal integer is a graph integrity error.
//
// The parent lists are copies, so changing them never reaches f.Parents.
// The returned maps are the cached view itself and must not be modified.
func (f *FlowRecord) IndexParents() (map[string]map[int][]string, error) {
	if v := f.cache(); v.indexParents != nil {
		return v.indexParents, nil
	}
	out := make(map[string]map[int][]string, len(f.Parents))
	for child, byIndex := range f.Parents {
		converted := make(map[int][]string, len(byIndex))
		for key, parents := range byIndex {
			idx, err := parseIndex(key)
			if err != nil {
				return nil, errs.GraphIntegrity("record.flow.index_parents",
					"flow %s: job %s: %v", f.UUID, child, err)
			}
			converted[idx] = slices.Clone(parents)
		}
		out[child] = converted
	}
	f.cache().indexParents = out
	return out, nil
}

func parseIndex(key string) (int, error) {
	idx, err := strconv.Atoi(key)
	if err != nil || idx < 1 || strconv.Itoa(idx) != key {
		return 0, errs.Validation("record.parse_index", "index key %q is not a positive integer", key)
	}
	return idx, nil
}

// Children returns the inverse of the parents table: parent uuid -> the
// (child uuid, child index) pairs that depend on it. Children of each parent
// are ordered by child uuid, then index.
func (f *FlowRecord) Children() (map[string][]JobRef, error) {
	if v := f.cache(); v.children != nil {
		return v.children, nil
	}
	indexed, err := f.IndexParents()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]JobRef)
	for _, child := range slices.Sorted(maps.Keys(indexed)) {
		byIndex := indexed[child]
		for _, idx := range slices.Sorted(maps.Keys(byIndex)) {
			for _, parent := range byIndex[idx] {
				out[parent] = append(out[parent], JobRef{UUID: child, Index: idx})
			}
		}
	}
	f.cache().children = out
	return out, nil
}

// Descendants returns every job version reachable from uuid through the
// children graph, sorted by uuid then index. Reachability is tracked per
// uuid: reaching any index of a job continues from all children of that
// uuid. A uuid with no children, or unknown to the flow, has none. Cycles
// terminate.
func (f *FlowRecord) Descendants(uuid string) ([]JobRef, error) {
	children, err := f.Children()
	if err != nil {
		return nil, err
	}

	visited := make(map[JobRef]bool)
	work := []string{uuid}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		for _, ch := range children[cur] {
			if visited[ch] {
				continue
			}
			visited[ch] = true
			work = append(work, ch.UUID)
		}
	}

	out := make([]JobRef, 0, len(visited))
	for ref := range visited {
		out = append(out, ref)
	}
	slices.SortFunc(out, compareRefs)
	return out, nil
}

func compareRefs(a, b JobRef) int {
	return cmp.Or(cmp.Compare(a.UUID, b.UUID), cmp.Compare(a.Index, b.Index))
}

// IDsMapping returns uuid -> index -> db_id built from the ids registry.
func (f *FlowRecord) IDsMapping() map[string]map[int]int64 {
	if v := f.cache(); v.ids != nil {
		return v.ids
	}
	out := make(map[string]map[int]int64)
	for _, id := range f.IDs {
		if out[id.UUID] == nil {
			out[id.UUID] = make(map[int]int64)
		}
		out[id.UUID][id.Index] = id.DBID
	}
	f.cache().ids = out
	return out
}

// DBID returns the db_id of a job version.
func (f *FlowRecord) DBID(uuid string, index int) (int64, error) {
	byIndex, ok := f.IDsMapping()[uuid]
	if !ok {
		return 0, errs.Lookup("record.flow.db_id", "job %s not in flow %s", uuid, f.UUID)
	}
	id, ok := byIndex[index]
	if !ok {
		return 0, errs.Lookup("record.flow.db_id", "job %s has no index %d in flow %s", uuid, index, f.UUID)
	}
	return id, nil
}

// Versions returns the registered indices of uuid in ascending order.
func (f *FlowRecord) Versions(uuid string) ([]int, error) {
	byIndex, ok := f.IDsMapping()[uuid]
	if !ok {
		return nil, errs.Lookup("record.flow.versions", "job %s not in flow %s", uuid, f.UUID)
	}
	return slices.Sorted(maps.Keys(byIndex)), nil
}

// JobIDByDBID returns the registry entry holding dbID.
func (f *FlowRecord) JobIDByDBID(dbID int64) (JobID, error) {
	for _, id := range f.IDs {
		if id.DBID == dbID {
			return id, nil
		}
	}
	return JobID{}, errs.Lookup("record.flow.job_id", "db_id %d not in flow %s", dbID, f.UUID)
}

// Validate checks the integrity of the ids registry and the parents table:
// db_ids unique, (uuid, index) pairs unique, indices of each uuid consecutive
// from 1, parents keys positive integers naming registered versions, and
// every parent uuid registered in the flow.
func (f *FlowRecord) Validate() error {
	const op = "record.flow.validate"

	seenDB := make(map[int64]JobID, len(f.IDs))
	seenRef := make(map[JobRef]bool, len(f.IDs))
	indices := make(map[string][]int)
	for _, id := range f.IDs {
		if prev, ok := seenDB[id.DBID]; ok {
			return errs.GraphIntegrity(op, "flow %s: db_id %d used by %s/%d and %s/%d",
				f.UUID, id.DBID, prev.UUID, prev.Index, id.UUID, id.Index)
		}
		seenDB[id.DBID] = id
		if seenRef[id.Ref()] {
			return errs.GraphIntegrity(op, "flow %s: job %s index %d registered twice", f.UUID, id.UUID, id.Index)
		}
		seenRef[id.Ref()] = true
		indices[id.UUID] = append(indices[id.UUID], id.Index)
	}

	for _, uuid := range slices.Sorted(maps.Keys(indices)) {
		got := slices.Sorted(slices.Values(indices[uuid]))
		for i, idx := range got {
			if idx != i+1 {
				return errs.GraphIntegrity(op, "flow %s: job %s indices %v are not consecutive from 1", f.UUID, uuid, got)
			}
		}
	}

	for _, child := range slices.Sorted(maps.Keys(f.Parents)) {
		byIndex := f.Parents[child]
		for _, key := range slices.Sorted(maps.Keys(byIndex)) {
			idx, err := parseIndex(key)
			if err != nil {
				return errs.GraphIntegrity(op, "flow %s: job %s: %v", f.UUID, child, err)
			}
			if !seenRef[JobRef{UUID: child, Index: idx}] {
				return errs.GraphIntegrity(op, "flow %s: parents entry for unregistered job %s index %d", f.UUID, child, idx)
			}
			for _, p := range byIndex[key] {
				if _, ok := indices[p]; !ok {
					return errs.GraphIntegrity(op, "flow %s: job %s index %d: dangling parent %s", f.UUID, child, idx, p)
				}
			}
		}
	}
	return nil
}
