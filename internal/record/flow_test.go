package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/spec"
	"github.com/roach88/flowdoc/internal/state"
	"github.com/roach88/flowdoc/internal/testutil"
)

// TestScenarioReplace walks a flow with A and B (B depends on A) through a
// replacement of A by a second version.
func TestScenarioReplace(t *testing.T) {
	f := buildFlow(t, []string{"A", "B"}, map[string][]string{"B": {"A"}})

	assert.Equal(t, map[string]map[string][]string{
		"A": {"1": {}},
		"B": {"1": {"A"}},
	}, f.Parents)
	assert.Equal(t, []JobID{{1, "A", 1}, {2, "B", 1}}, f.IDs)
	assert.Equal(t, []string{"A", "B"}, f.Jobs)
	assert.Equal(t, state.FlowReady, f.State)

	desc, err := f.Descendants("A")
	require.NoError(t, err)
	assert.Contains(t, desc, JobRef{UUID: "B", Index: 1})

	// A is replaced by index 2 carrying the parents of index 1.
	require.NoError(t, f.AddJobVersion(JobID{DBID: 3, UUID: "A", Index: 2}, f.Parents["A"]["1"]))

	assert.Equal(t, []JobID{{1, "A", 1}, {2, "B", 1}, {3, "A", 2}}, f.IDs)
	assert.Equal(t, []string{"A"}, f.Parents["B"]["1"])
	assert.Equal(t, []string{"A", "B"}, f.Jobs, "a new version does not add membership")
	require.NoError(t, f.Validate())

	desc, err = f.Descendants("A")
	require.NoError(t, err)
	assert.Contains(t, desc, JobRef{UUID: "B", Index: 1})

	id, err := f.DBID("A", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	versions, err := f.Versions("A")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)
}

func TestBuildInitialFlowErrors(t *testing.T) {
	a, err := BuildInitialJob(jobSpec("A", "a"), nil, 1, "local", nil, nil, testutil.Epoch)
	require.NoError(t, err)
	dangling, err := BuildInitialJob(jobSpec("B", "b"), []string{"missing"}, 2, "local", nil, nil, testutil.Epoch)
	require.NoError(t, err)
	dupID, err := BuildInitialJob(jobSpec("C", "c"), nil, 1, "local", nil, nil, testutil.Epoch)
	require.NoError(t, err)
	second := *a
	second.UUID = "D"
	second.Index = 2
	second.DBID = 9

	tests := []struct {
		name string
		flow spec.FlowSpec
		jobs []*JobRecord
		kind errs.Kind
	}{
		{"no uuid", spec.FlowSpec{}, []*JobRecord{a}, errs.KindValidation},
		{"bad metadata", spec.FlowSpec{UUID: "f", Metadata: map[string]any{"fn": func() {}}}, nil, errs.KindValidation},
		{"dangling parent", spec.FlowSpec{UUID: "f"}, []*JobRecord{a, dangling}, errs.KindGraphIntegrity},
		{"duplicate db_id", spec.FlowSpec{UUID: "f"}, []*JobRecord{a, dupID}, errs.KindGraphIntegrity},
		{"not a first version", spec.FlowSpec{UUID: "f"}, []*JobRecord{&second}, errs.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := BuildInitialFlow(tt.flow, tt.jobs, testutil.Epoch)
			require.Error(t, err)
			assert.Nil(t, f)
			assert.Equal(t, tt.kind, errs.KindOf(err), "got %v", err)
		})
	}
}

// TestChildrenInverse tests that every (child, index, parent) triple of the
// parents table shows up exactly once under the parent in Children.
func TestChildrenInverse(t *testing.T) {
	f := &FlowRecord{
		UUID: "f",
		Parents: map[string]map[string][]string{
			"B": {"1": {"A"}, "2": {"A", "C"}},
			"C": {"1": {"A"}},
			"D": {"1": {"B", "C"}},
			"A": {"1": {}},
		},
	}
	children, err := f.Children()
	require.NoError(t, err)

	assert.Equal(t, map[string][]JobRef{
		"A": {{"B", 1}, {"B", 2}, {"C", 1}},
		"B": {{"D", 1}},
		"C": {{"B", 2}, {"D", 1}},
	}, children)

	count := 0
	for child, byIndex := range f.Parents {
		for key, parents := range byIndex {
			idx, err := parseIndex(key)
			require.NoError(t, err)
			for _, p := range parents {
				count++
				assert.Contains(t, children[p], JobRef{child, idx})
			}
		}
	}
	total := 0
	for _, refs := range children {
		total += len(refs)
	}
	assert.Equal(t, count, total, "no extra entries")
}

func TestDescendants(t *testing.T) {
	f := buildFlow(t, []string{"A", "B", "C", "D"}, map[string][]string{
		"B": {"A"},
		"C": {"B"},
		"D": {"A", "C"},
	})

	tests := []struct {
		uuid string
		want []JobRef
	}{
		{"A", []JobRef{{"B", 1}, {"C", 1}, {"D", 1}}},
		{"B", []JobRef{{"C", 1}, {"D", 1}}},
		{"D", []JobRef{}},
		{"unknown", []JobRef{}},
	}
	for _, tt := range tests {
		t.Run(tt.uuid, func(t *testing.T) {
			got, err := f.Descendants(tt.uuid)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestDescendantsCyclic tests that traversal of a cyclic parents table
// terminates without duplicates.
func TestDescendantsCyclic(t *testing.T) {
	f := &FlowRecord{
		UUID: "f",
		Parents: map[string]map[string][]string{
			"B": {"1": {"A"}},
			"A": {"1": {"B"}},
		},
	}
	got, err := f.Descendants("A")
	require.NoError(t, err)
	assert.Equal(t, []JobRef{{"A", 1}, {"B", 1}}, got)
}

// TestDescendantsCollapsesVersions tests that reaching any version of a uuid
// continues the walk from the children of every version of that uuid.
func TestDescendantsCollapsesVersions(t *testing.T) {
	f := &FlowRecord{
		UUID: "f",
		Parents: map[string]map[string][]string{
			"B": {"1": {"A"}, "2": {}},
			"C": {"1": {"B"}},
		},
	}
	got, err := f.Descendants("A")
	require.NoError(t, err)
	assert.Equal(t, []JobRef{{"B", 1}, {"C", 1}}, got)
}

func TestIDsMapping(t *testing.T) {
	f := buildFlow(t, []string{"A", "B"}, map[string][]string{"B": {"A"}})
	require.NoError(t, f.AddJobVersion(JobID{DBID: 3, UUID: "A", Index: 2}, nil))

	mapping := f.IDsMapping()
	for _, id := range f.IDs {
		assert.Equal(t, id.DBID, mapping[id.UUID][id.Index])
	}

	_, err := f.DBID("missing", 1)
	assert.True(t, errs.IsLookup(err))
	_, err = f.DBID("A", 5)
	assert.True(t, errs.IsLookup(err))
	_, err = f.Versions("missing")
	assert.True(t, errs.IsLookup(err))
	_, err = f.LatestIndex("missing")
	assert.True(t, errs.IsLookup(err))

	latest, err := f.LatestIndex("A")
	require.NoError(t, err)
	assert.Equal(t, 2, latest)

	id, err := f.JobIDByDBID(3)
	require.NoError(t, err)
	assert.Equal(t, JobID{3, "A", 2}, id)
	_, err = f.JobIDByDBID(99)
	assert.True(t, errs.IsLookup(err))
	assert.Equal(t, int64(4), f.NextDBID())
}

func TestViewsInvalidate(t *testing.T) {
	f := buildFlow(t, []string{"A", "B"}, map[string][]string{"B": {"A"}})

	_, err := f.Children()
	require.NoError(t, err)
	_ = f.IDsMapping()
	require.NotNil(t, f.views)

	// Direct edits are invisible until Invalidate.
	f.Parents["B"]["1"] = []string{}
	children, err := f.Children()
	require.NoError(t, err)
	assert.Len(t, children["A"], 1)

	f.Invalidate()
	children, err = f.Children()
	require.NoError(t, err)
	assert.Empty(t, children["A"])

	// Mutators invalidate on their own.
	require.NoError(t, f.SetParents("B", 1, []string{"A"}))
	children, err = f.Children()
	require.NoError(t, err)
	assert.Equal(t, []JobRef{{"B", 1}}, children["A"])

	require.NoError(t, f.AddJobVersion(JobID{DBID: 3, UUID: "C", Index: 1}, []string{"B"}))
	children, err = f.Children()
	require.NoError(t, err)
	assert.Equal(t, []JobRef{{"C", 1}}, children["B"])
	assert.Equal(t, int64(3), f.IDsMapping()["C"][1])
	assert.Equal(t, []string{"A", "B", "C"}, f.Jobs)
}

func TestAddJobVersionErrors(t *testing.T) {
	tests := []struct {
		name    string
		id      JobID
		parents []string
	}{
		{"duplicate db_id", JobID{2, "C", 1}, nil},
		{"skipped index", JobID{3, "A", 3}, nil},
		{"new uuid not at 1", JobID{3, "C", 2}, nil},
		{"dangling parent", JobID{3, "C", 1}, []string{"Z"}},
		{"self parent", JobID{3, "C", 1}, []string{"C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := buildFlow(t, []string{"A", "B"}, map[string][]string{"B": {"A"}})
			before := f.Clone()

			err := f.AddJobVersion(tt.id, tt.parents)
			require.Error(t, err)
			assert.True(t, errs.IsGraphIntegrity(err), "got %v", err)
			f.Invalidate()
			assert.Equal(t, before, f, "failed mutation must not change the flow")
		})
	}
}

func TestAppendParents(t *testing.T) {
	f := buildFlow(t, []string{"A", "B", "C"}, map[string][]string{"C": {"A"}})
	require.NoError(t, f.AppendParents("C", 1, []string{"A", "B"}))
	assert.Equal(t, []string{"A", "B"}, f.Parents["C"]["1"])

	err := f.AppendParents("C", 2, []string{"B"})
	assert.True(t, errs.IsLookup(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *FlowRecord)
	}{
		{"duplicate db_id", func(f *FlowRecord) { f.IDs[1].DBID = 1 }},
		{"duplicate version", func(f *FlowRecord) { f.IDs = append(f.IDs, JobID{9, "A", 1}) }},
		{"non-consecutive indices", func(f *FlowRecord) { f.IDs = append(f.IDs, JobID{9, "A", 3}) }},
		{"zero index", func(f *FlowRecord) { f.IDs[0].Index = 0 }},
		{"dangling parent", func(f *FlowRecord) { f.Parents["B"]["1"] = []string{"Z"} }},
		{"malformed index key", func(f *FlowRecord) { f.Parents["B"]["one"] = []string{"A"} }},
		{"non-positive index key", func(f *FlowRecord) { f.Parents["B"]["0"] = []string{"A"} }},
		{"padded index key", func(f *FlowRecord) { f.Parents["B"]["01"] = []string{"A"} }},
		{"unregistered version", func(f *FlowRecord) { f.Parents["B"]["2"] = []string{"A"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := buildFlow(t, []string{"A", "B"}, map[string][]string{"B": {"A"}})
			require.NoError(t, f.Validate())
			tt.mutate(f)
			err := f.Validate()
			require.Error(t, err)
			assert.True(t, errs.IsGraphIntegrity(err), "got %v", err)
		})
	}
}

func TestIndexParentsCopiesParentLists(t *testing.T) {
	f := buildFlow(t, []string{"A", "B"}, map[string][]string{"B": {"A"}})

	indexed, err := f.IndexParents()
	require.NoError(t, err)
	indexed["B"][1][0] = "X"

	assert.Equal(t, []string{"A"}, f.Parents["B"]["1"])
}

func TestIndexParentsMalformed(t *testing.T) {
	f := &FlowRecord{UUID: "f", Parents: map[string]map[string][]string{"B": {"x": {"A"}}}}
	_, err := f.IndexParents()
	assert.True(t, errs.IsGraphIntegrity(err))
	_, err = f.Children()
	assert.True(t, errs.IsGraphIntegrity(err))
	_, err = f.Descendants("A")
	assert.True(t, errs.IsGraphIntegrity(err))
}

func TestFlowRecordRoundTrip(t *testing.T) {
	f := buildFlow(t, []string{"A", "B"}, map[string][]string{"B": {"A"}})
	require.NoError(t, f.AddJobVersion(JobID{3, "A", 2}, nil))
	f.Invalidate()
	f.LockID = ptr("lock-9")
	f.LockTime = ptr(at(3))
	f.Metadata = doc.Map{"owner": doc.String("ci")}

	m, err := f.Serialize()
	require.NoError(t, err)
	assert.Equal(t, doc.Array{doc.Int(3), doc.String("A"), doc.Int(2)}, m["ids"].(doc.Array)[2])

	got, err := DecodeFlowRecord(m)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestDecodeFlowRecordErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m doc.Map)
	}{
		{"bad state", func(m doc.Map) { m["state"] = doc.String("DONE") }},
		{"ids not a list", func(m doc.Map) { m["ids"] = doc.Map{} }},
		{"short id", func(m doc.Map) { m["ids"] = doc.Array{doc.Array{doc.Int(1), doc.String("A")}} }},
		{"id of wrong types", func(m doc.Map) {
			m["ids"] = doc.Array{doc.Array{doc.String("1"), doc.String("A"), doc.Int(1)}}
		}},
		{"parents entry not a mapping", func(m doc.Map) { m["parents"] = doc.Map{"B": doc.Int(1)} }},
		{"parents list of ints", func(m doc.Map) {
			m["parents"] = doc.Map{"B": doc.Map{"1": doc.Array{doc.Int(1)}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := buildFlow(t, []string{"A", "B"}, map[string][]string{"B": {"A"}})
			m, err := f.Serialize()
			require.NoError(t, err)
			tt.mutate(m)
			_, err = DecodeFlowRecord(m)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err), "got %v", err)
		})
	}
}

func TestCycles(t *testing.T) {
	tests := []struct {
		name    string
		parents map[string]map[string][]string
		want    [][]string
	}{
		{
			name:    "acyclic",
			parents: map[string]map[string][]string{"B": {"1": {"A"}}, "C": {"1": {"A", "B"}}},
			want:    [][]string{},
		},
		{
			name:    "two node cycle",
			parents: map[string]map[string][]string{"B": {"1": {"A"}}, "A": {"1": {"B"}}},
			want:    [][]string{{"A", "B", "A"}},
		},
		{
			name:    "self loop",
			parents: map[string]map[string][]string{"A": {"1": {"A"}}},
			want:    [][]string{{"A", "A"}},
		},
		{
			name: "cycle through a later version",
			parents: map[string]map[string][]string{
				"B": {"1": {"A"}},
				"C": {"1": {"B"}},
				"A": {"1": {}, "2": {"C"}},
			},
			want: [][]string{{"A", "B", "C", "A"}},
		},
		{
			// C links back only to B, so the walk must leave C and close from B.
			name: "branch that does not lead back",
			parents: map[string]map[string][]string{
				"A": {"1": {"B"}},
				"B": {"1": {"A", "C"}},
				"C": {"1": {"B"}},
			},
			want: [][]string{{"A", "B", "A"}},
		},
		{
			name: "closing edge deeper in the component",
			parents: map[string]map[string][]string{
				"B": {"1": {"A", "C"}},
				"C": {"1": {"B"}},
				"D": {"1": {"C"}},
				"A": {"1": {"D"}},
			},
			want: [][]string{{"A", "B", "C", "D", "A"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &FlowRecord{UUID: "f", Parents: tt.parents}
			cycles := f.Cycles()
			paths := make([][]string, 0, len(cycles))
			for _, c := range cycles {
				paths = append(paths, c.Path)
				assert.NotEmpty(t, c.Message)
			}
			assert.Equal(t, tt.want, paths)
		})
	}
}

func TestClone(t *testing.T) {
	f := buildFlow(t, []string{"A", "B"}, map[string][]string{"B": {"A"}})
	c := f.Clone()
	c.Parents["B"]["1"][0] = "X"
	c.IDs[0].DBID = 100
	c.Jobs[0] = "Z"
	c.Metadata["k"] = doc.Int(1)

	assert.Equal(t, []string{"A"}, f.Parents["B"]["1"])
	assert.Equal(t, int64(1), f.IDs[0].DBID)
	assert.Equal(t, "A", f.Jobs[0])
	assert.NotContains(t, f.Metadata, "k")
}
