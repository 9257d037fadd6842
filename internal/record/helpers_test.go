package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flowdoc/internal/spec"
	"github.com/roach88/flowdoc/internal/testutil"
)

func jobSpec(uuid, name string) spec.JobSpec {
	return spec.JobSpec{
		UUID:     uuid,
		Index:    1,
		Name:     name,
		Function: "tasks." + name,
	}
}

func ptr[T any](v T) *T {
	return &v
}

// buildFlow registers the given jobs in order with db_ids starting at 1.
// parents maps a job uuid to the uuids it depends on.
func buildFlow(t *testing.T, uuids []string, parents map[string][]string) *FlowRecord {
	t.Helper()

	now := testutil.Epoch
	jobs := make([]*JobRecord, 0, len(uuids))
	flow := spec.FlowSpec{UUID: "flow-1", Name: "scenario"}
	for i, uuid := range uuids {
		js := jobSpec(uuid, "job_"+uuid)
		flow.Jobs = append(flow.Jobs, js)
		j, err := BuildInitialJob(js, parents[uuid], int64(i+1), "local", nil, nil, now)
		require.NoError(t, err)
		jobs = append(jobs, j)
	}
	f, err := BuildInitialFlow(flow, jobs, now)
	require.NoError(t, err)
	return f
}

func at(minutes int) time.Time {
	return testutil.Epoch.Add(time.Duration(minutes) * time.Minute)
}
