package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/projection"
	"github.com/roach88/flowdoc/internal/query"
	"github.com/roach88/flowdoc/internal/record"
	"github.com/roach88/flowdoc/internal/spec"
	"github.com/roach88/flowdoc/internal/state"
	"github.com/roach88/flowdoc/internal/testutil"
)

var localWorker = JobDefaults{Worker: "local"}

func TestSubmitFlow(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	flow, err := s.SubmitFlow(ctx, chainFlow("f1"), localWorker, testutil.Epoch)
	require.NoError(t, err)
	assert.Equal(t, []record.JobID{
		{DBID: 1, UUID: "f1-A", Index: 1},
		{DBID: 2, UUID: "f1-B", Index: 1},
	}, flow.IDs)

	a, err := s.LoadJob(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "f1-A", a.UUID)
	assert.Equal(t, state.JobReady, a.State)
	assert.Equal(t, "local", a.Worker)

	b, err := s.LoadJob(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, state.JobWaiting, b.State)
	assert.Equal(t, []string{"f1-A"}, b.Parents)

	loaded, err := s.LoadFlow(ctx, "f1")
	require.NoError(t, err)
	flow.Invalidate()
	loaded.Invalidate()
	assert.Equal(t, flow, loaded)

	// db_ids keep counting across flows
	second, err := s.SubmitFlow(ctx, chainFlow("f2"), localWorker, testutil.Epoch)
	require.NoError(t, err)
	assert.Equal(t, int64(3), second.IDs[0].DBID)
	assert.Equal(t, int64(4), second.IDs[1].DBID)
}

func TestSubmitFlowRejects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SubmitFlow(ctx, chainFlow("f1"), localWorker, testutil.Epoch)
	require.NoError(t, err)

	_, err = s.SubmitFlow(ctx, chainFlow("f1"), localWorker, testutil.Epoch)
	assert.True(t, errs.IsValidation(err), "duplicate flow: %v", err)

	noUUID := chainFlow("")
	noUUID.UUID = ""
	_, err = s.SubmitFlow(ctx, noUUID, localWorker, testutil.Epoch)
	assert.True(t, errs.IsValidation(err))

	_, err = s.SubmitFlow(ctx, chainFlow("f3"), JobDefaults{}, testutil.Epoch)
	assert.True(t, errs.IsValidation(err), "no worker: %v", err)

	// the failed submission rolled back its id allocation
	_, err = s.LoadFlow(ctx, "f3")
	assert.True(t, errs.IsLookup(err))
	ids, err := s.NextDBIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)
}

func TestLoadJobVersion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.SubmitFlow(ctx, chainFlow("f1"), localWorker, testutil.Epoch)
	require.NoError(t, err)

	j, err := s.LoadJobVersion(ctx, "f1-B", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), j.DBID)

	_, err = s.LoadJobVersion(ctx, "f1-B", 2)
	assert.True(t, errs.IsLookup(err))
}

func TestSaveJobAndFlow(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	flow, err := s.SubmitFlow(ctx, chainFlow("f1"), localWorker, testutil.Epoch)
	require.NoError(t, err)

	j, err := s.LoadJob(ctx, 1)
	require.NoError(t, err)
	j.State = state.JobCompleted
	require.NoError(t, s.SaveJob(ctx, j))
	got, err := s.LoadJob(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, state.JobCompleted, got.State)

	flow.State = state.FlowRunning
	require.NoError(t, s.SaveFlow(ctx, flow))
	loaded, err := s.LoadFlow(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, state.FlowRunning, loaded.State)
}

func TestResetJob(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock()
	_, err := s.SubmitFlow(ctx, chainFlow("f1"), localWorker, clock.Now())
	require.NoError(t, err)

	j, err := s.LoadJob(ctx, 1)
	require.NoError(t, err)
	msg := "boom"
	start := clock.Advance(time.Minute)
	qs := state.QueueFailed
	j.State = state.JobRemoteError
	j.Error = &msg
	j.StartTime = &start
	j.Remote.StepAttempts = 3
	j.Remote.QueueState = &qs
	j.Remote.Error = &msg
	require.NoError(t, s.SaveJob(ctx, j))

	later := clock.Advance(time.Hour)
	require.NoError(t, s.ResetJob(ctx, 1, later))

	got, err := s.LoadJob(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, state.JobRemoteError, got.State, "state is left to the caller")
	assert.Nil(t, got.Error)
	assert.Nil(t, got.StartTime)
	assert.Equal(t, 0, got.Remote.StepAttempts)
	assert.Nil(t, got.Remote.QueueState)
	assert.Nil(t, got.Remote.Error)
	assert.Equal(t, later, got.UpdatedOn)
	assert.Equal(t, testutil.Epoch, got.CreatedOn)

	_, err = s.AcquireLock(ctx, Jobs, JobKey(1), later)
	require.NoError(t, err)
	err = s.ResetJob(ctx, 1, later)
	assert.True(t, errs.IsLocked(err))

	err = s.ResetJob(ctx, 99, later)
	assert.True(t, errs.IsLookup(err))
}

func TestJobInfoRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.SubmitFlow(ctx, chainFlow("f1"), localWorker, testutil.Epoch)
	require.NoError(t, err)

	rows, err := s.JobInfoRows(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		_, hasKwargs := row.Lookup("job.kwargs")
		assert.False(t, hasKwargs, "rows carry only the info fields")
	}

	summaries := make([]projection.JobSummary, len(rows))
	for i, row := range rows {
		summaries[i], err = projection.JobSummaryFromRow(row)
		require.NoError(t, err)
	}
	assert.Equal(t, "a", summaries[0].Name)
	assert.Equal(t, state.JobReady, summaries[0].State)
	assert.Equal(t, "b", summaries[1].Name)
	assert.Equal(t, []string{"f1-A"}, summaries[1].Parents)

	waiting, err := s.JobInfoRows(ctx, query.FieldEquals("state", string(state.JobWaiting)))
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, doc.Int(2), waiting[0]["db_id"])
}

func TestFlowInfoRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.SubmitFlow(ctx, chainFlow("f2"), localWorker, testutil.Epoch)
	require.NoError(t, err)
	_, err = s.SubmitFlow(ctx, chainFlow("f1"), JobDefaults{Worker: "cluster"}, testutil.Epoch)
	require.NoError(t, err)

	rows, err := s.FlowInfoRows(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	sum, err := projection.FlowSummaryFromRow(rows[0])
	require.NoError(t, err)
	assert.Equal(t, "f1", sum.FlowID)
	assert.Equal(t, []int64{3, 4}, sum.DBIDs)
	assert.Equal(t, []string{"f1-A", "f1-B"}, sum.JobIDs)
	assert.Equal(t, []int{1, 1}, sum.JobIndexes)
	assert.Equal(t, []string{"cluster", "cluster"}, sum.Workers)
	assert.Equal(t, []state.JobState{state.JobReady, state.JobWaiting}, sum.JobStates)
	assert.Equal(t, []string{"a", "b"}, sum.JobNames)

	only, err := s.FlowInfoRows(ctx, query.FieldEquals("uuid", "f2"))
	require.NoError(t, err)
	require.Len(t, only, 1)
	sum, err = projection.FlowSummaryFromRow(only[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"local", "local"}, sum.Workers)
}

func TestFlowInfoRowsEmptyFlow(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.SubmitFlow(ctx, spec.FlowSpec{UUID: "empty", Name: "empty"}, localWorker, testutil.Epoch)
	require.NoError(t, err)

	rows, err := s.FlowInfoRows(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, doc.Array{}, rows[0][projection.JobsListKey])
}
