package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/testutil"
)

func TestAcquireReleaseLock(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, Jobs, "1", doc.Map{
		"db_id":     doc.Int(1),
		"lock_id":   doc.Null{},
		"lock_time": doc.Null{},
	}))

	lockID, err := s.AcquireLock(ctx, Jobs, "1", testutil.Epoch)
	require.NoError(t, err)
	assert.NotEmpty(t, lockID)

	got, err := s.Get(ctx, Jobs, "1")
	require.NoError(t, err)
	assert.Equal(t, doc.String(lockID), got["lock_id"])
	assert.Equal(t, doc.NewTime(testutil.Epoch), got["lock_time"])

	_, err = s.AcquireLock(ctx, Jobs, "1", testutil.Epoch)
	assert.True(t, errs.IsLocked(err), "second acquire: %v", err)

	err = s.ReleaseLock(ctx, Jobs, "1", "not-the-holder")
	assert.True(t, errs.IsLocked(err), "release by wrong id: %v", err)

	require.NoError(t, s.ReleaseLock(ctx, Jobs, "1", lockID))
	got, err = s.Get(ctx, Jobs, "1")
	require.NoError(t, err)
	assert.Equal(t, doc.Null{}, got["lock_id"])
	assert.Equal(t, doc.Null{}, got["lock_time"])

	again, err := s.AcquireLock(ctx, Jobs, "1", testutil.Epoch)
	require.NoError(t, err)
	assert.NotEqual(t, lockID, again)
}

func TestAcquireLockMissingDocument(t *testing.T) {
	s := createTestStore(t)

	_, err := s.AcquireLock(context.Background(), Flows, "nope", testutil.Epoch)
	assert.True(t, errs.IsLookup(err))
}

func TestReleaseUnlocked(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, Flows, "f", doc.Map{"lock_id": doc.Null{}}))

	err := s.ReleaseLock(ctx, Flows, "f", "x")
	assert.True(t, errs.IsLocked(err))
}

func TestSwapDetectsConcurrentChange(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, Jobs, "1", doc.Map{"v": doc.Int(1)}))

	_, stale, err := getDoc(ctx, s.db, Jobs, "1")
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, Jobs, "1", doc.Map{"v": doc.Int(2)}))

	err = s.swap(ctx, "test", Jobs, "1", stale, doc.Map{"v": doc.Int(3)})
	assert.True(t, errs.IsLocked(err))

	got, err := s.Get(ctx, Jobs, "1")
	require.NoError(t, err)
	assert.Equal(t, doc.Map{"v": doc.Int(2)}, got)
}
