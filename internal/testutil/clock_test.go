package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock(t *testing.T) {
	c := NewDeterministicClock()
	assert.Equal(t, Epoch, c.Now())
	assert.Equal(t, Epoch, c.Now(), "Now must not advance on its own")

	got := c.Advance(90 * time.Second)
	assert.Equal(t, Epoch.Add(90*time.Second), got)
	assert.Equal(t, got, c.Now())

	c.Reset()
	assert.Equal(t, Epoch, c.Now())
}

func TestSequenceIDs(t *testing.T) {
	ids := NewSequenceIDs("job")
	assert.Equal(t, "job-1", ids.Next())
	assert.Equal(t, "job-2", ids.Next())

	assert.Equal(t, "id-1", NewSequenceIDs("").Next())
}

func TestSequenceIDsConcurrent(t *testing.T) {
	ids := NewSequenceIDs("c")
	seen := sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(ids.Next(), true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
}
