package reaper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	mu     sync.Mutex
	calls  int
	limits []int
	err    error
}

func (c *countingSweeper) SweepExpired(_ context.Context, limit int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.limits = append(c.limits, limit)
	if c.err != nil {
		return 0, c.err
	}
	return 1, nil
}

func (c *countingSweeper) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	sweeper := &countingSweeper{}
	r := New(sweeper, 10*time.Millisecond, 50, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return sweeper.callCount() >= 3
	}, time.Second, 5*time.Millisecond, "reaper should keep sweeping on its interval")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancellation")
	}

	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()
	for _, limit := range sweeper.limits {
		assert.Equal(t, 50, limit)
	}
}

func TestRunSurvivesFailingSweeps(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("database unavailable")}
	r := New(sweeper, 10*time.Millisecond, 50, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	require.Eventually(t, func() bool {
		return sweeper.callCount() >= 3
	}, time.Second, 5*time.Millisecond, "a failing sweep must not stop the loop")
}

func TestSweepRunsOnce(t *testing.T) {
	sweeper := &countingSweeper{}
	r := New(sweeper, time.Hour, 25, nil)

	r.Sweep(context.Background())
	assert.Equal(t, 1, sweeper.callCount())
	assert.Equal(t, []int{25}, sweeper.limits)
}
