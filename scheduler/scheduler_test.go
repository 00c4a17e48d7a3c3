package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAddTicker_Fires(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int32
	s.AddTicker("leaderboard", 20*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&count, 1)
	})

	time.Sleep(120 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(3))
}

func TestAddTicker_Replaces(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count1, count2 int32
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count1, 1) })
	time.Sleep(30 * time.Millisecond)
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count2, 1) })
	time.Sleep(80 * time.Millisecond)

	snap1 := atomic.LoadInt32(&count1)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&count1), "old ticker must stop after replacement")
	assert.Positive(t, atomic.LoadInt32(&count2))
}

func TestAddDelay_FiresOnce(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int32
	require.True(t, s.AddDelay("bonus:1:bonus", 30*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&count, 1)
	}))
	assert.Equal(t, 1, s.Pending())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
	assert.Zero(t, s.Pending())
}

func TestAddDelay_ReplacesCancelsOld(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int32
	s.AddDelay("d", 500*time.Millisecond, func(context.Context) { atomic.AddInt32(&count, 1) })
	s.AddDelay("d", 30*time.Millisecond, func(context.Context) { atomic.AddInt32(&count, 10) })
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(10), atomic.LoadInt32(&count))
}

func TestRemove(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var ticks, delays int32
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&ticks, 1) })
	s.AddDelay("d", 100*time.Millisecond, func(context.Context) { atomic.AddInt32(&delays, 1) })
	time.Sleep(50 * time.Millisecond)
	s.Remove("task")
	s.Remove("d")
	s.Remove("nope")

	snap := atomic.LoadInt32(&ticks)
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, snap, atomic.LoadInt32(&ticks), "ticker must stop after Remove")
	assert.Zero(t, atomic.LoadInt32(&delays))
}

func TestStop_RunsPendingDelayOnceAndRejectsNew(t *testing.T) {
	s := New(zap.NewNop())

	var count int32
	var ctxErr error
	s.AddDelay("bonus:7:tracker", time.Hour, func(ctx context.Context) {
		ctxErr = ctx.Err()
		atomic.AddInt32(&count, 1)
	})
	s.AddTicker("a", 20*time.Millisecond, func(context.Context) {})
	s.Stop()
	s.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&count), "pending delay runs once on Stop")
	assert.NoError(t, ctxErr, "flushed task runs before the context is cancelled")
	assert.Zero(t, s.Pending())
	assert.Empty(t, s.Tasks())
	assert.False(t, s.AddDelay("late", time.Millisecond, func(context.Context) { atomic.AddInt32(&count, 1) }))
	assert.False(t, s.AddTicker("late", time.Millisecond, func(context.Context) {}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestStop_ReplacedDelayFlushesOnlyLatest(t *testing.T) {
	s := New(zap.NewNop())

	var got []string
	s.AddDelay("bonus:1:daily", time.Hour, func(context.Context) { got = append(got, "old") })
	s.AddDelay("bonus:1:daily", time.Hour, func(context.Context) { got = append(got, "new") })
	s.Stop()

	assert.Equal(t, []string{"new"}, got)
}

func TestRemove_DelayNotFlushedOnStop(t *testing.T) {
	s := New(zap.NewNop())

	var count int32
	s.AddDelay("d", time.Hour, func(context.Context) { atomic.AddInt32(&count, 1) })
	s.Remove("d")
	s.Stop()

	assert.Zero(t, atomic.LoadInt32(&count))
}

func TestStop_WaitsForRunningTask(t *testing.T) {
	s := New(zap.NewNop())
	started := make(chan struct{})
	var finished int32
	s.AddDelay("slow", time.Millisecond, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		atomic.StoreInt32(&finished, 1)
	})
	<-started
	s.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))
}

func TestTasks(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	s.AddTicker("beta", time.Hour, func(context.Context) {})
	s.AddDelay("alpha", time.Hour, func(context.Context) {})

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "alpha", tasks[0].Name)
	assert.Equal(t, "delay", tasks[0].Kind)
	assert.NotNil(t, tasks[0].Due)
	assert.Equal(t, "ticker", tasks[1].Kind)
	assert.Equal(t, time.Hour, tasks[1].Interval)
	assert.Equal(t, "beta", tasks[1].Name)
}

func TestPanicRecovery(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var after int32
	s.AddDelay("panic", time.Millisecond, func(context.Context) { panic("oops") })
	s.AddDelay("after", 20*time.Millisecond, func(context.Context) { atomic.StoreInt32(&after, 1) })
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&after))
}
