package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPanicRecovery panic 不会导致 worker 退出
func TestPanicRecovery(t *testing.T) {
	pool := NewPool(2, 10)

	var completed atomic.Int32
	for i := 0; i < 2; i++ {
		pool.Submit(func() { panic("boom") })
	}
	for i := 0; i < 3; i++ {
		pool.Submit(func() { completed.Add(1) })
	}

	pool.Stop()

	assert.Equal(t, int32(3), completed.Load())
	stats := pool.GetStats()
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Equal(t, uint64(5), stats.Executed)
}

// TestStopWaitsForRunningTasks Stop 等待正在执行的任务
func TestStopWaitsForRunningTasks(t *testing.T) {
	pool := NewPool(2, 10)

	var completed atomic.Int32
	started := make(chan struct{})
	pool.Submit(func() {
		close(started)
		time.Sleep(200 * time.Millisecond)
		completed.Add(1)
	})
	<-started

	begin := time.Now()
	pool.Stop()

	assert.GreaterOrEqual(t, time.Since(begin), 150*time.Millisecond)
	assert.Equal(t, int32(1), completed.Load())
}

// TestQueueFullDrops 队列满时拒绝任务
func TestQueueFullDrops(t *testing.T) {
	pool := NewPool(1, 2)
	defer pool.Stop()

	blocker := make(chan struct{})
	running := make(chan struct{})
	require.True(t, pool.Submit(func() {
		close(running)
		<-blocker
	}))
	<-running

	assert.True(t, pool.Submit(func() {}))
	assert.True(t, pool.Submit(func() {}))
	assert.False(t, pool.Submit(func() {}))
	assert.Equal(t, uint64(1), pool.GetStats().Dropped)

	close(blocker)
}

// TestSubmitWait 阻塞提交遵循 ctx
func TestSubmitWait(t *testing.T) {
	pool := NewPool(1, 1)
	defer pool.Stop()

	blocker := make(chan struct{})
	running := make(chan struct{})
	require.NoError(t, pool.SubmitWait(context.Background(), func() {
		close(running)
		<-blocker
	}))
	<-running
	require.NoError(t, pool.SubmitWait(context.Background(), func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.SubmitWait(ctx, func() {}), context.DeadlineExceeded)

	close(blocker)
}

// TestConcurrentSubmit 并发提交全部执行
func TestConcurrentSubmit(t *testing.T) {
	pool := NewPool(4, 2000)

	const goroutines, perGoroutine = 50, 20
	var completed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				pool.Submit(func() { completed.Add(1) })
			}
		}()
	}
	wg.Wait()
	pool.Stop()

	assert.Equal(t, int32(goroutines*perGoroutine), completed.Load())
	assert.Equal(t, uint64(goroutines*perGoroutine), pool.GetStats().Submitted)
}

func TestSubmitAfterStop(t *testing.T) {
	pool := NewPool(2, 10)
	pool.Stop()
	pool.Stop()

	assert.False(t, pool.Submit(func() {}))
	assert.Error(t, pool.SubmitWait(context.Background(), func() {}))
}

// TestSubmitNilTask nil 任务计入提交但不执行
func TestSubmitNilTask(t *testing.T) {
	pool := NewPool(2, 10)

	assert.True(t, pool.Submit(nil))
	pool.Stop()

	stats := pool.GetStats()
	assert.Equal(t, uint64(1), stats.Submitted)
	assert.Equal(t, uint64(0), stats.Executed)
}

func TestDefaultPoolConfig(t *testing.T) {
	pool := NewPool(0, 0)
	defer pool.Stop()

	stats := pool.GetStats()
	assert.Greater(t, stats.WorkerCount, 0)
	assert.Equal(t, defaultQueueSize, stats.QueueCap)
}

func TestGlobalPool(t *testing.T) {
	pool := InitGlobalPool(2, 10)
	require.NotNil(t, pool)
	assert.Same(t, pool, InitGlobalPool(8, 100))
	assert.Same(t, pool, GetGlobalPool())

	done := make(chan struct{})
	assert.True(t, pool.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task not executed")
	}

	StopGlobalPool()
	assert.Nil(t, GetGlobalPool())
	StopGlobalPool()
}
