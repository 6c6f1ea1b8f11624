package conc

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

func TestPoolUnbounded(t *testing.T) {
	pool := NewPool(0)
	defer pool.Release()
	assert.Equal(t, -1, pool.Cap())

	var (
		wg      sync.WaitGroup
		started atomic.Int32
		count   atomic.Int32
		block   = make(chan struct{})
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(func() {
			defer wg.Done()
			started.Inc()
			<-block
			count.Inc()
		}))
	}
	// 所有任务同时处于阻塞状态，说明池没有限制并发。
	assert.Eventually(t, func() bool { return started.Load() == 64 }, time.Second, 10*time.Millisecond)
	close(block)
	wg.Wait()
	assert.EqualValues(t, 64, count.Load())
}

func TestPoolNonBlockingOverload(t *testing.T) {
	pool := NewPool(1, WithNonBlocking(true))
	defer pool.Release()

	block := make(chan struct{})
	defer close(block)
	require.NoError(t, pool.Submit(func() { <-block }))

	err := pool.Submit(func() {})
	assert.ErrorIs(t, err, merr.ErrServiceRateLimit)
}

func TestPoolClosed(t *testing.T) {
	pool := NewPool(0)
	pool.Release()
	assert.ErrorIs(t, pool.Submit(func() {}), merr.ErrServiceStopped)
}

func TestPoolPreAndPanicHandler(t *testing.T) {
	var (
		pre      atomic.Int32
		panicked = make(chan any, 1)
	)
	pool := NewPool(0,
		WithPreHandler(func() { pre.Inc() }),
		WithPanicHandler(func(v any) { panicked <- v }),
	)
	defer pool.Release()

	require.NoError(t, pool.Submit(func() { panic("boom") }))
	select {
	case v := <-panicked:
		assert.Equal(t, "boom", v)
	case <-time.After(time.Second):
		t.Fatal("panic handler not called")
	}
	assert.EqualValues(t, 1, pre.Load())
}

func TestPoolConcealPanic(t *testing.T) {
	pool := NewPool(1, WithConcealPanic(true))
	defer pool.Release()

	require.NoError(t, pool.Submit(func() { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, pool.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool stopped running tasks after a panic")
	}
}
