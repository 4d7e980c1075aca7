// file: internal/tasking/tasking_test.go
package tasking

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/bsonrpc/internal/logging"
)

func testLogger() logging.Logger { return logging.GetNoopLogger() }

func TestThreadedTasking_SpawnAndWait(t *testing.T) {
	tk := New(Threads, testLogger())
	task := tk.Spawn(GroupHandlers, func(ctx context.Context) (any, error) {
		return 42, nil
	})
	r := task.Wait(context.Background())
	require.NoError(t, r.Err)
	assert.Equal(t, 42, r.Value)
	assert.True(t, r.Ok())
}

func TestThreadedTasking_PanicRecovered(t *testing.T) {
	tk := New(Threads, testLogger())
	task := tk.Spawn(GroupHandlers, func(ctx context.Context) (any, error) {
		panic("boom")
	})
	r := task.Wait(context.Background())
	require.Error(t, r.Err)
	assert.False(t, r.Ok())
}

func TestThreadedTasking_QuotaBoundsConcurrency(t *testing.T) {
	tk := New(Threads, testLogger())
	tk.SetQuota(GroupHandlers, 1)

	var concurrent, maxConcurrent atomic.Int32
	release := make(chan struct{})

	for i := 0; i < 3; i++ {
		tk.Spawn(GroupHandlers, func(ctx context.Context) (any, error) {
			n := concurrent.Add(1)
			for {
				old := maxConcurrent.Load()
				if n <= old || maxConcurrent.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			concurrent.Add(-1)
			return nil, nil
		})
	}

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, maxConcurrent.Load(), int32(1))
	close(release)
}

func TestThreadedTasking_Join(t *testing.T) {
	tk := New(Threads, testLogger())
	var done atomic.Bool
	tk.Spawn(GroupHandlers, func(ctx context.Context) (any, error) {
		time.Sleep(10 * time.Millisecond)
		done.Store(true)
		return nil, nil
	})
	require.NoError(t, tk.Join(context.Background()))
	assert.True(t, done.Load())
}

func TestThreadedPromise_SetIsIdempotent(t *testing.T) {
	tk := New(Threads, testLogger())
	p := tk.NewPromise()
	p.Set("first", nil)
	p.Set("second", nil) // logged warning, ignored

	v, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.True(t, p.IsSet())
}

func TestThreadedPromise_WaitRespectsContext(t *testing.T) {
	tk := New(Threads, testLogger())
	p := tk.NewPromise()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx)
	require.Error(t, err)
}

func TestCooperativeTasking_SpawnAndWait(t *testing.T) {
	tk := New(Cooperative, testLogger())
	task := tk.Spawn(GroupHandlers, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	r := task.Wait(context.Background())
	require.NoError(t, r.Err)
	assert.Equal(t, "ok", r.Value)
}

func TestCooperativeTasking_PanicRecovered(t *testing.T) {
	tk := New(Cooperative, testLogger())
	task := tk.Spawn(GroupHandlers, func(ctx context.Context) (any, error) {
		panic("boom")
	})
	r := task.Wait(context.Background())
	require.Error(t, r.Err)
}

func TestCooperativeTasking_OneTaskAtATime(t *testing.T) {
	tk := New(Cooperative, testLogger())
	var concurrent atomic.Int32
	var sawOverlap atomic.Bool
	done := make(chan struct{}, 2)

	body := func(ctx context.Context) (any, error) {
		n := concurrent.Add(1)
		if n > 1 {
			sawOverlap.Store(true)
		}
		time.Sleep(5 * time.Millisecond)
		concurrent.Add(-1)
		done <- struct{}{}
		return nil, nil
	}
	tk.Spawn(GroupHandlers, body)
	tk.Spawn(GroupHandlers, body)

	<-done
	<-done
	assert.False(t, sawOverlap.Load())
}

func TestCooperativeTasking_Join(t *testing.T) {
	tk := New(Cooperative, testLogger())
	var done atomic.Bool
	tk.Spawn(GroupHandlers, func(ctx context.Context) (any, error) {
		done.Store(true)
		return nil, nil
	})
	require.NoError(t, tk.Join(context.Background()))
	assert.True(t, done.Load())
}
