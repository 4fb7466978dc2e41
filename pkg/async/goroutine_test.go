package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
}

func TestSafeGo_Success(t *testing.T) {
	var executed atomic.Bool
	done := SafeGo(context.Background(), nil, time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})
	waitDone(t, done)
	assert.True(t, executed.Load())
}

func TestSafeGo_ErrorIsSwallowed(t *testing.T) {
	done := SafeGo(context.Background(), nil, time.Second, "test task", func(ctx context.Context) error {
		return errors.New("boom")
	})
	waitDone(t, done)
}

func TestSafeGo_Timeout(t *testing.T) {
	var completed atomic.Bool
	done := SafeGo(context.Background(), nil, 20*time.Millisecond, "test task", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			completed.Store(true)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	waitDone(t, done)
	assert.False(t, completed.Load())
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	done := SafeGo(context.Background(), nil, time.Second, "test task", func(ctx context.Context) error {
		panic("test panic")
	})
	waitDone(t, done)
}

func TestSafeGo_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var sawCancel atomic.Bool
	done := SafeGo(ctx, nil, time.Minute, "test task", func(ctx context.Context) error {
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	})
	cancel()
	waitDone(t, done)
	assert.True(t, sawCancel.Load())
}

func TestBatch_AlignsErrorsWithItems(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	errs := Batch(context.Background(), items, 3, time.Second, func(ctx context.Context, n int) error {
		if n%2 == 0 {
			return errors.New("even")
		}
		return nil
	})

	require.Len(t, errs, len(items))
	for i, n := range items {
		if n%2 == 0 {
			assert.Error(t, errs[i], "item %d", n)
		} else {
			assert.NoError(t, errs[i], "item %d", n)
		}
	}
}

func TestBatch_RespectsWorkerLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 20)
	Batch(context.Background(), items, 4, time.Second, func(ctx context.Context, _ int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})
	assert.LessOrEqual(t, peak.Load(), int32(4))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestBatch_PanicBecomesError(t *testing.T) {
	errs := Batch(context.Background(), []string{"ok", "bad"}, 2, time.Second, func(ctx context.Context, s string) error {
		if s == "bad" {
			panic("bad item")
		}
		return nil
	})
	assert.NoError(t, errs[0])
	require.Error(t, errs[1])
	assert.Contains(t, errs[1].Error(), "panic: bad item")
}

func TestBatch_PerItemTimeout(t *testing.T) {
	errs := Batch(context.Background(), []int{1}, 1, 10*time.Millisecond, func(ctx context.Context, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, errs[0], context.DeadlineExceeded)
}

func TestBatch_CancelledContextSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	errs := Batch(ctx, []int{1, 2, 3}, 1, time.Second, func(ctx context.Context, _ int) error {
		calls.Add(1)
		return nil
	})
	assert.Equal(t, int32(0), calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestBatch_Empty(t *testing.T) {
	errs := Batch(context.Background(), []int(nil), 4, time.Second, func(ctx context.Context, _ int) error {
		t.Fatal("should not be called")
		return nil
	})
	assert.Empty(t, errs)
}
