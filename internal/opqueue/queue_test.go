package opqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"upsell/pkg/clock"
	"upsell/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(cfg Config) (*Queue, *clock.Fake) {
	clk := clock.NewFake(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	return New(cfg, clk, logger.NewDiscard()), clk
}

type recorder struct {
	mu     sync.Mutex
	order  []string
	errors map[string]error
}

func newRecorder() *recorder {
	return &recorder{errors: make(map[string]error)}
}

func (r *recorder) op(name string, err error) Func {
	return func(ctx context.Context) (any, error) {
		r.mu.Lock()
		r.order = append(r.order, name)
		r.mu.Unlock()
		return name, err
	}
}

func (r *recorder) onError(name string) func(error) {
	return func(err error) {
		r.mu.Lock()
		r.errors[name] = err
		r.mu.Unlock()
	}
}

func TestEnqueue_DedupKeepsNewest(t *testing.T) {
	q, clk := newTestQueue(DefaultConfig())
	rec := newRecorder()

	q.Enqueue(rec.op("first", nil), Options{DedupKey: "room-1", OnError: rec.onError("first")})
	q.Enqueue(rec.op("second", nil), Options{DedupKey: "room-1", OnError: rec.onError("second")})

	clk.Advance(time.Second)

	assert.Equal(t, []string{"second"}, rec.order)
	require.Contains(t, rec.errors, "first")
	assert.ErrorIs(t, rec.errors["first"], ErrSuperseded)
	assert.Equal(t, "Operation superseded", rec.errors["first"].Error())
	assert.NotContains(t, rec.errors, "second")
	assert.Equal(t, 1, q.Stats().Superseded)
}

func TestRetry_ExhaustsAfterMaxRetries(t *testing.T) {
	q, clk := newTestQueue(DefaultConfig())
	attempts := 0
	var terminal error
	boom := errors.New("network down")

	q.Enqueue(func(ctx context.Context) (any, error) {
		attempts++
		return nil, boom
	}, Options{MaxRetries: 2, OnError: func(err error) { terminal = err }})

	clk.Advance(time.Minute)

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, terminal, boom)
	assert.Equal(t, 0, q.PendingCount())

	clk.Advance(time.Hour)
	assert.Equal(t, 3, attempts, "no fourth attempt")
}

func TestRetry_BackoffDoublesAndCaps(t *testing.T) {
	q, _ := newTestQueue(DefaultConfig())

	assert.Equal(t, time.Second, q.backoff(0))
	assert.Equal(t, 2*time.Second, q.backoff(1))
	assert.Equal(t, 8*time.Second, q.backoff(3))
	assert.Equal(t, 10*time.Second, q.backoff(4))
	assert.Equal(t, 10*time.Second, q.backoff(40))
}

func TestRetry_SucceedsOnSecondAttempt(t *testing.T) {
	q, clk := newTestQueue(DefaultConfig())
	attempts := 0
	var got any

	q.Enqueue(func(ctx context.Context) (any, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("flaky")
		}
		return "ok", nil
	}, Options{MaxRetries: 3, OnSuccess: func(r any) { got = r }})

	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, attempts)

	clk.Advance(time.Second)
	assert.Equal(t, 1, attempts, "still backing off until the processing delay elapses")

	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "ok", got)
}

func TestProcess_PriorityOrderThenFIFO(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 1
	q, clk := newTestQueue(cfg)
	rec := newRecorder()

	q.Enqueue(rec.op("low", nil), Options{Priority: PriorityLow})
	q.Enqueue(rec.op("medium-1", nil), Options{Priority: PriorityMedium})
	q.Enqueue(rec.op("high", nil), Options{Priority: PriorityHigh})
	q.Enqueue(rec.op("medium-2", nil), Options{Priority: PriorityMedium})

	clk.Advance(time.Second)

	assert.Equal(t, []string{"high", "medium-1", "medium-2", "low"}, rec.order)
}

func TestProcess_CriticalRunsWithoutDelay(t *testing.T) {
	q, clk := newTestQueue(DefaultConfig())
	rec := newRecorder()

	q.Enqueue(rec.op("urgent", nil), Options{Priority: PriorityCritical})
	clk.Advance(0)

	assert.Equal(t, []string{"urgent"}, rec.order)
}

func TestProcess_BatchSettlesAllEvenWhenOneFails(t *testing.T) {
	q, clk := newTestQueue(DefaultConfig())
	rec := newRecorder()
	var successes []any

	onSuccess := func(r any) { successes = append(successes, r) }
	q.Enqueue(rec.op("a", nil), Options{OnSuccess: onSuccess})
	q.Enqueue(rec.op("b", errors.New("bad")), Options{OnError: rec.onError("b")})
	q.Enqueue(rec.op("c", nil), Options{OnSuccess: onSuccess})

	clk.Advance(100 * time.Millisecond)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, rec.order)
	assert.ElementsMatch(t, []any{"a", "c"}, successes)
	assert.Error(t, rec.errors["b"])
}

func TestEnqueue_ActiveIDIsNoop(t *testing.T) {
	q, clk := newTestQueue(DefaultConfig())
	release := make(chan struct{})
	started := make(chan struct{})

	q.Enqueue(func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	}, Options{ID: "op-1"})

	done := make(chan struct{})
	go func() {
		clk.Advance(100 * time.Millisecond)
		close(done)
	}()
	<-started

	_, accepted := q.Enqueue(func(ctx context.Context) (any, error) { return nil, nil }, Options{ID: "op-1"})
	assert.False(t, accepted)

	close(release)
	<-done
	assert.Equal(t, 0, q.ActiveCount())
}

func TestCancel_QueuedOperationNeverRuns(t *testing.T) {
	q, clk := newTestQueue(DefaultConfig())
	rec := newRecorder()

	id, _ := q.Enqueue(rec.op("doomed", nil), Options{OnError: rec.onError("doomed")})
	require.True(t, q.Cancel(id))

	clk.Advance(time.Second)

	assert.Empty(t, rec.order)
	assert.ErrorIs(t, rec.errors["doomed"], ErrCancelled)
	assert.False(t, q.Cancel(id))
}

func TestCancel_DuringBackoffStopsRetry(t *testing.T) {
	q, clk := newTestQueue(DefaultConfig())
	attempts := 0
	var gotErr error

	id, _ := q.Enqueue(func(ctx context.Context) (any, error) {
		attempts++
		return nil, errors.New("fail")
	}, Options{MaxRetries: 5, OnError: func(err error) { gotErr = err }})

	clk.Advance(100 * time.Millisecond)
	require.Equal(t, 1, attempts)
	require.True(t, q.Cancel(id))

	clk.Advance(time.Minute)
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, gotErr, ErrCancelled)
}

func TestClear_FailsEveryPendingOperation(t *testing.T) {
	q, clk := newTestQueue(DefaultConfig())
	rec := newRecorder()

	q.Enqueue(rec.op("a", nil), Options{OnError: rec.onError("a")})
	q.Enqueue(rec.op("b", nil), Options{OnError: rec.onError("b")})

	q.Clear()
	clk.Advance(time.Second)

	assert.Empty(t, rec.order)
	assert.ErrorIs(t, rec.errors["a"], ErrQueueCleared)
	assert.ErrorIs(t, rec.errors["b"], ErrQueueCleared)
	assert.Equal(t, 0, q.PendingCount())
}

func TestRetry_StaleRetryIsSupersededByNewerOperation(t *testing.T) {
	q, clk := newTestQueue(DefaultConfig())
	rec := newRecorder()

	q.Enqueue(rec.op("stale", errors.New("fail")), Options{
		DedupKey:   "extra-1",
		MaxRetries: 1,
		OnError:    rec.onError("stale"),
	})
	clk.Advance(100 * time.Millisecond)

	q.Enqueue(rec.op("fresh", nil), Options{DedupKey: "extra-1"})
	clk.Advance(100 * time.Millisecond)
	clk.Advance(2 * time.Second)

	assert.Equal(t, []string{"stale", "fresh"}, rec.order)
	assert.ErrorIs(t, rec.errors["stale"], ErrSuperseded)
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityCritical, ParsePriority("CRITICAL"))
	assert.Equal(t, PriorityLow, ParsePriority("low"))
	assert.Equal(t, PriorityMedium, ParsePriority("whatever"))
	assert.Equal(t, "high", PriorityHigh.String())
}
