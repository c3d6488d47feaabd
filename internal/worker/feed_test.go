package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type mockBatcher struct {
	processBatchFn func(ctx context.Context) (int, error)
}

func (m *mockBatcher) ProcessBatch(ctx context.Context) (int, error) {
	if m.processBatchFn != nil {
		return m.processBatchFn(ctx)
	}
	return 0, nil
}

func TestFeedWorker_StopsOnCancel(t *testing.T) {
	w := NewFeedWorker(&mockBatcher{}, FeedWorkerConfig{PollInterval: time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestFeedWorker_DrainsBacklogWithoutWaiting(t *testing.T) {
	var calls atomic.Int32
	b := &mockBatcher{processBatchFn: func(context.Context) (int, error) {
		n := calls.Add(1)
		if n < 5 {
			return 1, nil
		}
		return 0, nil
	}}
	// A long poll interval: the backlog must still drain inside one tick.
	w := NewFeedWorker(b, FeedWorkerConfig{PollInterval: 20 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(time.Second)
	for calls.Load() < 5 {
		select {
		case <-deadline:
			t.Fatalf("backlog not drained, %d calls", calls.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestFeedWorker_KeepsPollingAfterError(t *testing.T) {
	var calls atomic.Int32
	b := &mockBatcher{processBatchFn: func(context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("connection lost")
	}}
	w := NewFeedWorker(b, FeedWorkerConfig{PollInterval: time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("worker gave up after errors, %d calls", calls.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestScheduleWorker_RunsCycles(t *testing.T) {
	var cycles, sweeps atomic.Int32
	c := &mockCycler{
		runScheduledCycleFn: func(context.Context) (int, error) {
			cycles.Add(1)
			return 0, nil
		},
		runTagSweepFn: func(context.Context) (int, error) {
			sweeps.Add(1)
			return 0, nil
		},
	}
	w := NewScheduleWorker(c, ScheduleWorkerConfig{
		CycleInterval: time.Millisecond,
		SweepInterval: 5 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(time.Second)
	for cycles.Load() < 2 || sweeps.Load() < 1 {
		select {
		case <-deadline:
			t.Fatalf("cycles=%d sweeps=%d", cycles.Load(), sweeps.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

type mockCycler struct {
	runScheduledCycleFn func(ctx context.Context) (int, error)
	runTagSweepFn       func(ctx context.Context) (int, error)
}

func (m *mockCycler) RunScheduledCycle(ctx context.Context) (int, error) {
	if m.runScheduledCycleFn != nil {
		return m.runScheduledCycleFn(ctx)
	}
	return 0, nil
}

func (m *mockCycler) RunTagSweep(ctx context.Context) (int, error) {
	if m.runTagSweepFn != nil {
		return m.runTagSweepFn(ctx)
	}
	return 0, nil
}
