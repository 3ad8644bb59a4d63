package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/client/sync"
	"github.com/iudanet/gophsync/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func result(entityType string, status models.SyncStatus, errs ...error) *models.SyncResult {
	r := &models.SyncResult{EntityType: entityType, Status: status, Errors: errs}
	if status == models.SyncStatusConflict {
		r.ConflictCount = 1
	}
	return r
}

// newManager returns a mock manager whose passes return results in order,
// repeating the last one when the list runs out.
func newManager(entityType string, results ...*models.SyncResult) (*sync.ManagerMock, *atomic.Int32) {
	var calls atomic.Int32
	m := &sync.ManagerMock{
		EntityTypeFunc: func() string { return entityType },
		PerformIncrementalSyncFunc: func(ctx context.Context) (*models.SyncResult, error) {
			n := int(calls.Add(1)) - 1
			if n >= len(results) {
				n = len(results) - 1
			}
			return results[n], nil
		},
		GetPendingConflictsFunc: func(ctx context.Context) ([]*models.ConflictRecord, error) {
			return nil, nil
		},
	}
	return m, &calls
}

func drain(ch <-chan Event) []Event {
	var events []Event
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func path(events []Event) []State {
	if len(events) == 0 {
		return nil
	}
	states := []State{events[0].From}
	for _, ev := range events {
		states = append(states, ev.To)
	}
	return states
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateSyncing, true},
		{StateSyncing, StateSuccess, true},
		{StateSyncing, StateError, true},
		{StateSyncing, StateConflict, true},
		{StateSuccess, StateIdle, true},
		{StateError, StateRetrying, true},
		{StateError, StateIdle, true},
		{StateRetrying, StateSyncing, true},
		{StateConflict, StateResolving, true},
		{StateConflict, StateIdle, true},
		{StateResolving, StateSyncing, true},
		{StateIdle, StateSuccess, false},
		{StateSuccess, StateSyncing, false},
		{StateRetrying, StateIdle, false},
		{StateResolving, StateIdle, false},
		{StateConflict, StateSyncing, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransition_Invalid(t *testing.T) {
	s := New(Config{}, nil, testLogger())

	err := s.transition(StateSuccess, Event{})
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateIdle, s.State())
}

func TestRunOnce_Success(t *testing.T) {
	notes, calls := newManager("note", result("note", models.SyncStatusSuccess))
	tasks, _ := newManager("task", result("task", models.SyncStatusSuccess))
	s := New(Config{MaxRetries: 3, RetryDelay: time.Millisecond}, []sync.Manager{notes, tasks}, testLogger())

	events, unsubscribe := s.Subscribe(32)
	defer unsubscribe()

	results, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateIdle, s.State())

	got := drain(events)
	assert.Equal(t, []State{StateIdle, StateSyncing, StateSuccess, StateIdle}, path(got))
	assert.Equal(t, ReasonManual, got[0].Reason)
	assert.Len(t, got[1].Results, 2)
}

func TestRunOnce_RetriesUntilSuccess(t *testing.T) {
	netErr := &models.NetworkError{Op: "upload", Err: errors.New("connection refused")}
	notes, calls := newManager("note",
		result("note", models.SyncStatusError, netErr),
		result("note", models.SyncStatusSuccess),
	)
	s := New(Config{MaxRetries: 3, RetryDelay: time.Millisecond}, []sync.Manager{notes}, testLogger())

	events, unsubscribe := s.Subscribe(32)
	defer unsubscribe()

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	got := drain(events)
	assert.Equal(t, []State{
		StateIdle, StateSyncing, StateError, StateRetrying, StateSyncing, StateSuccess, StateIdle,
	}, path(got))
	assert.Equal(t, 1, got[2].Attempt)
}

func TestRunOnce_RetriesExhausted(t *testing.T) {
	netErr := &models.NetworkError{Op: "upload", Err: errors.New("timeout")}
	notes, calls := newManager("note", result("note", models.SyncStatusError, netErr))
	s := New(Config{MaxRetries: 2, RetryDelay: time.Millisecond}, []sync.Manager{notes}, testLogger())

	events, unsubscribe := s.Subscribe(64)
	defer unsubscribe()

	results, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.SyncStatusError, results[0].Status)

	// первая попытка и две повторные
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, StateIdle, s.State())

	retrying := 0
	for _, ev := range drain(events) {
		if ev.To == StateRetrying {
			retrying++
		}
	}
	assert.Equal(t, 2, retrying)
}

func TestRunOnce_ValidationErrorsNotRetried(t *testing.T) {
	valErr := &models.ValidationError{Op: "upload", EntityID: "n1", Reason: "title is required"}
	notes, calls := newManager("note", result("note", models.SyncStatusError, valErr))
	s := New(Config{MaxRetries: 5, RetryDelay: time.Millisecond}, []sync.Manager{notes}, testLogger())

	events, unsubscribe := s.Subscribe(32)
	defer unsubscribe()

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []State{StateIdle, StateSyncing, StateError, StateIdle}, path(drain(events)))
}

func TestRunOnce_FatalPassErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	notes := &sync.ManagerMock{
		EntityTypeFunc: func() string { return "note" },
		PerformIncrementalSyncFunc: func(ctx context.Context) (*models.SyncResult, error) {
			if calls.Add(1) == 1 {
				return result("note", models.SyncStatusError), models.NewStorageError("put entity", errors.New("disk full"))
			}
			return result("note", models.SyncStatusSuccess), nil
		},
		GetPendingConflictsFunc: func(ctx context.Context) ([]*models.ConflictRecord, error) { return nil, nil },
	}
	s := New(Config{MaxRetries: 1, RetryDelay: time.Millisecond}, []sync.Manager{notes}, testLogger())

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRunOnce_CanceledPassNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	notes := &sync.ManagerMock{
		EntityTypeFunc: func() string { return "note" },
		PerformIncrementalSyncFunc: func(ctx context.Context) (*models.SyncResult, error) {
			calls.Add(1)
			return result("note", models.SyncStatusError), ctx.Err()
		},
	}
	s := New(Config{MaxRetries: 3, RetryDelay: time.Millisecond}, []sync.Manager{notes}, testLogger())

	_, err := s.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateIdle, s.State())
}

func TestRunOnce_SkipsPassInProgress(t *testing.T) {
	busy := &sync.ManagerMock{
		EntityTypeFunc: func() string { return "note" },
		PerformIncrementalSyncFunc: func(ctx context.Context) (*models.SyncResult, error) {
			return nil, sync.ErrSyncInProgress
		},
	}
	tasks, _ := newManager("task", result("task", models.SyncStatusSuccess))
	s := New(Config{}, []sync.Manager{busy, tasks}, testLogger())

	results, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "task", results[0].EntityType)
	assert.Equal(t, StateIdle, s.State())
}

func TestRunOnce_AutoResolvedConflictTriggersFollowUp(t *testing.T) {
	notes, calls := newManager("note",
		result("note", models.SyncStatusConflict),
		result("note", models.SyncStatusSuccess),
	)
	s := New(Config{}, []sync.Manager{notes}, testLogger())

	events, unsubscribe := s.Subscribe(32)
	defer unsubscribe()

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []State{
		StateIdle, StateSyncing, StateConflict, StateResolving, StateSyncing, StateSuccess, StateIdle,
	}, path(drain(events)))
}

func TestRunOnce_FollowUpConflictEndsIdle(t *testing.T) {
	notes, calls := newManager("note", result("note", models.SyncStatusConflict))
	s := New(Config{}, []sync.Manager{notes}, testLogger())

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, StateIdle, s.State())
}

func TestScheduler_ManualConflictThenResolve(t *testing.T) {
	var (
		mu   gosync.Mutex
		open = []*models.ConflictRecord{{EntityType: "note", EntityID: "n1"}}
	)
	notes, calls := newManager("note",
		result("note", models.SyncStatusConflict),
		result("note", models.SyncStatusSuccess),
	)
	notes.GetPendingConflictsFunc = func(ctx context.Context) ([]*models.ConflictRecord, error) {
		mu.Lock()
		defer mu.Unlock()
		return append([]*models.ConflictRecord(nil), open...), nil
	}
	notes.ApplyResolutionFunc = func(ctx context.Context, entityID string, resolved *models.SyncableEntity) error {
		mu.Lock()
		defer mu.Unlock()
		open = nil
		return nil
	}

	s := New(Config{}, []sync.Manager{notes}, testLogger())
	events, unsubscribe := s.Subscribe(32)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Trigger(ReasonManual)
	require.Eventually(t, func() bool { return s.State() == StateConflict }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	resolved := &models.SyncableEntity{ID: "n1", EntityType: "note", Fields: map[string]any{"title": "merged"}}
	require.NoError(t, s.Resolve(ctx, "note", "n1", resolved))
	require.Len(t, notes.ApplyResolutionCalls(), 1)

	require.Eventually(t, func() bool { return calls.Load() == 2 && s.State() == StateIdle }, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, []State{
		StateIdle, StateSyncing, StateConflict,
		StateResolving, StateSyncing, StateSuccess, StateIdle,
	}, path(drain(events)))
}

func TestScheduler_TickWhileConflictSyncsAgain(t *testing.T) {
	notes, calls := newManager("note", result("note", models.SyncStatusConflict))
	notes.GetPendingConflictsFunc = func(ctx context.Context) ([]*models.ConflictRecord, error) {
		return []*models.ConflictRecord{{EntityType: "note", EntityID: "n1"}}, nil
	}
	s := New(Config{}, []sync.Manager{notes}, testLogger())

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateConflict, s.State())

	events, unsubscribe := s.Subscribe(32)
	defer unsubscribe()

	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []State{StateConflict, StateIdle, StateSyncing, StateConflict}, path(drain(events)))
}

func TestResolve_UnknownEntityType(t *testing.T) {
	s := New(Config{}, nil, testLogger())
	err := s.Resolve(context.Background(), "missing", "id", &models.SyncableEntity{})
	require.ErrorIs(t, err, ErrUnknownEntityType)
}

func TestResolve_PropagatesManagerError(t *testing.T) {
	notFound := errors.New("conflict not found")
	notes, _ := newManager("note", result("note", models.SyncStatusSuccess))
	notes.ApplyResolutionFunc = func(ctx context.Context, entityID string, resolved *models.SyncableEntity) error {
		return notFound
	}
	s := New(Config{}, []sync.Manager{notes}, testLogger())

	err := s.Resolve(context.Background(), "note", "n1", &models.SyncableEntity{})
	require.ErrorIs(t, err, notFound)
	assert.Empty(t, s.resolved)
}

func TestTrigger_Coalesces(t *testing.T) {
	s := New(Config{}, nil, testLogger())

	s.Trigger("a")
	s.Trigger("b")
	s.Trigger("c")

	require.Len(t, s.triggers, 1)
	assert.Equal(t, "a", <-s.triggers)
}

func TestRun_IntervalTick(t *testing.T) {
	notes, calls := newManager("note", result("note", models.SyncStatusSuccess))
	s := New(Config{Interval: 10 * time.Millisecond}, []sync.Manager{notes}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	notes, _ := newManager("note", result("note", models.SyncStatusSuccess))
	s := New(Config{}, []sync.Manager{notes}, testLogger())

	events, unsubscribe := s.Subscribe(1)
	unsubscribe()
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok)

	// публикация после отписки не паникует
	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
}

func TestSubscribe_SlowSubscriberDropsEvents(t *testing.T) {
	notes, _ := newManager("note", result("note", models.SyncStatusSuccess))
	s := New(Config{}, []sync.Manager{notes}, testLogger())

	events, unsubscribe := s.Subscribe(1)
	defer unsubscribe()

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, StateSyncing, got[0].To)
}
