// Package scheduler drives sync passes for all entity types: periodic and
// triggered runs, bounded retries with exponential backoff, conflict follow-up,
// and a state stream for subscribers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/gophsync/internal/client/sync"
	"github.com/iudanet/gophsync/internal/models"
)

// State is a state of the scheduler state machine.
type State string

// State константы
const (
	StateIdle      State = "idle"
	StateSyncing   State = "syncing"
	StateSuccess   State = "success"
	StateError     State = "error"
	StateRetrying  State = "retrying"
	StateConflict  State = "conflict"
	StateResolving State = "resolving"
)

var transitions = map[State][]State{
	StateIdle:      {StateSyncing},
	StateSyncing:   {StateSuccess, StateError, StateConflict},
	StateSuccess:   {StateIdle},
	StateError:     {StateRetrying, StateIdle},
	StateRetrying:  {StateSyncing},
	StateConflict:  {StateResolving, StateIdle},
	StateResolving: {StateSyncing},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var (
	// ErrInvalidTransition is returned for a state change the machine does not allow
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnknownEntityType is returned by Resolve for a type without a manager
	ErrUnknownEntityType = errors.New("unknown entity type")
)

const (
	ReasonInterval = "interval"
	ReasonManual   = "manual"
	ReasonResolved = "conflicts resolved"
)

// Event is published on every state transition.
type Event struct {
	Time    time.Time
	Err     error
	From    State
	To      State
	Reason  string
	Results []*models.SyncResult
	Attempt int
}

// Config holds scheduling settings.
type Config struct {
	Interval   time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Scheduler runs sync passes of all managers, one pass per entity type at a time.
type Scheduler struct {
	logger   *slog.Logger
	managers map[string]sync.Manager
	subs     map[int]chan Event
	triggers chan string
	resolved chan struct{}
	now      func() time.Time
	order    []string
	state    State
	cfg      Config
	nextSub  int
	mu       gosync.Mutex
}

// New creates a scheduler over the given per-type managers.
func New(cfg Config, managers []sync.Manager, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		logger:   logger,
		managers: make(map[string]sync.Manager, len(managers)),
		subs:     make(map[int]chan Event),
		triggers: make(chan string, 1),
		resolved: make(chan struct{}, 1),
		now:      time.Now,
		state:    StateIdle,
		cfg:      cfg,
	}
	for _, m := range managers {
		s.managers[m.EntityType()] = m
		s.order = append(s.order, m.EntityType())
	}
	return s
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel receiving state transitions and a function that
// cancels the subscription. Events are dropped for a subscriber whose buffer is full.
func (s *Scheduler) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once gosync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Trigger requests a pass. Requests arriving while one is queued are coalesced.
func (s *Scheduler) Trigger(reason string) {
	select {
	case s.triggers <- reason:
	default:
	}
}

// Run drives the state machine until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.cfg.Interval > 0 {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	s.logger.Info("Scheduler started",
		"interval", s.cfg.Interval,
		"entity_types", s.order)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return ctx.Err()
		case <-tick:
			s.cycle(ctx, ReasonInterval)
		case reason := <-s.triggers:
			s.cycle(ctx, reason)
		case <-s.resolved:
			s.cycle(ctx, ReasonResolved)
		}
	}
}

// RunOnce performs one cycle synchronously, retries and conflict follow-up
// included, and returns the results of the last pass.
func (s *Scheduler) RunOnce(ctx context.Context) ([]*models.SyncResult, error) {
	return s.cycle(ctx, ReasonManual)
}

// Resolve applies a manual resolution. When it clears the last open conflict
// a resolution pass is scheduled.
func (s *Scheduler) Resolve(ctx context.Context, entityType, entityID string, resolved *models.SyncableEntity) error {
	m, ok := s.managers[entityType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
	if err := m.ApplyResolution(ctx, entityID, resolved); err != nil {
		return err
	}

	open, err := s.openConflicts(ctx)
	if err != nil {
		return err
	}
	if open == 0 {
		select {
		case s.resolved <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *Scheduler) cycle(ctx context.Context, reason string) ([]*models.SyncResult, error) {
	switch s.State() {
	case StateConflict:
		if reason == ReasonResolved {
			if err := s.transition(StateResolving, Event{Reason: reason}); err != nil {
				return nil, err
			}
			return s.pass(ctx, reason, true)
		}
		// ожидаем ручного разрешения, но остальные записи синхронизируем
		if err := s.transition(StateIdle, Event{Reason: reason}); err != nil {
			return nil, err
		}
	case StateIdle:
	default:
		return nil, fmt.Errorf("%w: cycle started in state %s", ErrInvalidTransition, s.State())
	}
	return s.pass(ctx, reason, false)
}

// pass runs syncing and follows the outcome: success back to idle, error into
// bounded retries, conflict into an optional follow-up pass.
func (s *Scheduler) pass(ctx context.Context, reason string, followUp bool) ([]*models.SyncResult, error) {
	if err := s.transition(StateSyncing, Event{Reason: reason}); err != nil {
		return nil, err
	}
	results, err := s.runAll(ctx)

	backoff := retry.WithMaxRetries(uint64(max(s.cfg.MaxRetries, 0)), retry.NewExponential(s.retryDelay()))
	attempt := 0

	for {
		switch outcome(results, err) {
		case StateSuccess:
			_ = s.transition(StateSuccess, Event{Reason: reason, Results: results})
			_ = s.transition(StateIdle, Event{Reason: reason})
			return results, nil

		case StateConflict:
			_ = s.transition(StateConflict, Event{Reason: reason, Results: results})
			open, cerr := s.openConflicts(ctx)
			if cerr != nil {
				s.logger.Warn("Failed to count open conflicts", "error", cerr)
			}
			if cerr == nil && open == 0 && !followUp {
				// Все конфликты разрешены автоматически - отправляем результат
				_ = s.transition(StateResolving, Event{Reason: reason})
				return s.pass(ctx, reason, true)
			}
			if open == 0 {
				_ = s.transition(StateIdle, Event{Reason: reason})
			}
			// иначе остаемся в conflict до ручного разрешения
			return results, nil
		}

		_ = s.transition(StateError, Event{Reason: reason, Results: results, Err: err, Attempt: attempt})

		if ctx.Err() != nil || !retryable(results, err) {
			_ = s.transition(StateIdle, Event{Reason: reason, Err: err})
			return results, err
		}

		delay, stop := backoff.Next()
		if stop {
			s.logger.Warn("Retries exhausted, changes stay queued", "attempts", attempt)
			_ = s.transition(StateIdle, Event{Reason: reason, Err: err})
			return results, err
		}
		attempt++

		_ = s.transition(StateRetrying, Event{Reason: reason, Attempt: attempt})
		s.logger.Info("Retrying sync", "attempt", attempt, "delay", delay)

		select {
		case <-ctx.Done():
			// retrying -> syncing -> error -> idle
			_ = s.transition(StateSyncing, Event{Reason: reason, Attempt: attempt})
			_ = s.transition(StateError, Event{Reason: reason, Err: ctx.Err(), Attempt: attempt})
			_ = s.transition(StateIdle, Event{Reason: reason, Err: ctx.Err()})
			return results, ctx.Err()
		case <-time.After(delay):
		}

		_ = s.transition(StateSyncing, Event{Reason: reason, Attempt: attempt})
		results, err = s.runAll(ctx)
	}
}

// runAll runs one pass per entity type in parallel. Per-type failures do not
// cancel the other types.
func (s *Scheduler) runAll(ctx context.Context) ([]*models.SyncResult, error) {
	results := make([]*models.SyncResult, len(s.order))
	errs := make([]error, len(s.order))

	var g errgroup.Group
	for i, entityType := range s.order {
		m := s.managers[entityType]
		g.Go(func() error {
			result, err := m.PerformIncrementalSync(ctx)
			if errors.Is(err, sync.ErrSyncInProgress) {
				s.logger.Debug("Pass already running, skipped", "entity_type", entityType)
				return nil
			}
			results[i] = result
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", entityType, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	collected := make([]*models.SyncResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			collected = append(collected, r)
		}
	}
	return collected, errors.Join(errs...)
}

func (s *Scheduler) openConflicts(ctx context.Context) (int, error) {
	total := 0
	for _, entityType := range s.order {
		conflicts, err := s.managers[entityType].GetPendingConflicts(ctx)
		if err != nil {
			return 0, err
		}
		total += len(conflicts)
	}
	return total, nil
}

func (s *Scheduler) retryDelay() time.Duration {
	if s.cfg.RetryDelay <= 0 {
		return time.Second
	}
	return s.cfg.RetryDelay
}

func (s *Scheduler) transition(to State, ev Event) error {
	s.mu.Lock()
	from := s.state
	if !CanTransition(from, to) {
		s.mu.Unlock()
		s.logger.Error("Invalid state transition", "from", from, "to", to)
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	s.state = to

	ev.From = from
	ev.To = to
	ev.Time = s.now()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()

	s.logger.Debug("Sync state changed", "from", from, "to", to, "reason", ev.Reason)
	return nil
}

// outcome maps pass results to the terminal state of syncing.
func outcome(results []*models.SyncResult, err error) State {
	if err != nil {
		return StateError
	}
	conflict := false
	for _, r := range results {
		switch r.Status {
		case models.SyncStatusError:
			return StateError
		case models.SyncStatusConflict:
			conflict = true
		}
	}
	if conflict {
		return StateConflict
	}
	return StateSuccess
}

// retryable reports whether another attempt can help: transient item errors
// or a failed pass that was not cancelled.
func retryable(results []*models.SyncResult, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	for _, r := range results {
		if r.HasRetryableErrors() {
			return true
		}
	}
	return false
}
