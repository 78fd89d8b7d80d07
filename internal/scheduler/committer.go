package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

// DefaultCommitTimeout bounds how long a commit waits for the provider lock.
const DefaultCommitTimeout = 5 * time.Second

// Commit outcomes reported to observers.
const (
	OutcomeCommitted = "committed"
	OutcomeConflict  = "conflict"
	OutcomeTimeout   = "timeout"
	OutcomeFailed    = "failed"
)

// ProviderLocks hands out one exclusive lock per provider. A lock is a
// buffered channel so waiting can be bounded by a timer or a context.
type ProviderLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewProviderLocks returns an empty lock table.
func NewProviderLocks() *ProviderLocks {
	return &ProviderLocks{locks: make(map[string]chan struct{})}
}

func (l *ProviderLocks) lockFor(providerID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[providerID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[providerID] = ch
	}
	return ch
}

// Acquire blocks until the provider lock is held, timeout elapses or ctx ends.
// Failing to acquire has no side effects.
func (l *ProviderLocks) Acquire(ctx context.Context, providerID string, timeout time.Duration) (func(), error) {
	ch := l.lockFor(providerID)
	select {
	case ch <- struct{}{}:
		return releaser(ch), nil
	default:
	}
	if timeout <= 0 {
		timeout = DefaultCommitTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return releaser(ch), nil
	case <-timer.C:
		return nil, appErrors.Clonef(appErrors.ErrTimeout, "provider %s is busy, retry later", providerID)
	case <-ctx.Done():
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "request abandoned before commit")
	}
}

func releaser(ch chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}
}

// CommitObserver receives commit telemetry. Implementations must be cheap.
type CommitObserver interface {
	ObserveLockWait(wait time.Duration)
	ObserveCommit(outcome string)
}

// CommitRequest describes one reservation attempt.
type CommitRequest struct {
	ProviderID string
	BookingID  string
	Range      TimeRange
	// Replaces names a committed booking that the new range supersedes. It is
	// ignored by the overlap check and leaves the index when the commit lands.
	Replaces string
	// Check runs under the provider lock before the index is touched.
	Check func(ctx context.Context, tl *Timeline) error
	// Persist stores the booking. Its context is never cancelled.
	Persist func(ctx context.Context) error
}

// Committer serializes commits per provider against the ConflictIndex.
type Committer struct {
	index    *ConflictIndex
	locks    *ProviderLocks
	timeout  time.Duration
	observer CommitObserver
}

// NewCommitter wires the index with a lock table and bounded wait.
func NewCommitter(index *ConflictIndex, locks *ProviderLocks, timeout time.Duration, observer CommitObserver) *Committer {
	if locks == nil {
		locks = NewProviderLocks()
	}
	if timeout <= 0 {
		timeout = DefaultCommitTimeout
	}
	return &Committer{index: index, locks: locks, timeout: timeout, observer: observer}
}

// Index exposes the committed state for readers.
func (c *Committer) Index() *ConflictIndex { return c.index }

func (c *Committer) acquire(ctx context.Context, providerID string) (func(), error) {
	started := time.Now()
	release, err := c.locks.Acquire(ctx, providerID, c.timeout)
	if c.observer != nil {
		c.observer.ObserveLockWait(time.Since(started))
	}
	if err != nil {
		c.observe(OutcomeTimeout)
		return nil, err
	}
	return release, nil
}

func (c *Committer) observe(outcome string) {
	if c.observer != nil {
		c.observer.ObserveCommit(outcome)
	}
}

// Commit re-validates the request under the provider lock, updates the index and
// persists. Once the lock is held the commit runs to completion regardless of ctx.
func (c *Committer) Commit(ctx context.Context, req CommitRequest) error {
	if req.ProviderID == "" || req.BookingID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "provider and booking ids are required")
	}
	if err := req.Range.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "request abandoned before commit")
	}

	release, err := c.acquire(ctx, req.ProviderID)
	if err != nil {
		return err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	var previous TimeRange
	err = c.index.View(req.ProviderID, func(tl *Timeline) error {
		if req.Replaces != "" {
			held, ok := tl.Lookup(req.Replaces)
			if !ok {
				return appErrors.Clonef(appErrors.ErrConflict, "booking %s is no longer scheduled", req.Replaces)
			}
			previous = held
		}
		for _, hit := range tl.Overlapping(req.Range) {
			if hit.BookingID != req.Replaces {
				return appErrors.Clonef(appErrors.ErrConflict, "range %s overlaps booking %s", req.Range, hit.BookingID)
			}
		}
		if req.Check != nil {
			return req.Check(ctx, tl)
		}
		return nil
	})
	if err != nil {
		c.observe(outcomeFor(err))
		return err
	}

	if err := c.apply(req); err != nil {
		c.observe(OutcomeFailed)
		return err
	}

	if req.Persist != nil {
		if err := req.Persist(ctx); err != nil {
			if undoErr := c.undo(req, previous); undoErr != nil {
				c.observe(OutcomeFailed)
				return undoErr
			}
			c.observe(outcomeFor(err))
			return err
		}
	}
	c.observe(OutcomeCommitted)
	return nil
}

func (c *Committer) apply(req CommitRequest) error {
	var err error
	if req.Replaces != "" {
		err = c.index.Replace(req.ProviderID, req.Replaces, req.BookingID, req.Range)
	} else {
		err = c.index.Insert(req.ProviderID, req.BookingID, req.Range)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvariantViolation.Code, appErrors.ErrInvariantViolation.Status,
			"conflict index rejected a validated commit")
	}
	return c.index.View(req.ProviderID, func(tl *Timeline) error {
		hits := tl.Overlapping(req.Range)
		if len(hits) != 1 || hits[0].BookingID != req.BookingID {
			return appErrors.Clonef(appErrors.ErrInvariantViolation, "conflict index holds overlapping ranges at %s", req.Range)
		}
		return nil
	})
}

func (c *Committer) undo(req CommitRequest, previous TimeRange) error {
	var err error
	if req.Replaces != "" {
		err = c.index.Replace(req.ProviderID, req.BookingID, req.Replaces, previous)
	} else {
		err = c.index.Remove(req.ProviderID, req.BookingID)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvariantViolation.Code, appErrors.ErrInvariantViolation.Status,
			"failed to roll back conflict index after persist error")
	}
	return nil
}

// Release removes a committed booking under the provider lock, for cancellation
// or completion. A booking absent from the index is persisted without index changes.
func (c *Committer) Release(ctx context.Context, providerID, bookingID string, persist func(ctx context.Context) error) error {
	release, err := c.acquire(ctx, providerID)
	if err != nil {
		return err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	held, present := c.index.Lookup(providerID, bookingID)
	if present {
		if err := c.index.Remove(providerID, bookingID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInvariantViolation.Code, appErrors.ErrInvariantViolation.Status,
				"conflict index lost booking "+bookingID)
		}
	}
	if persist != nil {
		if err := persist(ctx); err != nil {
			if present {
				if restoreErr := c.index.Insert(providerID, bookingID, held); restoreErr != nil {
					return appErrors.Wrap(restoreErr, appErrors.ErrInvariantViolation.Code, appErrors.ErrInvariantViolation.Status,
						"failed to restore booking "+bookingID)
				}
			}
			return err
		}
	}
	return nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, appErrors.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, appErrors.ErrTimeout):
		return OutcomeTimeout
	default:
		return OutcomeFailed
	}
}
