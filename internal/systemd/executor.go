package systemd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
)

// statusProber is the slice of Probe the executor needs for its post-action
// re-query.
type statusProber interface {
	Query(ctx context.Context, unit string) (*UnitStatus, error)
}

// controlFunc issues one control call and returns systemd's job result
// string ("done", "failed", "timeout", "canceled", "dependency", "skipped").
type controlFunc func(ctx context.Context, unit string, action Action) (string, error)

// Executor issues start/stop/restart actions against units.
//
// Actions against the same unit are mutually exclusive: a second request
// while one is in flight is rejected with ErrActionInProgress rather than
// queued. Rejection keeps the behavior observable from the front end (the
// operator retries) and avoids building a queue of stale intents behind a
// stuck unit. The per-unit lock covers the control call and the status
// re-query that follows it; units are independent of each other.
type Executor struct {
	probe   statusProber
	control controlFunc
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewExecutor builds an executor that drives systemd over D-Bus and
// re-queries status through probe after each action. Every control call is
// bounded by timeout.
func NewExecutor(probe *Probe, timeout time.Duration) *Executor {
	return &Executor{
		probe:   probe,
		control: dbusControl,
		timeout: timeout,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Execute runs action against unit and reports the outcome. The returned
// error, when non-nil, is one of the package error classes; an ActionResult
// is returned alongside whenever the action itself ran.
func (e *Executor) Execute(ctx context.Context, unit string, action Action) (*ActionResult, error) {
	lock := e.unitLock(unit)
	if !lock.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrActionInProgress, unit)
	}
	defer lock.Unlock()

	res := &ActionResult{Unit: unit, Action: action}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	jobResult, err := e.control(callCtx, unit, action)
	cancel()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			res.Outcome = OutcomeTimedOut
			return res, fmt.Errorf("%w: %s %s after %s", ErrActionTimedOut, action, unit, e.timeout)
		}
		if definitive(err) {
			return nil, err
		}
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("%w: %v", ErrActionRejected, err)
	}

	switch jobResult {
	case "done":
		res.Outcome = OutcomeSucceeded
	case "timeout":
		res.Outcome = OutcomeTimedOut
		return res, fmt.Errorf("%w: systemd job timed out for %s", ErrActionTimedOut, unit)
	default:
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("%w: job result %q for %s", ErrActionRejected, jobResult, unit)
	}

	// Re-query under the parent context; the action already landed, so a
	// probe failure here only loses the resulting status.
	if st, perr := e.probe.Query(ctx, unit); perr == nil {
		res.Status = st
	}
	return res, nil
}

// unitLock returns the mutex for unit, creating it on first action. Locks
// are never removed; the unit set is bounded by configuration.
func (e *Executor) unitLock(unit string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.locks == nil {
		e.locks = make(map[string]*sync.Mutex)
	}
	l, ok := e.locks[unit]
	if !ok {
		l = &sync.Mutex{}
		e.locks[unit] = l
	}
	return l
}

// dbusControl performs one start/stop/restart over D-Bus in "replace" job
// mode and waits for the job result. The connection must stay open until
// systemd delivers the result, so the wait happens here.
func dbusControl(ctx context.Context, unit string, action Action) (string, error) {
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	result := make(chan string, 1)
	switch action {
	case ActionStart:
		_, err = conn.StartUnitContext(ctx, unit, "replace", result)
	case ActionStop:
		_, err = conn.StopUnitContext(ctx, unit, "replace", result)
	case ActionRestart:
		_, err = conn.RestartUnitContext(ctx, unit, "replace", result)
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		return "", classifyDBusError(err)
	}

	select {
	case r := <-result:
		return r, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
