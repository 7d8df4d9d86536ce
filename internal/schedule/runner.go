package schedule

import (
	"context"
	"time"

	"proctor-sync/internal/hooks"
	"proctor-sync/internal/logx"
)

const defaultPoll = time.Minute

// Runner fires a scheduled-tick when the pending run comes due and then
// books the next one.
type Runner struct {
	Slot  *Slot
	Hooks *hooks.Registry
	// Interval is read on every pass so setting changes apply without a
	// restart.
	Interval func() time.Duration
	// Poll bounds how long the runner sleeps before re-reading the slot.
	Poll time.Duration
	Now  func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	poll := r.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	log := logx.FromContext(ctx)

	for {
		wait := poll
		if due, err := r.Step(ctx); err != nil {
			log.Error("schedule: step failed", "error", err)
		} else if d := due.Sub(r.now()); d < wait {
			wait = d
		}
		if wait < 0 {
			wait = 0
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Step reschedules, fires the tick if the pending run is due, and returns
// the run pending afterwards.
func (r *Runner) Step(ctx context.Context) (time.Time, error) {
	now := r.now()
	next, err := r.Slot.Reschedule(ctx, now, r.Interval())
	if err != nil {
		return time.Time{}, err
	}
	if now.Before(next) {
		return next, nil
	}

	if err := r.Slot.Clear(ctx); err != nil {
		return time.Time{}, err
	}
	logx.FromContext(ctx).Info("schedule: batch run due", "at", next)
	r.Hooks.Dispatch(ctx, hooks.ScheduledTick{At: now})
	return r.Slot.Reschedule(ctx, r.now(), r.Interval())
}
