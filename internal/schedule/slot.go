// Package schedule keeps at most one pending batch run, persisted in the
// options store, and fires it when due.
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"proctor-sync/internal/store"
)

// OptionKey holds the pending run as unix seconds.
const OptionKey = "examity_client_cron_api_provision"

// Slot is a single-entry deferred task: there is either one pending run or
// none.
type Slot struct {
	Store store.Options
}

// Next returns the pending run time, if any.
func (s *Slot) Next(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := s.Store.Get(ctx, OptionKey)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("schedule: read slot: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return time.Time{}, false, nil
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		// unreadable slot counts as empty
		return time.Time{}, false, nil
	}
	return time.Unix(secs, 0), true, nil
}

func (s *Slot) set(ctx context.Context, at time.Time) error {
	if err := s.Store.Set(ctx, OptionKey, strconv.FormatInt(at.Unix(), 10)); err != nil {
		return fmt.Errorf("schedule: write slot: %w", err)
	}
	return nil
}

// Clear drops the pending run.
func (s *Slot) Clear(ctx context.Context) error {
	if err := s.Store.Delete(ctx, OptionKey); err != nil {
		return fmt.Errorf("schedule: clear slot: %w", err)
	}
	return nil
}

// Reschedule applies the interval: a pending run further out than
// now+interval is cancelled (the interval shrank), and an empty slot gets a
// run at now+interval. It returns the run that is pending afterwards.
func (s *Slot) Reschedule(ctx context.Context, now time.Time, interval time.Duration) (time.Time, error) {
	if interval <= 0 {
		return time.Time{}, fmt.Errorf("schedule: interval must be positive, got %s", interval)
	}
	next, ok, err := s.Next(ctx)
	if err != nil {
		return time.Time{}, err
	}
	due := now.Add(interval)
	if ok && next.After(due) {
		if err := s.Clear(ctx); err != nil {
			return time.Time{}, err
		}
		ok = false
	}
	if ok {
		return next, nil
	}
	if err := s.set(ctx, due); err != nil {
		return time.Time{}, err
	}
	return time.Unix(due.Unix(), 0), nil
}
