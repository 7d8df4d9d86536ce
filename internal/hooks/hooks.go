// Package hooks is the callback table the host application drives: it
// dispatches a small fixed set of lifecycle events to registered handlers.
package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"proctor-sync/internal/logx"
)

type EventType string

const (
	ContentViewedEvent EventType = "content-viewed"
	ScheduledTickEvent EventType = "scheduled-tick"
	SaveTriggeredEvent EventType = "save-triggered"
)

// Event is one of ContentViewed, ScheduledTick or SaveTriggered.
type Event interface {
	Type() EventType
}

// ContentViewed fires when a user renders a course or quiz.
type ContentViewed struct {
	PostID   int64
	ViewerID int64
}

// ScheduledTick fires when the pending batch run is due.
type ScheduledTick struct {
	At time.Time
}

// SaveTriggered fires when the host saves plugin settings. Keys lists the
// option keys that changed, when known.
type SaveTriggered struct {
	Keys []string
}

func (ContentViewed) Type() EventType { return ContentViewedEvent }
func (ScheduledTick) Type() EventType { return ScheduledTickEvent }
func (SaveTriggered) Type() EventType { return SaveTriggeredEvent }

type Handler func(ctx context.Context, ev Event) error

type Registry struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[EventType][]Handler)}
}

// On registers h for events of type t. Handlers run in registration order.
func (r *Registry) On(t EventType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = append(r.handlers[t], h)
}

// Has reports whether any handler is registered for t.
func (r *Registry) Has(t EventType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[t]) > 0
}

// Dispatch runs every handler for ev. A failing handler is logged and does
// not stop the ones after it. The number of failed handlers is returned.
func (r *Registry) Dispatch(ctx context.Context, ev Event) int {
	r.mu.RLock()
	hs := append([]Handler(nil), r.handlers[ev.Type()]...)
	r.mu.RUnlock()

	failed := 0
	for i, h := range hs {
		if err := safeCall(ctx, h, ev); err != nil {
			failed++
			logx.FromContext(ctx).Error("hook handler failed",
				"event", string(ev.Type()), "handler", i, "error", err)
		}
	}
	return failed
}

func safeCall(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h(ctx, ev)
}
