package hooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"proctor-sync/internal/logx"
)

func TestDispatchOrderAndIsolation(t *testing.T) {
	ctx := logx.WithContext(context.Background(), logx.Discard())
	r := NewRegistry()

	var seen []string
	r.On(ContentViewedEvent, func(_ context.Context, ev Event) error {
		cv := ev.(ContentViewed)
		seen = append(seen, "first")
		assert.Equal(t, int64(7), cv.PostID)
		return errors.New("nope")
	})
	r.On(ContentViewedEvent, func(context.Context, Event) error {
		panic("boom")
	})
	r.On(ContentViewedEvent, func(context.Context, Event) error {
		seen = append(seen, "third")
		return nil
	})
	r.On(ScheduledTickEvent, func(context.Context, Event) error {
		seen = append(seen, "tick")
		return nil
	})

	failed := r.Dispatch(ctx, ContentViewed{PostID: 7, ViewerID: 10})
	assert.Equal(t, 2, failed)
	assert.Equal(t, []string{"first", "third"}, seen)

	assert.Zero(t, r.Dispatch(ctx, ScheduledTick{At: time.Now()}))
	assert.Equal(t, []string{"first", "third", "tick"}, seen)

	assert.False(t, r.Has(SaveTriggeredEvent))
	assert.Zero(t, r.Dispatch(ctx, SaveTriggered{Keys: []string{"k"}}))
}

func TestEventTypes(t *testing.T) {
	assert.Equal(t, EventType("content-viewed"), ContentViewed{}.Type())
	assert.Equal(t, EventType("scheduled-tick"), ScheduledTick{}.Type())
	assert.Equal(t, EventType("save-triggered"), SaveTriggered{}.Type())
}
