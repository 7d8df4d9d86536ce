package sync

import (
	"strings"
	"time"
)

// ExamWindow selects how exam availability dates are computed.
type ExamWindow string

const (
	// WindowRolling opens the exam now and closes it five years later.
	WindowRolling ExamWindow = "rolling"
	// WindowOpen makes the exam always available.
	WindowOpen ExamWindow = "open"
)

var (
	openStart = time.Unix(0, 0).UTC()
	openEnd   = time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC)
)

func ParseExamWindow(s string) ExamWindow {
	if strings.EqualFold(strings.TrimSpace(s), string(WindowOpen)) {
		return WindowOpen
	}
	return WindowRolling
}

// Bounds returns the start and end of the window relative to now.
func (w ExamWindow) Bounds(now time.Time) (time.Time, time.Time) {
	if w == WindowOpen {
		return openStart, openEnd
	}
	now = now.UTC().Truncate(time.Second)
	return now, now.AddDate(5, 0, 0)
}
