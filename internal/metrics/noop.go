package metrics

import "time"

// Noop discards everything; used when metrics are disabled and in tests.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) RecordSync(string, string)      {}
func (Noop) RecordTokenFetch(bool)          {}
func (Noop) RecordBatch(time.Duration, int) {}
