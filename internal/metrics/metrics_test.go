package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordSync("course", "created")
	m.RecordSync("course", "created")
	m.RecordSync("user", "failed")
	m.RecordTokenFetch(true)
	m.RecordTokenFetch(false)
	m.RecordBatch(3*time.Second, 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SyncTotal.WithLabelValues("course", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncTotal.WithLabelValues("user", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenFetchTotal.WithLabelValues("failure")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.BatchCoursesSeen))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BatchDuration))
}

func TestNoop(t *testing.T) {
	var r Recorder = Noop{}
	r.RecordSync("exam", "skipped")
	r.RecordTokenFetch(true)
	r.RecordBatch(time.Second, 1)
}
