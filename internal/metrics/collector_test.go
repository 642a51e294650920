package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("test", reg, zap.NewNop()), reg
}

func TestCollector_Jobs(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordJobStarted()
	c.RecordJobStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.jobsStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.jobsRunning))

	c.RecordJobFinished("completed", "model_done", 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobsRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobsFinished.WithLabelValues("completed", "model_done")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.jobsFinished.WithLabelValues("failed", "")))
}

func TestCollector_Decisions(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordDecision("gemini", 2*time.Second, nil)
	c.RecordDecision("gemini", time.Second, errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.decisionsTotal.WithLabelValues("gemini", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.decisionsTotal.WithLabelValues("gemini", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.decisionDuration))
}

func TestCollector_Actions(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordAction("click", 10*time.Millisecond, nil)
	c.RecordAction("click", 10*time.Millisecond, errors.New("boom"))
	c.RecordAction("type", 5*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.actionsTotal.WithLabelValues("click", "error")))
	assert.Equal(t, 3, testutil.CollectAndCount(c.actionsTotal))
}

func TestCollector_HTTP(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordHTTPRequest("GET", "/jobs/{id}", 404, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/jobs/{id}", "404")))
}

func TestCollector_RegistersOnGivenRegistry(t *testing.T) {
	c, reg := newTestCollector(t)
	c.RecordJobStarted()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_jobs_started_total")
	assert.Contains(t, names, "test_jobs_running")

	// A second collector on the same registry would collide.
	assert.Panics(t, func() { NewCollector("test", reg, zap.NewNop()) })
}
