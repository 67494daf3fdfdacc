package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-applier/internal/types"
)

func TestObserveRun(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveRun(&types.ApplicationResult{
		Success: true,
		Steps: []types.StepRecord{
			{Action: "fill_name", Status: types.StatusOK},
			{Action: "fill_why", Status: types.StatusError},
			{Action: "select_country", Status: types.StatusOK},
			{Action: "submit", Status: types.StatusError},
		},
	}, 12*time.Second)
	msg := "navigate: boom"
	m.ObserveRun(&types.ApplicationResult{Success: false, Error: &msg}, time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("aborted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.stepRecords.WithLabelValues("fill_name", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.stepRecords.WithLabelValues("custom_answer", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.stepRecords.WithLabelValues("custom_answer", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestRunStartedAndRejected(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	done := m.RunStarted()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.active))
	done()
	assert.Equal(t, float64(0), testutil.ToFloat64(m.active))

	m.Rejected()
	m.Rejected()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.rejected))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RunStarted()()
		m.ObserveRun(&types.ApplicationResult{}, time.Second)
		m.Rejected()
	})
}

func TestHandler(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	m.Rejected()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "job_applier_requests_rejected_total 1"))
}

func TestActionLabel(t *testing.T) {
	assert.Equal(t, "verify", ActionLabel("verify"))
	assert.Equal(t, "cleanup", ActionLabel("cleanup"))
	assert.Equal(t, "custom_answer", ActionLabel("fill_salary"))
}
