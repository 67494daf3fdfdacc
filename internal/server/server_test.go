package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-applier/internal/db"
	"github.com/jonathan/job-applier/internal/metrics"
	"github.com/jonathan/job-applier/internal/pipeline"
	"github.com/jonathan/job-applier/internal/request"
	"github.com/jonathan/job-applier/internal/runner"
	"github.com/jonathan/job-applier/internal/server/ratelimit"
	"github.com/jonathan/job-applier/internal/types"
)

const validPayload = `{
	"jobUrl": "https://boards.greenhouse.io/acme/jobs/1",
	"resume": {"personalInfo": {"fullName": "Ada Lovelace"}}
}`

type fakeRunner struct {
	mu       sync.Mutex
	jobs     []runner.Job
	rejected []string
	err      error
	id       uuid.UUID
}

func (f *fakeRunner) Run(_ context.Context, job runner.Job) (uuid.UUID, *types.ApplicationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return uuid.Nil, nil, f.err
	}
	if job.Progress != nil {
		job.Progress.Emit(types.ProgressEvent{Type: "progress", Action: "Starting browser", Step: 1, TotalSteps: types.TotalSteps, Status: types.StatusOK})
	}
	return f.id, &types.ApplicationResult{
		Success:     true,
		Screenshots: []string{},
		Steps:       []types.StepRecord{{Action: "Navigate to job URL", Status: types.StatusOK}},
	}, nil
}

func (f *fakeRunner) Reject(message string) *types.ApplicationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, message)
	return pipeline.Rejected(message)
}

type fakeHistory struct {
	runs    map[uuid.UUID]db.Run
	limit   int
	pingErr error
}

func (f *fakeHistory) GetRun(_ context.Context, id uuid.UUID) (*db.Run, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (f *fakeHistory) ListRuns(_ context.Context, limit int) ([]db.Run, error) {
	f.limit = limit
	runs := make([]db.Run, 0, len(f.runs))
	for _, run := range f.runs {
		runs = append(runs, run)
	}
	return runs, nil
}

func (f *fakeHistory) Ping(context.Context) error {
	return f.pingErr
}

type fakeMapper struct {
	url    string
	fields []string
}

func (f *fakeMapper) Analyze(_ context.Context, jobURL string, fields []string) map[string][]string {
	f.url = jobURL
	f.fields = fields
	return map[string][]string{"email": {"#email"}}
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Runner == nil {
		cfg.Runner = &fakeRunner{id: uuid.New()}
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = ratelimit.NewConfig(0)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)
	return s
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresRunner(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestHandleApply(t *testing.T) {
	fr := &fakeRunner{id: uuid.New()}
	s := newTestServer(t, Config{Runner: fr})

	rec := do(t, s.Handler(), http.MethodPost, "/applications?smartSelectors=true", validPayload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fr.id.String(), rec.Header().Get("X-Run-ID"))

	var result types.ApplicationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)

	require.Len(t, fr.jobs, 1)
	assert.True(t, fr.jobs[0].SmartSelectors)
	assert.Nil(t, fr.jobs[0].Progress)
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/1", fr.jobs[0].Request.JobURL)
}

func TestHandleApply_ValidationFault(t *testing.T) {
	fr := &fakeRunner{}
	s := newTestServer(t, Config{Runner: fr})

	rec := do(t, s.Handler(), http.MethodPost, "/applications", `{"jobUrl": "https://example.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var result types.ApplicationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, request.MsgMissingResume, *result.Error)
	assert.Equal(t, []string{request.MsgMissingResume}, fr.rejected)
	assert.Empty(t, fr.jobs)
}

func TestHandleApply_BadSmartSelectorsFlag(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s.Handler(), http.MethodPost, "/applications?smartSelectors=maybe", validPayload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleApply_RunNotStarted(t *testing.T) {
	s := newTestServer(t, Config{Runner: &fakeRunner{err: context.Canceled}})

	rec := do(t, s.Handler(), http.MethodPost, "/applications", validPayload)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "run not started")
}

func TestHandleApplyStream(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s.Handler(), http.MethodPost, "/applications/stream", validPayload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var events []string
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	assert.Equal(t, []string{eventProgress, eventResult}, events)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestHandleApplyStream_ValidationFaultIsJSON(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s.Handler(), http.MethodPost, "/applications/stream", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), request.MsgEmptyInput)
}

func TestHandleApplyStream_RunNotStarted(t *testing.T) {
	s := newTestServer(t, Config{Runner: &fakeRunner{err: errors.New("no slot")}})

	rec := do(t, s.Handler(), http.MethodPost, "/applications/stream", validPayload)
	assert.Contains(t, rec.Body.String(), "event: error")
	assert.Contains(t, rec.Body.String(), "no slot")
}

func TestHandleRuns_HistoryDisabled(t *testing.T) {
	s := newTestServer(t, Config{})

	assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Handler(), http.MethodGet, "/applications", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Handler(), http.MethodGet, "/applications/"+uuid.NewString(), "").Code)
}

func TestHandleRuns(t *testing.T) {
	id := uuid.New()
	history := &fakeHistory{runs: map[uuid.UUID]db.Run{
		id: {ID: id, Type: db.RunTypeJobApply, Status: db.RunStatusSuccess, Screenshots: []string{}},
	}}
	s := newTestServer(t, Config{History: history})
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/applications?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, history.limit)
	var list struct {
		Runs  []db.Run `json:"runs"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/applications?limit=many", "").Code)

	rec = do(t, h, http.MethodGet, "/applications/"+id.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run db.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, id, run.ID)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/applications/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/applications/not-a-uuid", "").Code)
}

func TestHandleFieldMap(t *testing.T) {
	mapper := &fakeMapper{}
	s := newTestServer(t, Config{Mapper: mapper})
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/field-maps", `{"jobUrl": " https://jobs.lever.co/acme/1 ", "fields": ["email"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp FieldMapResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string][]string{"email": {"#email"}}, resp.SelectorMap)
	assert.Equal(t, "https://jobs.lever.co/acme/1", mapper.url)
	assert.Equal(t, []string{"email"}, mapper.fields)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/field-maps", `{"jobUrl": "http://localhost/x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/field-maps", `not json`).Code)
}

func TestHandleFieldMap_NoMapper(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s.Handler(), http.MethodPost, "/field-maps", `{"jobUrl": "https://example.com"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	s = newTestServer(t, Config{History: &fakeHistory{pingErr: errors.New("down")}})
	rec = do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.JSONEq(t, `{"status":"ok","database":"unavailable"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	m.Rejected()

	s := newTestServer(t, Config{Metrics: m})
	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "job_applier_")

	s = newTestServer(t, Config{})
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/metrics", "").Code)
}

func TestAuth(t *testing.T) {
	jwtCfg := testJWTConfig(time.Hour)
	s := newTestServer(t, Config{JWT: jwtCfg})
	h := s.Handler()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/applications", validPayload).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	token, err := NewTokens(jwtCfg).Issue("ci")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/applications", strings.NewReader(validPayload))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s.Handler(), http.MethodOptions, "/applications", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Run-ID", rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, Config{RateLimit: ratelimit.NewConfig(ratelimit.DefaultPerMinute)})
	h := s.Handler()

	for i := 0; i < 3; i++ {
		rec := do(t, h, http.MethodPost, "/applications", validPayload)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, "20", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := do(t, h, http.MethodPost, "/applications", validPayload)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")

	// health is never limited
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, Config{ShutdownTimeout: time.Second})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
