package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/repository"
	svcmetrics "RiskLens/internal/service/metrics"
	"RiskLens/internal/service/ratelimit"
	"RiskLens/internal/services/interpreter"
	series "RiskLens/internal/testutil"
	"RiskLens/internal/usecase"
	"RiskLens/pkg/cache"
	pkgmetrics "RiskLens/pkg/metrics"
)

type response struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) error { return f.err }

func newTestServer(t *testing.T, limiter *ratelimit.Limiter) (*echo.Echo, *svcmetrics.EndpointMetrics, *RiskEchoHandler) {
	t.Helper()
	store := repository.NewCSVSeriesStore(t.TempDir())
	require.NoError(t, store.SaveSeries(context.Background(), series.RandomWalk("SPY", 450, 4)))
	require.NoError(t, store.SaveSeries(context.Background(), series.RandomWalk("TINY", 40, 4)))

	reg := prometheus.NewRegistry()
	risk := usecase.NewRiskUseCase(store, interpreter.NewRuleBased(), pkgmetrics.NewWithRegisterer(reg), models.DefaultRiskConfig())
	suite := usecase.NewSuiteUseCase(risk, []string{"SPY"}, 2, time.Minute, nil)
	em := svcmetrics.NewEndpointMetrics(reg)

	h := NewRiskEchoHandler(nil, risk, suite, em, limiter)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, em, h
}

func get(t *testing.T, e *echo.Echo, target string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var body response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestAnalyzeEndpoint(t *testing.T) {
	e, em, _ := newTestServer(t, nil)

	rec, body := get(t, e, "/api/risk/analyze?symbol=SPY&bars=450")
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.RiskReport
	require.NoError(t, json.Unmarshal(body.Data, &report))
	assert.Equal(t, "SPY", report.Symbol)
	require.NotNil(t, report.Latest)
	require.NotNil(t, report.Interpretation)
	assert.Equal(t, "private, max-age=60", rec.Header().Get(echo.HeaderCacheControl))
	assert.Equal(t, 1, testutil.CollectAndCount(em.Latency))
}

func TestEndpointErrorMapping(t *testing.T) {
	e, em, _ := newTestServer(t, nil)

	cases := []struct {
		name   string
		target string
		status int
	}{
		{"missing symbol", "/api/risk/analyze", http.StatusBadRequest},
		{"bad interval", "/api/risk/analyze?symbol=SPY&interval=5m", http.StatusBadRequest},
		{"bad policy", "/api/risk/backtest?symbol=SPY&policy=yolo", http.StatusBadRequest},
		{"unknown symbol", "/api/risk/analyze?symbol=NOPE", http.StatusNotFound},
		{"short history", "/api/risk/analyze?symbol=TINY", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := get(t, e, tc.target)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(em.Errors.WithLabelValues("analyze", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(em.Errors.WithLabelValues("analyze", "insufficient_history")))
}

func TestBacktestAndSuiteEndpoints(t *testing.T) {
	e, _, _ := newTestServer(t, nil)

	rec, body := get(t, e, "/api/risk/backtest?symbol=SPY&bars=450&policy=hold")
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.RiskReport
	require.NoError(t, json.Unmarshal(body.Data, &report))
	require.NotNil(t, report.Backtest)
	assert.Zero(t, report.Backtest.TradeCount)

	rec, body = get(t, e, "/api/risk/suite?bars=450&symbols=SPY,NOPE")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum models.SuiteSummary
	require.NoError(t, json.Unmarshal(body.Data, &sum))
	assert.Len(t, sum.Entries, 2)
	assert.Equal(t, 1, sum.Failed)
}

func TestRateLimitedRoutes(t *testing.T) {
	e, _, _ := newTestServer(t, ratelimit.New(0.001, 1))

	rec, _ := get(t, e, "/api/risk/analyze?symbol=NOPE")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = get(t, e, "/api/risk/analyze?symbol=NOPE")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec, _ = get(t, e, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	e, _, h := newTestServer(t, nil)
	h.WithHealthCheck("clickhouse", fakeHealth{})

	rec, _ := get(t, e, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.WithHealthCheck("redis", fakeHealth{err: errors.New("connection refused")})
	rec, body := get(t, e, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, string(body.Data), "connection refused")
}

type stubQueue struct{ n int }

func (q *stubQueue) Enqueue(context.Context, string, interface{}) (string, error) {
	q.n++
	return "job-42", nil
}

func TestJobEndpoints(t *testing.T) {
	store := repository.NewCSVSeriesStore(t.TempDir())
	require.NoError(t, store.SaveSeries(context.Background(), series.RandomWalk("SPY", 450, 4)))
	reg := prometheus.NewRegistry()
	risk := usecase.NewRiskUseCase(store, interpreter.NewRuleBased(), pkgmetrics.NewWithRegisterer(reg), models.DefaultRiskConfig())
	q := &stubQueue{}
	jobs := usecase.NewRiskJobs(risk, q, cache.NewMemoryCache(), 0, nil)

	h := NewRiskEchoHandler(nil, risk, nil, svcmetrics.NewEndpointMetrics(reg), nil).WithJobs(jobs)
	e := echo.New()
	h.RegisterRoutes(e)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/risk/jobs", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"symbol":"SPY","mode":"validate","bars":450}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/risk/jobs/job-42", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, 1, q.n)

	rec = post(`{"symbol":"SPY","mode":"predict"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, q.n)

	rec, body := get(t, e, "/api/risk/jobs/job-42")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.JobStatus
	require.NoError(t, json.Unmarshal(body.Data, &st))
	assert.Equal(t, models.JobQueued, st.State)
	assert.Equal(t, models.ModeValidate, st.Request.Mode)

	rec, _ = get(t, e, "/api/risk/jobs/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = get(t, e, "/api/risk/jobs/dead")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(body.Data))
}
