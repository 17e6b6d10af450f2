package interpreter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLens/internal/domain/models"
	"RiskLens/pkg/cache"
)

func input(risk float64) models.InterpretationInput {
	return models.InterpretationInput{
		Symbol:   "BTC-USD",
		Latest:   models.CompositeRiskScore{Value: risk, Signal: models.DefaultThresholds().Classify(risk)},
		Metadata: models.AnalysisMetadata{LastPrice: 64000, Returns: map[string]float64{"30d": 0.12}},
	}
}

func TestRuleBasedBands(t *testing.T) {
	cases := []struct {
		risk   float64
		light  models.TrafficLight
		status string
	}{
		{0.05, models.LightGreen, "EXTREME OPPORTUNITY"},
		{0.2, models.LightGreen, "OPPORTUNITY"},
		{0.39, models.LightGreen, "OPPORTUNITY"},
		{0.4, models.LightYellow, "FAIR VALUE"},
		{0.6, models.LightRed, "ELEVATED RISK"},
		{0.8, models.LightRed, "BUBBLE TERRITORY"},
		{1, models.LightRed, "BUBBLE TERRITORY"},
	}
	for _, tc := range cases {
		out, err := NewRuleBased().Interpret(context.Background(), input(tc.risk))
		require.NoError(t, err)
		assert.Equal(t, tc.light, out.Light, "risk %v", tc.risk)
		assert.Equal(t, tc.status, out.Status, "risk %v", tc.risk)
		assert.Equal(t, SourceRules, out.Source)
		assert.Contains(t, out.Summary, "BTC-USD")
	}
}

func TestRuleBasedMentionsWarmupAndGrade(t *testing.T) {
	in := input(0.5)
	in.Latest.Warmup = true
	in.Validation = &models.ValidationReport{OverallScore: 72, Grade: models.GradeB}
	out, err := NewRuleBased().Interpret(context.Background(), in)
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "warming up")
	assert.Contains(t, out.Summary, "grades the model B")
}

func completionServer(t *testing.T, status *int32, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) && assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "test-model", req.Model)
			assert.Contains(t, req.Messages[0].Content, "BTC-USD")
		}

		if code := int(atomic.LoadInt32(status)); code != http.StatusOK {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Risk is low, accumulate.  "}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestExternal(t *testing.T, url string, opts ...ExternalOption) *External {
	t.Helper()
	opts = append([]ExternalOption{WithModel("test-model"), WithRetries(2)}, opts...)
	e, err := NewExternal(url+"/v1/", "sk-test", time.Second, opts...)
	require.NoError(t, err)
	e.base.backoff = time.Millisecond
	return e
}

func TestExternalInterpretAndCache(t *testing.T) {
	var status, calls int32 = http.StatusOK, 0
	srv := completionServer(t, &status, &calls)
	mc := cache.NewMemoryCache()
	defer mc.Close()

	e := newTestExternal(t, srv.URL, WithCache(mc, time.Minute))
	out, err := e.Interpret(context.Background(), input(0.15))
	require.NoError(t, err)
	assert.Equal(t, SourceExternal, out.Source)
	assert.Equal(t, "Risk is low, accumulate.", out.Summary)
	assert.Equal(t, models.LightGreen, out.Light)
	assert.Equal(t, "Strong Buy (Heavy DCA)", out.Action)

	again, err := e.Interpret(context.Background(), input(0.15))
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestExternalRetriesOnlyTransientFailures(t *testing.T) {
	t.Run("server errors are retried", func(t *testing.T) {
		var status, calls int32 = http.StatusBadGateway, 0
		srv := completionServer(t, &status, &calls)
		_, err := newTestExternal(t, srv.URL).Interpret(context.Background(), input(0.5))
		require.Error(t, err)
		assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	})

	t.Run("client errors are not", func(t *testing.T) {
		var status, calls int32 = http.StatusUnauthorized, 0
		srv := completionServer(t, &status, &calls)
		_, err := newTestExternal(t, srv.URL).Interpret(context.Background(), input(0.5))
		require.Error(t, err)
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})
}

func TestExternalBreakerOpens(t *testing.T) {
	var status, calls int32 = http.StatusServiceUnavailable, 0
	srv := completionServer(t, &status, &calls)
	e := newTestExternal(t, srv.URL, WithRetries(0), WithBreaker(2, time.Hour))

	for i := 0; i < 2; i++ {
		_, err := e.Interpret(context.Background(), input(0.5))
		require.Error(t, err)
	}
	_, err := e.Interpret(context.Background(), input(0.5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestNewExternalRequiresKey(t *testing.T) {
	_, err := NewExternal("https://api.example.com", "", time.Second)
	assert.Error(t, err)
}

type failingInterpreter struct{ err error }

func (f failingInterpreter) Interpret(context.Context, models.InterpretationInput) (models.Interpretation, error) {
	return models.Interpretation{}, f.err
}

func TestFallbackUsesRulesOnFailure(t *testing.T) {
	fb := NewFallback(failingInterpreter{err: errors.New("upstream down")}, NewRuleBased(), nil)
	out, err := fb.Interpret(context.Background(), input(0.7))
	require.NoError(t, err)
	assert.Equal(t, SourceRules, out.Source)
	assert.Equal(t, "ELEVATED RISK", out.Status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fb.Interpret(ctx, input(0.7))
	assert.ErrorIs(t, err, context.Canceled)
}
