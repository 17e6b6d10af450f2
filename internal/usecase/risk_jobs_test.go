package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/testutil"
	"RiskLens/pkg/cache"
	"RiskLens/pkg/queue"
)

type fakeEnqueuer struct {
	id       string
	err      error
	payloads []interface{}
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	if msgType != JobTypeRiskRequest {
		return "", errors.New("unexpected type " + msgType)
	}
	f.payloads = append(f.payloads, payload)
	return f.id, f.err
}

func TestRiskJobsSubmitAndStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(testutil.RandomWalk("SPY", 450, 5))
	q := &fakeEnqueuer{id: "job-1"}
	jobs := NewRiskJobs(f.risk, q, cache.NewMemoryCache(), 0, nil)

	st, err := jobs.Submit(ctx, models.RiskRequest{Symbol: "SPY", Mode: models.ModeAnalyze, Interval: "1d", Bars: 450})
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, st.State)
	require.Len(t, q.payloads, 1)

	got, err := jobs.Status(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, got.State)
	assert.Equal(t, "SPY", got.Request.Symbol)

	_, err = jobs.Status(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrJobNotFound)

	q.err = errors.New("redis down")
	_, err = jobs.Submit(ctx, models.RiskRequest{Symbol: "SPY"})
	assert.ErrorContains(t, err, "redis down")
}

func TestRiskJobsHandle(t *testing.T) {
	f := newFixture(testutil.RandomWalk("SPY", 450, 5))
	status := cache.NewMemoryCache()
	jobs := NewRiskJobs(f.risk, &fakeEnqueuer{}, status, 0, nil)

	run := func(id, payload string) (*models.JobStatus, error) {
		ctx := queue.WithMessageID(context.Background(), id)
		err := jobs.Handle(ctx, []byte(payload))
		st, serr := jobs.Status(context.Background(), id)
		require.NoError(t, serr)
		return st, err
	}

	t.Run("done with report", func(t *testing.T) {
		st, err := run("ok", `{"symbol":"SPY","bars":450}`)
		require.NoError(t, err)
		assert.Equal(t, models.JobDone, st.State)
		require.NotNil(t, st.Report)
		assert.Equal(t, models.ModeAnalyze, st.Report.Mode)
		assert.Equal(t, 1, f.pub.count())
	})

	t.Run("undecodable payload is permanent", func(t *testing.T) {
		st, err := run("bad", `{"symbol":`)
		assert.True(t, queue.IsPermanent(err))
		assert.Equal(t, models.JobFailed, st.State)
	})

	t.Run("unknown symbol is permanent", func(t *testing.T) {
		st, err := run("nope", `{"symbol":"NOPE"}`)
		assert.True(t, queue.IsPermanent(err))
		assert.ErrorIs(t, err, models.ErrSeriesNotFound)
		assert.Equal(t, models.JobFailed, st.State)
		assert.NotEmpty(t, st.Error)
	})
}
