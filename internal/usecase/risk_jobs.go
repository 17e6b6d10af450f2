package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RiskLens/internal/domain/models"
	"RiskLens/pkg/cache"
	"RiskLens/pkg/logger"
	"RiskLens/pkg/queue"
)

// JobTypeRiskRequest is the queue message type carrying a models.RiskRequest.
const JobTypeRiskRequest = "risk.request"

// Enqueuer puts a payload on a job queue and returns the message id.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// RiskJobs runs risk requests asynchronously through a job queue and keeps
// their status in the cache.
type RiskJobs struct {
	risk   *RiskUseCase
	queue  Enqueuer
	status cache.Service
	ttl    time.Duration
	now    func() time.Time
	l      *logger.Logger
}

func NewRiskJobs(risk *RiskUseCase, q Enqueuer, status cache.Service, ttl time.Duration, l *logger.Logger) *RiskJobs {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &RiskJobs{risk: risk, queue: q, status: status, ttl: ttl, now: time.Now, l: l}
}

func (j *RiskJobs) Name() string { return "risk-request" }
func (j *RiskJobs) Type() string { return JobTypeRiskRequest }

// Submit enqueues a request and records it as queued.
func (j *RiskJobs) Submit(ctx context.Context, req models.RiskRequest) (*models.JobStatus, error) {
	id, err := j.queue.Enqueue(ctx, JobTypeRiskRequest, req)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s %s: %w", req.Mode, req.Symbol, err)
	}
	st := &models.JobStatus{ID: id, State: models.JobQueued, Request: req}
	j.save(ctx, st)
	return st, nil
}

// Status returns the last recorded state of a job.
func (j *RiskJobs) Status(ctx context.Context, id string) (*models.JobStatus, error) {
	var st models.JobStatus
	if err := j.status.Get(ctx, statusKey(id), &st); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("%s: %w", id, models.ErrJobNotFound)
		}
		return nil, fmt.Errorf("job status %s: %w", id, err)
	}
	return &st, nil
}

// DeadLetters lists requests that exhausted their retries, newest first.
func (j *RiskJobs) DeadLetters(ctx context.Context, n int64) ([]queue.Message, error) {
	dl, ok := j.queue.(interface {
		DeadLetters(ctx context.Context, n int64) ([]queue.Message, error)
	})
	if !ok {
		return nil, nil
	}
	return dl.DeadLetters(ctx, n)
}

// Handle runs one queued request. Requests that cannot succeed on retry are
// marked failed and returned as permanent errors.
func (j *RiskJobs) Handle(ctx context.Context, payload []byte) error {
	st := &models.JobStatus{ID: queue.MessageID(ctx)}
	req, _, err := decodeRiskRequest(payload)
	st.Request = req
	if err != nil {
		st.State, st.Error = models.JobFailed, err.Error()
		j.save(ctx, st)
		return queue.Permanent(err)
	}

	st.State = models.JobRunning
	j.save(ctx, st)

	rep, err := j.risk.Run(ctx, req)
	if err != nil {
		st.Error = err.Error()
		switch ErrorKind(err) {
		case "internal", "timeout":
			st.State = models.JobRetrying
			j.save(ctx, st)
			return err
		default:
			st.State = models.JobFailed
			j.save(ctx, st)
			return queue.Permanent(err)
		}
	}

	st.State, st.Report = models.JobDone, rep
	j.save(ctx, st)
	return nil
}

func (j *RiskJobs) save(ctx context.Context, st *models.JobStatus) {
	if st.ID == "" {
		return
	}
	st.UpdatedAt = j.now().UTC()
	if err := j.status.Set(ctx, statusKey(st.ID), st, j.ttl); err != nil {
		j.l.Warn("job status write failed",
			logger.String("id", st.ID),
			logger.String("state", st.State),
			logger.Error(err))
	}
}

func statusKey(id string) string { return cache.GenerateKeyWithParams("job", id) }

var _ queue.Job = (*RiskJobs)(nil)
