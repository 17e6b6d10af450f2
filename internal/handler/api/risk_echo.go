package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/service/metrics"
	"RiskLens/internal/service/ratelimit"
	"RiskLens/internal/usecase"
	xhttp "RiskLens/pkg/http"
	xlogger "RiskLens/pkg/logger"
	"RiskLens/pkg/queue"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RiskEchoHandler serves the risk API.
type RiskEchoHandler struct {
	logger  *xlogger.Logger
	risk    *usecase.RiskUseCase
	suite   *usecase.SuiteUseCase
	metrics *metrics.EndpointMetrics
	limiter *ratelimit.Limiter
	jobs    *usecase.RiskJobs
	health  map[string]HealthChecker
}

func NewRiskEchoHandler(logger *xlogger.Logger, risk *usecase.RiskUseCase, suite *usecase.SuiteUseCase, m *metrics.EndpointMetrics, limiter *ratelimit.Limiter) *RiskEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &RiskEchoHandler{logger: logger, risk: risk, suite: suite, metrics: m, limiter: limiter, health: map[string]HealthChecker{}}
}

// WithHealthCheck adds a dependency to /health.
func (h *RiskEchoHandler) WithHealthCheck(name string, hc HealthChecker) *RiskEchoHandler {
	if hc != nil {
		h.health[name] = hc
	}
	return h
}

// WithJobs enables the asynchronous job endpoints.
func (h *RiskEchoHandler) WithJobs(j *usecase.RiskJobs) *RiskEchoHandler {
	h.jobs = j
	return h
}

func (h *RiskEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api/risk")
	if h.limiter != nil {
		g.Use(h.limiter.Middleware())
	}
	g.GET("/analyze", h.Analyze)
	g.GET("/backtest", h.Backtest)
	g.GET("/validate", h.Validate)
	g.GET("/suite", h.Suite)
	if h.jobs != nil {
		g.POST("/jobs", h.SubmitJob)
		g.GET("/jobs/dead", h.DeadJobs)
		g.GET("/jobs/:id", h.JobStatus)
	}
}

func (h *RiskEchoHandler) Analyze(c echo.Context) error {
	start := time.Now()
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Observe("analyze", start, "bad_request")
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.risk.Analyze(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "analyze", start, err)
	}
	h.metrics.Observe("analyze", start, "")
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) Backtest(c echo.Context) error {
	start := time.Now()
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Observe("backtest", start, "bad_request")
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.risk.Backtest(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "backtest", start, err)
	}
	h.metrics.Observe("backtest", start, "")
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) Validate(c echo.Context) error {
	start := time.Now()
	req := &models.ValidateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Observe("validate", start, "bad_request")
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.risk.Validate(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "validate", start, err)
	}
	h.metrics.Observe("validate", start, "")
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) Suite(c echo.Context) error {
	start := time.Now()
	req := &models.SuiteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Observe("suite", start, "bad_request")
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.suite.Run(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "suite", start, err)
	}
	h.metrics.Observe("suite", start, "")
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) SubmitJob(c echo.Context) error {
	start := time.Now()
	req := &models.RiskRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Observe("job_submit", start, "bad_request")
		return xhttp.BadRequestResponse(c, verr)
	}

	st, err := h.jobs.Submit(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "job_submit", start, err)
	}
	h.metrics.Observe("job_submit", start, "")
	c.Response().Header().Set(echo.HeaderLocation, "/api/risk/jobs/"+st.ID)
	return xhttp.DataResponse(c, http.StatusAccepted, st)
}

func (h *RiskEchoHandler) JobStatus(c echo.Context) error {
	start := time.Now()
	st, err := h.jobs.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "job_status", start, err)
	}
	h.metrics.Observe("job_status", start, "")
	return xhttp.SuccessResponse(c, st)
}

func (h *RiskEchoHandler) DeadJobs(c echo.Context) error {
	start := time.Now()
	msgs, err := h.jobs.DeadLetters(c.Request().Context(), 50)
	if err != nil {
		return h.fail(c, "job_dead", start, err)
	}
	h.metrics.Observe("job_dead", start, "")
	if msgs == nil {
		msgs = []queue.Message{}
	}
	return xhttp.SuccessResponse(c, msgs)
}

func (h *RiskEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, hc := range h.health {
		if err := hc.Health(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"status": "ok", "dependencies": status})
}

func (h *RiskEchoHandler) fail(c echo.Context, endpoint string, start time.Time, err error) error {
	kind := usecase.ErrorKind(err)
	h.metrics.Observe(endpoint, start, kind)
	if kind == "internal" {
		h.logger.Error("risk endpoint error",
			xlogger.String("endpoint", endpoint),
			xlogger.Error(err),
		)
	}
	return xhttp.AppErrorResponse(c, xhttp.FromDomainError(err))
}
