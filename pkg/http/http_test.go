package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLens/internal/domain/models"
)

type probeRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	Bars   int    `query:"bars" default:"500" validate:"gte=1,lte=1000"`
	Mode   string `query:"mode" default:"analyze" validate:"oneof=analyze validate"`
}

func bindProbe(target string) (*probeRequest, interface{}) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	var r probeRequest
	return &r, ReadAndValidateRequest(c, &r)
}

func TestReadAndValidateRequest(t *testing.T) {
	r, errs := bindProbe("/probe?symbol=SPY")
	require.Nil(t, errs)
	assert.Equal(t, 500, r.Bars)
	assert.Equal(t, "analyze", r.Mode)

	_, errs = bindProbe("/probe?bars=5000&mode=x")
	verrs, ok := errs.([]ValidationError)
	require.True(t, ok)
	codes := make([]string, 0, len(verrs))
	for _, v := range verrs {
		codes = append(codes, v.Code)
	}
	assert.ElementsMatch(t, []string{"ERR_REQUIRED", "ERR_LTE", "ERR_ONEOF"}, codes)
}

func TestFromDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"insufficient", &models.InsufficientHistoryError{Component: "ensemble", Have: 10, Need: 200}, http.StatusUnprocessableEntity},
		{"wrapped insufficient", fmt.Errorf("analyze: %w", &models.InsufficientHistoryError{Component: "ensemble"}), http.StatusUnprocessableEntity},
		{"malformed", &models.MalformedSeriesError{Symbol: "SPY", Index: 3, Reason: "duplicate date"}, http.StatusBadRequest},
		{"not found", fmt.Errorf("load: %w", models.ErrSeriesNotFound), http.StatusNotFound},
		{"app error passes through", TooManyRequestsError("slow down"), http.StatusTooManyRequests},
		{"other", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, FromDomainError(tt.err).Status)
		})
	}

	e := FromDomainError(&models.InsufficientHistoryError{Component: "ensemble", Have: 10, Need: 200})
	assert.Equal(t, 200, e.Params["need"])
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
	e.GET("/fail", func(c echo.Context) error { return AppErrorResponse(c, NotFoundError("nope")) })
}

func TestServerRoutesAndMetrics(t *testing.T) {
	s := NewServer([]Handler{pingHandler{}}, WithMetrics("/metrics", prometheus.NewRegistry()))

	serve := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := serve("/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":"pong"}`, rec.Body.String())

	assert.Equal(t, http.StatusInternalServerError, serve("/boom").Code)

	rec = serve("/fail")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":404`)

	rec = serve("/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `risklens_http_requests_total{method="GET",route="/ping",status="200"} 1`)
}
