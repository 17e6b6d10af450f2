package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"RiskLens/pkg/logger"
)

// RequestLogging logs HTTP requests; 5xx responses and requests slower than
// slow are logged at warn level.
func RequestLogging(l *logger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			latency := time.Since(start)
			status := c.Response().Status
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("uri", req.RequestURI),
				logger.String("ip", c.RealIP()),
				logger.Int("status", status),
				logger.Duration("latency", latency),
			}
			switch {
			case status >= 500:
				l.Warn("http request failed", fields...)
			case slow > 0 && latency >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}
