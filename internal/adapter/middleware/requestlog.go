package middleware

import (
	"strconv"
	"time"

	"accelerator-portal/internal/observability"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const HeaderRequestID = "X-Request-Id"

// RequestLogger logs one line per request and records the latency histogram.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := req.Header.Get(HeaderRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, rid)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			code := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			dur := time.Since(start)
			observability.HTTPRequestDuration.WithLabelValues(req.Method, route, strconv.Itoa(code)).Observe(dur.Seconds())

			fields := []zap.Field{
				zap.String("request_id", rid),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", code),
				zap.Duration("latency", dur),
				zap.String("ip", c.RealIP()),
			}
			switch {
			case code >= 500:
				log.Error("request", append(fields, zap.Error(err))...)
			case code >= 400:
				log.Warn("request", fields...)
			default:
				log.Info("request", fields...)
			}
			return nil
		}
	}
}
