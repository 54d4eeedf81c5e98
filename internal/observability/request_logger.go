package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// UnmatchedRoute labels requests no route matched.
const UnmatchedRoute = "unmatched"

const (
	requestIDKey = "request_id"
	unmatchedKey = "route_unmatched"
)

// RequestLogger logs every request once and records its metrics. Register it
// before the error middleware so the logged status is the rendered one.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals(requestIDKey, requestID)
		c.Set(RequestIDHeader, requestID)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		latency := time.Since(start)
		metrics.RecordRequest(RouteLabel(c), MethodLabel(c), status, latency)

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}
		if status >= fiber.StatusInternalServerError {
			logger.Warn("request", fields...)
		} else {
			logger.Info("request", fields...)
		}
		return err
	}
}

// RequestID returns the id assigned by RequestLogger.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

// MarkUnmatched records that the router found no route for the request.
func MarkUnmatched(c *fiber.Ctx) {
	c.Locals(unmatchedKey, true)
}

// RouteLabel is the registered route pattern of the request, or UnmatchedRoute.
// Raw paths carry ticket ids and would give every ticket its own series.
func RouteLabel(c *fiber.Ctx) string {
	if unmatched, _ := c.Locals(unmatchedKey).(bool); unmatched {
		return UnmatchedRoute
	}
	route := c.Route()
	// fiber fabricates a handlerless route from the raw path when none matched.
	if route == nil || len(route.Handlers) == 0 || route.Path == "" {
		return UnmatchedRoute
	}
	return utils.CopyString(route.Path)
}

// MethodLabel copies the request method out of the reused request buffer;
// label values outlive the request.
func MethodLabel(c *fiber.Ctx) string {
	return utils.CopyString(c.Method())
}
