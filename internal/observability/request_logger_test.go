package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRequestLoggerLabelsByRoutePattern(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/tickets/:id", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	app.Post("/tickets/:id/messages", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusCreated) })

	requests := []*http.Request{
		httptest.NewRequest(http.MethodPost, "/tickets/a1/messages", nil),
		httptest.NewRequest(http.MethodGet, "/tickets/a1", nil),
		httptest.NewRequest(http.MethodGet, "/tickets/b2", nil),
		httptest.NewRequest(http.MethodPost, "/tickets/b2/messages", nil),
	}
	for _, req := range requests {
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/tickets/:id", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/tickets/:id/messages", "201")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.httpRequests))
}

func TestRequestLoggerEchoesRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogger(nil, nil))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(RequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "req-42", resp.Header.Get(RequestIDHeader))
}

func TestRouteLabelMarksUnmatched(t *testing.T) {
	app := fiber.New()
	var label string
	app.Use(func(c *fiber.Ctx) error {
		err := c.Next()
		var fe *fiber.Error
		if errors.As(err, &fe) && fe.Code == fiber.StatusNotFound {
			MarkUnmatched(c)
		}
		label = RouteLabel(c)
		return err
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/no/such/thing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, UnmatchedRoute, label)
}

