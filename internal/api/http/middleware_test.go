package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-timekeeper/internal/observability"
	apperrors "github.com/spec-kit/sla-timekeeper/pkg/util/errorutil"
)

func newMiddlewareApp(metrics *observability.Metrics) *fiber.App {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic("kaboom")
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": "t-1"})
	})
	return app
}

func TestErrorsCarryRequestID(t *testing.T) {
	metrics := observability.NewMetrics()
	app := newMiddlewareApp(metrics)

	req := httptest.NewRequest(fiber.MethodGet, "/missing", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get(fiber.HeaderXRequestID))

	var body struct {
		Error struct {
			Code      string         `json:"code"`
			RequestID string         `json:"request_id"`
			Details   map[string]any `json:"details"`
		} `json:"error"`
	}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, apperrors.CodeNotFound, body.Error.Code)
	assert.Equal(t, "req-42", body.Error.RequestID)
	assert.Equal(t, "t-1", body.Error.Details["ticket_id"])

	snapshot := metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot.Errors["/missing|GET|NOT_FOUND"])
}

func TestPanicBecomesInternalError(t *testing.T) {
	app := newMiddlewareApp(observability.NewMetrics())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/panic", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}
