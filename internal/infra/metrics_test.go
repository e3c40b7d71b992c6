package infra

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"

	imetrics "github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/metrics"
)

func TestInitMetrics_ServesRegistry(t *testing.T) {
	app := fiber.New()
	InitRoutes(app)
	InitMetrics(app)
	require.Same(t, InitMetricsRegistry(), InitMetricsRegistry())

	imetrics.Pipeline().CommittedHeight.Set(77)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "pipeline_checkpoint_height 77")
	require.Contains(t, string(body), "service_build_info")
	require.Contains(t, string(body), "app_goroutines")
}
