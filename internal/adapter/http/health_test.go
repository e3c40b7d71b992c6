package http

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/adapter/sink"
)

func TestHealth(t *testing.T) {
	cases := []struct {
		name     string
		state    sink.State
		wantCode int
		wantBody string
	}{
		{name: "ready", state: sink.StateReady, wantCode: fiber.StatusOK, wantBody: `"UP!"`},
		{name: "initializing", state: sink.StateInitializing, wantCode: fiber.StatusServiceUnavailable, wantBody: `"initializing"`},
		{name: "uninitialized", state: sink.StateUninitialized, wantCode: fiber.StatusServiceUnavailable, wantBody: `"uninitialized"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			old := sinkState
			t.Cleanup(func() { sinkState = old })
			sinkState = func() sink.State { return tc.state }

			app := fiber.New()
			app.Get("/health", Health)
			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tc.wantCode, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, tc.wantBody, string(body))
		})
	}
}
