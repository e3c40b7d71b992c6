package http

import (
	"github.com/gofiber/fiber/v3"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/adapter/sink"
)

var sinkState = sink.CurrentState

// Health reports UP once the sink publisher is ready.
func Health(ctx fiber.Ctx) error {
	if s := sinkState(); s != sink.StateReady {
		ctx.Status(fiber.StatusServiceUnavailable)
		return ctx.JSON(s.String())
	}
	ctx.Status(fiber.StatusOK)
	return ctx.JSON("UP!")
}
