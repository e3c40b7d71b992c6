package infra

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/adapter/sink"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/adapter/store"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/port"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/applog"
)

// InitSink initializes the process-wide Redis publisher from cfg.
func InitSink(ctx context.Context, log applog.AppLogger, cfg *AppConfig, v *validator.Validate) (*sink.RedisPublisher, error) {
	sc := sink.Config{
		URL:                cfg.RedisURL,
		Channel:            cfg.PubList,
		DialTimeoutSeconds: cfg.Tunable("redis.dial_timeout_seconds"),
		OpTimeoutSeconds:   cfg.Tunable("redis.op_timeout_seconds"),
		ConnectAttempts:    cfg.Tunable("redis.connect_attempts"),
	}
	p, err := sink.Initialize(ctx, log, &sc, v)
	if err != nil {
		return nil, fmt.Errorf("infra: failed to init sink publisher: %w", err)
	}
	return p, nil
}

// InitCheckpointStore builds the checkpoint store over the shared sink.
func InitCheckpointStore(log applog.AppLogger, s port.Sink) (port.CheckpointStore, error) {
	cs, err := store.NewCheckpointStore(log, s)
	if err != nil {
		return nil, fmt.Errorf("infra: failed to init checkpoint store: %w", err)
	}
	return cs, nil
}
