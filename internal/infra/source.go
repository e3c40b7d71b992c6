package infra

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/adapter/source"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/port"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/applog"
)

// InitBlockSource builds the NATS block source for an already built stream
// config.
func InitBlockSource(log applog.AppLogger, wg *sync.WaitGroup, cfg *AppConfig, streamCfg *source.Config, v *validator.Validate) (port.BlockSource, error) {
	conn := source.ConnConfig{
		URL:                     cfg.NatsURL,
		Name:                    "near-lake-relay",
		ConnectTimeoutMS:        cfg.Tunable("nats.connect_timeout_ms"),
		ReconnectInitialDelayMS: cfg.Tunable("nats.reconnect_initial_delay_ms"),
		ReconnectMaxDelayMS:     cfg.Tunable("nats.reconnect_max_delay_ms"),
		CredentialsFile:         cfg.NatsCredsFile,
	}
	s, err := source.NewNatsSource(log, wg, streamCfg, &conn, v)
	if err != nil {
		return nil, fmt.Errorf("infra: failed to init block source: %w", err)
	}
	return s, nil
}
