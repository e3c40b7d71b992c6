package infra

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/adapter/publish"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/applog"
)

// InitBlockMirror wires the Kafka mirror. Retry tuning comes from the
// optional KAFKA_* settings.
func InitBlockMirror(logger applog.AppLogger, cfg *AppConfig, v *validator.Validate) (*publish.KafkaPublisher, error) {
	if logger == nil {
		return nil, fmt.Errorf("infra: logger is required to init block mirror")
	}
	if v == nil {
		v = validator.New()
	}

	pc := publish.Config{
		Brokers:               cfg.KafkaBrokers,
		Topic:                 cfg.KafkaTopic,
		ClientID:              cfg.KafkaClientID,
		TransactionalID:       cfg.KafkaTransactionalID,
		MaxRetryAttempts:      cfg.Tunable("kafka.max_retry_attempts"),
		RetryInitialBackoffMS: cfg.Tunable("kafka.retry_initial_backoff_ms"),
		RetryMaxBackoffMS:     cfg.Tunable("kafka.retry_max_backoff_ms"),
		RetryJitter:           cfg.KafkaRetryJitter,
		WriteTimeoutSeconds:   cfg.Tunable("kafka.write_timeout_seconds"),
	}

	mirror, err := publish.NewKafkaPublisher(logger, pc, v)
	if err != nil {
		return nil, fmt.Errorf("infra: failed to init block mirror: %w", err)
	}
	return mirror, nil
}
