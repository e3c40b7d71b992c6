package publish

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/entity"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/port"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/applog"
	imetrics "github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/metrics"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/pattern"
)

const (
	defaultRetryAttempts       = 5
	defaultRetryInitialBackoff = 200 * time.Millisecond
	defaultRetryMaxBackoff     = 2 * time.Second
	defaultRetryJitter         = 0.2
	defaultWriteTimeout        = 10 * time.Second
)

type kgoClient interface {
	BeginTransaction() error
	EndTransaction(ctx context.Context, commit kgo.TransactionEndTry) error
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

var newKgoClient = func(opts ...kgo.Opt) (kgoClient, error) {
	return kgo.NewClient(opts...)
}

// KafkaPublisher mirrors relayed blocks into a Kafka topic.
type KafkaPublisher struct {
	log          applog.AppLogger
	client       kgoClient
	cfg          Config
	writeTimeout time.Duration
	retryOpts    []pattern.RetryOption
}

func NewKafkaPublisher(log applog.AppLogger, cfg Config, v *validator.Validate) (*KafkaPublisher, error) {
	if err := v.Struct(cfg); err != nil {
		return nil, apperr.NewInvalidArgErr("invalid kafka publisher config", err)
	}

	maxAttempts := cfg.MaxRetryAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultRetryAttempts
	}
	initialBackoff := millisecondsOrDefault(cfg.RetryInitialBackoffMS, defaultRetryInitialBackoff)
	maxBackoff := millisecondsOrDefault(cfg.RetryMaxBackoffMS, defaultRetryMaxBackoff)
	if maxBackoff < initialBackoff {
		maxBackoff = initialBackoff
	}
	jitter := cfg.RetryJitter
	if jitter <= 0 {
		jitter = defaultRetryJitter
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.ZstdCompression(), kgo.NoCompression()),
	}
	if cfg.TransactionalID != "" {
		opts = append(opts, kgo.TransactionalID(cfg.TransactionalID))
	}
	client, err := newKgoClient(opts...)
	if err != nil {
		return nil, apperr.NewInvalidArgErr("failed to init kafka client", err)
	}

	kp := &KafkaPublisher{
		log:          log,
		client:       client,
		cfg:          cfg,
		writeTimeout: secondsOrDefault(cfg.WriteTimeoutSeconds, defaultWriteTimeout),
	}
	kp.retryOpts = []pattern.RetryOption{
		pattern.WithMaxAttempts(maxAttempts),
		pattern.WithInitialDelay(initialBackoff),
		pattern.WithMaxDelay(maxBackoff),
		pattern.WithJitter(jitter),
		pattern.WithShouldRetry(kp.shouldRetry),
	}
	return kp, nil
}

// PublishBlock writes the block payload keyed by its hash. Extra headers are
// appended after the height and hash headers.
func (kp *KafkaPublisher) PublishBlock(ctx context.Context, block *entity.Block, headers map[string]string) error {
	if block == nil {
		return apperr.NewInvalidArgErr("block is required", nil)
	}

	rec := kp.buildRecord(block, headers)
	err := pattern.Retry(ctx, func(attempt int) error {
		if kp.cfg.TransactionalID != "" {
			if err := kp.client.BeginTransaction(); err != nil {
				return err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, kp.writeTimeout)
		defer cancel()

		imetrics.Mirror().AttemptsTotal.Inc()
		start := time.Now()
		writeErr := kp.client.ProduceSync(attemptCtx, rec).FirstErr()
		imetrics.Mirror().AttemptLatencyMS.Observe(float64(time.Since(start).Milliseconds()))

		if kp.cfg.TransactionalID != "" {
			if writeErr == nil {
				writeErr = kp.client.EndTransaction(context.WithoutCancel(ctx), kgo.TryCommit)
			} else {
				_ = kp.client.EndTransaction(context.WithoutCancel(ctx), kgo.TryAbort)
			}
		}

		if writeErr != nil {
			imetrics.Mirror().ErrorsTotal.WithLabelValues(errorType(writeErr)).Inc()
			if kp.shouldRetry(writeErr) {
				kp.log.Warn("Kafka publish attempt failed", "attempt", attempt, "height", block.Height, "topic", kp.cfg.Topic, "err", writeErr)
			} else {
				kp.log.Error("Kafka publish failed (non-retriable)", "height", block.Height, "topic", kp.cfg.Topic, "err", writeErr)
			}
			return writeErr
		}
		imetrics.Mirror().BlocksTotal.Inc()
		imetrics.Mirror().LastHeight.Set(float64(block.Height))
		return nil
	}, kp.retryOpts...)
	if err != nil {
		imetrics.App().ErrorsTotal.WithLabelValues(imetrics.ComponentKafka, "produce").Inc()
		return apperr.NewBlockStreamErr("failed to publish block to kafka", err)
	}

	kp.log.Trace("Published block to Kafka", "topic", kp.cfg.Topic, "height", block.Height, "hash", block.Hash)
	return nil
}

func (kp *KafkaPublisher) Close() {
	kp.client.Close()
}

func (kp *KafkaPublisher) buildRecord(block *entity.Block, extras map[string]string) *kgo.Record {
	headers := []kgo.RecordHeader{
		{Key: "block-height", Value: []byte(strconv.FormatUint(block.Height, 10))},
		{Key: "block-hash", Value: []byte(block.Hash)},
	}
	for k, v := range extras {
		if k == "" {
			continue
		}
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return &kgo.Record{
		Topic:   kp.cfg.Topic,
		Key:     []byte(block.Hash),
		Value:   block.Payload,
		Headers: headers,
	}
}

func (kp *KafkaPublisher) shouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	// Topics may be provisioned shortly after startup.
	if errors.Is(err, kerr.UnknownTopicOrPartition) {
		return true
	}
	return kerr.IsRetriable(err)
}

func errorType(err error) string {
	var ke *kerr.Error
	switch {
	case errors.As(err, &ke):
		return ke.Message
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}

func millisecondsOrDefault(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func secondsOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

var _ port.BlockPublisher = (*KafkaPublisher)(nil)
