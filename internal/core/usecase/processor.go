package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/entity"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/port"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/applog"
	imetrics "github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/metrics"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/pattern"
)

const checkpointWriteAttempts = 5

// BlockProcessorService republishes blocks to the sink and advances the
// checkpoint once a block is published. Blocks are processed one at a time.
type BlockProcessorService struct {
	log         applog.AppLogger
	sink        port.Sink
	checkpoints port.CheckpointStore
	mirror      port.BlockPublisher

	mu           sync.Mutex
	lastHandled  uint64
	handledAny   bool
	floor        uint64
	hasFloor     bool
	retryOptions []pattern.RetryOption
}

type ProcessorOption func(*BlockProcessorService)

// WithLastHandled makes the processor ignore blocks at or below height.
func WithLastHandled(height uint64) ProcessorOption {
	return func(bps *BlockProcessorService) {
		bps.lastHandled = height
		bps.handledAny = true
	}
}

// WithCheckpointFloor keeps checkpoint writes strictly above height. Blocks
// at or below it are still published.
func WithCheckpointFloor(height uint64) ProcessorOption {
	return func(bps *BlockProcessorService) {
		bps.floor = height
		bps.hasFloor = true
	}
}

// WithMirror also publishes every block to p before the checkpoint moves.
func WithMirror(p port.BlockPublisher) ProcessorOption {
	return func(bps *BlockProcessorService) { bps.mirror = p }
}

// WithRetryOptions overrides the backoff used for sink operations.
func WithRetryOptions(opts ...pattern.RetryOption) ProcessorOption {
	return func(bps *BlockProcessorService) { bps.retryOptions = opts }
}

func NewBlockProcessorService(log applog.AppLogger, sink port.Sink, checkpoints port.CheckpointStore, opts ...ProcessorOption) *BlockProcessorService {
	bps := &BlockProcessorService{
		log:         log,
		sink:        sink,
		checkpoints: checkpoints,
		retryOptions: []pattern.RetryOption{
			pattern.WithInfiniteAttempts(),
			pattern.WithInitialDelay(200 * time.Millisecond),
			pattern.WithMaxDelay(10 * time.Second),
			pattern.WithJitter(0.2),
		},
	}
	for _, o := range opts {
		o(bps)
	}
	return bps
}

// HandleBlock publishes block and then records its height as the checkpoint.
// Sink outages are retried with backoff until ctx is done. Once the block is
// published the checkpoint write is completed even if ctx is canceled.
func (bps *BlockProcessorService) HandleBlock(ctx context.Context, block *entity.Block) error {
	if block == nil {
		return apperr.NewBlockProcessErr("block is required", nil)
	}
	start := time.Now()

	bps.mu.Lock()
	defer bps.mu.Unlock()

	if bps.handledAny && block.Height <= bps.lastHandled {
		imetrics.Pipeline().DuplicatesTotal.Inc()
		bps.log.Debug("Skipping block at or below last handled height", "height", block.Height, "last_handled", bps.lastHandled)
		return nil
	}

	if err := bps.withRetry(ctx, "publish", bps.retryOptions, func() error {
		return bps.sink.Publish(ctx, block.Payload)
	}); err != nil {
		bps.log.Error("failed to publish block", "height", block.Height, "hash", block.Hash, "err", err)
		return apperr.NewBlockProcessErr("failed to publish block", err)
	}

	if bps.mirror != nil {
		headers := map[string]string{"content-type": "application/json"}
		if err := bps.mirror.PublishBlock(ctx, block, headers); err != nil {
			bps.log.Error("failed to mirror block", "height", block.Height, "hash", block.Hash, "err", err)
			return apperr.NewBlockProcessErr("failed to mirror block", err)
		}
	}

	if !bps.hasFloor || block.Height > bps.floor {
		writeCtx := context.WithoutCancel(ctx)
		opts := append(append([]pattern.RetryOption{}, bps.retryOptions...), pattern.WithMaxAttempts(checkpointWriteAttempts))
		if err := bps.withRetry(writeCtx, "checkpoint", opts, func() error {
			return bps.checkpoints.SetSyncedHeight(writeCtx, block.Height)
		}); err != nil {
			bps.log.Error("failed to store checkpoint", "height", block.Height, "err", err)
			return apperr.NewBlockProcessErr("failed to store checkpoint", err)
		}
		imetrics.Pipeline().CommittedHeight.Set(float64(block.Height))
		imetrics.Pipeline().BlockToCommitMS.Observe(float64(time.Since(start).Milliseconds()))
	}

	bps.lastHandled = block.Height
	bps.handledAny = true
	imetrics.Pipeline().CommittedTotal.Inc()
	bps.log.Trace("Relayed block", "height", block.Height, "hash", block.Hash, "payload_bytes", len(block.Payload))
	return nil
}

// withRetry retries fn while it fails with a connection error.
func (bps *BlockProcessorService) withRetry(ctx context.Context, op string, opts []pattern.RetryOption, fn func() error) error {
	opts = append(append([]pattern.RetryOption{}, opts...),
		pattern.WithShouldRetry(isTransient),
		pattern.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			imetrics.App().WarningsTotal.WithLabelValues(imetrics.ComponentProcessor, op).Inc()
			bps.log.Warn("Sink operation failed; retrying", "op", op, "attempt", attempt, "delay", delay, "err", err)
		}),
	)
	err := pattern.Retry(ctx, func(int) error { return fn() }, opts...)
	if err != nil {
		imetrics.App().ErrorsTotal.WithLabelValues(imetrics.ComponentProcessor, op).Inc()
	}
	return err
}

func isTransient(err error) bool {
	var ce *apperr.ConnectionErr
	return errors.As(err, &ce)
}

var _ port.ProcessorService = (*BlockProcessorService)(nil)
