package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/port"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/applog"
	imetrics "github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/metrics"
)

// BlockHeightKey is the sink key holding the last synced block height.
const BlockHeightKey = "block_height"

// CheckpointStore keeps the last synced block height in the shared sink as
// decimal text. It does not enforce monotonic updates; callers advance it in
// block order.
type CheckpointStore struct {
	sink port.Sink
	log  applog.AppLogger
	key  string
}

// NewCheckpointStore returns a store over sink using BlockHeightKey.
func NewCheckpointStore(log applog.AppLogger, sink port.Sink) (*CheckpointStore, error) {
	if sink == nil {
		return nil, apperr.NewInvalidArgErr("checkpoint sink is required", nil)
	}
	return &CheckpointStore{sink: sink, log: log, key: BlockHeightKey}, nil
}

// GetSyncedHeight returns the stored height, or 0 when nothing was stored
// yet. A stored value that is not an unsigned integer is reported as a
// CorruptCheckpointErr.
func (cs *CheckpointStore) GetSyncedHeight(ctx context.Context) (uint64, error) {
	raw, ok, err := cs.sink.Get(ctx, cs.key)
	if err != nil {
		return 0, err
	}
	if !ok {
		cs.log.Debug("No checkpoint stored", "key", cs.key)
		return 0, nil
	}
	height, err := decodeHeight(raw)
	if err != nil {
		imetrics.App().ErrorsTotal.WithLabelValues(imetrics.ComponentCheckpoint, "corrupt").Inc()
		cs.log.Error("Stored checkpoint is corrupt", "key", cs.key, "value", raw, "err", err)
		return 0, apperr.NewCorruptCheckpointErr(raw, err)
	}
	return height, nil
}

// SetSyncedHeight stores height. Storing the same height twice is harmless.
func (cs *CheckpointStore) SetSyncedHeight(ctx context.Context, height uint64) error {
	if err := cs.sink.Set(ctx, cs.key, encodeHeight(height)); err != nil {
		return err
	}
	cs.log.Trace("Checkpoint stored", "key", cs.key, "height", height)
	return nil
}

func encodeHeight(height uint64) string {
	return strconv.FormatUint(height, 10)
}

// decodeHeight parses the JSON number form of a height. Surrounding
// whitespace is ignored.
func decodeHeight(raw string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
}

var _ port.CheckpointStore = (*CheckpointStore)(nil)
