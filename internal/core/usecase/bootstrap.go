package usecase

import (
	"context"
	"errors"
	"math"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/port"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/applog"
)

// ResumePolicy decides where streaming starts.
type ResumePolicy struct {
	FromCheckpoint bool
	StartHeight    uint64
}

// ResolveStartHeight returns StartHeight unchanged when not resuming from the
// checkpoint, without reading the store. Otherwise it returns the height
// right after the stored checkpoint, or 1 when none is stored.
func ResolveStartHeight(ctx context.Context, policy ResumePolicy, store port.CheckpointStore) (uint64, error) {
	if !policy.FromCheckpoint {
		return policy.StartHeight, nil
	}
	if store == nil {
		return 0, apperr.NewInvalidArgErr("checkpoint store is required to resume", nil)
	}
	synced, err := store.GetSyncedHeight(ctx)
	if err != nil {
		return 0, err
	}
	if synced == math.MaxUint64 {
		return 0, apperr.NewStreamConfigBuildErr("checkpoint is at the maximum block height; no height to resume from", nil)
	}
	return synced + 1, nil
}

// CheckpointFloor reads the stored checkpoint so later writes never move it
// backward. ok is false when nothing is stored. A corrupt value yields no
// floor: the explicit start height governs and the first write replaces it.
func CheckpointFloor(ctx context.Context, log applog.AppLogger, store port.CheckpointStore) (floor uint64, ok bool, err error) {
	synced, err := store.GetSyncedHeight(ctx)
	var corrupt *apperr.CorruptCheckpointErr
	switch {
	case errors.As(err, &corrupt):
		log.Warn("Ignoring corrupt checkpoint; it will be overwritten", "value", corrupt.Raw)
		return 0, false, nil
	case err != nil:
		return 0, false, err
	case synced == 0:
		return 0, false, nil
	}
	return synced, true, nil
}
