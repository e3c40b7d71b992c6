package port

import "context"

// CheckpointStore persists the last block height whose processing completed.
type CheckpointStore interface {
	GetSyncedHeight(ctx context.Context) (uint64, error)
	SetSyncedHeight(ctx context.Context, height uint64) error
}
