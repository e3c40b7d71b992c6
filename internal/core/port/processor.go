package port

import (
	"context"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/entity"
)

// ProcessorService publishes a block and advances the checkpoint past it.
type ProcessorService interface {
	HandleBlock(ctx context.Context, block *entity.Block) error
}
