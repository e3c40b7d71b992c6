package port

import (
	"context"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/entity"
)

// BlockHandler consumes decoded blocks delivered by the stream source.
type BlockHandler func(context.Context, *entity.Block) error

// BlockSource is the upstream block stream. Blocks are delivered to the
// handler one at a time in increasing height order.
type BlockSource interface {
	SetHandler(handler BlockHandler)
	StartStreaming() error
	StopStreaming()
	Err() <-chan error
}
