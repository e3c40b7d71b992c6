package port

import (
	"context"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/entity"
)

// Sink is the shared key-value and list store behind the publisher. Each call
// is one serialized round trip.
type Sink interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Publish(ctx context.Context, payload []byte) error
}

// BlockPublisher mirrors processed blocks to a secondary destination.
type BlockPublisher interface {
	PublishBlock(ctx context.Context, block *entity.Block, headers map[string]string) error
}
