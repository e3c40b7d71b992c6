package store

import (
	"context"
	"math"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/adapter/sink"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/apperr"
)

// The sink publisher is process-wide, so this is the only test in the
// package that initializes it.
func TestCheckpointStore_OverRedisPublisher(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	pub, err := sink.Initialize(context.Background(), testLogger{}, &sink.Config{
		URL:             "redis://" + s.Addr(),
		Channel:         "near:blocks",
		ConnectAttempts: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	cs, err := NewCheckpointStore(testLogger{}, sink.Instance())
	require.NoError(t, err)
	ctx := context.Background()

	got, err := cs.GetSyncedHeight(ctx)
	require.NoError(t, err)
	require.Zero(t, got)

	require.NoError(t, cs.SetSyncedHeight(ctx, math.MaxUint64))
	got, err = cs.GetSyncedHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), got)

	require.NoError(t, s.Set(BlockHeightKey, "not-a-height"))
	_, err = cs.GetSyncedHeight(ctx)
	var ce *apperr.CorruptCheckpointErr
	require.ErrorAs(t, err, &ce)
}
