package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormatAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	cases := []struct {
		name string
		err  BaseError
		code string
		text string
	}{
		{name: "connection", err: NewConnectionErr("redis ping failed", cause), code: "CONNECTION_ERROR", text: "[CONNECTION_ERROR] redis ping failed: dial tcp: refused"},
		{name: "missing_config", err: NewMissingConfigErr("REDIS_URL"), code: "MISSING_CONFIG", text: "[MISSING_CONFIG] missing required config REDIS_URL"},
		{name: "corrupt_checkpoint", err: NewCorruptCheckpointErr("abc", cause), code: "CORRUPT_CHECKPOINT", text: `[CORRUPT_CHECKPOINT] stored checkpoint "abc" is not a block height: dial tcp: refused`},
		{name: "already_initialized", err: NewAlreadyInitializedErr("publisher already initialized"), code: "ALREADY_INITIALIZED", text: "[ALREADY_INITIALIZED] publisher already initialized"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.code, tc.err.Code())
			require.Equal(t, tc.text, tc.err.Error())
		})
	}

	wrapped := fmt.Errorf("bootstrap: %w", NewConnectionErr("redis ping failed", cause))
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, "CONNECTION_ERROR", CodeOf(wrapped))
	require.Equal(t, "", CodeOf(cause))
}

func TestInvalidConfigErr_KeepsKeyAndValue(t *testing.T) {
	err := NewInvalidConfigErr("TEST", "maybe", errors.New("parse"))
	var target *InvalidConfigErr
	require.ErrorAs(t, fmt.Errorf("load: %w", err), &target)
	require.Equal(t, "TEST", target.Key)
	require.Equal(t, "maybe", target.Value)
	require.Contains(t, target.Error(), `"maybe"`)
}
