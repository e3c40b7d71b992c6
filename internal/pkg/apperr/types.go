package apperr

import "fmt"

const (
	invalidArgumentCode    = "INVALID_ARGUMENT"
	missingConfigCode      = "MISSING_CONFIG"
	invalidConfigCode      = "INVALID_CONFIG"
	connectionCode         = "CONNECTION_ERROR"
	corruptCheckpointCode  = "CORRUPT_CHECKPOINT"
	streamConfigBuildCode  = "STREAM_CONFIG_BUILD_ERROR"
	alreadyInitializedCode = "ALREADY_INITIALIZED"
	blockStreamCode        = "BLOCKSTREAM_ERROR"
	blockProcessCode       = "BLOCKPROCESS_ERROR"
)

type messageCause struct {
	Msg string
	Err error
}

func (e *messageCause) Message() string { return e.Msg }
func (e *messageCause) Cause() error    { return e.Err }
func (e *messageCause) Unwrap() error   { return e.Err }

func formatError(code, msg string, cause error) string {
	if cause != nil {
		return fmt.Sprintf("[%s] %s: %v", code, msg, cause)
	}
	return fmt.Sprintf("[%s] %s", code, msg)
}

type InvalidArgErr struct {
	messageCause
}

func NewInvalidArgErr(msg string, cause error) *InvalidArgErr {
	return &InvalidArgErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *InvalidArgErr) Error() string { return formatError(invalidArgumentCode, e.Msg, e.Err) }
func (e *InvalidArgErr) Code() string  { return invalidArgumentCode }

// MissingConfigErr reports a required environment key that is absent.
type MissingConfigErr struct {
	messageCause
	Key string
}

func NewMissingConfigErr(key string) *MissingConfigErr {
	return &MissingConfigErr{messageCause: messageCause{Msg: "missing required config " + key}, Key: key}
}

func (e *MissingConfigErr) Error() string { return formatError(missingConfigCode, e.Msg, e.Err) }
func (e *MissingConfigErr) Code() string  { return missingConfigCode }

// InvalidConfigErr reports an environment value that failed to parse. Value
// holds the raw input as read.
type InvalidConfigErr struct {
	messageCause
	Key   string
	Value string
}

func NewInvalidConfigErr(key, value string, cause error) *InvalidConfigErr {
	return &InvalidConfigErr{
		messageCause: messageCause{Msg: fmt.Sprintf("invalid value %q for config %s", value, key), Err: cause},
		Key:          key,
		Value:        value,
	}
}

func (e *InvalidConfigErr) Error() string { return formatError(invalidConfigCode, e.Msg, e.Err) }
func (e *InvalidConfigErr) Code() string  { return invalidConfigCode }

type ConnectionErr struct {
	messageCause
}

func NewConnectionErr(msg string, cause error) *ConnectionErr {
	return &ConnectionErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *ConnectionErr) Error() string { return formatError(connectionCode, e.Msg, e.Err) }
func (e *ConnectionErr) Code() string  { return connectionCode }

// CorruptCheckpointErr is returned when a stored checkpoint cannot be decoded.
type CorruptCheckpointErr struct {
	messageCause
	Raw string
}

func NewCorruptCheckpointErr(raw string, cause error) *CorruptCheckpointErr {
	return &CorruptCheckpointErr{
		messageCause: messageCause{Msg: fmt.Sprintf("stored checkpoint %q is not a block height", raw), Err: cause},
		Raw:          raw,
	}
}

func (e *CorruptCheckpointErr) Error() string {
	return formatError(corruptCheckpointCode, e.Msg, e.Err)
}
func (e *CorruptCheckpointErr) Code() string { return corruptCheckpointCode }

type StreamConfigBuildErr struct {
	messageCause
}

func NewStreamConfigBuildErr(msg string, cause error) *StreamConfigBuildErr {
	return &StreamConfigBuildErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *StreamConfigBuildErr) Error() string {
	return formatError(streamConfigBuildCode, e.Msg, e.Err)
}
func (e *StreamConfigBuildErr) Code() string { return streamConfigBuildCode }

type AlreadyInitializedErr struct {
	messageCause
}

func NewAlreadyInitializedErr(msg string) *AlreadyInitializedErr {
	return &AlreadyInitializedErr{messageCause: messageCause{Msg: msg}}
}

func (e *AlreadyInitializedErr) Error() string {
	return formatError(alreadyInitializedCode, e.Msg, e.Err)
}
func (e *AlreadyInitializedErr) Code() string { return alreadyInitializedCode }

type BlockStreamErr struct {
	messageCause
}

func NewBlockStreamErr(msg string, cause error) *BlockStreamErr {
	return &BlockStreamErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *BlockStreamErr) Error() string { return formatError(blockStreamCode, e.Msg, e.Err) }
func (e *BlockStreamErr) Code() string  { return blockStreamCode }

type BlockProcessErr struct {
	messageCause
}

func NewBlockProcessErr(msg string, cause error) *BlockProcessErr {
	return &BlockProcessErr{messageCause: messageCause{Msg: msg, Err: cause}}
}

func (e *BlockProcessErr) Error() string { return formatError(blockProcessCode, e.Msg, e.Err) }
func (e *BlockProcessErr) Code() string  { return blockProcessCode }
