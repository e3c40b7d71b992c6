package source

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/klauspost/compress/zstd"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/entity"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/apperr"
)

// EncodingZstd marks a zstd-compressed message body.
const EncodingZstd = "zstd"

var (
	zstdOnce    sync.Once
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func decoder() (*zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdDecoder, zstdErr
}

// DecodeBlock reads the header fields of a NEAR lake streamer message. The
// message body is kept as the block payload after decompression.
func DecodeBlock(data []byte, encoding string) (*entity.Block, error) {
	payload := data
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
	case EncodingZstd:
		dec, err := decoder()
		if err != nil {
			return nil, apperr.NewBlockStreamErr("zstd decoder unavailable", err)
		}
		payload, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, apperr.NewBlockStreamErr("failed to decompress block", err)
		}
	default:
		return nil, apperr.NewBlockStreamErr("unsupported block encoding "+encoding, nil)
	}

	height, err := uintField(payload, "block", "header", "height")
	if err != nil {
		return nil, apperr.NewBlockStreamErr("invalid block height", err)
	}
	hash, err := jsonparser.GetString(payload, "block", "header", "hash")
	if err != nil || hash == "" {
		return nil, apperr.NewBlockStreamErr("missing block hash", err)
	}
	prevHash, err := jsonparser.GetString(payload, "block", "header", "prev_hash")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return nil, apperr.NewBlockStreamErr("invalid block prev_hash", err)
	}
	ts, err := uintField(payload, "block", "header", "timestamp_nanosec")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return nil, apperr.NewBlockStreamErr("invalid block timestamp", err)
	}

	shards := 0
	_, err = jsonparser.ArrayEach(payload, func([]byte, jsonparser.ValueType, int, error) {
		shards++
	}, "shards")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return nil, apperr.NewBlockStreamErr("invalid block shards", err)
	}

	return &entity.Block{
		Height:           height,
		Hash:             hash,
		PrevHash:         prevHash,
		TimestampNanosec: ts,
		Shards:           shards,
		Payload:          payload,
	}, nil
}

// uintField reads an unsigned integer stored either as a JSON number or as a
// decimal string, which is how NEAR serializes 64-bit values.
func uintField(data []byte, keys ...string) (uint64, error) {
	val, typ, _, err := jsonparser.Get(data, keys...)
	if err != nil {
		return 0, err
	}
	switch typ {
	case jsonparser.Number, jsonparser.String:
		return strconv.ParseUint(string(val), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected %s value", typ)
	}
}
