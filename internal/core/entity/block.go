package entity

// Network selects the NEAR network profile the stream source reads from.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Block is a NEAR lake streamer message reduced to the header fields the
// relay needs. Payload carries the decoded message verbatim and is what gets
// republished to the sink.
type Block struct {
	Height           uint64 `validate:"gte=0"`
	Hash             string `validate:"required"`
	PrevHash         string
	TimestampNanosec uint64
	Shards           int
	Payload          []byte `validate:"required"`
}
