package source

import (
	"github.com/go-playground/validator/v10"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/entity"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/apperr"
)

// Config selects which block stream to read and from which height.
type Config struct {
	Network          entity.Network `validate:"required,oneof=mainnet testnet"`
	StartBlockHeight uint64
	StreamName       string `validate:"required"`
	Subject          string `validate:"required"`
}

// ConnConfig holds the NATS connection settings of the source.
type ConnConfig struct {
	URL                     string `validate:"required,url"`
	Name                    string
	ConnectTimeoutMS        int `validate:"gte=0"`
	ReconnectInitialDelayMS int `validate:"gte=0"`
	ReconnectMaxDelayMS     int `validate:"gte=0"`
	CredentialsFile         string
}

type networkProfile struct {
	streamName string
	subject    string
}

var profiles = map[entity.Network]networkProfile{
	entity.NetworkMainnet: {streamName: "near_mainnet_blocks", subject: "near.mainnet.blocks"},
	entity.NetworkTestnet: {streamName: "near_testnet_blocks", subject: "near.testnet.blocks"},
}

// ConfigBuilder assembles a Config from a network profile and a start height.
type ConfigBuilder struct {
	v        *validator.Validate
	network  entity.Network
	start    uint64
	startSet bool
}

func NewConfigBuilder(v *validator.Validate) *ConfigBuilder {
	if v == nil {
		v = validator.New()
	}
	return &ConfigBuilder{v: v}
}

func (b *ConfigBuilder) Mainnet() *ConfigBuilder {
	b.network = entity.NetworkMainnet
	return b
}

func (b *ConfigBuilder) Testnet() *ConfigBuilder {
	b.network = entity.NetworkTestnet
	return b
}

func (b *ConfigBuilder) StartBlockHeight(height uint64) *ConfigBuilder {
	b.start = height
	b.startSet = true
	return b
}

// Build returns the Config or a StreamConfigBuildErr when the network or the
// start height was not chosen or the result does not validate.
func (b *ConfigBuilder) Build() (*Config, error) {
	if b.network == "" {
		return nil, apperr.NewStreamConfigBuildErr("network not selected", nil)
	}
	profile, ok := profiles[b.network]
	if !ok {
		return nil, apperr.NewStreamConfigBuildErr("unknown network "+string(b.network), nil)
	}
	if !b.startSet {
		return nil, apperr.NewStreamConfigBuildErr("start block height not set", nil)
	}
	cfg := &Config{
		Network:          b.network,
		StartBlockHeight: b.start,
		StreamName:       profile.streamName,
		Subject:          profile.subject,
	}
	if err := b.v.Struct(cfg); err != nil {
		return nil, apperr.NewStreamConfigBuildErr("invalid stream config", err)
	}
	return cfg, nil
}

// BuildStreamConfig selects the test or main network and applies startHeight.
func BuildStreamConfig(startHeight uint64, useTestNetwork bool, v *validator.Validate) (*Config, error) {
	b := NewConfigBuilder(v)
	if useTestNetwork {
		b.Testnet()
	} else {
		b.Mainnet()
	}
	return b.StartBlockHeight(startHeight).Build()
}
