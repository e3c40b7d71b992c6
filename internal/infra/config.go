package infra

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/applog"
)

// Environment keys read at startup.
const (
	EnvStartFromCache   = "START_BLOCK_HEIGHT_FROM_CACHE"
	EnvStartBlockHeight = "START_BLOCK_HEIGHT"
	EnvRedisURL         = "REDIS_URL"
	EnvPubList          = "PUB_LIST"
	EnvTestNetwork      = "TEST"
	EnvLogFile          = "LOG_FILE"
	EnvLogLevel         = "LOG_LEVEL"
	EnvNatsURL          = "NATS_URL"

	EnvHTTPAddr      = "HTTP_ADDR"
	EnvKafkaBrokers  = "KAFKA_BROKERS"
	EnvKafkaTopic    = "KAFKA_TOPIC"
	EnvKafkaClientID = "KAFKA_CLIENT_ID"
	EnvPprofEnabled  = "PPROF_ENABLED"
	EnvPprofAddr     = "PPROF_ADDR"
	EnvNatsCredsFile = "NATS_CREDS_FILE"
)

type envBinding struct {
	key    string
	env    string
	secret bool
}

var requiredEnv = []envBinding{
	{key: "start.from_checkpoint", env: EnvStartFromCache},
	{key: "start.block_height", env: EnvStartBlockHeight},
	{key: "redis.url", env: EnvRedisURL, secret: true},
	{key: "redis.pub_list", env: EnvPubList},
	{key: "network.test", env: EnvTestNetwork},
	{key: "log.file", env: EnvLogFile},
	{key: "log.level", env: EnvLogLevel},
	{key: "nats.url", env: EnvNatsURL, secret: true},
}

var optionalEnv = []envBinding{
	{key: "http.addr", env: EnvHTTPAddr},
	{key: "kafka.brokers", env: EnvKafkaBrokers},
	{key: "kafka.topic", env: EnvKafkaTopic},
	{key: "kafka.client_id", env: EnvKafkaClientID},
	{key: "pprof.enabled", env: EnvPprofEnabled},
	{key: "pprof.addr", env: EnvPprofAddr},
	{key: "nats.credentials_file", env: EnvNatsCredsFile},
	{key: "redis.dial_timeout_seconds", env: "REDIS_DIAL_TIMEOUT_SECONDS"},
	{key: "redis.op_timeout_seconds", env: "REDIS_OP_TIMEOUT_SECONDS"},
	{key: "redis.connect_attempts", env: "REDIS_CONNECT_ATTEMPTS"},
	{key: "nats.connect_timeout_ms", env: "NATS_CONNECT_TIMEOUT_MS"},
	{key: "nats.reconnect_initial_delay_ms", env: "NATS_RECONNECT_INITIAL_DELAY_MS"},
	{key: "nats.reconnect_max_delay_ms", env: "NATS_RECONNECT_MAX_DELAY_MS"},
	{key: "kafka.transactional_id", env: "KAFKA_TRANSACTIONAL_ID"},
	{key: "kafka.max_retry_attempts", env: "KAFKA_MAX_RETRY_ATTEMPTS"},
	{key: "kafka.retry_initial_backoff_ms", env: "KAFKA_RETRY_INITIAL_BACKOFF_MS"},
	{key: "kafka.retry_max_backoff_ms", env: "KAFKA_RETRY_MAX_BACKOFF_MS"},
	{key: "kafka.retry_jitter", env: "KAFKA_RETRY_JITTER"},
	{key: "kafka.write_timeout_seconds", env: "KAFKA_WRITE_TIMEOUT_SECONDS"},
	{key: "pprof.block_profile_rate", env: "PPROF_BLOCK_PROFILE_RATE"},
	{key: "pprof.mutex_profile_fraction", env: "PPROF_MUTEX_PROFILE_FRACTION"},
}

// Optional integer settings. Unset means zero, which lets each adapter pick
// its default.
var optionalInts = []string{
	"redis.dial_timeout_seconds",
	"redis.op_timeout_seconds",
	"redis.connect_attempts",
	"nats.connect_timeout_ms",
	"nats.reconnect_initial_delay_ms",
	"nats.reconnect_max_delay_ms",
	"kafka.max_retry_attempts",
	"kafka.retry_initial_backoff_ms",
	"kafka.retry_max_backoff_ms",
	"kafka.write_timeout_seconds",
	"pprof.block_profile_rate",
	"pprof.mutex_profile_fraction",
}

// AppConfig is the startup configuration. It is not modified after LoadConfig
// returns.
type AppConfig struct {
	StartFromCheckpoint bool
	StartBlockHeight    uint64
	RedisURL            string
	PubList             string
	UseTestNetwork      bool
	LogFile             string
	LogLevel            string
	NatsURL             string

	HTTPAddr      string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaClientID string
	PprofEnabled  bool
	NatsCredsFile string

	KafkaTransactionalID string
	KafkaRetryJitter     float64

	// Tunables holds the optional integer settings by viper key.
	Tunables map[string]int
}

// Tunable returns the optional integer setting under key, 0 when unset.
func (c *AppConfig) Tunable(key string) int { return c.Tunables[key] }

// KafkaEnabled reports whether the Kafka mirror was configured.
func (c *AppConfig) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// LoadConfig reads every key from the environment. A missing required key
// or a value that does not parse fails the whole load.
func LoadConfig() (*AppConfig, error) {
	for _, b := range append(append([]envBinding{}, requiredEnv...), optionalEnv...) {
		if err := viper.BindEnv(b.key, b.env); err != nil {
			return nil, apperr.NewInvalidConfigErr(b.env, "", err)
		}
	}
	viper.SetDefault("kafka.topic", "near-blocks")
	viper.SetDefault("kafka.client_id", "near-lake-relay")
	viper.SetDefault("pprof.addr", "127.0.0.1:6060")

	for _, b := range requiredEnv {
		if !viper.IsSet(b.key) || strings.TrimSpace(viper.GetString(b.key)) == "" {
			return nil, apperr.NewMissingConfigErr(b.env)
		}
	}

	fromCheckpoint, err := parseBool(EnvStartFromCache, "start.from_checkpoint")
	if err != nil {
		return nil, err
	}
	height, err := parseUint(EnvStartBlockHeight, "start.block_height")
	if err != nil {
		return nil, err
	}
	testNetwork, err := parseBool(EnvTestNetwork, "network.test")
	if err != nil {
		return nil, err
	}
	pprofEnabled := false
	if viper.IsSet("pprof.enabled") {
		if pprofEnabled, err = parseBool(EnvPprofEnabled, "pprof.enabled"); err != nil {
			return nil, err
		}
	}

	tunables := make(map[string]int, len(optionalInts))
	for _, key := range optionalInts {
		n, err := parseOptionalInt(key)
		if err != nil {
			return nil, err
		}
		tunables[key] = n
	}
	var jitter float64
	if viper.IsSet("kafka.retry_jitter") {
		if jitter, err = parseFraction("kafka.retry_jitter"); err != nil {
			return nil, err
		}
	}

	return &AppConfig{
		StartFromCheckpoint: fromCheckpoint,
		StartBlockHeight:    height,
		RedisURL:            viper.GetString("redis.url"),
		PubList:             viper.GetString("redis.pub_list"),
		UseTestNetwork:      testNetwork,
		LogFile:             viper.GetString("log.file"),
		LogLevel:            viper.GetString("log.level"),
		NatsURL:             viper.GetString("nats.url"),
		HTTPAddr:            strings.TrimSpace(viper.GetString("http.addr")),
		KafkaBrokers:        splitList(viper.GetString("kafka.brokers")),
		KafkaTopic:          viper.GetString("kafka.topic"),
		KafkaClientID:       viper.GetString("kafka.client_id"),
		PprofEnabled:        pprofEnabled,
		NatsCredsFile:       viper.GetString("nats.credentials_file"),

		KafkaTransactionalID: viper.GetString("kafka.transactional_id"),
		KafkaRetryJitter:     jitter,
		Tunables:             tunables,
	}, nil
}

// LogKeys traces every recognized key once. URL credentials are masked.
func (c *AppConfig) LogKeys(log applog.AppLogger) {
	for _, b := range requiredEnv {
		log.Info("Configuration", "key", b.env, "value", displayValue(b))
	}
	for _, b := range optionalEnv {
		if viper.IsSet(b.key) {
			log.Debug("Configuration", "key", b.env, "value", displayValue(b))
		}
	}
}

func displayValue(b envBinding) string {
	raw := viper.GetString(b.key)
	if b.secret {
		return applog.RedactURL(raw)
	}
	return raw
}

func parseBool(env, key string) (bool, error) {
	raw := strings.TrimSpace(viper.GetString(key))
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.NewInvalidConfigErr(env, raw, err)
	}
	return v, nil
}

func parseUint(env, key string) (uint64, error) {
	raw := strings.TrimSpace(viper.GetString(key))
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.NewInvalidConfigErr(env, raw, err)
	}
	return v, nil
}

// parseOptionalInt reads a non-negative int setting; unset yields 0.
func parseOptionalInt(key string) (int, error) {
	if !viper.IsSet(key) {
		return 0, nil
	}
	raw := strings.TrimSpace(viper.GetString(key))
	v, err := strconv.ParseUint(raw, 10, 31)
	if err != nil {
		return 0, apperr.NewInvalidConfigErr(envOf(key), raw, err)
	}
	return int(v), nil
}

// parseFraction reads a float setting in [0, 1].
func parseFraction(key string) (float64, error) {
	raw := strings.TrimSpace(viper.GetString(key))
	v, err := strconv.ParseFloat(raw, 64)
	if err == nil && (v < 0 || v > 1) {
		err = strconv.ErrRange
	}
	if err != nil {
		return 0, apperr.NewInvalidConfigErr(envOf(key), raw, err)
	}
	return v, nil
}

func envOf(key string) string {
	for _, b := range optionalEnv {
		if b.key == key {
			return b.env
		}
	}
	return key
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
