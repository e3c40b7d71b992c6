package sink

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/applog"
	imetrics "github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/metrics"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/pattern"
)

const (
	defaultOpTimeout       = 5 * time.Second
	defaultConnectAttempts = 3
)

// State is the lifecycle of the process-wide publisher.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

var (
	initMu  sync.Mutex
	state   atomic.Int32
	current atomic.Pointer[RedisPublisher]
)

// RedisPublisher owns the single Redis connection of the process. All access
// is serialized: every operation acquires the connection, performs exactly
// one round trip and releases it before returning.
//
// There is exactly one RedisPublisher per process. It is created by
// Initialize and reached afterwards through Instance or Acquire.
type RedisPublisher struct {
	rdb       *redis.Client
	log       applog.AppLogger
	cfg       Config
	opTimeout time.Duration
	mu        sync.Mutex
}

// Initialize connects the process-wide publisher. It may succeed only once:
// later calls return an AlreadyInitializedErr and leave the existing
// publisher untouched. A failed connection leaves the publisher
// uninitialized so startup can report the failure.
func Initialize(ctx context.Context, log applog.AppLogger, cfg *Config, v *validator.Validate) (*RedisPublisher, error) {
	initMu.Lock()
	defer initMu.Unlock()

	if s := CurrentState(); s != StateUninitialized {
		log.Warn("Sink publisher initialize called twice", "state", s.String())
		return nil, apperr.NewAlreadyInitializedErr("sink publisher already initialized")
	}
	if v == nil {
		v = validator.New()
	}
	if cfg == nil {
		return nil, apperr.NewInvalidArgErr("sink config is required", nil)
	}
	if err := v.Struct(cfg); err != nil {
		log.Error("invalid sink config", "err", err)
		return nil, apperr.NewInvalidArgErr("invalid sink config", err)
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, apperr.NewInvalidArgErr("invalid sink endpoint", err)
	}
	opts.PoolSize = 1
	opts.MaxRetries = cfg.MaxRetries
	if cfg.DialTimeoutSeconds > 0 {
		opts.DialTimeout = time.Duration(cfg.DialTimeoutSeconds) * time.Second
	}

	state.Store(int32(StateInitializing))
	p := &RedisPublisher{
		rdb:       redis.NewClient(opts),
		log:       log,
		cfg:       *cfg,
		opTimeout: defaultOpTimeout,
	}
	if cfg.OpTimeoutSeconds > 0 {
		p.opTimeout = time.Duration(cfg.OpTimeoutSeconds) * time.Second
	}

	if err := p.connect(ctx); err != nil {
		_ = p.rdb.Close()
		state.Store(int32(StateUninitialized))
		imetrics.App().ErrorsTotal.WithLabelValues(imetrics.ComponentSink, "connect").Inc()
		return nil, apperr.NewConnectionErr("sink unreachable at "+applog.RedactURL(cfg.URL), err)
	}

	current.Store(p)
	state.Store(int32(StateReady))
	log.Info("Sink publisher ready", "endpoint", applog.RedactURL(cfg.URL), "channel", cfg.Channel)
	return p, nil
}

func (p *RedisPublisher) connect(ctx context.Context) error {
	attempts := p.cfg.ConnectAttempts
	if attempts == 0 {
		attempts = defaultConnectAttempts
	}
	return pattern.Retry(
		ctx,
		func(attempt int) error {
			pingCtx, cancel := context.WithTimeout(ctx, p.opTimeout)
			defer cancel()
			start := time.Now()
			err := p.rdb.Ping(pingCtx).Err()
			observe("ping", start, err)
			if err != nil {
				p.log.Warn("Sink ping failed", "attempt", attempt, "err", err)
			}
			return err
		},
		pattern.WithMaxAttempts(attempts),
		pattern.WithInitialDelay(200*time.Millisecond),
		pattern.WithMaxDelay(2*time.Second),
	)
}

// CurrentState reports the publisher lifecycle state.
func CurrentState() State {
	return State(state.Load())
}

// Instance returns the initialized publisher. Calling it before Initialize
// has completed is a programming error and panics.
func Instance() *RedisPublisher {
	p := current.Load()
	if p == nil {
		panic("sink: publisher used before Initialize completed")
	}
	return p
}

// Acquire blocks until the caller holds exclusive access to the sink
// connection. It panics when the publisher is not initialized. The returned
// handle must be released.
func Acquire() *Handle {
	return Instance().acquire()
}

func (p *RedisPublisher) acquire() *Handle {
	start := time.Now()
	p.mu.Lock()
	imetrics.Sink().LockWaitMS.Observe(float64(time.Since(start).Microseconds()) / 1000)
	return &Handle{p: p}
}

// Get reads key. The bool is false when the key does not exist.
func (p *RedisPublisher) Get(ctx context.Context, key string) (string, bool, error) {
	h := p.acquire()
	defer h.Release()
	return h.Get(ctx, key)
}

// Set writes key. The write is not abandoned when ctx is canceled; it
// completes or fails within the operation timeout.
func (p *RedisPublisher) Set(ctx context.Context, key, value string) error {
	h := p.acquire()
	defer h.Release()
	return h.Set(ctx, key, value)
}

// Publish appends payload to the configured channel list.
func (p *RedisPublisher) Publish(ctx context.Context, payload []byte) error {
	h := p.acquire()
	defer h.Release()
	return h.Publish(ctx, payload)
}

// Channel returns the list name blocks are pushed onto.
func (p *RedisPublisher) Channel() string { return p.cfg.Channel }

// Close drops the connection. It is meant for process shutdown only; the
// publisher is not reusable afterwards.
func (p *RedisPublisher) Close() error {
	h := p.acquire()
	defer h.Release()
	return p.rdb.Close()
}

// Handle is exclusive, transient access to the sink connection.
type Handle struct {
	p        *RedisPublisher
	released atomic.Bool
}

// Release returns the connection. Releasing twice is a no-op.
func (h *Handle) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.p.mu.Unlock()
	}
}

func (h *Handle) Get(ctx context.Context, key string) (string, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, h.p.opTimeout)
	defer cancel()
	start := time.Now()
	val, err := h.p.rdb.Get(opCtx, key).Result()
	if errors.Is(err, redis.Nil) {
		observe("get", start, nil)
		return "", false, nil
	}
	observe("get", start, err)
	if err != nil {
		return "", false, apperr.NewConnectionErr("sink GET "+key+" failed", err)
	}
	return val, true, nil
}

func (h *Handle) Set(ctx context.Context, key, value string) error {
	opCtx, cancel := h.p.writeContext(ctx)
	defer cancel()
	start := time.Now()
	err := h.p.rdb.Set(opCtx, key, value, 0).Err()
	observe("set", start, err)
	if err != nil {
		return apperr.NewConnectionErr("sink SET "+key+" failed", err)
	}
	return nil
}

func (h *Handle) Publish(ctx context.Context, payload []byte) error {
	opCtx, cancel := h.p.writeContext(ctx)
	defer cancel()
	start := time.Now()
	err := h.p.rdb.RPush(opCtx, h.p.cfg.Channel, payload).Err()
	observe("publish", start, err)
	if err != nil {
		return apperr.NewConnectionErr("sink RPUSH "+h.p.cfg.Channel+" failed", err)
	}
	return nil
}

func (p *RedisPublisher) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.opTimeout)
}

func observe(op string, start time.Time, err error) {
	m := imetrics.Sink()
	m.OpsTotal.WithLabelValues(op).Inc()
	m.OpLatencyMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		m.OpErrorsTotal.WithLabelValues(op).Inc()
	}
}
