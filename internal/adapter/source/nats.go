package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/port"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/applog"
	imetrics "github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/metrics"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/pattern"
)

const (
	headerContentEncoding = "Content-Encoding"
	defaultConnectTimeout = 5 * time.Second
	maxClientReconnects   = 60
)

// errHalted wraps failures that must stop the source instead of triggering a
// reconnect: a block that cannot be decoded or that the handler rejected.
var errHalted = errors.New("source halted")

// streamMsg is one raw stream message and its stream sequence.
type streamMsg struct {
	Seq      uint64
	Data     []byte
	Encoding string
}

// messageCallback receives one raw stream message.
type messageCallback func(msg streamMsg)

// sessionFunc opens a consuming session positioned at startSeq, or at the
// first block at or above the start height when startSeq is 0. It returns a
// function that ends the session and a channel reporting that the session
// died on its own.
type sessionFunc func(ctx context.Context, startSeq uint64, cb messageCallback) (stop func(), failed <-chan error, err error)

// NatsSource streams NEAR blocks from a JetStream stream through an ordered
// consumer. Blocks below the configured start height and blocks at or below
// the last handled height are skipped. Blocks are handed to the handler one
// at a time; a handler or decode failure stops the source and is reported on
// Err.
type NatsSource struct {
	log     applog.AppLogger
	wg      *sync.WaitGroup
	cfg     *Config
	conn    *ConnConfig
	handler port.BlockHandler

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	lastHandled atomic.Uint64
	handledAny  atomic.Bool
	lastSeq     atomic.Uint64
	errCh       chan error

	session       sessionFunc
	reconnectOpts []pattern.RetryOption
}

// NewNatsSource validates both configs and returns a stopped source.
func NewNatsSource(log applog.AppLogger, wg *sync.WaitGroup, cfg *Config, conn *ConnConfig, v *validator.Validate) (*NatsSource, error) {
	if v == nil {
		v = validator.New()
	}
	if cfg == nil || conn == nil {
		return nil, apperr.NewInvalidArgErr("source config is required", nil)
	}
	if err := v.Struct(cfg); err != nil {
		log.Error("invalid stream config", "err", err)
		return nil, apperr.NewStreamConfigBuildErr("invalid stream config", err)
	}
	if err := v.Struct(conn); err != nil {
		log.Error("invalid nats config", "err", err)
		return nil, apperr.NewInvalidArgErr("invalid nats config", err)
	}
	if wg == nil {
		wg = &sync.WaitGroup{}
	}

	s := &NatsSource{
		log:   log,
		wg:    wg,
		cfg:   cfg,
		conn:  conn,
		errCh: make(chan error, 1),
	}
	s.session = s.natsSession
	s.reconnectOpts = reconnectOptionsFromConfig(conn)
	return s, nil
}

func reconnectOptionsFromConfig(conn *ConnConfig) []pattern.RetryOption {
	opts := []pattern.RetryOption{
		pattern.WithInfiniteAttempts(),
		pattern.WithInitialDelay(500 * time.Millisecond),
		pattern.WithMaxDelay(10 * time.Second),
		pattern.WithJitter(0.2),
	}
	if conn.ReconnectInitialDelayMS > 0 {
		opts = append(opts, pattern.WithInitialDelay(time.Duration(conn.ReconnectInitialDelayMS)*time.Millisecond))
	}
	if conn.ReconnectMaxDelayMS > 0 {
		opts = append(opts, pattern.WithMaxDelay(time.Duration(conn.ReconnectMaxDelayMS)*time.Millisecond))
	}
	return opts
}

// SetHandler registers the callback invoked for each block.
func (s *NatsSource) SetHandler(handler port.BlockHandler) {
	s.handler = handler
}

// Err delivers the error that stopped the source, if any.
func (s *NatsSource) Err() <-chan error {
	return s.errCh
}

// StartStreaming starts the consuming goroutine.
func (s *NatsSource) StartStreaming() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return apperr.NewBlockStreamErr("source already running", nil)
	}
	if s.handler == nil {
		s.mu.Unlock()
		return apperr.NewBlockStreamErr("block handler is not configured", nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.log.Info("Starting block stream", "network", s.cfg.Network, "stream", s.cfg.StreamName, "start_height", s.cfg.StartBlockHeight)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.running = false
			s.cancel = nil
			s.mu.Unlock()
		}()
		s.run(ctx)
	}()
	return nil
}

// StopStreaming cancels the consuming goroutine. A block being handled is
// allowed to finish; the goroutine leaves the WaitGroup only after it has.
func (s *NatsSource) StopStreaming() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	s.log.Trace("Cancelling block stream...")
	cancel()
}

func (s *NatsSource) run(ctx context.Context) {
	err := pattern.Retry(ctx, func(attempt int) error {
		err := s.consume(ctx)
		if err != nil && ctx.Err() == nil && !errors.Is(err, errHalted) {
			s.log.Warn("Block stream interrupted; reconnecting", "attempt", attempt, "err", err)
			imetrics.App().WarningsTotal.WithLabelValues(imetrics.ComponentSource, "reconnect").Inc()
		}
		return err
	}, append(s.reconnectOpts, pattern.WithShouldRetry(func(err error) bool {
		return !errors.Is(err, errHalted)
	}))...)

	imetrics.Source().Connected.Set(0)
	if err == nil || ctx.Err() != nil {
		s.log.Trace("Block stream stopped")
		return
	}
	s.log.Error("Block stream halted", "err", err)
	select {
	case s.errCh <- err:
	default:
	}
}

// consume runs one session until ctx is done or the session fails. It
// resumes after the last sequence seen by an earlier session and returns
// only once no message is being dispatched.
func (s *NatsSource) consume(ctx context.Context) error {
	halt := make(chan error, 1)
	var (
		dispatchMu sync.Mutex
		closed     bool
		halted     bool
	)

	var startSeq uint64
	if seq := s.lastSeq.Load(); seq > 0 {
		startSeq = seq + 1
	}

	stop, sessionFailed, err := s.session(ctx, startSeq, func(msg streamMsg) {
		dispatchMu.Lock()
		defer dispatchMu.Unlock()
		if closed || halted || ctx.Err() != nil {
			return
		}
		if err := s.dispatch(ctx, msg.Data, msg.Encoding); err != nil {
			halted = true
			halt <- err
			return
		}
		if msg.Seq > 0 {
			s.lastSeq.Store(msg.Seq)
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		stop()
		dispatchMu.Lock()
		closed = true
		dispatchMu.Unlock()
	}()
	imetrics.Source().Connected.Set(1)
	s.log.Debug("Block stream session opened", "stream", s.cfg.StreamName, "start_seq", startSeq)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-sessionFailed:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperr.NewConnectionErr("block stream session ended", err)
	case err := <-halt:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
}

// dispatch decodes one message and hands the block to the handler.
func (s *NatsSource) dispatch(ctx context.Context, data []byte, encoding string) error {
	block, err := DecodeBlock(data, encoding)
	if err != nil {
		imetrics.Source().DecodeErrorsTotal.Inc()
		return fmt.Errorf("%w: %w", errHalted, err)
	}
	imetrics.Source().ReceivedBlocksTotal.WithLabelValues(string(s.cfg.Network)).Inc()

	if block.Height < s.cfg.StartBlockHeight {
		imetrics.Source().SkippedBlocksTotal.WithLabelValues("before_start").Inc()
		return nil
	}
	if s.handledAny.Load() && block.Height <= s.lastHandled.Load() {
		imetrics.Source().SkippedBlocksTotal.WithLabelValues("redelivered").Inc()
		return nil
	}

	if err := s.handler(ctx, block); err != nil {
		imetrics.Source().HandlerErrorsTotal.Inc()
		return fmt.Errorf("%w: %w", errHalted, apperr.NewBlockStreamErr("block handler failed", err))
	}
	s.lastHandled.Store(block.Height)
	s.handledAny.Store(true)
	s.log.Trace("Streamed block", "height", block.Height, "hash", block.Hash, "shards", block.Shards)
	return nil
}

func (s *NatsSource) natsSession(ctx context.Context, startSeq uint64, cb messageCallback) (func(), <-chan error, error) {
	nc, err := s.dial()
	if err != nil {
		return nil, nil, apperr.NewConnectionErr("nats connect failed", err)
	}
	failed := make(chan error, 1)
	nc.SetClosedHandler(func(*nats.Conn) {
		select {
		case failed <- nats.ErrConnectionClosed:
		default:
		}
	})
	fail := func(err error) (func(), <-chan error, error) {
		nc.Close()
		return nil, nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return fail(apperr.NewConnectionErr("jetstream init failed", err))
	}
	stream, err := js.Stream(ctx, s.cfg.StreamName)
	if err != nil {
		return fail(apperr.NewBlockStreamErr("stream lookup failed for "+s.cfg.StreamName, err))
	}
	if startSeq == 0 {
		if startSeq, err = s.seekStart(ctx, stream); err != nil {
			return fail(err)
		}
	}
	consumer, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{s.cfg.Subject},
		DeliverPolicy:  jetstream.DeliverByStartSequencePolicy,
		OptStartSeq:    startSeq,
	})
	if err != nil {
		return fail(apperr.NewBlockStreamErr("unable to create ordered consumer", err))
	}
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		m := streamMsg{Data: msg.Data(), Encoding: msg.Headers().Get(headerContentEncoding)}
		if meta, err := msg.Metadata(); err == nil {
			m.Seq = meta.Sequence.Stream
		} else {
			s.log.Warn("Stream message without metadata", "err", err)
		}
		cb(m)
	})
	if err != nil {
		return fail(apperr.NewBlockStreamErr("unable to start consuming", err))
	}

	return func() {
		cc.Stop()
		nc.Close()
	}, failed, nil
}

// seekStart finds the sequence of the first block at or above the start
// height.
func (s *NatsSource) seekStart(ctx context.Context, stream jetstream.Stream) (uint64, error) {
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, apperr.NewConnectionErr("stream info failed for "+s.cfg.StreamName, err)
	}
	seq, err := seekHeight(ctx, s.cfg.StartBlockHeight, info.State.FirstSeq, info.State.LastSeq, func(ctx context.Context, seq uint64) (uint64, error) {
		raw, err := stream.GetMsg(ctx, seq)
		if err != nil {
			return 0, err
		}
		block, err := DecodeBlock(raw.Data, raw.Header.Get(headerContentEncoding))
		if err != nil {
			return 0, fmt.Errorf("%w: %w", errUndecodable, err)
		}
		return block.Height, nil
	})
	if err != nil {
		return 0, apperr.NewConnectionErr("unable to seek start height", err)
	}
	s.log.Info("Seeked block stream", "stream", s.cfg.StreamName, "start_height", s.cfg.StartBlockHeight, "start_seq", seq,
		"first_seq", info.State.FirstSeq, "last_seq", info.State.LastSeq)
	return seq, nil
}

func (s *NatsSource) dial() (*nats.Conn, error) {
	timeout := defaultConnectTimeout
	if s.conn.ConnectTimeoutMS > 0 {
		timeout = time.Duration(s.conn.ConnectTimeoutMS) * time.Millisecond
	}
	opts := []nats.Option{
		nats.Name(s.conn.Name),
		nats.Timeout(timeout),
		nats.ReconnectWait(time.Second / 5),
		nats.MaxReconnects(maxClientReconnects),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			s.log.Warn("NATS error", "err", err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				imetrics.Source().Connected.Set(0)
				s.log.Warn("NATS disconnected; reconnecting", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			imetrics.Source().Connected.Set(1)
			s.log.Info("NATS reconnected", "url", applog.RedactURL(nc.ConnectedUrl()))
		}),
	}
	if s.conn.CredentialsFile != "" {
		opts = append(opts, nats.UserCredentials(s.conn.CredentialsFile))
	}
	s.log.Trace("Connecting to NATS", "url", applog.RedactURL(s.conn.URL))
	return nats.Connect(s.conn.URL, opts...)
}

var _ port.BlockSource = (*NatsSource)(nil)
