package sink

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/apperr"
)

type testLogger struct{}

func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}
func (testLogger) Debug(string, ...any) {}
func (testLogger) Trace(string, ...any) {}
func (testLogger) Fatal(string, ...any) {}

func resetPublisher(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		if p := current.Load(); p != nil {
			_ = p.rdb.Close()
		}
		current.Store(nil)
		state.Store(int32(StateUninitialized))
	})
}

func runMiniRedis(t *testing.T) *miniredis.Miniredis {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func validConfig(addr string) *Config {
	return &Config{
		URL:                "redis://" + addr + "/0",
		Channel:            "near:blocks",
		DialTimeoutSeconds: 1,
		OpTimeoutSeconds:   1,
		ConnectAttempts:    1,
	}
}

func initPublisher(t *testing.T) (*RedisPublisher, *miniredis.Miniredis) {
	t.Helper()
	resetPublisher(t)
	s := runMiniRedis(t)
	p, err := Initialize(context.Background(), testLogger{}, validConfig(s.Addr()), validator.New())
	require.NoError(t, err)
	return p, s
}

func TestInitialize_Table(t *testing.T) {
	cases := []struct {
		name      string
		cfg       func(addr string) *Config
		wantCode  string
		wantState State
	}{
		{name: "valid", cfg: validConfig, wantState: StateReady},
		{name: "nil_config", cfg: func(string) *Config { return nil }, wantCode: "INVALID_ARGUMENT", wantState: StateUninitialized},
		{name: "missing_channel", cfg: func(a string) *Config { c := validConfig(a); c.Channel = ""; return c }, wantCode: "INVALID_ARGUMENT", wantState: StateUninitialized},
		{name: "bad_scheme", cfg: func(a string) *Config { c := validConfig(a); c.URL = "http://" + a; return c }, wantCode: "INVALID_ARGUMENT", wantState: StateUninitialized},
		{name: "unreachable", cfg: func(string) *Config { return validConfig("127.0.0.1:1") }, wantCode: "CONNECTION_ERROR", wantState: StateUninitialized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resetPublisher(t)
			s := runMiniRedis(t)
			p, err := Initialize(context.Background(), testLogger{}, tc.cfg(s.Addr()), nil)
			if tc.wantCode != "" {
				require.Error(t, err)
				require.Nil(t, p)
				require.Equal(t, tc.wantCode, apperr.CodeOf(err))
			} else {
				require.NoError(t, err)
				require.Same(t, p, Instance())
			}
			require.Equal(t, tc.wantState, CurrentState())
		})
	}
}

func TestInitialize_SecondCallIsRejected(t *testing.T) {
	p, s := initPublisher(t)

	again, err := Initialize(context.Background(), testLogger{}, validConfig(s.Addr()), nil)
	var already *apperr.AlreadyInitializedErr
	require.ErrorAs(t, err, &already)
	require.Nil(t, again)
	require.Same(t, p, Instance())
	require.Equal(t, StateReady, CurrentState())
}

func TestInitialize_RetryAfterFailedConnect(t *testing.T) {
	resetPublisher(t)
	_, err := Initialize(context.Background(), testLogger{}, validConfig("127.0.0.1:1"), nil)
	require.Error(t, err)

	s := runMiniRedis(t)
	p, err := Initialize(context.Background(), testLogger{}, validConfig(s.Addr()), nil)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestAcquire_BeforeInitializePanics(t *testing.T) {
	resetPublisher(t)
	require.Panics(t, func() { Acquire() })
	require.Panics(t, func() { Instance() })
}

func TestPublisher_GetSetPublish(t *testing.T) {
	p, s := initPublisher(t)
	ctx := context.Background()

	_, ok, err := p.Get(ctx, "block_height")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, p.Set(ctx, "block_height", "42"))
	val, ok, err := p.Get(ctx, "block_height")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "42", val)

	require.NoError(t, p.Publish(ctx, []byte(`{"height":1}`)))
	require.NoError(t, p.Publish(ctx, []byte(`{"height":2}`)))
	items, err := s.List("near:blocks")
	require.NoError(t, err)
	require.Equal(t, []string{`{"height":1}`, `{"height":2}`}, items)
}

func TestPublisher_WriteSurvivesCanceledContext(t *testing.T) {
	p, s := initPublisher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Set(ctx, "block_height", "7"))
	got, err := s.Get("block_height")
	require.NoError(t, err)
	require.Equal(t, "7", got)
}

func TestPublisher_SinkDownIsConnectionErr(t *testing.T) {
	p, s := initPublisher(t)
	s.Close()

	_, _, err := p.Get(context.Background(), "block_height")
	var ce *apperr.ConnectionErr
	require.ErrorAs(t, err, &ce)
	require.ErrorAs(t, p.Set(context.Background(), "block_height", "1"), &ce)
	require.ErrorAs(t, p.Publish(context.Background(), []byte("x")), &ce)
}

func TestAcquire_IsExclusive(t *testing.T) {
	initPublisher(t)

	h := Acquire()
	acquired := make(chan struct{})
	go func() {
		h2 := Acquire()
		close(acquired)
		h2.Release()
	}()

	require.Never(t, func() bool {
		select {
		case <-acquired:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	h.Release()
	h.Release()
	require.Eventually(t, func() bool {
		select {
		case <-acquired:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestPublisher_ConcurrentOperationsDoNotTear(t *testing.T) {
	p, _ := initPublisher(t)
	ctx := context.Background()

	const workers = 16
	written := make(map[string]bool, workers)
	for i := 0; i < workers; i++ {
		written[strconv.Itoa(i*1000)] = true
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			errs <- p.Set(ctx, "block_height", strconv.Itoa(i*1000))
		}(i)
		go func() {
			defer wg.Done()
			val, ok, err := p.Get(ctx, "block_height")
			if err == nil && ok && !written[val] {
				err = fmt.Errorf("torn read %q", val)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestState_String(t *testing.T) {
	require.Equal(t, "uninitialized", StateUninitialized.String())
	require.Equal(t, "initializing", StateInitializing.String())
	require.Equal(t, "ready", StateReady.String())
}
