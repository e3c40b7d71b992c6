package infra

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"runtime"
	"sync"

	"github.com/spf13/viper"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/applog"
)

// StartPprof serves net/http/pprof on pprof.addr when cfg enables it. The
// returned function shuts the server down.
func StartPprof(logger applog.AppLogger, wg *sync.WaitGroup, cfg *AppConfig) func(context.Context) error {
	if !cfg.PprofEnabled {
		return func(context.Context) error { return nil }
	}

	addr := viper.GetString("pprof.addr")
	if n := cfg.Tunable("pprof.block_profile_rate"); n > 0 {
		runtime.SetBlockProfileRate(n)
	}
	if n := cfg.Tunable("pprof.mutex_profile_fraction"); n > 0 {
		runtime.SetMutexProfileFraction(n)
	}

	srv := &http.Server{Addr: addr}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting pprof server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("pprof server error", "err", err)
		}
	}()

	return srv.Shutdown
}
