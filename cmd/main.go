package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/pancudaniel7/blockscan-near-lake-service/internal/adapter/source"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/core/usecase"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/infra"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/applog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := infra.LoadConfig()
	if err != nil {
		applog.NewAppDefaultLogger().Error("Failed to load configuration", "code", apperr.CodeOf(err), "err", err)
		return 1
	}

	logger, err := applog.NewAppFileLogger()
	if err != nil {
		applog.NewAppDefaultLogger().Error("Failed to open log file", "file", cfg.LogFile, "err", err)
		return 1
	}
	defer func() { _ = logger.Close() }()
	cfg.LogKeys(logger)

	infra.InitMetricsRegistry()
	v := validator.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher, err := infra.InitSink(ctx, logger, cfg, v)
	if err != nil {
		logger.Error("Failed to initialize sink publisher", "code", apperr.CodeOf(err), "err", err)
		return 1
	}
	defer func() { _ = publisher.Close() }()

	checkpoints, err := infra.InitCheckpointStore(logger, publisher)
	if err != nil {
		logger.Error("Failed to initialize checkpoint store", "err", err)
		return 1
	}

	start, err := usecase.ResolveStartHeight(ctx, usecase.ResumePolicy{
		FromCheckpoint: cfg.StartFromCheckpoint,
		StartHeight:    cfg.StartBlockHeight,
	}, checkpoints)
	if err != nil {
		logger.Error("Failed to resolve start block height", "code", apperr.CodeOf(err), "err", err)
		return 1
	}

	streamCfg, err := source.BuildStreamConfig(start, cfg.UseTestNetwork, v)
	if err != nil {
		logger.Error("Failed to build stream config", "code", apperr.CodeOf(err), "err", err)
		return 1
	}
	logger.Info("Resolved stream start", "network", streamCfg.Network, "stream", streamCfg.StreamName, "start_height", start, "from_checkpoint", cfg.StartFromCheckpoint)

	var opts []usecase.ProcessorOption
	if cfg.StartFromCheckpoint {
		opts = append(opts, usecase.WithLastHandled(start-1), usecase.WithCheckpointFloor(start-1))
	} else {
		floor, ok, err := usecase.CheckpointFloor(ctx, logger, checkpoints)
		if err != nil {
			logger.Error("Failed to read checkpoint", "code", apperr.CodeOf(err), "err", err)
			return 1
		}
		if ok {
			opts = append(opts, usecase.WithCheckpointFloor(floor))
		}
	}

	if cfg.KafkaEnabled() {
		mirror, err := infra.InitBlockMirror(logger, cfg, v)
		if err != nil {
			logger.Error("Failed to initialize block mirror", "err", err)
			return 1
		}
		defer mirror.Close()
		opts = append(opts, usecase.WithMirror(mirror))
	}
	processor := usecase.NewBlockProcessorService(logger, publisher, checkpoints, opts...)

	var wg sync.WaitGroup
	stopPprof := infra.StartPprof(logger, &wg, cfg)

	var app *fiber.App
	if cfg.HTTPAddr != "" {
		app = fiber.New()
		infra.InitRoutes(app)
		infra.InitMetrics(app)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.Listen(cfg.HTTPAddr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
				logger.Warn("HTTP server stopped", "err", err)
			}
		}()
	}

	src, err := infra.InitBlockSource(logger, &wg, cfg, streamCfg, v)
	if err != nil {
		logger.Error("Failed to initialize block source", "code", apperr.CodeOf(err), "err", err)
		return 1
	}
	src.SetHandler(processor.HandleBlock)
	if err := src.StartStreaming(); err != nil {
		logger.Error("Failed to start block source", "err", err)
		return 1
	}

	code := 0
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-src.Err():
		logger.Error("Block source stopped", "code", apperr.CodeOf(err), "err", err)
		code = 1
	}

	src.StopStreaming()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if app != nil {
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown failed", "err", err)
		}
	}
	if err := stopPprof(shutdownCtx); err != nil {
		logger.Warn("pprof shutdown failed", "err", err)
	}
	wg.Wait()

	logger.Info("Relay stopped", "exit_code", code)
	return code
}
