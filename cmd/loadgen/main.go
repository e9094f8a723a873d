package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/neehar-mavuduru/swaplog/asynclogger"
	"github.com/neehar-mavuduru/swaplog/config"
	"github.com/neehar-mavuduru/swaplog/metrics"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("loadgen: %v", err)
	}
}

func run() error {
	var (
		configPath   = flag.String("config", "", "YAML or JSON logger config; watched for level and rotation changes")
		numThreads   = flag.Int("threads", 16, "Number of concurrent producers")
		messageBytes = flag.Int("message-bytes", 200, "Payload size per line")
		targetRPS    = flag.Int("rps", 10000, "Target lines per second across all producers (0 for unthrottled)")
		duration     = flag.Duration("duration", 30*time.Second, "Test duration")
		logDir       = flag.String("log-dir", "logs", "Log directory when no config file is given")
		metricsAddr  = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	)
	flag.Parse()

	diag, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create diagnostics logger: %w", err)
	}
	defer diag.Sync()

	cfg := asynclogger.DefaultConfig(filepath.Join(*logDir, "loadgen.log"))
	var file *config.File
	if *configPath != "" {
		file, err = config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if file.Path == "" {
			file.Path = cfg.LogFilePath
		}
		if cfg, err = file.LoggerConfig(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	cfg.Diagnostics = diag.Named("swaplog")

	logger, err := asynclogger.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() {
		if err := logger.Close(); err != nil {
			diag.Error("close failed", zap.Error(err))
		}
	}()
	asynclogger.SetDefault(logger)

	if file != nil {
		if err := file.Apply(logger); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		watcher, err := config.Watch(*configPath, logger, config.WithReloadCallback(func(f *config.File, err error) {
			if err != nil {
				diag.Warn("config reload failed", zap.Error(err))
				return
			}
			diag.Info("config reloaded", zap.String("level", logger.Level().String()))
		}))
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		defer watcher.Stop()
	}

	if *metricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(metrics.NewCollector(logger, "loadgen"))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{
			Addr:              *metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				diag.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer server.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	diag.Info("starting load",
		zap.String("path", cfg.LogFilePath),
		zap.Int("threads", *numThreads),
		zap.Int("message_bytes", *messageBytes),
		zap.Int("rps", *targetRPS),
		zap.Duration("duration", *duration),
		zap.Int("buffer_size", cfg.BufferSize),
		zap.Int64("rotation_threshold", cfg.RotationThreshold))

	payload := strings.Repeat("x", *messageBytes)

	var interval time.Duration
	if *targetRPS > 0 {
		interval = time.Duration(float64(time.Second) * float64(*numThreads) / float64(*targetRPS))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reportStats(ctx, diag, logger)
		return nil
	})
	startTime := time.Now()
	for i := 0; i < *numThreads; i++ {
		threadID := i
		g.Go(func() error {
			worker(ctx, interval, threadID, payload)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	syncCtx, syncCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer syncCancel()
	if err := logger.Sync(syncCtx); err != nil {
		diag.Warn("final sync incomplete", zap.Error(err))
	}

	logStats(diag, logger, "final statistics")
	diag.Info("load completed", zap.Duration("elapsed", time.Since(startTime)))
	return nil
}

// worker logs through the package-level accessor until ctx ends
func worker(ctx context.Context, interval time.Duration, threadID int, payload string) {
	if interval <= 0 {
		for seq := 0; ctx.Err() == nil; seq++ {
			asynclogger.Logf(asynclogger.LevelInfo, "thread=%d seq=%d %s", threadID, seq, payload)
		}
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			asynclogger.Logf(asynclogger.LevelInfo, "thread=%d seq=%d %s", threadID, seq, payload)
		}
	}
}

func reportStats(ctx context.Context, diag *zap.Logger, logger *asynclogger.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			logStats(diag, logger, "statistics")
		case <-ctx.Done():
			return
		}
	}
}

func logStats(diag *zap.Logger, logger *asynclogger.Logger, msg string) {
	s := logger.Stats()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	diag.Info(msg,
		zap.Int64("logs", s.TotalLogs),
		zap.Int64("dropped", s.DroppedLogs),
		zap.Int64("truncated", s.TruncatedLogs),
		zap.Int64("bytes_written", s.BytesWritten),
		zap.Int64("bytes_dropped", s.DroppedBytes),
		zap.Int64("drain_cycles", s.DrainCycles),
		zap.Int64("write_errors", s.WriteErrors),
		zap.Int64("rotations", s.Rotations),
		zap.Int64("buffer_swaps", s.BufferSwaps),
		zap.Int64("buffers_allocated", s.BuffersAllocated),
		zap.Int("pending_buffers", s.PendingBuffers),
		zap.Uint32("gc_cycles", memStats.NumGC),
		zap.Float64("heap_mb", float64(memStats.Alloc)/1024/1024))
}
