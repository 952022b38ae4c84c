package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/thushan/forwardproxy/internal/cache"
	"github.com/thushan/forwardproxy/internal/config"
	"github.com/thushan/forwardproxy/internal/core/domain"
	"github.com/thushan/forwardproxy/internal/dispatcher"
	"github.com/thushan/forwardproxy/internal/env"
	"github.com/thushan/forwardproxy/internal/exchange"
	"github.com/thushan/forwardproxy/internal/logger"
	"github.com/thushan/forwardproxy/internal/metrics"
	"github.com/thushan/forwardproxy/internal/tunnel"
	"github.com/thushan/forwardproxy/internal/upstream"
	"github.com/thushan/forwardproxy/internal/version"
	"github.com/thushan/forwardproxy/pkg/eventbus"
	"github.com/thushan/forwardproxy/pkg/format"
	"github.com/thushan/forwardproxy/pkg/nerdstats"
	"github.com/thushan/forwardproxy/pkg/profiler"
)

const connectTimeout = 10 * time.Second

func main() {
	startTime := time.Now()
	vlog := log.New(log.Writer(), "", 0)

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.PrintVersionInfo(true, vlog)
		os.Exit(0)
	}
	if len(os.Args) > 2 {
		fmt.Fprintln(os.Stderr, "usage: proxy [port]")
		os.Exit(1)
	}
	version.PrintVersionInfo(false, vlog)

	lcfg := buildLoggerConfig()
	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()
	slog.SetDefault(logInstance)

	cfg, err := config.Load(nil)
	if err != nil {
		logger.FatalWithLogger(logInstance, "Failed to load config", "error", err)
	}

	if len(os.Args) == 2 {
		port, convErr := strconv.Atoi(os.Args[1])
		if convErr != nil {
			fmt.Fprintln(os.Stderr, "usage: proxy [port]")
			os.Exit(1)
		}
		config.ApplyPortOverride(cfg, port)
	}

	if cfg.Engineering.Profile {
		profiler.InitialiseProfiler()
	}

	styledLogger.Info("Initialising", "version", version.Version, "pid", os.Getpid(), "port", cfg.Server.Port)

	events := eventbus.New[domain.ProxyEvent]()
	collector := metrics.NewCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go collector.Subscribe(ctx, events)

	store := cache.NewStore(cfg.Cache.MaxSizeBytes, cfg.Cache.MaxElementSizeBytes, func(fingerprint string, nbytes int) {
		styledLogger.InfoCacheEvict(fingerprint, nbytes)
		events.Publish(domain.ProxyEvent{Type: domain.EventTypeCacheEvict, Bytes: nbytes})
	})

	dialer := upstream.NewDialer(connectTimeout)
	exchangeDriver := exchange.NewDriver(dialer, store, cfg.Server.MaxRequestBytes, func(err error) {
		styledLogger.Warn("cache insertion failed", "error", err)
	})
	tunnelDriver := tunnel.NewDriver(dialer, cfg.Server.TunnelIdleTimeout)

	server := dispatcher.New(
		cfg.Server.Host, strconv.Itoa(cfg.Server.Port),
		cfg.Server.MaxClients, cfg.Server.MaxRequestBytes,
		store, exchangeDriver, tunnelDriver, events, logInstance,
	)

	listener, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)))
	if err != nil {
		logger.FatalWithLogger(logInstance, "Failed to bind listener", "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		styledLogger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- server.Serve(ctx, listener)
	}()

	styledLogger.Info("Listening", "addr", listener.Addr().String())

	select {
	case <-ctx.Done():
	case err := <-serveErrCh:
		if err != nil {
			styledLogger.Error("Accept loop exited", "error", err)
		}
	}

	server.Wait()
	store.Drain()

	if cfg.Engineering.ShowNerdStats {
		reportProcessStats(styledLogger, startTime)
	}

	styledLogger.Info("forwardproxy has shutdown")
}

func reportProcessStats(logger *logger.StyledLogger, startTime time.Time) {
	runtime.GC()

	stats := nerdstats.Snapshot(startTime)

	logger.Info("Process Memory Stats",
		"heap_alloc", format.Bytes(stats.HeapAlloc),
		"heap_sys", format.Bytes(stats.HeapSys),
		"heap_inuse", format.Bytes(stats.HeapInuse),
		"heap_released", format.Bytes(stats.HeapReleased),
		"stack_inuse", format.Bytes(stats.StackInuse),
		"total_alloc", format.Bytes(stats.TotalAlloc),
		"memory_pressure", stats.GetMemoryPressure(),
	)

	logger.Info("Process Allocation Stats",
		"total_mallocs", stats.Mallocs,
		"total_frees", stats.Frees,
		"net_objects", int64(stats.Mallocs)-int64(stats.Frees),
	)

	if stats.NumGC > 0 {
		logger.Info("Garbage Collection Stats",
			"num_gc_cycles", stats.NumGC,
			"last_gc", stats.LastGC.Format(time.RFC3339),
			"total_gc_time", format.Duration(stats.TotalGCTime),
			"gc_cpu_fraction", fmt.Sprintf("%.4f%%", stats.GCCPUFraction*100),
		)
	}

	logger.Info("Goroutine Stats",
		"num_goroutines", stats.NumGoroutines,
		"goroutine_health", stats.GetGoroutineHealthStatus(),
		"num_cgo_calls", stats.NumCgoCall,
	)

	logger.Info("Runtime Stats",
		"uptime", format.Duration(stats.Uptime),
		"go_version", stats.GoVersion,
		"num_cpu", stats.NumCPU,
		"gomaxprocs", stats.GOMAXPROCS,
	)
}

func buildLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      env.GetEnvOrDefault("PROXY_LOG_LEVEL", "info"),
		FileOutput: env.GetEnvBoolOrDefault("PROXY_FILE_OUTPUT", true),
		LogDir:     env.GetEnvOrDefault("PROXY_LOG_DIR", "./logs"),
		MaxSize:    env.GetEnvIntOrDefault("PROXY_MAX_SIZE", 100),
		MaxBackups: env.GetEnvIntOrDefault("PROXY_MAX_BACKUPS", 5),
		MaxAge:     env.GetEnvIntOrDefault("PROXY_MAX_AGE", 30),
		Theme:      env.GetEnvOrDefault("PROXY_THEME", "default"),
	}
}
