package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/potooio/herald/internal/config"
)

func main() {
	var (
		configPath string
		envFile    string
		addr       string
	)
	flag.StringVar(&configPath, "config", os.Getenv("HERALD_CONFIG"), "Path to the YAML config file. Defaults are used when empty.")
	flag.StringVar(&envFile, "env-file", ".env", "Path to a .env file loaded before the config. Ignored if missing.")
	flag.StringVar(&addr, "addr", "", "Address to listen on. Overrides server.addr.")
	flag.Parse()

	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	// Setup logger
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logConfig.Level = zap.NewAtomicLevelAt(cfg.LogLevel())
	logger, err := logConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

// run builds every component, serves until ctx is cancelled, then drains the
// background queue before returning.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting Herald",
		zap.String("version", "dev"),
		zap.String("addr", cfg.Server.Addr),
		zap.String("transport", cfg.Transport.Kind),
		zap.String("store", cfg.Store.Kind),
		zap.String("digest_queue", cfg.Digest.Queue),
	)

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	// Workers outlive ctx so updates accepted by in-flight requests during
	// graceful shutdown still run.
	workCtx, stopWork := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWork()
	c.engine.Start(workCtx)
	c.batcher.Start(workCtx)

	srv := NewServer(ServerConfig{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration,
	}, c.router, logger)
	serveErr := srv.Start(ctx)

	// The server has stopped; let queued updates finish.
	stopWork()
	c.engine.Close()
	c.batcher.Close()
	logger.Info("Herald stopped")
	return serveErr
}
