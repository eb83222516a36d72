package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rewardchain/cmd/internal/passphrase"
	"rewardchain/config"
	"rewardchain/core"
	"rewardchain/explorer"
	"rewardchain/observability/logging"
	rwdotel "rewardchain/observability/otel"
	"rewardchain/rpc"
	"rewardchain/storage"
)

const (
	serviceName     = "rewardsd"
	envVar          = "RWD_ENV"
	keystorePassEnv = "RWD_KEYSTORE_PASS"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "rewardsd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	passSource := passphrase.NewSource(keystorePassEnv, "operator")
	cfg, err := config.Load(configPath, config.WithKeystorePassphraseSource(passSource.Get))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	env := strings.TrimSpace(os.Getenv(envVar))
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.Setup(serviceName, env,
		logging.WithLevel(logging.ParseLevel(cfg.Logging.Level)),
		logging.WithFile(logging.FileOptions{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := rwdotel.Init(ctx, telemetryConfig(cfg, env))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node := core.NewNode(db, core.NodeConfig{
		ChainID:     cfg.ChainID,
		FeedHistory: cfg.FeedHistory,
		Pauses:      cfg.Global.Pauses,
		Quota:       cfg.Global.Quotas.Rewards.Native(),
		Logger:      logger,
	})

	var history rpc.History
	if dsn := strings.TrimSpace(cfg.IndexDSN); dsn != "" {
		indexer, err := explorer.Open(dsn, logger)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer indexer.Close()
		logger.Info("explorer index opened", logging.MaskField("indexDsn", dsn))
		node.AddReceiptSink(indexer)
		history = indexer
	}

	serverCfg, err := rpcServerConfig(cfg, logger)
	if err != nil {
		return err
	}
	server := rpc.NewServer(node, history, serverCfg)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(cfg.RPCAddress)
	}()
	logger.Info("rewards node started",
		slog.Uint64("chainId", cfg.ChainID),
		slog.String("rpc", cfg.RPCAddress),
		slog.Bool("indexer", history != nil))

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("rpc shutdown: %w", err)
	}
	return nil
}

func telemetryConfig(cfg *config.Config, env string) rwdotel.Config {
	return rwdotel.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     rwdotel.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	}
}

// rpcServerConfig resolves the RPC auth secret, preferring the environment
// variable named by JWTSecretEnv over an inline secret.
func rpcServerConfig(cfg *config.Config, logger *slog.Logger) (rpc.ServerConfig, error) {
	secret := strings.TrimSpace(cfg.RPC.JWTSecret)
	if name := strings.TrimSpace(cfg.RPC.JWTSecretEnv); name != "" {
		value, ok := os.LookupEnv(name)
		if !ok || strings.TrimSpace(value) == "" {
			return rpc.ServerConfig{}, fmt.Errorf("rpc: JWT secret env %s is not set", name)
		}
		secret = strings.TrimSpace(value)
	}
	return rpc.ServerConfig{
		AuthToken:          cfg.RPC.AuthToken,
		JWTSecret:          secret,
		JWTIssuer:          cfg.RPC.JWTIssuer,
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateBurst:          cfg.RPC.RateBurst,
		TrustedProxies:     append([]string{}, cfg.RPC.TrustedProxies...),
		ReadHeaderTimeout:  time.Duration(cfg.RPC.ReadHeaderTimeoutSeconds) * time.Second,
		Logger:             logger,
	}, nil
}
