package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"landsale/cmd/internal/passphrase"
	"landsale/config"
	"landsale/core"
	"landsale/indexer"
	"landsale/observability/logging"
	landsaleotel "landsale/observability/otel"
	"landsale/rpc"
	"landsale/storage"
)

const (
	keystorePassEnv = "LANDSALE_KEYSTORE_PASS"
	genesisPathEnv  = "LANDSALE_GENESIS"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides LANDSALE_GENESIS and config GenesisFile)")
	flag.Parse()

	passSource := passphrase.NewSource(keystorePassEnv)
	cfg, err := config.Load(*configFile, config.WithKeystorePassphraseSource(passSource.Get))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.SetupWithFile("landsaled", cfg.Environment, logging.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   true,
	})
	defer logCloser.Close()

	if err := run(cfg, resolveGenesisPath(*genesisFlag, os.LookupEnv), logger); err != nil {
		logger.Error("landsaled stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func resolveGenesisPath(flagValue string, lookup func(string) (string, bool)) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if value, ok := lookup(genesisPathEnv); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func run(cfg *config.Config, genesisOverride string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := landsaleotel.Init(ctx, landsaleotel.Config{
		ServiceName:    "landsaled",
		Environment:    cfg.Environment,
		SaleAddress:    cfg.SaleAddress,
		StorageBackend: cfg.StorageBackend,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        landsaleotel.ParseHeaders(cfg.Telemetry.Headers),
		ExportTimeout:  time.Duration(cfg.Telemetry.ExportTimeout) * time.Second,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Metrics:        cfg.Telemetry.Metrics,
		Traces:         cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	saleAddress, err := cfg.SaleIdentity()
	if err != nil {
		return err
	}
	node, err := core.NewNode(db, saleAddress)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	node.SetLogger(logger)

	var mints rpc.MintIndex
	if cfg.Indexer.Enabled {
		gormDB, err := indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN)
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		ix, err := indexer.New(gormDB, logger)
		if err != nil {
			return fmt.Errorf("init indexer: %w", err)
		}
		defer ix.Close()
		node.AddEventSink(ix)
		mints = ix
		logger.Info("mint indexer enabled", slog.String("driver", cfg.Indexer.Driver))
	}

	if genesisOverride != "" {
		cfg.GenesisFile = genesisOverride
	}
	spec, err := cfg.GenesisSpec()
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	if spec != nil {
		if _, err := node.ApplyGenesis(spec); err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
	}

	server := rpc.NewServer(node, mints, rpc.ServerConfig{
		AuthToken:             strings.TrimSpace(os.Getenv(cfg.RPC.AuthTokenEnv)),
		JWTSecret:             jwtSecret(cfg.RPC.JWTSecretEnv),
		JWTIssuer:             cfg.RPC.JWTIssuer,
		MintRequestsPerMinute: cfg.RPC.MintRequestsPerMinute,
		MintBurst:             cfg.RPC.MintBurst,
		TrustProxyHeaders:     cfg.RPC.TrustProxyHeaders,
		MaxBodyBytes:          cfg.RPC.MaxBodyBytes,
		ReadHeaderTimeout:     time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.RPC.WriteTimeout) * time.Second,
	})
	server.SetLogger(logger)

	rpcListener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen rpc: %w", err)
	}
	metricsServer := newMetricsServer(cfg.MetricsAddress)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("rpc listening", slog.String("address", rpcListener.Addr().String()))
		errCh <- server.Serve(rpcListener)
	}()
	go func() {
		logger.Info("metrics listening", slog.String("address", cfg.MetricsAddress))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown", slog.Any("error", err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", slog.Any("error", err))
	}
	return runErr
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.StatePath(), 0o755); err != nil {
			return nil, fmt.Errorf("prepare state directory: %w", err)
		}
		return storage.NewBoltDB(filepath.Join(cfg.StatePath(), "state.bolt"))
	default:
		db, err := storage.NewLevelDB(cfg.StatePath())
		if err != nil {
			return nil, fmt.Errorf("open leveldb: %w", err)
		}
		return db, nil
	}
}

func jwtSecret(envVar string) []byte {
	if strings.TrimSpace(envVar) == "" {
		return nil
	}
	value := strings.TrimSpace(os.Getenv(envVar))
	if value == "" {
		return nil
	}
	return []byte(value)
}

func newMetricsServer(addr string) *http.Server {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
