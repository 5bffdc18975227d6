package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/adstack-labs/fraud-oracle-go/pkg/chain"
	"github.com/adstack-labs/fraud-oracle-go/pkg/config"
	"github.com/adstack-labs/fraud-oracle-go/pkg/detector"
	"github.com/adstack-labs/fraud-oracle-go/pkg/inference"
	"github.com/adstack-labs/fraud-oracle-go/pkg/logger"
	"github.com/adstack-labs/fraud-oracle-go/pkg/oracle"
	"github.com/adstack-labs/fraud-oracle-go/pkg/persistence"
	badgerstore "github.com/adstack-labs/fraud-oracle-go/pkg/persistence/badger"
	"github.com/adstack-labs/fraud-oracle-go/pkg/persistence/memory"
	redisstore "github.com/adstack-labs/fraud-oracle-go/pkg/persistence/redis"
)

func main() {
	app := &cli.App{
		Name:  "fraud-oracle-server",
		Usage: "Ad fraud detection oracle",
		Description: `A fraud-scoring web service for ad campaign traffic.

This server implements:
- Traffic scoring with per-prediction merkle commitments
- Fraud-score inclusion proof generation and verification
- Prediction persistence (memory, badger, or redis)
- On-chain submission of high-confidence fraud predictions`,
		Version: oracle.ServiceVersion,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   config.DefaultPort,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvOraclePort},
			},
			&cli.StringFlag{
				Name:    "model-path",
				Usage:   "Path to the classifier model file (empty uses built-in weights)",
				EnvVars: []string{config.EnvOracleModelPath},
			},
			&cli.Float64Flag{
				Name:    "fraud-threshold",
				Value:   config.DefaultFraudThreshold,
				Usage:   "Fraud score cutoff for flagging a prediction",
				EnvVars: []string{config.EnvOracleFraudThreshold},
			},
			&cli.Float64Flag{
				Name:    "confidence-threshold",
				Value:   config.DefaultConfidenceThreshold,
				Usage:   "Confidence required before submitting a flagged prediction on-chain",
				EnvVars: []string{config.EnvOracleConfidenceThreshold},
			},
			&cli.StringFlag{
				Name:    "store-backend",
				Value:   config.StoreBackend_Memory.String(),
				Usage:   "Prediction store backend: memory, badger, or redis",
				EnvVars: []string{config.EnvOracleStoreBackend},
			},
			&cli.StringFlag{
				Name:    "badger-dir",
				Usage:   "Data directory for the badger backend",
				EnvVars: []string{config.EnvOracleBadgerDir},
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address (host:port) for the redis backend",
				EnvVars: []string{config.EnvOracleRedisAddr},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvOracleRedisPassword},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Ethereum RPC endpoint URL",
				Value:   "http://localhost:8545",
				EnvVars: []string{config.EnvOracleRPCURL},
			},
			&cli.StringFlag{
				Name:    "contract-address",
				Usage:   "Fraud registry contract address (empty disables on-chain submission)",
				EnvVars: []string{config.EnvOracleContractAddress},
			},
			&cli.StringFlag{
				Name:    "private-key",
				Usage:   "Oracle signing key (hex) for on-chain submission",
				EnvVars: []string{config.EnvOraclePrivateKey},
			},
			&cli.Uint64Flag{
				Name:    "chain-id",
				Aliases: []string{"chain"},
				Usage:   fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
				EnvVars: []string{config.EnvOracleChainID},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Value:   config.DefaultRateLimit,
				Usage:   "Request rate limit (requests per second)",
				EnvVars: []string{config.EnvOracleRateLimit},
			},
			&cli.IntFlag{
				Name:    "rate-burst",
				Value:   config.DefaultRateBurst,
				Usage:   "Request rate limit burst size",
				EnvVars: []string{config.EnvOracleRateBurst},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvOracleVerbose},
			},
		},
		Action: runOracleServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runOracleServer(c *cli.Context) error {
	loggerConfig := &logger.LoggerConfig{
		Debug: c.Bool("verbose"),
	}
	l, err := logger.NewLogger(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseOracleConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Classifier + inference
	classifier, err := detector.NewHeuristicClassifier(cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("failed to load classifier: %w", err)
	}
	inferenceService := inference.NewService(classifier, cfg.FraudThreshold, l)

	// Prediction store
	store, err := buildStore(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize prediction store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.HealthCheck(); err != nil {
		return fmt.Errorf("prediction store unhealthy: %w", err)
	}

	// Chain client
	chainClient, err := buildChainClient(c.Context, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize chain client: %w", err)
	}

	o := oracle.NewOracle(cfg, inferenceService, store, chainClient, l)
	server := oracle.NewServer(o, cfg.Port, cfg.RateLimit, cfg.RateBurst)

	if c.Bool("verbose") {
		l.Sugar().Infow("Oracle Server Configuration",
			"port", cfg.Port,
			"store_backend", cfg.StoreBackend,
			"fraud_threshold", cfg.FraudThreshold,
			"confidence_threshold", cfg.ConfidenceThreshold,
			"chain_enabled", cfg.Chain.Enabled())
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Oracle server running", "port", cfg.Port)
	l.Sugar().Infow("Available endpoints",
		"predict", "POST /predict",
		"batch", "POST /predict/batch",
		"verify", "POST /verify",
		"predictions", "GET /predictions",
		"model", "GET /model/metrics, GET /model/features, POST /model/reload",
		"chain", "GET /blockchain/status")
	l.Sugar().Info("Press Ctrl+C to stop")

	// Wait for shutdown signal so the store closes cleanly
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	l.Sugar().Info("Shutting down")
	return server.Stop()
}

func parseOracleConfig(c *cli.Context) *config.OracleServerConfig {
	cfg := &config.OracleServerConfig{
		Port:                c.Int("port"),
		ModelPath:           c.String("model-path"),
		FraudThreshold:      c.Float64("fraud-threshold"),
		ConfidenceThreshold: c.Float64("confidence-threshold"),
		StoreBackend:        config.StoreBackend(c.String("store-backend")),
		BadgerDir:           c.String("badger-dir"),
		RedisAddr:           c.String("redis-addr"),
		RedisPassword:       c.String("redis-password"),
		RateLimit:           c.Float64("rate-limit"),
		RateBurst:           c.Int("rate-burst"),
		Debug:               c.Bool("verbose"),
		Verbose:             c.Bool("verbose"),
	}

	if addr := c.String("contract-address"); addr != "" {
		cfg.Chain = &config.ChainConfig{
			RpcUrl:          c.String("rpc-url"),
			ContractAddress: addr,
			PrivateKey:      c.String("private-key"),
			ChainID:         config.ChainId(c.Uint64("chain-id")),
		}
	}

	return cfg
}

func buildStore(cfg *config.OracleServerConfig, l *zap.Logger) (persistence.IPredictionStore, error) {
	switch cfg.StoreBackend {
	case config.StoreBackend_Badger:
		return badgerstore.NewBadgerStore(cfg.BadgerDir, l)
	case config.StoreBackend_Redis:
		return redisstore.NewRedisStore(&redisstore.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}, l)
	default:
		l.Sugar().Warn("Using in-memory prediction store - all predictions are lost on restart")
		return memory.NewMemoryStore(), nil
	}
}

func buildChainClient(ctx context.Context, cfg *config.OracleServerConfig, l *zap.Logger) (chain.Client, error) {
	if !cfg.Chain.Enabled() {
		l.Sugar().Warn("No contract address configured - on-chain submission disabled")
		return chain.NewStubClient(), nil
	}

	return chain.NewEthereumClient(ctx, &chain.EthereumConfig{
		RPCURL:          cfg.Chain.RpcUrl,
		ContractAddress: cfg.Chain.ContractAddress,
		PrivateKey:      cfg.Chain.PrivateKey,
		ChainID:         uint64(cfg.Chain.ChainID),
	}, l)
}
