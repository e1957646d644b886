package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/app"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/config"
	"github.com/chenzhangda16/sol-transferpipe/pkg/obs"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "yaml config file; defaults apply when empty")
		envFile = flag.String("env", ".env", "dotenv file loaded before reading TRANSFERPIPE_* variables")

		rpcURL      = flag.String("rpc", "", "solana json-rpc url (overrides config)")
		brokers     = flag.String("brokers", "", "kafka brokers, comma-separated (overrides config)")
		topic       = flag.String("topic", "", "kafka topic (overrides config)")
		concurrency = flag.Int("concurrency", 0, "max blocks in flight (overrides config)")
		logLevel    = flag.String("log-level", "", "debug|info|warn|error (overrides config)")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		log.Fatal(err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rpc":
			cfg.Source.RPCURL = *rpcURL
		case "brokers":
			cfg.Kafka.Brokers = config.SplitList(*brokers)
		case "topic":
			cfg.Kafka.Topic = *topic
		case "concurrency":
			cfg.Ingest.Concurrency = *concurrency
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})

	logger, err := obs.Init("transferpipe", cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger, os.Stdout)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	if err := a.Run(ctx); err != nil {
		logger.Error("pipeline stopped", zap.Error(err))
		return
	}
	logger.Info("shutdown", zap.Uint64("cursor", a.Cursor()))
}
