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

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/admin"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/config"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/writer"
	"github.com/chenzhangda16/sol-transferpipe/pkg/obs"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "yaml config file; defaults apply when empty")
		envFile = flag.String("env", ".env", "dotenv file loaded before reading TRANSFERPIPE_* variables")
		group   = flag.String("group", "", "consumer group (overrides config)")
		dsn     = flag.String("dsn", "", "postgres dsn (overrides config)")
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
	if *group != "" {
		cfg.Writer.GroupID = *group
	}
	if *dsn != "" {
		cfg.Writer.DSN = *dsn
	}

	logger, err := obs.Init("transferpipe-writer", cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := writer.OpenPG(ctx, cfg.Writer.DSN)
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("ensure schema failed", zap.Error(err))
	}

	cg, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Writer.GroupID, writer.NewConsumerConfig())
	if err != nil {
		logger.Fatal("consumer group init failed", zap.Error(err))
	}
	defer func() { _ = cg.Close() }()

	if cfg.Admin.Addr != "" {
		go func() {
			if err := admin.New(cfg.Admin.Addr, nil, logger).Serve(ctx); err != nil {
				logger.Error("admin server", zap.Error(err))
			}
		}()
	}

	logger.Info("writer start",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Writer.GroupID),
		zap.Strings("brokers", cfg.Kafka.Brokers))

	err = writer.Consume(ctx, cg, []string{cfg.Kafka.Topic}, writer.NewHandler(store, logger), logger)
	logger.Info("writer exit", zap.Error(err))
}
