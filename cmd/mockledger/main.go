package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chenzhangda16/sol-transferpipe/internal/mockledger"
	"github.com/chenzhangda16/sol-transferpipe/pkg/obs"
	"github.com/chenzhangda16/sol-transferpipe/pkg/rng"
)

func main() {
	var (
		addr     = flag.String("addr", ":8899", "json-rpc listen addr")
		genesis  = flag.Uint64("genesis", 250_000_000, "first slot")
		retain   = flag.Int("retain", 10_000, "produced blocks kept before older slots report a storage gap")
		warmup   = flag.Int("warmup", 200, "slots decided before serving")
		tick     = flag.Duration("tick", 400*time.Millisecond, "slot interval")
		det      = flag.Bool("det", false, "reproducible chain for a given seed")
		seed     = flag.Int64("seed", 1, "seed for deterministic generation")
		accounts = flag.Int("accounts", 256, "address pool size")
		skipRate = flag.Float64("skip-rate", 0.05, "probability a slot is skipped")
		failRate = flag.Float64("fail-rate", 0.03, "probability a transaction fails")
		logLevel = flag.String("log-level", "info", "debug|info|warn|error")
	)
	flag.Parse()

	logger, err := obs.Init("mockledger", *logLevel, "console")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	mode := rng.Real
	if *det {
		mode = rng.Deterministic
	}
	rf := rng.New(mode, *seed)

	chain := mockledger.NewChain(*genesis, *retain)
	gen := mockledger.NewGenerator(mockledger.GenConfig{
		Accounts:    *accounts,
		SkipRate:    *skipRate,
		FailureRate: *failRate,
	}, rf)
	miner := mockledger.NewMiner(chain, gen, *tick, logger)
	miner.Warmup(*warmup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := miner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("miner stopped", zap.Error(err))
			cancel()
		}
	}()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mockledger.NewServer(chain, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("mockledger rpc listening",
		zap.String("addr", *addr),
		zap.Uint64("genesis", *genesis),
		zap.Int64("seed", rf.Seed()),
		zap.Duration("tick", *tick))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
}
