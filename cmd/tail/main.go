package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/config"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/model"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/out"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/writer"
	"github.com/chenzhangda16/sol-transferpipe/pkg/obs"
)

// printSink renders every record as a console line.
type printSink struct{ p *out.Printer }

func (s printSink) Write(_ context.Context, t model.Transfer) (bool, error) {
	s.p.Print(t)
	return true, nil
}

func main() {
	var (
		brokers = flag.String("brokers", "localhost:9092", "kafka brokers, comma-separated")
		topic   = flag.String("topic", "solana", "topic to follow")
		oldest  = flag.Bool("from-beginning", false, "start at the oldest retained offset")
	)
	flag.Parse()

	logger, err := obs.Init("transferpipe-tail", "warn", "console")
	if err != nil {
		log.Fatal(err)
	}

	cfg := writer.NewConsumerConfig()
	cfg.ClientID = "transferpipe-tail"
	if !*oldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	// a throwaway group so every tail sees the whole topic
	group := "transferpipe-tail-" + uuid.NewString()
	cg, err := sarama.NewConsumerGroup(config.SplitList(*brokers), group, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = cg.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	h := writer.NewHandler(printSink{p: out.NewPrinter(os.Stdout)}, logger)
	_ = writer.Consume(ctx, cg, []string{*topic}, h, logger)
}
