package writer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/metrics"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/model"
)

// Sink receives decoded transfers. stored reports whether the record was
// new to the sink.
type Sink interface {
	Write(ctx context.Context, t model.Transfer) (stored bool, err error)
}

var errInvalidRecord = errors.New("invalid transfer record")

func NewConsumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "transferpipe-writer"
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	return cfg
}

// Handler is a sarama consumer group handler. Undecodable records are logged
// and marked. A failing sink write is retried in place; offsets are committed
// cumulatively, so no later record in the claim is marked until it succeeds.
type Handler struct {
	sink       Sink
	log        *zap.Logger
	retryDelay time.Duration
}

func NewHandler(sink Sink, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		sink:       sink,
		log:        log.With(zap.String("component", "writer")),
		retryDelay: 500 * time.Millisecond,
	}
}

func (h *Handler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *Handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *Handler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if !h.handle(ctx, msg) {
			// msg stays unmarked and the next session resumes from it
			return ctx.Err()
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

// handle reports whether msg is done with. It returns false only when ctx
// ends before the sink accepted the record.
func (h *Handler) handle(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	t, err := Decode(msg.Value)
	if err != nil {
		metrics.RecordsRejected.WithLabelValues("decode").Inc()
		h.log.Warn("bad record",
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return true
	}

	var stored bool
	for attempt := 1; ; attempt++ {
		var err error
		stored, err = h.sink.Write(ctx, t)
		if err == nil {
			break
		}
		metrics.RecordsRejected.WithLabelValues("sink").Inc()
		h.log.Error("write failed",
			zap.String("signature", t.Signature),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err))

		timer := time.NewTimer(h.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
	if stored {
		metrics.RecordsStored.Inc()
	} else {
		h.log.Debug("duplicate record", zap.String("signature", t.Signature))
	}
	return true
}

// Decode parses one topic record and checks the fields every consumer relies on.
func Decode(value []byte) (model.Transfer, error) {
	var t model.Transfer
	if err := json.Unmarshal(value, &t); err != nil {
		return t, err
	}
	switch {
	case t.Signature == "":
		return t, errors.Join(errInvalidRecord, errors.New("missing signature"))
	case t.Symbol == "":
		return t, errors.Join(errInvalidRecord, errors.New("missing symbol"))
	case t.Amount < 0:
		return t, errors.Join(errInvalidRecord, errors.New("negative amount"))
	}
	return t, nil
}

// Consume drives the group until ctx ends, retrying session errors.
func Consume(ctx context.Context, cg sarama.ConsumerGroup, topics []string, h sarama.ConsumerGroupHandler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	for ctx.Err() == nil {
		if err := cg.Consume(ctx, topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return err
			}
			log.Warn("consume", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(300 * time.Millisecond):
			}
		}
	}
	return ctx.Err()
}
