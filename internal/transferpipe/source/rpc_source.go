package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/ledger"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/metrics"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/retry"
)

// Node error codes for slots that will never have a block.
const (
	codeSlotSkipped        = -32007
	codeLongTermStorageGap = -32009
)

// ErrSlotUnavailable is returned for slots the node reports as skipped or
// missing. These are not retried.
var ErrSlotUnavailable = errors.New("slot unavailable")

type Config struct {
	Endpoint    string
	Commitment  string // processed | confirmed | finalized
	MaxAttempts int
	RetryDelay  time.Duration
}

// RPCSource reads blocks from a Solana JSON-RPC node. Safe for concurrent use.
type RPCSource struct {
	cl         *rpc.Client
	commitment rpc.CommitmentType
	policy     retry.Policy
	log        *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*RPCSource, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("rpc endpoint is empty")
	}
	return NewWithClient(rpc.New(cfg.Endpoint), cfg, log), nil
}

func NewWithClient(cl *rpc.Client, cfg Config, log *zap.Logger) *RPCSource {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Commitment == "" {
		cfg.Commitment = string(rpc.CommitmentConfirmed)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	return &RPCSource{
		cl:         cl,
		commitment: rpc.CommitmentType(cfg.Commitment),
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			Delay:       cfg.RetryDelay,
			Classify:    classify,
		},
		log: log.With(zap.String("component", "source")),
	}
}

func (s *RPCSource) Close() error { return s.cl.Close() }

func classify(err error) retry.Class {
	if errors.Is(err, ErrSlotUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return retry.Fatal
	}
	return retry.Retryable
}

func (s *RPCSource) withRetry(ctx context.Context, method string, fn func(context.Context) error) error {
	p := s.policy
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		metrics.RPCRetries.WithLabelValues(method).Inc()
		s.log.Debug("rpc retry",
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	return retry.Do(ctx, p, fn)
}

// LatestSlot returns the newest slot at the configured commitment.
func (s *RPCSource) LatestSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	err := s.withRetry(ctx, "getSlot", func(ctx context.Context) error {
		var err error
		slot, err = s.cl.GetSlot(ctx, s.commitment)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("getSlot: %w", err)
	}
	return slot, nil
}

// ListBlocks returns the produced slots in [start, end). An empty result is
// not an error.
func (s *RPCSource) ListBlocks(ctx context.Context, start, end uint64) ([]uint64, error) {
	if end <= start {
		return nil, nil
	}
	last := end - 1 // getBlocks is inclusive of its end slot

	var res rpc.BlocksResult
	err := s.withRetry(ctx, "getBlocks", func(ctx context.Context) error {
		var err error
		res, err = s.cl.GetBlocks(ctx, start, &last, s.commitment)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getBlocks [%d,%d): %w", start, end, err)
	}

	out := make([]uint64, 0, len(res))
	for _, slot := range res {
		if slot >= start && slot < end {
			out = append(out, slot)
		}
	}
	return out, nil
}

// FetchBlock returns the jsonParsed block at slot. Skipped or missing slots
// fail with ErrSlotUnavailable without retrying.
func (s *RPCSource) FetchBlock(ctx context.Context, slot uint64) (*ledger.Block, error) {
	opts := map[string]any{
		"encoding":                       "jsonParsed",
		"transactionDetails":             "full",
		"rewards":                        false,
		"commitment":                     s.commitment,
		"maxSupportedTransactionVersion": 0,
	}

	var blk *ledger.Block
	err := s.withRetry(ctx, "getBlock", func(ctx context.Context) error {
		var raw json.RawMessage
		if err := s.cl.RPCCallForInto(ctx, &raw, "getBlock", []any{slot, opts}); err != nil {
			return asSlotError(slot, err)
		}
		if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("%w: slot %d: empty result", ErrSlotUnavailable, slot)
		}
		var b ledger.Block
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("decode block %d: %w", slot, err)
		}
		blk = &b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("getBlock %d: %w", slot, err)
	}
	return blk, nil
}

func asSlotError(slot uint64, err error) error {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case codeSlotSkipped, codeLongTermStorageGap:
			return fmt.Errorf("%w: slot %d: %s", ErrSlotUnavailable, slot, rpcErr.Message)
		}
		return fmt.Errorf("rpc error %d: %s", rpcErr.Code, rpcErr.Message)
	}
	return err
}
