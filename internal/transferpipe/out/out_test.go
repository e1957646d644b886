package out

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/model"
)

type sent struct {
	key   string
	value []byte
}

// fakeProducer records sends; keys listed in fail error out and keys in
// stall block until ctx ends.
type fakeProducer struct {
	mu    sync.Mutex
	sent  []sent
	fail  map[string]bool
	stall map[string]bool
}

func (f *fakeProducer) Send(ctx context.Context, key string, value []byte) error {
	if f.stall[key] {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.fail[key] {
		return errors.New("broker down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{key, value})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func (f *fakeProducer) keys() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.sent))
	for _, s := range f.sent {
		out[s.key] = true
	}
	return out
}

func sol(sig string, amount float64) model.Transfer {
	return model.Transfer{Signature: sig, FromAccount: "A", ToAccount: "B", Amount: amount, Symbol: "SOL", Timestamp: 1, BlockSlot: 9}
}

func TestPublishBatchFiltersNative(t *testing.T) {
	prod := &fakeProducer{}
	var buf bytes.Buffer
	pub := NewPublisher(PublisherConfig{MinNativeAmount: 0.1}, prod, NewPrinter(&buf), nil)

	batch := []model.Transfer{
		sol("half", 0.5),
		sol("tiny", 0.05),
		sol("edge", 0.1),
		{Signature: "usdc", FromAccount: "A", ToAccount: "B", Amount: 0.01, Symbol: "USDC"},
	}
	if n := pub.PublishBatch(context.Background(), batch); n != 2 {
		t.Errorf("acked = %d, want 2", n)
	}

	got := prod.keys()
	for _, k := range []string{"half", "usdc"} {
		if !got[k] {
			t.Errorf("%s not published", k)
		}
	}
	for _, k := range []string{"tiny", "edge"} {
		if got[k] {
			t.Errorf("%s should be filtered", k)
		}
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Errorf("printed %d lines, want 2", lines)
	}
}

func TestPublishBatchPayload(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewPublisher(PublisherConfig{MinNativeAmount: 0.1}, prod, nil, nil)
	pub.PublishBatch(context.Background(), []model.Transfer{sol("sigA", 0.5)})

	if len(prod.sent) != 1 {
		t.Fatalf("sent = %d", len(prod.sent))
	}
	var m map[string]any
	if err := json.Unmarshal(prod.sent[0].value, &m); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"signature", "from_account", "to_account", "amount", "symbol", "timestamp", "block_slot"} {
		if _, ok := m[k]; !ok {
			t.Errorf("payload missing %q: %s", k, prod.sent[0].value)
		}
	}
	if m["amount"].(float64) != 0.5 || m["symbol"] != "SOL" {
		t.Errorf("payload = %s", prod.sent[0].value)
	}
}

func TestPublishFailuresAreIsolated(t *testing.T) {
	prod := &fakeProducer{
		fail:  map[string]bool{"bad": true},
		stall: map[string]bool{"slow": true},
	}
	pub := NewPublisher(PublisherConfig{MinNativeAmount: 0.1, Timeout: 20 * time.Millisecond}, prod, nil, nil)

	start := time.Now()
	n := pub.PublishBatch(context.Background(), []model.Transfer{
		sol("ok1", 1), sol("bad", 1), sol("slow", 1), sol("ok2", 1),
	})
	if n != 2 {
		t.Errorf("acked = %d, want 2", n)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("batch took %v; timeout not applied", elapsed)
	}
	got := prod.keys()
	if !got["ok1"] || !got["ok2"] {
		t.Errorf("healthy records not published: %v", got)
	}
}

func TestFormatLine(t *testing.T) {
	tests := []struct {
		in   model.Transfer
		want string
	}{
		{
			model.Transfer{
				Signature:   "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",
				FromAccount: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
				ToAccount:   "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
				Amount:      0.5,
				Symbol:      "SOL",
			},
			"💰 0.500000000 SOL from 7xKXtg...gAsU -> 9WzDXw...AWWM | Tx: 5VERv8NM...kQUW",
		},
		{
			model.Transfer{Signature: "shortsig", FromAccount: "A", ToAccount: "0123456789", Amount: 2.5, Symbol: "USDC"},
			"🔄 2.500000 USDC from A -> 0123456789 | Tx: shortsig",
		},
	}
	for _, tt := range tests {
		if got := FormatLine(tt.in); got != tt.want {
			t.Errorf("FormatLine() =\n  %q\nwant\n  %q", got, tt.want)
		}
	}
}

func TestKafkaProducerSend(t *testing.T) {
	mp := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "solana" {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "sig1" {
			return errors.New("wrong key " + string(key))
		}
		return nil
	})
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaProducerFrom(mp, "solana")
	if err := p.Send(context.Background(), "sig1", []byte(`{}`)); err != nil {
		t.Errorf("first send: %v", err)
	}
	if err := p.Send(context.Background(), "sig2", []byte(`{}`)); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("second send err = %v, want ErrOutOfBrokers", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestSaramaConfig(t *testing.T) {
	cfg := NewSaramaConfig()
	if cfg.Producer.RequiredAcks != sarama.WaitForLocal {
		t.Errorf("acks = %v", cfg.Producer.RequiredAcks)
	}
	if cfg.Producer.Compression != sarama.CompressionLZ4 {
		t.Errorf("compression = %v", cfg.Producer.Compression)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config invalid: %v", err)
	}
}
