package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/registry"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Ingest.BatchWidth != 20 || cfg.Ingest.Concurrency != 20 {
		t.Errorf("ingest defaults = %+v", cfg.Ingest)
	}
	if cfg.Kafka.Topic != "solana" || cfg.Publish.MinNativeAmount != 0.1 {
		t.Errorf("publish defaults = %+v / %+v", cfg.Kafka, cfg.Publish)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := `
source:
  rpc_url: http://localhost:8899
  retry_delay: 50ms
ingest:
  concurrency: 4
kafka:
  brokers: [k1:9092, k2:9092]
tokens:
  - mint: JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN
    symbol: JUP
    decimals: 6
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.RPCURL != "http://localhost:8899" || cfg.Source.RetryDelay != 50*time.Millisecond {
		t.Errorf("source = %+v", cfg.Source)
	}
	if cfg.Source.Commitment != "confirmed" {
		t.Errorf("unset field lost its default: %q", cfg.Source.Commitment)
	}
	if cfg.Ingest.Concurrency != 4 || cfg.Ingest.BatchWidth != 20 {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if len(cfg.Tokens) != 1 || cfg.Tokens[0].Symbol != "JUP" || cfg.Tokens[0].Decimals != 6 {
		t.Errorf("tokens = %+v", cfg.Tokens)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(""); err != nil {
		t.Errorf("empty path: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvRPCURL:      "http://rpc:8899",
		EnvBrokers:     "a:9092,b:9092",
		EnvConcurrency: "7",
		EnvAdminAddr:   "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Source.RPCURL != "http://rpc:8899" || cfg.Ingest.Concurrency != 7 {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Admin.Addr != "" {
		t.Errorf("empty admin addr should disable the server, got %q", cfg.Admin.Addr)
	}

	env[EnvConcurrency] = "many"
	if err := cfg.ApplyEnv(lookup); !errors.Is(err, ErrInvalid) {
		t.Errorf("bad concurrency err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"no rpc", func(c *Config) { c.Source.RPCURL = "" }},
		{"bad commitment", func(c *Config) { c.Source.Commitment = "recent" }},
		{"no brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"no topic", func(c *Config) { c.Kafka.Topic = "" }},
		{"zero width", func(c *Config) { c.Ingest.BatchWidth = 0 }},
		{"zero concurrency", func(c *Config) { c.Ingest.Concurrency = 0 }},
		{"zero timeout", func(c *Config) { c.Publish.Timeout = 0 }},
		{"token without mint", func(c *Config) { c.Tokens = append(c.Tokens, registry.Token{Symbol: "X"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mod(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a:9092, ,b:9092 ")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("SplitList = %v", got)
	}
}
