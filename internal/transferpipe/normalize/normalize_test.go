package normalize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/ledger"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/registry"
)

const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	busdMint = "33fsBLA8djQm82RpHmE3SuVrPGtZBWNYExsEUeKX1HXX"
)

func ix(t *testing.T, src string) ledger.Instruction {
	t.Helper()
	var out ledger.Instruction
	if err := json.Unmarshal([]byte(src), &out); err != nil {
		t.Fatalf("decode instruction: %v", err)
	}
	return out
}

var txc = TxContext{Signature: "sigX", Slot: 321, Timestamp: 1700000000}

func TestNormalize(t *testing.T) {
	reg := registry.Default()

	tests := []struct {
		name   string
		ix     string
		ok     bool
		from   string
		to     string
		amount float64
		symbol string
	}{
		{
			name: "system transfer",
			ix: `{"program":"system","programId":"11111111111111111111111111111111",
				"parsed":{"type":"transfer","info":{"source":"A","destination":"B","lamports":500000000}}}`,
			ok: true, from: "A", to: "B", amount: 0.5, symbol: "SOL",
		},
		{
			name: "system transfer missing lamports",
			ix: `{"programId":"11111111111111111111111111111111",
				"parsed":{"type":"transfer","info":{"source":"A","destination":"B"}}}`,
		},
		{
			name: "system transfer missing source",
			ix: `{"programId":"11111111111111111111111111111111",
				"parsed":{"type":"transfer","info":{"destination":"B","lamports":1}}}`,
		},
		{
			name: "system transfer lamports as string",
			ix: `{"programId":"11111111111111111111111111111111",
				"parsed":{"type":"transfer","info":{"source":"A","destination":"B","lamports":"1"}}}`,
		},
		{
			name: "system createAccount",
			ix: `{"programId":"11111111111111111111111111111111",
				"parsed":{"type":"createAccount","info":{"source":"A","newAccount":"B","lamports":1}}}`,
		},
		{
			name: "transferChecked USDC",
			ix: `{"program":"spl-token","programId":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"parsed":{"type":"transferChecked","info":{"source":"S","mint":"` + usdcMint + `","destination":"D","authority":"Auth",
				"tokenAmount":{"amount":"2500000","decimals":6,"uiAmount":2.5,"uiAmountString":"2.5"}}}}`,
			ok: true, from: "Auth", to: "D", amount: 2.5, symbol: "USDC",
		},
		{
			name: "token-2022 transferChecked BUSD",
			ix: `{"programId":"TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb",
				"parsed":{"type":"transferChecked","info":{"source":"S","mint":"` + busdMint + `","destination":"D","authority":"Auth",
				"tokenAmount":{"amount":"123456789"}}}}`,
			ok: true, from: "Auth", to: "D", amount: 1.23456789, symbol: "BUSD",
		},
		{
			name: "multisig authority",
			ix: `{"programId":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"parsed":{"type":"transferChecked","info":{"source":"S","mint":"` + usdcMint + `","destination":"D",
				"multisigAuthority":"Multi","signers":["x","y"],"tokenAmount":{"amount":"1000000"}}}}`,
			ok: true, from: "Multi", to: "D", amount: 1, symbol: "USDC",
		},
		{
			name: "source fallback with direct amount",
			ix: `{"programId":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"parsed":{"type":"transferCheckedTransfer","info":{"source":"S","mint":"` + usdcMint + `","destination":"D","amount":"42"}}}`,
			ok: true, from: "S", to: "D", amount: 0.000042, symbol: "USDC",
		},
		{
			name: "unregistered mint",
			ix: `{"programId":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"parsed":{"type":"transferChecked","info":{"source":"S","mint":"Unknown111","destination":"D","authority":"A",
				"tokenAmount":{"amount":"1"}}}}`,
		},
		{
			name: "plain transfer has no mint",
			ix: `{"programId":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"parsed":{"type":"transfer","info":{"source":"S","destination":"D","authority":"A","amount":"10"}}}`,
		},
		{
			name: "non-integer amount",
			ix: `{"programId":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"parsed":{"type":"transferChecked","info":{"mint":"` + usdcMint + `","source":"S","destination":"D","tokenAmount":{"amount":"1.5"}}}}`,
		},
		{
			name: "numeric amount",
			ix: `{"programId":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"parsed":{"type":"transferChecked","info":{"mint":"` + usdcMint + `","source":"S","destination":"D","amount":10}}}`,
		},
		{
			name: "token mintTo",
			ix: `{"programId":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"parsed":{"type":"mintTo","info":{"mint":"` + usdcMint + `","account":"D","amount":"10"}}}`,
		},
		{
			name: "unknown program with transfer kind",
			ix: `{"programId":"Vote111111111111111111111111111111111111111",
				"parsed":{"type":"transfer","info":{"source":"A","destination":"B","lamports":5}}}`,
		},
		{
			name: "memo",
			ix:   `{"program":"spl-memo","programId":"MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr","parsed":"gm"}`,
		},
		{
			name: "partially decoded",
			ix:   `{"programId":"11111111111111111111111111111111","accounts":["A","B"],"data":"3Bxs4h24hBtQy9rw"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(reg, txc, ix(t, tt.ix))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (got %+v)", ok, tt.ok, got)
			}
			if !ok {
				return
			}
			if got.FromAccount != tt.from || got.ToAccount != tt.to || got.Symbol != tt.symbol {
				t.Errorf("got %+v, want %s -> %s %s", got, tt.from, tt.to, tt.symbol)
			}
			if math.Abs(got.Amount-tt.amount) > 1e-12 {
				t.Errorf("amount = %v, want %v", got.Amount, tt.amount)
			}
			if got.Signature != "sigX" || got.BlockSlot != 321 || got.Timestamp != 1700000000 {
				t.Errorf("context not stamped: %+v", got)
			}
		})
	}
}

func TestAuthorityWinsOverSource(t *testing.T) {
	reg := registry.Default()
	in := ix(t, `{"programId":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
		"parsed":{"type":"transferChecked","info":{"source":"S","destination":"D","authority":"Auth",
		"multisigAuthority":"Multi","mint":"`+usdcMint+`","tokenAmount":{"amount":"1"}}}}`)
	got, ok := Normalize(reg, txc, in)
	if !ok {
		t.Fatal("expected transfer")
	}
	if got.FromAccount != "Auth" || got.ToAccount != "D" {
		t.Errorf("counterparties = %s -> %s, want Auth -> D", got.FromAccount, got.ToAccount)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	reg := registry.Default()
	in := ix(t, `{"programId":"11111111111111111111111111111111",
		"parsed":{"type":"transfer","info":{"source":"A","destination":"B","lamports":123}}}`)
	a, okA := Normalize(reg, txc, in)
	b, okB := Normalize(reg, txc, in)
	if okA != okB || a != b {
		t.Errorf("not idempotent: %+v/%v vs %+v/%v", a, okA, b, okB)
	}
}

func TestClassifyKinds(t *testing.T) {
	reg := registry.Default()
	tests := []struct {
		src  string
		want Kind
	}{
		{`{"programIdIndex":2,"accounts":[0,1],"data":"x"}`, Raw},
		{`{"programId":"MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr","parsed":"gm"}`, Unrecognized},
		{`{"programId":"11111111111111111111111111111111","parsed":{"type":"transfer","info":{}}}`, Malformed},
		{`{"programId":"11111111111111111111111111111111","parsed":{"type":"transfer","info":{"source":"A","destination":"B","lamports":1}}}`, SystemTransfer},
		{`{"programId":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA","parsed":{"type":"transferChecked","info":{"mint":"` + usdcMint + `","source":"S","destination":"D","tokenAmount":{"amount":"1"}}}}`, TokenTransfer},
	}
	for _, tt := range tests {
		if got := Classify(reg, ix(t, tt.src)).Kind; got != tt.want {
			t.Errorf("Classify(%s) = %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		raw      uint64
		decimals uint8
		want     float64
	}{
		{500000000, 9, 0.5},
		{2500000, 6, 2.5},
		{0, 6, 0},
		{1, 0, 1},
		{math.MaxUint64, 9, 18446744073.709551615},
	}
	for _, tt := range tests {
		if got := Scale(tt.raw, tt.decimals); math.Abs(got-tt.want) > 1e-9*math.Max(1, tt.want) {
			t.Errorf("Scale(%d, %d) = %v, want %v", tt.raw, tt.decimals, got, tt.want)
		}
	}
}
