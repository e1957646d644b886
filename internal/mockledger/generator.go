package mockledger

import (
	"encoding/json"
	"math/rand"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/ledger"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/registry"
	"github.com/chenzhangda16/sol-transferpipe/pkg/hash"
	"github.com/chenzhangda16/sol-transferpipe/pkg/rng"
)

const (
	memoProgram    = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"
	computeBudget  = "ComputeBudget111111111111111111111111111111"
	swapProgram    = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
	lamportsPerSOL = 1_000_000_000
)

// GenConfig shapes the generated traffic.
type GenConfig struct {
	Accounts    int     // size of the address pool
	MinTxs      int     // per block
	MaxTxs      int     // per block
	SkipRate    float64 // probability a slot is skipped
	FailureRate float64 // probability a transaction fails
}

func (c GenConfig) withDefaults() GenConfig {
	if c.Accounts <= 1 {
		c.Accounts = 64
	}
	if c.MinTxs <= 0 {
		c.MinTxs = 5
	}
	if c.MaxTxs < c.MinTxs {
		c.MaxTxs = c.MinTxs + 20
	}
	return c
}

// Generator produces jsonParsed blocks. Every draw comes from a named rng
// stream and every identifier from a hash of its position, so a seed fixes
// the whole chain.
type Generator struct {
	cfg    GenConfig
	addrs  []string
	tokens []registry.Token

	rCount, rKind, rPayer, rPayee, rLamports, rToken, rUnits, rSkip, rFail *rand.Rand
}

func NewGenerator(cfg GenConfig, rf *rng.Factory) *Generator {
	cfg = cfg.withDefaults()
	addrs := make([]string, cfg.Accounts)
	for i := range addrs {
		addrs[i] = hash.NewBuilder().
			PutString("account").
			PutI64(rf.Seed()).
			PutU64(uint64(i)).
			PublicKey().String()
	}
	return &Generator{
		cfg:       cfg,
		addrs:     addrs,
		tokens:    registry.DefaultTokens,
		rCount:    rf.R(rng.TxCount),
		rKind:     rf.R(rng.TxKind),
		rPayer:    rf.R(rng.Payer),
		rPayee:    rf.R(rng.Payee),
		rLamports: rf.R(rng.Lamports),
		rToken:    rf.R(rng.TokenPick),
		rUnits:    rf.R(rng.TokenUnits),
		rSkip:     rf.R(rng.SkipSlot),
		rFail:     rf.R(rng.Failure),
	}
}

// Skip decides whether the next slot is skipped by its leader.
func (g *Generator) Skip() bool {
	return g.rSkip.Float64() < g.cfg.SkipRate
}

// Block builds the block for slot on top of parent.
func (g *Generator) Block(slot, parentSlot uint64, parentHash string, blockTime int64, height uint64) *ledger.Block {
	n := g.cfg.MinTxs + g.rCount.Intn(g.cfg.MaxTxs-g.cfg.MinTxs+1)
	txs := make([]ledger.TransactionWithMeta, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, g.tx(slot, i))
	}

	bh := hash.NewBuilder().PutString("block").PutU64(slot).PutString(parentHash).Sum32()
	return &ledger.Block{
		Blockhash:         bh.String(),
		PreviousBlockhash: parentHash,
		ParentSlot:        parentSlot,
		BlockTime:         &blockTime,
		BlockHeight:       &height,
		Transactions:      txs,
	}
}

func (g *Generator) tx(slot uint64, idx int) ledger.TransactionWithMeta {
	payer := g.pick(g.rPayer)
	payee := g.pick(g.rPayee)
	for payee == payer {
		payee = g.pick(g.rPayee)
	}

	var (
		top   []ledger.Instruction
		inner []ledger.InnerInstructions
	)
	top = append(top, computeBudgetIx())

	switch p := g.rKind.Float64(); {
	case p < 0.40:
		top = append(top, g.systemTransfer(payer, payee, 1))
	case p < 0.70:
		top = append(top, g.tokenTransfer(payer, payee, 1))
	case p < 0.85:
		// a program that moves funds through CPI: transfers appear only as inner instructions
		top = append(top, rawIx(swapProgram))
		inner = append(inner, ledger.InnerInstructions{
			Index: len(top) - 1,
			Instructions: []ledger.Instruction{
				g.tokenTransfer(payer, payee, 2),
				g.systemTransfer(payee, payer, 2),
			},
		})
	default:
		top = append(top, memoIx(), g.systemTransfer(payer, payee, 1))
	}

	sig := hash.NewBuilder().PutString("tx").PutU64(slot).PutI64(int64(idx)).Signature().String()
	meta := &ledger.Meta{Fee: 5000, InnerInstructions: inner}
	if g.rFail.Float64() < g.cfg.FailureRate {
		meta.Err = json.RawMessage(`{"InstructionError":[1,{"Custom":1}]}`)
	} else {
		meta.Err = json.RawMessage(`null`)
	}
	if meta.InnerInstructions == nil {
		meta.InnerInstructions = []ledger.InnerInstructions{}
	}

	return ledger.TransactionWithMeta{
		Transaction: ledger.Transaction{
			JSON:       true,
			Signatures: []string{sig},
			Message: ledger.Message{
				Parsed: true,
				AccountKeys: []ledger.AccountKey{
					{Pubkey: payer, Signer: true, Writable: true, Source: "transaction"},
					{Pubkey: payee, Writable: true, Source: "transaction"},
					{Pubkey: registry.SystemProgram, Source: "transaction"},
				},
				Instructions: top,
			},
		},
		Meta: meta,
	}
}

func (g *Generator) pick(r *rand.Rand) string {
	return g.addrs[r.Intn(len(g.addrs))]
}

// systemTransfer draws between 0.001 and ~2 SOL so both sides of the publish
// threshold show up.
func (g *Generator) systemTransfer(from, to string, stack int) ledger.Instruction {
	lamports := uint64(1_000_000 + g.rLamports.Int63n(2*lamportsPerSOL))
	return parsedIx(registry.SystemProgram, "system", "transfer", stack, map[string]any{
		"source":      from,
		"destination": to,
		"lamports":    lamports,
	})
}

func (g *Generator) tokenTransfer(owner, to string, stack int) ledger.Instruction {
	tok := g.tokens[g.rToken.Intn(len(g.tokens))]
	units := uint64(1 + g.rUnits.Int63n(5000))
	raw := units
	for i := uint8(0); i < tok.Decimals; i++ {
		raw *= 10
	}
	raw /= 100 // two decimal places of display precision
	ui := decimal.New(int64(raw), -int32(tok.Decimals))

	program := registry.TokenProgram
	if g.rToken.Intn(4) == 0 {
		program = registry.Token2022Program
	}

	info := map[string]any{
		"source":      tokenAccount(owner, tok.Mint),
		"mint":        tok.Mint,
		"destination": tokenAccount(to, tok.Mint),
		"tokenAmount": map[string]any{
			"amount":         strconv.FormatUint(raw, 10),
			"decimals":       tok.Decimals,
			"uiAmount":       ui.InexactFloat64(),
			"uiAmountString": ui.String(),
		},
	}
	if g.rUnits.Intn(10) == 0 {
		info["multisigAuthority"] = owner
		info["signers"] = []string{owner}
	} else {
		info["authority"] = owner
	}
	return parsedIx(program, "spl-token", "transferChecked", stack, info)
}

// tokenAccount derives a stable associated-token-account-like address.
func tokenAccount(owner, mint string) string {
	return hash.NewBuilder().PutString("ata").PutString(owner).PutString(mint).PublicKey().String()
}

func parsedIx(programID, program, typ string, stack int, info map[string]any) ledger.Instruction {
	fields := make(map[string]json.RawMessage, len(info))
	for k, v := range info {
		b, _ := json.Marshal(v)
		fields[k] = b
	}
	h := stack
	return ledger.Instruction{
		ProgramID:   programID,
		Program:     program,
		StackHeight: &h,
		Parsed:      &ledger.Parsed{Type: typ, Info: fields},
	}
}

func computeBudgetIx() ledger.Instruction {
	return parsedIx(computeBudget, "compute-budget", "setComputeUnitLimit", 1, map[string]any{"units": 200000})
}

// memoIx decodes to a typeless parsed body, as memo text does.
func memoIx() ledger.Instruction {
	h := 1
	return ledger.Instruction{ProgramID: memoProgram, Program: "spl-memo", StackHeight: &h, Parsed: &ledger.Parsed{}}
}

func rawIx(programID string) ledger.Instruction {
	h := 1
	return ledger.Instruction{ProgramID: programID, StackHeight: &h}
}
