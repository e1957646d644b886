package normalize

import (
	"encoding/json"
	"strconv"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/ledger"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/registry"
)

type Kind int

const (
	// Raw: the node did not decode the instruction.
	Raw Kind = iota
	// Unrecognized: decoded, but not a transfer on a program we track.
	Unrecognized
	// Malformed: a tracked transfer kind whose info is missing required fields.
	Malformed
	SystemTransfer
	TokenTransfer
)

func (k Kind) String() string {
	switch k {
	case Raw:
		return "raw"
	case Unrecognized:
		return "unrecognized"
	case Malformed:
		return "malformed"
	case SystemTransfer:
		return "system_transfer"
	case TokenTransfer:
		return "token_transfer"
	default:
		return "unknown"
	}
}

// tokenTransferKinds are the SPL token instruction types that move balance.
var tokenTransferKinds = map[string]struct{}{
	"transfer":                {},
	"transferChecked":         {},
	"transferTransfer":        {},
	"transferCheckedTransfer": {},
}

type System struct {
	Source      string
	Destination string
	Lamports    uint64
}

// Token is a token-program transfer whose mint has already been checked
// against the registry. RawAmount is in base units.
type Token struct {
	Mint      string
	Asset     registry.Token
	From      string
	To        string
	RawAmount uint64
}

// Variant is one instruction reduced to what the normalizer acts on. Exactly
// one of System and Token is set, matching Kind.
type Variant struct {
	Kind   Kind
	System *System
	Token  *Token
}

// Classify decodes ix into its variant. It never fails; shapes it cannot use
// come back as Raw, Unrecognized or Malformed.
func Classify(reg *registry.Registry, ix ledger.Instruction) Variant {
	p := ix.Parsed
	if p == nil {
		return Variant{Kind: Raw}
	}

	switch {
	case reg.IsSystemProgram(ix.ProgramID) && p.Type == "transfer":
		return classifySystem(p)
	case reg.IsTokenProgram(ix.ProgramID) && isTokenTransfer(p.Type):
		return classifyToken(reg, p)
	}
	return Variant{Kind: Unrecognized}
}

func isTokenTransfer(typ string) bool {
	_, ok := tokenTransferKinds[typ]
	return ok
}

func classifySystem(p *ledger.Parsed) Variant {
	src, ok1 := p.Str("source")
	dst, ok2 := p.Str("destination")
	lamports, ok3 := p.Uint("lamports")
	if !ok1 || !ok2 || !ok3 {
		return Variant{Kind: Malformed}
	}
	return Variant{Kind: SystemTransfer, System: &System{Source: src, Destination: dst, Lamports: lamports}}
}

func classifyToken(reg *registry.Registry, p *ledger.Parsed) Variant {
	mint, ok := p.Str("mint")
	if !ok {
		// plain "transfer" carries no mint; we cannot price it
		return Variant{Kind: Malformed}
	}
	asset, ok := reg.Token(mint)
	if !ok {
		return Variant{Kind: Unrecognized}
	}
	from, to, ok := counterparties(p)
	if !ok {
		return Variant{Kind: Malformed}
	}
	amount, ok := rawAmount(p)
	if !ok {
		return Variant{Kind: Malformed}
	}
	return Variant{Kind: TokenTransfer, Token: &Token{
		Mint:      mint,
		Asset:     asset,
		From:      from,
		To:        to,
		RawAmount: amount,
	}}
}

// counterparties picks (from, to), first match wins:
// authority+destination, multisigAuthority+destination, source+destination.
func counterparties(p *ledger.Parsed) (string, string, bool) {
	dst, hasDst := p.Str("destination")
	if !hasDst {
		return "", "", false
	}
	for _, key := range []string{"authority", "multisigAuthority", "source"} {
		if from, ok := p.Str(key); ok {
			return from, dst, true
		}
	}
	return "", "", false
}

// rawAmount reads "amount", falling back to "tokenAmount.amount". Both are
// decimal strings in base units.
func rawAmount(p *ledger.Parsed) (uint64, bool) {
	s, ok := p.Str("amount")
	if !ok {
		ta, ok := p.Object("tokenAmount")
		if !ok {
			return 0, false
		}
		if err := json.Unmarshal(ta["amount"], &s); err != nil {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
