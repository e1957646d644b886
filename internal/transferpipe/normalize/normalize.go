package normalize

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/ledger"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/model"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/registry"
)

// TxContext is what a transaction contributes to each of its records.
type TxContext struct {
	Signature string
	Slot      uint64
	Timestamp int64
}

// Normalize turns one instruction into a Transfer, or reports false when the
// instruction is not a tracked transfer. Counterparties come from the parsed
// instruction info, never from the transaction's account list. It is pure and
// safe to call concurrently with a shared registry.
func Normalize(reg *registry.Registry, tx TxContext, ix ledger.Instruction) (model.Transfer, bool) {
	return Build(tx, Classify(reg, ix))
}

// Build turns an already classified instruction into a Transfer.
func Build(tx TxContext, v Variant) (model.Transfer, bool) {
	switch v.Kind {
	case SystemTransfer:
		return model.Transfer{
			Signature:   tx.Signature,
			FromAccount: v.System.Source,
			ToAccount:   v.System.Destination,
			Amount:      Scale(v.System.Lamports, registry.NativeDecimals),
			Symbol:      registry.NativeSymbol,
			Timestamp:   tx.Timestamp,
			BlockSlot:   tx.Slot,
		}, true
	case TokenTransfer:
		return model.Transfer{
			Signature:   tx.Signature,
			FromAccount: v.Token.From,
			ToAccount:   v.Token.To,
			Amount:      Scale(v.Token.RawAmount, v.Token.Asset.Decimals),
			Symbol:      v.Token.Asset.Symbol,
			Timestamp:   tx.Timestamp,
			BlockSlot:   tx.Slot,
		}, true
	case Raw, Unrecognized, Malformed:
		return model.Transfer{}, false
	}
	return model.Transfer{}, false
}

// Scale returns raw / 10^decimals. Values above 2^53 lose precision in the
// float64 result.
func Scale(raw uint64, decimals uint8) float64 {
	f, _ := decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals)).Float64()
	return f
}
