package out

import (
	"fmt"
	"io"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/model"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/registry"
)

const (
	nativePlaces = 9
	tokenPlaces  = 6
)

// Printer writes one human-readable line per transfer. Lines from concurrent
// publishers never interleave.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrinter(w io.Writer) *Printer { return &Printer{w: w} }

func (p *Printer) Print(t model.Transfer) {
	line := FormatLine(t)
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, line)
}

// FormatLine renders e.g.
//
//	💰 0.500000000 SOL from 7xKXtg...gAsU -> 9WzDXw...AWWM | Tx: 5VERv8NM...Tz3j
func FormatLine(t model.Transfer) string {
	glyph, places := "🔄", int32(tokenPlaces)
	if t.Symbol == registry.NativeSymbol {
		glyph, places = "💰", nativePlaces
	}
	amount := decimal.NewFromFloat(t.Amount).StringFixed(places)
	return fmt.Sprintf("%s %s %s from %s -> %s | Tx: %s",
		glyph, amount, t.Symbol,
		ShortAddress(t.FromAccount), ShortAddress(t.ToAccount),
		ShortSignature(t.Signature))
}

func ShortAddress(a string) string {
	if len(a) > 10 {
		return a[:6] + "..." + a[len(a)-4:]
	}
	return a
}

func ShortSignature(s string) string {
	if len(s) > 12 {
		return s[:8] + "..." + s[len(s)-4:]
	}
	return s
}
