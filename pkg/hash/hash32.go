package hash

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Hash32 is a 32-byte digest rendered in base58, the way the ledger prints
// block hashes.
type Hash32 [32]byte

var (
	ErrInvalidLen   = errors.New("invalid hash length")
	ErrEmptyHashStr = errors.New("empty hash string")
)

func (h Hash32) String() string {
	return solana.Hash(h).String()
}

func (h Hash32) IsZero() bool {
	var z Hash32
	return h == z
}

func Parse(s string) (Hash32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Hash32{}, ErrEmptyHashStr
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return Hash32{}, fmt.Errorf("%w: %v", ErrInvalidLen, err)
	}
	return Hash32(pk), nil
}

func (h Hash32) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash32) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
