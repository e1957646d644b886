package hash

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Builder builds a canonical byte sequence then hashes it.
//
// Encoding rules:
//   - Fixed-width integers: big-endian
//   - Bytes/string: u32(len) big-endian + bytes
//
// Equal inputs always give equal digests, which is what the mock ledger
// relies on to derive stable keys, block hashes and signatures from a seed.
type Builder struct {
	b []byte
}

func NewBuilder() *Builder { return &Builder{b: make([]byte, 0, 128)} }

func (d *Builder) Reset() { d.b = d.b[:0] }

func (d *Builder) Bytes() []byte { return append([]byte(nil), d.b...) }

func (d *Builder) PutU64(v uint64) *Builder {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	d.b = append(d.b, buf[:]...)
	return d
}

func (d *Builder) PutI64(v int64) *Builder { return d.PutU64(uint64(v)) }

// PutBytes appends: u32(len) + bytes
func (d *Builder) PutBytes(p []byte) *Builder {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(p)))
	d.b = append(d.b, buf[:]...)
	d.b = append(d.b, p...)
	return d
}

func (d *Builder) PutString(s string) *Builder { return d.PutBytes([]byte(s)) }

// Sum32 is sha256 over the buffer.
func (d *Builder) Sum32() Hash32 {
	return sha256.Sum256(d.b)
}

// Sum64 is sha512 over the buffer; sized for a transaction signature.
func (d *Builder) Sum64() [64]byte {
	return sha512.Sum512(d.b)
}

// PublicKey interprets Sum32 as an account address.
func (d *Builder) PublicKey() solana.PublicKey {
	h := d.Sum32()
	return solana.PublicKeyFromBytes(h[:])
}

// Signature interprets Sum64 as a transaction signature.
func (d *Builder) Signature() solana.Signature {
	s := d.Sum64()
	return solana.SignatureFromBytes(s[:])
}

// Convenience helpers

func SumU64(vals ...uint64) Hash32 {
	b := NewBuilder()
	for _, v := range vals {
		b.PutU64(v)
	}
	return b.Sum32()
}
