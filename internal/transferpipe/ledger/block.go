package ledger

import (
	"bytes"
	"encoding/json"
)

// Block is a getBlock result requested with encoding=jsonParsed,
// transactionDetails=full and rewards=false.
type Block struct {
	Blockhash         string                `json:"blockhash"`
	PreviousBlockhash string                `json:"previousBlockhash"`
	ParentSlot        uint64                `json:"parentSlot"`
	BlockTime         *int64                `json:"blockTime"`
	BlockHeight       *uint64               `json:"blockHeight"`
	Transactions      []TransactionWithMeta `json:"transactions"`
}

type TransactionWithMeta struct {
	Transaction Transaction `json:"transaction"`
	Meta        *Meta       `json:"meta"`
}

// Transaction holds the JSON form of a transaction. Binary encodings
// (["<data>", "base64"]) decode with JSON == false.
type Transaction struct {
	JSON       bool
	Signatures []string
	Message    Message
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	*t = Transaction{}
	if !isObject(data) {
		return nil
	}
	var w struct {
		Signatures []string `json:"signatures"`
		Message    Message  `json:"message"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil
	}
	t.JSON = true
	t.Signatures = w.Signatures
	t.Message = w.Message
	return nil
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	if !t.JSON {
		return json.Marshal([]string{"", "base64"})
	}
	return json.Marshal(struct {
		Signatures []string `json:"signatures"`
		Message    Message  `json:"message"`
	}{t.Signatures, t.Message})
}

// Signature is the transaction id (first signature), or "" if absent.
func (t *Transaction) Signature() string {
	if len(t.Signatures) == 0 {
		return ""
	}
	return t.Signatures[0]
}

// Message is a transaction message. Parsed is true only for the jsonParsed
// shape, where account keys are objects rather than bare strings.
type Message struct {
	Parsed       bool
	AccountKeys  []AccountKey
	Instructions []Instruction
}

type AccountKey struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
	Source   string `json:"source,omitempty"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	*m = Message{}
	var w struct {
		AccountKeys  []json.RawMessage `json:"accountKeys"`
		Instructions []Instruction     `json:"instructions"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil
	}
	m.Instructions = w.Instructions
	m.Parsed = true
	keys := make([]AccountKey, 0, len(w.AccountKeys))
	for _, raw := range w.AccountKeys {
		var k AccountKey
		if !isObject(raw) || json.Unmarshal(raw, &k) != nil {
			m.Parsed = false
			continue
		}
		keys = append(keys, k)
	}
	m.AccountKeys = keys
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	keys := m.AccountKeys
	if keys == nil {
		keys = []AccountKey{}
	}
	ixs := m.Instructions
	if ixs == nil {
		ixs = []Instruction{}
	}
	return json.Marshal(struct {
		AccountKeys  []AccountKey  `json:"accountKeys"`
		Instructions []Instruction `json:"instructions"`
	}{keys, ixs})
}

type Meta struct {
	Err               json.RawMessage     `json:"err"`
	Fee               uint64              `json:"fee"`
	InnerInstructions []InnerInstructions `json:"innerInstructions"`
}

// Failed reports whether the transaction was committed with an error.
func (m *Meta) Failed() bool {
	return len(m.Err) > 0 && !bytes.Equal(bytes.TrimSpace(m.Err), []byte("null"))
}

// InnerInstructions are produced while executing the top-level instruction
// at Index.
type InnerInstructions struct {
	Index        int           `json:"index"`
	Instructions []Instruction `json:"instructions"`
}

func isObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}
