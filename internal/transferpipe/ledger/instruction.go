package ledger

import (
	"bytes"
	"encoding/json"
)

// Instruction is one top-level or inner instruction. Parsed is nil when the
// node could not decode it (partially decoded or compiled form); those are
// never re-parsed here.
type Instruction struct {
	ProgramID   string
	Program     string
	StackHeight *int
	Parsed      *Parsed
}

// Parsed is the decoded body of a jsonParsed instruction. Type is empty when
// the node returned a non-object payload (e.g. memo text) or no type tag.
type Parsed struct {
	Type string
	Info map[string]json.RawMessage
}

// UnmarshalJSON never fails on shape problems: an instruction it cannot make
// sense of decodes as unparsed so one odd instruction cannot sink its block.
func (ix *Instruction) UnmarshalJSON(data []byte) error {
	*ix = Instruction{}
	var w struct {
		ProgramID   string          `json:"programId"`
		Program     string          `json:"program"`
		Parsed      json.RawMessage `json:"parsed"`
		StackHeight *int            `json:"stackHeight"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil
	}
	ix.ProgramID = w.ProgramID
	ix.Program = w.Program
	ix.StackHeight = w.StackHeight

	body := bytes.TrimSpace(w.Parsed)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}
	ix.Parsed = &Parsed{}
	if !isObject(body) {
		return nil
	}
	var p struct {
		Type json.RawMessage `json:"type"`
		Info json.RawMessage `json:"info"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil
	}
	var typ string
	if json.Unmarshal(p.Type, &typ) == nil {
		ix.Parsed.Type = typ
	}
	if isObject(p.Info) {
		var info map[string]json.RawMessage
		if json.Unmarshal(p.Info, &info) == nil {
			ix.Parsed.Info = info
		}
	}
	return nil
}

// MarshalJSON writes the jsonParsed shape back out; used by the mock ledger
// and tests.
func (ix Instruction) MarshalJSON() ([]byte, error) {
	type parsed struct {
		Type string                     `json:"type"`
		Info map[string]json.RawMessage `json:"info"`
	}
	w := struct {
		Program     string  `json:"program,omitempty"`
		ProgramID   string  `json:"programId"`
		Parsed      *parsed `json:"parsed,omitempty"`
		StackHeight *int    `json:"stackHeight"`
	}{
		Program:     ix.Program,
		ProgramID:   ix.ProgramID,
		StackHeight: ix.StackHeight,
	}
	if ix.Parsed != nil {
		w.Parsed = &parsed{Type: ix.Parsed.Type, Info: ix.Parsed.Info}
	}
	return json.Marshal(w)
}

// Str returns info[key] when it is a JSON string.
func (p *Parsed) Str(key string) (string, bool) {
	raw, ok := p.Info[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Object returns info[key] decoded as an object.
func (p *Parsed) Object(key string) (map[string]json.RawMessage, bool) {
	raw, ok := p.Info[key]
	if !ok || !isObject(raw) {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

// Uint returns info[key] when it is a non-negative JSON integer.
func (p *Parsed) Uint(key string) (uint64, bool) {
	raw, ok := p.Info[key]
	if !ok {
		return 0, false
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}
