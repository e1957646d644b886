package model

// Transfer is one value movement extracted from a confirmed block. It is the
// record published to Kafka and persisted by the writer.
type Transfer struct {
	Signature   string  `json:"signature"`
	FromAccount string  `json:"from_account"`
	ToAccount   string  `json:"to_account"`
	Amount      float64 `json:"amount"`
	Symbol      string  `json:"symbol"`
	Timestamp   int64   `json:"timestamp"` // unix seconds, ingestion time
	BlockSlot   uint64  `json:"block_slot"`
}
