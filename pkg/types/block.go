package types

import (
	"encoding/json"
	"time"
)

// GenesisPreviousHash is the sentinel previous hash of block 0.
const GenesisPreviousHash = "0"

// TransactionType defines what a ledger transaction anchors.
type TransactionType string

const (
	TxDocumentVerification TransactionType = "DOCUMENT_VERIFICATION"
	TxClaimRegistration    TransactionType = "CLAIM_REGISTRATION"
	TxClaimStatusUpdate    TransactionType = "CLAIM_STATUS_UPDATE"
)

// Transaction is the ledger form of a registry event.
type Transaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	RequestID   string          `json:"requestId"`
	Hash        string          `json:"hash"`
	SubmitterID string          `json:"submitterId,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Block is a sealed, hash-linked batch of transactions.
type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    time.Time     `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previousHash"`
	MerkleRoot   string        `json:"merkleRoot,omitempty"`
	Hash         string        `json:"hash"`
}

// IsGenesis reports whether b is the chain's first block.
func (b *Block) IsGenesis() bool {
	return b.Index == 0 && b.PreviousHash == GenesisPreviousHash
}

// Serialize converts a Block to JSON bytes for storage.
func (b *Block) Serialize() ([]byte, error) {
	return json.Marshal(b)
}

// Deserialize populates a Block from JSON bytes.
func (b *Block) Deserialize(data []byte) error {
	return json.Unmarshal(data, b)
}

// BlockSummary is a compact view of a block for health and listing output.
type BlockSummary struct {
	Index            uint64    `json:"index"`
	Hash             string    `json:"hash"`
	PreviousHash     string    `json:"previousHash"`
	Timestamp        time.Time `json:"timestamp"`
	TransactionCount int       `json:"transactionCount"`
}

// Summary returns the block's summary.
func (b *Block) Summary() BlockSummary {
	return BlockSummary{
		Index:            b.Index,
		Hash:             b.Hash,
		PreviousHash:     b.PreviousHash,
		Timestamp:        b.Timestamp,
		TransactionCount: len(b.Transactions),
	}
}
