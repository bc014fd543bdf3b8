package ledger

import (
	"fmt"

	"github.com/relves/fraledger/pkg/hashing"
	"github.com/relves/fraledger/pkg/types"
)

// TransactionProof shows that a transaction hash is committed by its block's
// Merkle root.
type TransactionProof struct {
	TransactionID string   `json:"transactionId"`
	BlockIndex    uint64   `json:"blockIndex"`
	Position      int      `json:"position"`
	Hash          string   `json:"hash"`
	Siblings      []string `json:"siblings"`
	MerkleRoot    string   `json:"merkleRoot"`
}

// NewTransactionProof builds the sibling path for transaction txID in block.
func NewTransactionProof(engine *hashing.Engine, block *types.Block, txID string) (*TransactionProof, error) {
	pos := -1
	for i, tx := range block.Transactions {
		if tx.ID == txID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, fmt.Errorf("transaction %s in block %d: %w", txID, block.Index, types.ErrNotFound)
	}

	siblings, err := engine.MerkleProof(transactionHashes(block.Transactions), pos)
	if err != nil {
		return nil, err
	}
	return &TransactionProof{
		TransactionID: txID,
		BlockIndex:    block.Index,
		Position:      pos,
		Hash:          block.Transactions[pos].Hash,
		Siblings:      siblings,
		MerkleRoot:    block.MerkleRoot,
	}, nil
}

// Verify recomputes the Merkle root from the proof.
func (p *TransactionProof) Verify(engine *hashing.Engine) bool {
	return engine.VerifyMerkleProof(p.Hash, p.Position, p.Siblings, p.MerkleRoot)
}
