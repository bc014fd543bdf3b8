package sqlite

import (
	"context"
	"fmt"

	"github.com/relves/fraledger/internal/storage"
	"github.com/relves/fraledger/pkg/types"
)

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// AppendBlock stores a sealed block. Blocks are immutable, so an existing
// index is an error rather than an upsert.
func (s *Store) AppendBlock(ctx context.Context, block *types.Block) error {
	data, err := block.Serialize()
	if err != nil {
		return fmt.Errorf("serialize block: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO blocks (block_index, hash, data) VALUES (?, ?, ?)`,
		int64(block.Index), block.Hash, data)
	if err != nil {
		return fmt.Errorf("append block %d: %w", block.Index, err)
	}
	return nil
}

// Blocks returns the stored chain in index order.
func (s *Store) Blocks(ctx context.Context) ([]*types.Block, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM blocks ORDER BY block_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []*types.Block
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var b types.Block
		if err := b.Deserialize(data); err != nil {
			return nil, fmt.Errorf("decode block: %w", err)
		}
		blocks = append(blocks, &b)
	}
	return blocks, rows.Err()
}
