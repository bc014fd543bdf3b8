package ledger

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/transparency-dev/merkle/compact"
	"github.com/transparency-dev/merkle/proof"
	"github.com/transparency-dev/merkle/rfc6962"

	"github.com/relves/fraledger/pkg/types"
)

// Checkpoint commits to the first Size blocks of a chain through an RFC 6962
// Merkle tree whose leaves are the block hashes.
type Checkpoint struct {
	Origin    string    `json:"origin"`
	Size      uint64    `json:"size"`
	RootHash  []byte    `json:"rootHash"`
	KeyHash   uint32    `json:"keyHash"`
	Signature []byte    `json:"signature"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// Body returns the signed text: origin, size and base64 root, one per line.
func (c *Checkpoint) Body() []byte {
	return fmt.Appendf(nil, "%s\n%d\n%s\n", c.Origin, c.Size, base64.StdEncoding.EncodeToString(c.RootHash))
}

// Verify checks the checkpoint signature against pub.
func (c *Checkpoint) Verify(pub ed25519.PublicKey) bool {
	return len(pub) == ed25519.PublicKeySize && ed25519.Verify(pub, c.Body(), c.Signature)
}

// InclusionProof proves that a block is committed by a checkpoint of TreeSize.
type InclusionProof struct {
	Index     uint64   `json:"index"`
	TreeSize  uint64   `json:"treeSize"`
	LeafHash  []byte   `json:"leafHash"`
	RootHash  []byte   `json:"rootHash"`
	Hashes    [][]byte `json:"hashes"`
	BlockHash string   `json:"blockHash"`
}

// LeafHash is the RFC 6962 leaf hash of a block.
func LeafHash(b *types.Block) []byte {
	return rfc6962.DefaultHasher.HashLeaf([]byte(b.Hash))
}

// TreeRoot returns the RFC 6962 root over the hashes of blocks.
func TreeRoot(blocks []*types.Block) ([]byte, error) {
	if len(blocks) == 0 {
		return rfc6962.DefaultHasher.EmptyRoot(), nil
	}
	return rangeRoot(leafHashes(blocks))
}

// NewCheckpoint builds and signs a checkpoint over blocks.
func NewCheckpoint(blocks []*types.Block, origin string, signer Signer) (*Checkpoint, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: checkpoint signer", types.ErrMissingInput)
	}
	if origin == "" {
		origin = signer.Name()
	}
	root, err := TreeRoot(blocks)
	if err != nil {
		return nil, err
	}

	cp := &Checkpoint{
		Origin:   origin,
		Size:     uint64(len(blocks)),
		RootHash: root,
		KeyHash:  signer.KeyHash(),
		IssuedAt: time.Now().UTC(),
	}
	sig, err := signer.Sign(cp.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to sign checkpoint: %w", err)
	}
	cp.Signature = sig
	return cp, nil
}

// NewInclusionProof proves block index is part of the tree over blocks.
func NewInclusionProof(blocks []*types.Block, index uint64) (*InclusionProof, error) {
	size := uint64(len(blocks))
	if index >= size {
		return nil, fmt.Errorf("block %d: %w", index, types.ErrNotFound)
	}

	leaves := leafHashes(blocks)
	nodes, err := proof.Inclusion(index, size)
	if err != nil {
		return nil, fmt.Errorf("failed to plan inclusion proof: %w", err)
	}

	hashes := make([][]byte, 0, len(nodes.IDs))
	for _, id := range nodes.IDs {
		begin := id.Index << id.Level
		end := (id.Index + 1) << id.Level
		if end > size {
			return nil, fmt.Errorf("node [%d/%d] exceeds tree size %d", id.Level, id.Index, size)
		}
		h, err := rangeRoot(leaves[begin:end])
		if err != nil {
			return nil, fmt.Errorf("failed to compute node [%d/%d]: %w", id.Level, id.Index, err)
		}
		hashes = append(hashes, h)
	}

	path, err := nodes.Rehash(hashes, rfc6962.DefaultHasher.HashChildren)
	if err != nil {
		return nil, fmt.Errorf("failed to rehash inclusion proof: %w", err)
	}
	root, err := rangeRoot(leaves)
	if err != nil {
		return nil, err
	}

	return &InclusionProof{
		Index:     index,
		TreeSize:  size,
		LeafHash:  leaves[index],
		RootHash:  root,
		Hashes:    path,
		BlockHash: blocks[index].Hash,
	}, nil
}

// VerifyInclusion checks p against a checkpoint root.
func VerifyInclusion(p *InclusionProof, root []byte) error {
	if p == nil {
		return fmt.Errorf("%w: inclusion proof", types.ErrMissingInput)
	}
	leaf := rfc6962.DefaultHasher.HashLeaf([]byte(p.BlockHash))
	if err := proof.VerifyInclusion(rfc6962.DefaultHasher, p.Index, p.TreeSize, leaf, p.Hashes, root); err != nil {
		return fmt.Errorf("%w: %v", types.NewChainIntegrityError(p.Index, "inclusion proof does not verify"), err)
	}
	return nil
}

func leafHashes(blocks []*types.Block) [][]byte {
	leaves := make([][]byte, len(blocks))
	for i, b := range blocks {
		leaves[i] = LeafHash(b)
	}
	return leaves
}

func rangeRoot(leaves [][]byte) ([]byte, error) {
	rf := &compact.RangeFactory{Hash: rfc6962.DefaultHasher.HashChildren}
	r := rf.NewEmptyRange(0)
	for _, leaf := range leaves {
		if err := r.Append(leaf, nil); err != nil {
			return nil, err
		}
	}
	return r.GetRootHash(nil)
}
