package hashing

import (
	"fmt"

	"github.com/relves/fraledger/pkg/types"
)

// MerkleRoot combines hex leaf hashes pairwise, level by level, as H(left+right).
// When a level has an odd number of nodes the last node is paired with itself,
// so MerkleRoot([a,b,c]) == H(H(a+b) + H(c+c)). A single leaf is its own root.
func (e *Engine) MerkleRoot(hashes []string) (string, error) {
	levels, err := e.merkleLevels(hashes)
	if err != nil {
		return "", err
	}
	return levels[len(levels)-1][0], nil
}

// MerkleProof returns the sibling hashes from the leaf at index up to the root.
// The odd trailing node's sibling is itself.
func (e *Engine) MerkleProof(hashes []string, index int) ([]string, error) {
	if index < 0 || index >= len(hashes) {
		return nil, fmt.Errorf("%w: leaf index %d out of range [0,%d)", types.ErrInvalidInput, index, len(hashes))
	}
	levels, err := e.merkleLevels(hashes)
	if err != nil {
		return nil, err
	}

	var siblings []string
	idx := index
	for _, row := range levels[:len(levels)-1] {
		sib := idx ^ 1
		if sib >= len(row) {
			sib = idx
		}
		siblings = append(siblings, row[sib])
		idx /= 2
	}
	return siblings, nil
}

// VerifyMerkleProof recomputes the root from a leaf, its index and its sibling path.
func (e *Engine) VerifyMerkleProof(leaf string, index int, siblings []string, root string) bool {
	if index < 0 {
		return false
	}
	current := leaf
	idx := index
	for _, sib := range siblings {
		if idx%2 == 0 {
			current = e.Sum(current, sib)
		} else {
			current = e.Sum(sib, current)
		}
		idx /= 2
	}
	return idx == 0 && current == root
}

func (e *Engine) merkleLevels(hashes []string) ([][]string, error) {
	if len(hashes) == 0 {
		return nil, fmt.Errorf("%w: merkle root of an empty set", types.ErrInvalidInput)
	}
	layer := make([]string, len(hashes))
	copy(layer, hashes)

	levels := [][]string{layer}
	for len(layer) > 1 {
		next := make([]string, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			left := layer[i]
			right := left
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			next = append(next, e.Sum(left, right))
		}
		layer = next
		levels = append(levels, layer)
	}
	return levels, nil
}
