package hashing

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"

	"github.com/relves/fraledger/pkg/types"
)

// ContentCID computes a CIDv1 (raw codec, SHA2-256 multihash) for document bytes.
// It is independent of the engine's algorithm so archived documents stay
// addressable when the fingerprint algorithm changes.
func ContentCID(data []byte) (cid.Cid, error) {
	hash, err := mh.Sum(data, uint64(multicodec.Sha2_256), -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %v", types.ErrHashComputation, err)
	}
	return cid.NewCidV1(uint64(multicodec.Raw), hash), nil
}

// ParseContentCID decodes a CID string and checks it addresses raw content.
func ParseContentCID(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: bad content CID: %v", types.ErrInvalidInput, err)
	}
	if c.Type() != uint64(multicodec.Raw) {
		return cid.Undef, fmt.Errorf("%w: content CID codec is %s, want raw", types.ErrInvalidInput, multicodec.Code(c.Type()))
	}
	return c, nil
}
