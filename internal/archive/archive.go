// Package archive keeps submitted document bytes in a content-addressed
// blockstore, keyed by the document's raw CIDv1.
package archive

import (
	"context"
	"fmt"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	dssync "github.com/ipfs/go-datastore/sync"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	ipld "github.com/ipfs/go-ipld-format"

	"github.com/relves/fraledger/pkg/hashing"
	"github.com/relves/fraledger/pkg/types"
)

// Prefix namespaces archive keys when the datastore is shared.
var Prefix = ds.NewKey("/archive")

// DefaultMaxSize bounds a single document.
const DefaultMaxSize = 32 << 20

type Archive struct {
	bs      blockstore.Blockstore
	maxSize int
}

// New creates an archive over d. Keys are written under Prefix.
func New(d ds.Datastore, maxSize int) *Archive {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Archive{
		bs:      blockstore.NewBlockstore(namespace.Wrap(d, Prefix)),
		maxSize: maxSize,
	}
}

// NewMemory creates an archive over a private map datastore.
func NewMemory() *Archive {
	return New(dssync.MutexWrap(ds.NewMapDatastore()), 0)
}

// Put stores data and returns its CID. Storing the same bytes twice is a no-op.
func (a *Archive) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if len(data) > a.maxSize {
		return cid.Undef, fmt.Errorf("%w: document is %d bytes, limit %d", types.ErrInvalidInput, len(data), a.maxSize)
	}
	c, err := hashing.ContentCID(data)
	if err != nil {
		return cid.Undef, err
	}
	blk, err := blocks.NewBlockWithCid(data, c)
	if err != nil {
		return cid.Undef, fmt.Errorf("build block: %w", err)
	}
	if err := a.bs.Put(ctx, blk); err != nil {
		return cid.Undef, fmt.Errorf("put block %s: %w", c, err)
	}
	return c, nil
}

// Get returns the bytes stored under c or types.ErrNotFound.
func (a *Archive) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	blk, err := a.bs.Get(ctx, c)
	if ipld.IsNotFound(err) {
		return nil, fmt.Errorf("document %s: %w", c, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return blk.RawData(), nil
}

// Has reports whether c is archived.
func (a *Archive) Has(ctx context.Context, c cid.Cid) (bool, error) {
	return a.bs.Has(ctx, c)
}
