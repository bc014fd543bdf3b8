// Package ledger implements the append-only, hash-linked block chain that
// anchors verification and claim events.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/relves/fraledger/pkg/hashing"
	"github.com/relves/fraledger/pkg/types"
)

// Backend names.
const (
	BackendChain = "chain"
	BackendStub  = "stub"
)

// Backend is the ledger the verification service writes to. The facade only
// talks to this interface; which implementation is active is a wiring decision.
type Backend interface {
	// Name identifies the implementation ("chain" or "stub").
	Name() string

	// TransactionID derives the identifier for a new transaction.
	TransactionID(requestID, hash string, ts time.Time) string

	// Enqueue appends a transaction to the pending buffer.
	Enqueue(ctx context.Context, tx types.Transaction) error

	// Seal moves the whole pending buffer into a new block.
	Seal(ctx context.Context) (*types.Block, error)

	// SealIfPending seals only if at least threshold transactions are pending and
	// returns a nil block otherwise.
	SealIfPending(ctx context.Context, threshold int) (*types.Block, error)

	// Pending returns the number of transactions waiting to be sealed.
	Pending() int

	// VerifyChain recomputes every block hash and checks linkage.
	VerifyChain(ctx context.Context) error

	// FindTransaction finds a sealed transaction by transaction ID or request ID.
	FindTransaction(ctx context.Context, id string) (*types.Transaction, *types.Block, error)

	// Blocks returns a snapshot of the chain, genesis first.
	Blocks() []*types.Block

	// Block returns the block at index.
	Block(index uint64) (*types.Block, error)

	// Latest returns the newest block.
	Latest() *types.Block

	Stats() Stats
}

// Stats summarizes a backend for health output.
type Stats struct {
	Backend      string             `json:"backend"`
	Algorithm    string             `json:"algorithm"`
	BlockCount   int                `json:"blockCount"`
	Transactions int                `json:"transactions"`
	Pending      int                `json:"pending"`
	Latest       types.BlockSummary `json:"latest"`
}

// BlockSink persists a block before it becomes visible in the chain.
type BlockSink interface {
	AppendBlock(ctx context.Context, block *types.Block) error
}

// NewBackend builds the named backend. When blocks is non-empty the chain is
// restored from them instead of starting from a fresh genesis block.
func NewBackend(ctx context.Context, kind string, engine *hashing.Engine, blocks []*types.Block, opts ...Option) (Backend, error) {
	var (
		l   *Ledger
		err error
	)
	if len(blocks) > 0 {
		l, err = Restore(engine, blocks, opts...)
	} else {
		l, err = New(ctx, engine, opts...)
	}
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(kind) {
	case "", BackendChain:
		return l, nil
	case BackendStub:
		return NewStubBackend(l), nil
	default:
		return nil, fmt.Errorf("%w: unknown ledger backend %q", types.ErrInvalidInput, kind)
	}
}
