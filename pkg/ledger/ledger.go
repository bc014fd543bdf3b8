package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relves/fraledger/pkg/hashing"
	"github.com/relves/fraledger/pkg/types"
)

// Ledger is the in-process hash chain. A single RWMutex guards the block
// slice and the pending buffer; writers (Enqueue, Seal) take it exclusively and
// readers copy the slice header under the read lock. Blocks are never mutated
// after they are appended, so a snapshot stays valid after the lock is released.
type Ledger struct {
	engine *hashing.Engine
	sink   BlockSink
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	blocks  []*types.Block
	pending []types.Transaction
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSink persists every sealed block through sink before it is published.
func WithSink(sink BlockSink) Option {
	return func(l *Ledger) {
		l.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithClock overrides the time source used for block timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func newLedger(engine *hashing.Engine, opts []Option) *Ledger {
	if engine == nil {
		engine = hashing.Default()
	}
	l := &Ledger{
		engine: engine,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// New creates a chain containing only the genesis block.
func New(ctx context.Context, engine *hashing.Engine, opts ...Option) (*Ledger, error) {
	l := newLedger(engine, opts)

	genesis := &types.Block{
		Index:        0,
		Timestamp:    l.now().UTC(),
		Transactions: []types.Transaction{},
		PreviousHash: types.GenesisPreviousHash,
	}
	hash, err := BlockHash(l.engine, genesis)
	if err != nil {
		return nil, err
	}
	genesis.Hash = hash

	if l.sink != nil {
		if err := l.sink.AppendBlock(ctx, genesis); err != nil {
			return nil, fmt.Errorf("failed to persist genesis block: %w", err)
		}
	}
	l.blocks = []*types.Block{genesis}

	l.logger.Info("ledger initialized", "genesisHash", genesis.Hash, "algorithm", l.engine.Algorithm())
	return l, nil
}

// Restore rebuilds a chain from persisted blocks, genesis first. The blocks are
// loaded as-is; call VerifyChain before trusting them.
func Restore(engine *hashing.Engine, blocks []*types.Block, opts ...Option) (*Ledger, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: no blocks to restore", types.ErrInvalidInput)
	}
	l := newLedger(engine, opts)
	l.blocks = append([]*types.Block(nil), blocks...)

	latest := l.blocks[len(l.blocks)-1]
	l.logger.Info("ledger restored", "blocks", len(l.blocks), "latestIndex", latest.Index, "latestHash", latest.Hash)
	return l, nil
}

// Name implements Backend.
func (l *Ledger) Name() string {
	return BackendChain
}

// Engine returns the hash engine the chain was built with.
func (l *Ledger) Engine() *hashing.Engine {
	return l.engine
}

// TransactionID returns "0x" + H(requestID || hash || timestamp).
func (l *Ledger) TransactionID(requestID, hash string, ts time.Time) string {
	return "0x" + l.engine.Sum(requestID, hash, ts.UTC().Format(time.RFC3339Nano))
}

// Enqueue appends tx to the pending buffer. A transaction whose ID is already
// pending is ignored.
func (l *Ledger) Enqueue(ctx context.Context, tx types.Transaction) error {
	if tx.ID == "" || tx.RequestID == "" || tx.Hash == "" {
		return fmt.Errorf("%w: transaction needs id, request id and hash", types.ErrMissingInput)
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = l.now()
	}
	tx.Timestamp = tx.Timestamp.UTC()

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.pending {
		if p.ID == tx.ID {
			return nil
		}
	}
	l.pending = append(l.pending, tx)
	return nil
}

// Pending returns the number of queued transactions.
func (l *Ledger) Pending() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}

// Seal builds a block from the whole pending buffer (which may be empty), links
// it to the latest block and appends it. If the sink fails the chain and the
// pending buffer are left untouched.
func (l *Ledger) Seal(ctx context.Context) (*types.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seal(ctx)
}

// SealIfPending seals only when at least threshold transactions are pending; it
// returns a nil block otherwise. The check and the seal happen under one lock,
// so concurrent callers never seal the same buffer twice or mint empty blocks.
func (l *Ledger) SealIfPending(ctx context.Context, threshold int) (*types.Block, error) {
	if threshold < 1 {
		threshold = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) < threshold {
		return nil, nil
	}
	return l.seal(ctx)
}

// seal requires l.mu held for writing.
func (l *Ledger) seal(ctx context.Context) (*types.Block, error) {
	prev := l.blocks[len(l.blocks)-1]
	txs := make([]types.Transaction, len(l.pending))
	copy(txs, l.pending)

	block := &types.Block{
		Index:        prev.Index + 1,
		Timestamp:    l.now().UTC(),
		Transactions: txs,
		PreviousHash: prev.Hash,
	}
	if len(txs) > 0 {
		root, err := l.engine.MerkleRoot(transactionHashes(txs))
		if err != nil {
			return nil, err
		}
		block.MerkleRoot = root
	}
	hash, err := BlockHash(l.engine, block)
	if err != nil {
		return nil, err
	}
	block.Hash = hash

	if l.sink != nil {
		if err := l.sink.AppendBlock(ctx, block); err != nil {
			return nil, fmt.Errorf("failed to persist block %d: %w", block.Index, err)
		}
	}

	l.blocks = append(l.blocks, block)
	l.pending = nil

	l.logger.Info("sealed block", "index", block.Index, "transactions", len(txs), "hash", block.Hash)
	return block, nil
}

// VerifyChain checks every block of the current snapshot.
func (l *Ledger) VerifyChain(ctx context.Context) error {
	return VerifyBlocks(ctx, l.engine, l.Blocks())
}

// FindTransaction returns the first sealed transaction whose ID or request ID
// equals id, together with its block.
func (l *Ledger) FindTransaction(ctx context.Context, id string) (*types.Transaction, *types.Block, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("%w: transaction id", types.ErrMissingInput)
	}
	for _, b := range l.Blocks() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for i := range b.Transactions {
			tx := b.Transactions[i]
			if tx.ID == id || tx.RequestID == id {
				return &tx, b, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("transaction %s: %w", id, types.ErrNotFound)
}

// Blocks returns a snapshot of the chain.
func (l *Ledger) Blocks() []*types.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blocks[:len(l.blocks):len(l.blocks)]
}

// Block returns the block at index.
func (l *Ledger) Block(index uint64) (*types.Block, error) {
	blocks := l.Blocks()
	if index >= uint64(len(blocks)) {
		return nil, fmt.Errorf("block %d: %w", index, types.ErrNotFound)
	}
	return blocks[index], nil
}

// Latest returns the newest block.
func (l *Ledger) Latest() *types.Block {
	blocks := l.Blocks()
	return blocks[len(blocks)-1]
}

// Stats implements Backend.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	txCount := 0
	for _, b := range l.blocks {
		txCount += len(b.Transactions)
	}
	return Stats{
		Backend:      BackendChain,
		Algorithm:    string(l.engine.Algorithm()),
		BlockCount:   len(l.blocks),
		Transactions: txCount,
		Pending:      len(l.pending),
		Latest:       l.blocks[len(l.blocks)-1].Summary(),
	}
}

// BlockHash computes H(index || timestamp || transactions || previousHash).
// The timestamp is RFC 3339 with nanoseconds in UTC and the transactions are
// in canonical JSON form.
func BlockHash(engine *hashing.Engine, b *types.Block) (string, error) {
	txs := "[]"
	if len(b.Transactions) > 0 {
		canonical, err := hashing.Canonicalize(b.Transactions)
		if err != nil {
			return "", fmt.Errorf("failed to serialize transactions of block %d: %w", b.Index, err)
		}
		txs = string(canonical)
	}
	return engine.Sum(
		strconv.FormatUint(b.Index, 10),
		b.Timestamp.UTC().Format(time.RFC3339Nano),
		txs,
		b.PreviousHash,
	), nil
}

// VerifyBlocks recomputes every block hash in parallel and checks index,
// linkage and Merkle root. It returns a *types.ChainIntegrityError for the
// lowest failing index.
func VerifyBlocks(ctx context.Context, engine *hashing.Engine, blocks []*types.Block) error {
	if len(blocks) == 0 {
		return types.NewChainIntegrityError(0, "chain has no genesis block")
	}

	failures := make([]string, len(blocks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, b := range blocks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			failures[i] = checkBlock(engine, blocks, i, b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, reason := range failures {
		if reason != "" {
			return types.NewChainIntegrityError(uint64(i), reason)
		}
	}
	return nil
}

func checkBlock(engine *hashing.Engine, blocks []*types.Block, i int, b *types.Block) string {
	if b == nil {
		return "missing block"
	}
	if b.Index != uint64(i) {
		return fmt.Sprintf("index %d at position %d", b.Index, i)
	}
	if i == 0 {
		if b.PreviousHash != types.GenesisPreviousHash {
			return "genesis previous hash is not " + types.GenesisPreviousHash
		}
	} else if blocks[i-1] == nil || b.PreviousHash != blocks[i-1].Hash {
		return "previous hash does not match block " + strconv.Itoa(i-1)
	}

	hash, err := BlockHash(engine, b)
	if err != nil {
		return err.Error()
	}
	if hash != b.Hash {
		return "block hash mismatch"
	}

	if len(b.Transactions) == 0 {
		if b.MerkleRoot != "" {
			return "merkle root set on empty block"
		}
		return ""
	}
	root, err := engine.MerkleRoot(transactionHashes(b.Transactions))
	if err != nil {
		return err.Error()
	}
	if root != b.MerkleRoot {
		return "merkle root mismatch"
	}
	return ""
}

func transactionHashes(txs []types.Transaction) []string {
	hashes := make([]string, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash
	}
	return hashes
}
