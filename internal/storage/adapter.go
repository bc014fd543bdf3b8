// Package storage defines the persistence contract shared by the store drivers.
package storage

import (
	"context"

	"github.com/relves/fraledger/pkg/types"
)

// Driver names.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Store persists verification records, claims and ledger blocks.
// Records are stored as their JSON serialization. Drivers translate their own
// errors into types.ErrNotFound and types.ErrDuplicateRequest.
type Store interface {
	VerificationStore
	ClaimStore
	BlockStore

	Close() error
}

// VerificationStore holds immutable verification records keyed by request ID.
type VerificationStore interface {
	// PutVerification inserts a record. It fails with types.ErrDuplicateRequest
	// if the request ID exists and never overwrites.
	PutVerification(ctx context.Context, rec *types.VerificationRecord) error

	GetVerification(ctx context.Context, requestID string) (*types.VerificationRecord, error)

	CountVerifications(ctx context.Context) (int, error)

	// ListVerifications returns every record, oldest submission first.
	ListVerifications(ctx context.Context) ([]*types.VerificationRecord, error)
}

// ClaimStore holds claim records keyed by claim ID.
type ClaimStore interface {
	// PutClaim inserts a new claim; types.ErrDuplicateRequest if the ID exists.
	PutClaim(ctx context.Context, claim *types.ClaimRecord) error

	// UpdateClaim replaces an existing claim; types.ErrNotFound if absent.
	UpdateClaim(ctx context.Context, claim *types.ClaimRecord) error

	GetClaim(ctx context.Context, claimID string) (*types.ClaimRecord, error)

	// ListClaims returns matching claims, newest CreatedAt first.
	ListClaims(ctx context.Context, filter types.ClaimFilter) ([]*types.ClaimRecord, error)
}

// BlockStore is the append-only persisted chain.
type BlockStore interface {
	// AppendBlock stores a block. Re-appending an existing index fails.
	AppendBlock(ctx context.Context, block *types.Block) error

	// Blocks returns every stored block in index order.
	Blocks(ctx context.Context) ([]*types.Block, error)
}
