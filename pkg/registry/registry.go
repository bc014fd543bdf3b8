// Package registry keeps the authoritative verification and claim records,
// their audit trails, and anchors every write as a ledger transaction.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relves/fraledger/internal/storage"
	"github.com/relves/fraledger/pkg/hashing"
	"github.com/relves/fraledger/pkg/ledger"
	"github.com/relves/fraledger/pkg/types"
)

// Config holds the registry's collaborators.
type Config struct {
	Store  storage.Store
	Ledger ledger.Backend
	Engine *hashing.Engine
	Logger *slog.Logger

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Registry records verifications and claims.
//
// All writes go through mu so that the duplicate check, the store write and
// the ledger enqueue happen as one step with respect to other writers.
type Registry struct {
	store  storage.Store
	ledger ledger.Backend
	engine *hashing.Engine
	logger *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	verifications atomic.Int64
}

// VerificationInput describes a submission to record.
type VerificationInput struct {
	RequestID   string
	Fingerprint types.Fingerprint
	SubmitterID string
	FileInfo    map[string]any
	Metadata    map[string]any
	ContentCID  string
}

// New creates a registry and loads the verification count from the store.
func New(ctx context.Context, cfg Config) (*Registry, error) {
	if cfg.Store == nil {
		return nil, errors.New("registry: store is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("registry: ledger is required")
	}
	if cfg.Engine == nil {
		cfg.Engine = hashing.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	r := &Registry{
		store:  cfg.Store,
		ledger: cfg.Ledger,
		engine: cfg.Engine,
		logger: cfg.Logger,
		now:    cfg.Now,
	}

	n, err := cfg.Store.CountVerifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("count verifications: %w", err)
	}
	r.verifications.Store(int64(n))

	queued, err := r.reconcile(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile with ledger: %w", err)
	}
	if queued > 0 {
		r.logger.Warn("re-queued unsealed transactions", "count", queued)
	}
	return r, nil
}

// reconcile re-enqueues the transactions of stored records that never reached
// a sealed block. The pending buffer lives only in memory, so a crash with a
// partial batch or a failed seal leaves such records behind.
//
// A verification is matched by its transaction ID. A claim is matched by its
// latest anchor, a claim transaction stamped with UpdatedAt; only the current
// state can be re-anchored because earlier states are overwritten in the store.
func (r *Registry) reconcile(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sealed := make(map[string]bool)
	claimAnchors := make(map[string][]time.Time)
	for _, b := range r.ledger.Blocks() {
		for _, tx := range b.Transactions {
			sealed[tx.ID] = true
			if tx.Type == types.TxClaimRegistration || tx.Type == types.TxClaimStatusUpdate {
				claimAnchors[tx.RequestID] = append(claimAnchors[tx.RequestID], tx.Timestamp)
			}
		}
	}

	recs, err := r.store.ListVerifications(ctx)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, rec := range recs {
		if rec.TransactionID == "" || sealed[rec.TransactionID] {
			continue
		}
		tx := types.Transaction{
			ID:          rec.TransactionID,
			Type:        types.TxDocumentVerification,
			RequestID:   rec.RequestID,
			Hash:        rec.Fingerprint.CombinedHash,
			SubmitterID: rec.SubmitterID,
			Timestamp:   rec.SubmissionTimestamp,
		}
		if err := r.ledger.Enqueue(ctx, tx); err != nil {
			return queued, fmt.Errorf("re-enqueue %s: %w", rec.RequestID, err)
		}
		queued++
	}

	claims, err := r.store.ListClaims(ctx, types.ClaimFilter{})
	if err != nil {
		return queued, err
	}
	// Oldest first so re-queued anchors keep creation order.
	slices.Reverse(claims)
	for _, claim := range claims {
		if slices.ContainsFunc(claimAnchors[claim.ClaimID], claim.UpdatedAt.Equal) {
			continue
		}
		hash, err := r.engine.HashMetadata(claim)
		if err != nil {
			return queued, err
		}
		typ := types.TxClaimRegistration
		actor := claim.SubmitterID
		if n := len(claim.AuditTrail); n > 0 {
			actor = claim.AuditTrail[n-1].ActorID
			if claim.AuditTrail[n-1].Action == types.ActionStatusUpdated {
				typ = types.TxClaimStatusUpdate
			}
		}
		if err := r.anchor(ctx, typ, claim.ClaimID, hash, actor, claim.UpdatedAt); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// VerificationCount returns the number of verifications recorded.
func (r *Registry) VerificationCount() int64 {
	return r.verifications.Load()
}

// RecordVerification stores a new verification record, appends its
// DOCUMENT_VERIFIED audit entry and enqueues its ledger transaction.
func (r *Registry) RecordVerification(ctx context.Context, in VerificationInput) (*types.VerificationRecord, error) {
	if in.RequestID == "" {
		return nil, fmt.Errorf("%w: request id", types.ErrMissingInput)
	}
	fp := in.Fingerprint
	if fp.DocumentHash == "" || fp.MetadataHash == "" || fp.CombinedHash == "" {
		return nil, fmt.Errorf("%w: fingerprint", types.ErrMissingInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.store.GetVerification(ctx, in.RequestID); err == nil {
		return nil, fmt.Errorf("verification %s: %w", in.RequestID, types.ErrDuplicateRequest)
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	ts := r.now().UTC()
	txID := r.ledger.TransactionID(in.RequestID, fp.CombinedHash, ts)

	rec := &types.VerificationRecord{
		RequestID:           in.RequestID,
		Fingerprint:         fp,
		SubmitterID:         in.SubmitterID,
		SubmissionTimestamp: ts,
		FileInfo:            in.FileInfo,
		Metadata:            in.Metadata,
		Status:              types.StatusVerified,
		TransactionID:       txID,
		ContentCID:          in.ContentCID,
		AuditTrail: []types.AuditEntry{{
			Action:      types.ActionDocumentVerified,
			Description: "Document fingerprint recorded",
			ActorID:     in.SubmitterID,
			Timestamp:   ts,
		}},
	}
	if err := r.store.PutVerification(ctx, rec); err != nil {
		return nil, err
	}

	tx := types.Transaction{
		ID:          txID,
		Type:        types.TxDocumentVerification,
		RequestID:   in.RequestID,
		Hash:        fp.CombinedHash,
		SubmitterID: in.SubmitterID,
		Timestamp:   ts,
	}
	if err := r.ledger.Enqueue(ctx, tx); err != nil {
		return nil, fmt.Errorf("enqueue transaction for %s: %w", in.RequestID, err)
	}

	r.verifications.Add(1)
	r.logger.Info("verification recorded", "requestID", in.RequestID, "transactionID", txID, "submitterID", in.SubmitterID)
	return rec, nil
}

// GetVerification returns the record for requestID or types.ErrNotFound.
func (r *Registry) GetVerification(ctx context.Context, requestID string) (*types.VerificationRecord, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id", types.ErrMissingInput)
	}
	return r.store.GetVerification(ctx, requestID)
}
