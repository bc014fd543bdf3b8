// Package verification is the facade the transports call: it fingerprints
// submissions, records them, seals them into the ledger and answers status,
// verification and report queries.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"golang.org/x/sync/singleflight"

	"github.com/relves/fraledger/pkg/hashing"
	"github.com/relves/fraledger/pkg/ledger"
	"github.com/relves/fraledger/pkg/registry"
	"github.com/relves/fraledger/pkg/types"
)

// Archive keeps a content-addressed copy of submitted documents.
type Archive interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, c cid.Cid) ([]byte, error)
}

// Config holds the facade's collaborators and batching policy.
type Config struct {
	Engine   *hashing.Engine
	Ledger   ledger.Backend
	Registry *registry.Registry

	// Archive is optional. Without it documents are fingerprinted but not kept.
	Archive Archive

	// Cache is optional. A nil cache disables result caching.
	Cache ResultCache

	// Signer and Origin are used for checkpoints. Checkpoint fails without a signer.
	Signer ledger.Signer
	Origin string

	// BatchSize is the number of pending transactions that triggers a seal.
	// Defaults to 1: every submission is sealed immediately.
	BatchSize int

	// BatchInterval is how often Run seals whatever is pending. Zero disables
	// the timer; Run then only waits for cancellation.
	BatchInterval time.Duration

	Logger *slog.Logger
}

// SubmitRequest is a document submission.
type SubmitRequest struct {
	Document    []byte
	Metadata    map[string]any
	SubmitterID string

	// RequestID is generated when empty.
	RequestID string
	FileInfo  map[string]any
}

// SubmissionResult is returned by Submit. BlockNumber is nil while the
// transaction is still pending.
type SubmissionResult struct {
	RequestID     string            `json:"requestId"`
	TransactionID string            `json:"transactionId"`
	BlockNumber   *uint64           `json:"blockNumber"`
	Fingerprint   types.Fingerprint `json:"fingerprint"`
	ContentCID    string            `json:"contentCid,omitempty"`
}

// Health describes the ledger for status endpoints.
type Health struct {
	Status        string              `json:"status"`
	HaltReason    string              `json:"haltReason,omitempty"`
	Ledger        ledger.Stats        `json:"ledger"`
	Genesis       types.BlockSummary  `json:"genesis"`
	Verifications int64               `json:"verifications"`
	Claims        registry.ClaimStats `json:"claims"`
}

// Health statuses.
const (
	StatusOK     = "ok"
	StatusHalted = "halted"
)

// Service is the verification facade. It is safe for concurrent use.
type Service struct {
	engine        *hashing.Engine
	ledger        ledger.Backend
	registry      *registry.Registry
	archive       Archive
	cache         ResultCache
	signer        ledger.Signer
	origin        string
	batchSize     int
	batchInterval time.Duration
	logger        *slog.Logger

	lookups singleflight.Group

	mu      sync.RWMutex
	haltErr error
}

// NewServiceWithConfig creates the facade and verifies the chain it was given.
// A chain that fails verification does not prevent construction: the service
// starts halted, serves reads, and rejects writes with the integrity error.
func NewServiceWithConfig(ctx context.Context, cfg Config) (*Service, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("verification: ledger is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("verification: registry is required")
	}
	if cfg.Engine == nil {
		cfg.Engine = hashing.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	s := &Service{
		engine:        cfg.Engine,
		ledger:        cfg.Ledger,
		registry:      cfg.Registry,
		archive:       cfg.Archive,
		cache:         cfg.Cache,
		signer:        cfg.Signer,
		origin:        cfg.Origin,
		batchSize:     cfg.BatchSize,
		batchInterval: cfg.BatchInterval,
		logger:        cfg.Logger,
	}

	if err := s.VerifyChain(ctx); err != nil && !errors.Is(err, types.ErrChainIntegrity) {
		return nil, err
	}
	// The registry may have re-queued records persisted before a restart.
	if s.Halted() == nil {
		s.maybeSeal(ctx)
	}
	return s, nil
}

// Submit fingerprints a document, records it and, depending on the batch
// size, seals it into a block.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmissionResult, error) {
	if err := s.Halted(); err != nil {
		return nil, err
	}

	fp, err := s.engine.Fingerprint(req.Document, req.Metadata)
	if err != nil {
		return nil, err
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	contentCID, err := s.storeDocument(ctx, req.Document)
	if err != nil {
		return nil, err
	}

	rec, err := s.registry.RecordVerification(ctx, registry.VerificationInput{
		RequestID:   requestID,
		Fingerprint: fp,
		SubmitterID: req.SubmitterID,
		FileInfo:    req.FileInfo,
		Metadata:    req.Metadata,
		ContentCID:  contentCID,
	})
	if err != nil {
		return nil, err
	}

	result := &SubmissionResult{
		RequestID:     rec.RequestID,
		TransactionID: rec.TransactionID,
		Fingerprint:   rec.Fingerprint,
		ContentCID:    rec.ContentCID,
	}

	// A concurrent submission may have sealed this transaction already, so the
	// block number is looked up by ID rather than taken from our own seal.
	s.maybeSeal(ctx)
	if _, b, err := s.ledger.FindTransaction(ctx, rec.TransactionID); err == nil {
		idx := b.Index
		result.BlockNumber = &idx
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}
	return result, nil
}

func (s *Service) storeDocument(ctx context.Context, data []byte) (string, error) {
	if s.archive == nil {
		c, err := hashing.ContentCID(data)
		if err != nil {
			return "", err
		}
		return c.String(), nil
	}
	c, err := s.archive.Put(ctx, data)
	if err != nil {
		return "", fmt.Errorf("archive document: %w", err)
	}
	return c.String(), nil
}

// QueryStatus reports whether a request is known and sealed. The registry is
// consulted first; a ledger scan by request ID is the fallback.
func (s *Service) QueryStatus(ctx context.Context, requestID string) (*types.VerificationStatus, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id", types.ErrMissingInput)
	}
	status := &types.VerificationStatus{RequestID: requestID, Source: types.SourceNone}

	rec, err := s.registry.GetVerification(ctx, requestID)
	switch {
	case err == nil:
		status.Found = true
		status.Source = types.SourceRegistry
		status.TransactionID = rec.TransactionID
		fp := rec.Fingerprint
		status.Fingerprint = &fp
		ts := rec.SubmissionTimestamp
		status.SubmissionTimestamp = &ts
		if _, b, err := s.ledger.FindTransaction(ctx, rec.TransactionID); err == nil {
			s.fillBlock(status, b)
		} else if !errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		return status, nil
	case !errors.Is(err, types.ErrNotFound):
		return nil, err
	}

	tx, b, err := s.findVerificationTx(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if tx != nil {
		status.Found = true
		status.Source = types.SourceLedger
		status.TransactionID = tx.ID
		s.fillBlock(status, b)
	}
	return status, nil
}

// findVerificationTx scans the chain for a document verification transaction
// by transaction ID or request ID. Claim transactions are skipped; they carry
// the claim ID in RequestID. A nil transaction means no match.
func (s *Service) findVerificationTx(ctx context.Context, id string) (*types.Transaction, *types.Block, error) {
	for _, b := range s.ledger.Blocks() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for i := range b.Transactions {
			tx := b.Transactions[i]
			if tx.Type != types.TxDocumentVerification {
				continue
			}
			if tx.ID == id || tx.RequestID == id {
				return &tx, b, nil
			}
		}
	}
	return nil, nil, nil
}

func (s *Service) fillBlock(status *types.VerificationStatus, b *types.Block) {
	idx := b.Index
	status.Confirmed = true
	status.BlockNumber = &idx
	status.BlockHash = b.Hash
	status.Confirmations = s.ledger.Latest().Index - b.Index + 1
}

// VerifyTransaction re-verifies a request. Lookups without an expected hash
// are cached per chain height, so sealing a block retires every cached entry.
func (s *Service) VerifyTransaction(ctx context.Context, requestID, expectedHash string) (*types.VerificationResult, error) {
	if expectedHash != "" || s.cache == nil {
		return s.registry.VerifyTransaction(ctx, requestID, expectedHash)
	}

	key := fmt.Sprintf("%s@%d", requestID, s.ledger.Latest().Index)
	if res, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("result cache read failed", "requestID", requestID, "error", err)
	} else if ok {
		return res, nil
	}

	v, err, _ := s.lookups.Do(key, func() (any, error) {
		res, err := s.registry.VerifyTransaction(ctx, requestID, "")
		if err != nil {
			return nil, err
		}
		if res.Found {
			if err := s.cache.Set(ctx, key, res); err != nil {
				s.logger.Warn("result cache write failed", "requestID", requestID, "error", err)
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*types.VerificationResult)
	return &res, nil
}

// VerifyDocument checks presented document bytes against the recorded
// document hash.
func (s *Service) VerifyDocument(ctx context.Context, requestID string, document []byte) (*types.VerificationResult, error) {
	docHash, err := s.engine.HashDocument(document, "")
	if err != nil {
		return nil, err
	}
	return s.registry.VerifyTransaction(ctx, requestID, docHash)
}

// GenerateReport builds the audit report for a request.
func (s *Service) GenerateReport(ctx context.Context, requestID string) (*types.VerificationReport, error) {
	res, err := s.VerifyTransaction(ctx, requestID, "")
	if err != nil {
		return nil, err
	}
	return s.registry.Report(ctx, res)
}

// GetVerification returns the stored record.
func (s *Service) GetVerification(ctx context.Context, requestID string) (*types.VerificationRecord, error) {
	return s.registry.GetVerification(ctx, requestID)
}

// Document returns the archived document for a request after checking it
// still matches the recorded document hash.
func (s *Service) Document(ctx context.Context, requestID string) ([]byte, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("document archive disabled: %w", types.ErrNotFound)
	}
	rec, err := s.registry.GetVerification(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if rec.ContentCID == "" {
		return nil, fmt.Errorf("document for %s: %w", requestID, types.ErrNotFound)
	}
	c, err := hashing.ParseContentCID(rec.ContentCID)
	if err != nil {
		return nil, err
	}
	data, err := s.archive.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	ok, err := s.engine.VerifyIntegrity(data, rec.Fingerprint.DocumentHash, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: archived document for %s does not match its fingerprint", types.ErrHashComputation, requestID)
	}
	return data, nil
}

// TransactionProof proves a request's transaction is in its block's Merkle root.
func (s *Service) TransactionProof(ctx context.Context, requestID string) (*ledger.TransactionProof, error) {
	rec, err := s.registry.GetVerification(ctx, requestID)
	if err != nil {
		return nil, err
	}
	_, b, err := s.ledger.FindTransaction(ctx, rec.TransactionID)
	if err != nil {
		return nil, err
	}
	return ledger.NewTransactionProof(s.engine, b, rec.TransactionID)
}

// RecordClaim registers a claim and seals according to the batch policy.
func (s *Service) RecordClaim(ctx context.Context, in registry.ClaimInput) (*types.ClaimRecord, error) {
	if err := s.Halted(); err != nil {
		return nil, err
	}
	claim, err := s.registry.RecordClaim(ctx, in)
	if err != nil {
		return nil, err
	}
	s.maybeSeal(ctx)
	return claim, nil
}

// UpdateClaimStatus changes a claim's status and seals according to the batch policy.
func (s *Service) UpdateClaimStatus(ctx context.Context, claimID string, upd registry.StatusUpdate) (*types.ClaimRecord, error) {
	if err := s.Halted(); err != nil {
		return nil, err
	}
	claim, err := s.registry.UpdateClaimStatus(ctx, claimID, upd)
	if err != nil {
		return nil, err
	}
	s.maybeSeal(ctx)
	return claim, nil
}

func (s *Service) GetClaim(ctx context.Context, claimID string) (*types.ClaimRecord, error) {
	return s.registry.GetClaim(ctx, claimID)
}

func (s *Service) ListClaims(ctx context.Context, filter types.ClaimFilter) ([]*types.ClaimRecord, error) {
	return s.registry.ListClaims(ctx, filter)
}

// Blocks returns up to limit blocks starting at offset. A limit <= 0 returns
// the rest of the chain.
func (s *Service) Blocks(offset, limit int) []*types.Block {
	blocks := s.ledger.Blocks()
	if offset < 0 || offset >= len(blocks) {
		return []*types.Block{}
	}
	end := len(blocks)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return blocks[offset:end]
}

// Block returns one block.
func (s *Service) Block(index uint64) (*types.Block, error) {
	return s.ledger.Block(index)
}

// VerifyChain verifies the whole chain and halts writes if it fails.
func (s *Service) VerifyChain(ctx context.Context) error {
	err := s.ledger.VerifyChain(ctx)
	if errors.Is(err, types.ErrChainIntegrity) {
		s.halt(err)
	}
	return err
}

// Checkpoint signs the current chain.
func (s *Service) Checkpoint(ctx context.Context) (*ledger.Checkpoint, error) {
	if s.signer == nil {
		return nil, fmt.Errorf("%w: no checkpoint signer configured", types.ErrInvalidInput)
	}
	return ledger.NewCheckpoint(s.ledger.Blocks(), s.origin, s.signer)
}

// InclusionProof proves block index is committed by the current checkpoint.
func (s *Service) InclusionProof(ctx context.Context, index uint64) (*ledger.InclusionProof, error) {
	return ledger.NewInclusionProof(s.ledger.Blocks(), index)
}

// Health summarizes the chain and registry.
func (s *Service) Health(ctx context.Context) (*Health, error) {
	claims, err := s.registry.ClaimStats(ctx)
	if err != nil {
		return nil, err
	}
	genesis, err := s.ledger.Block(0)
	if err != nil {
		return nil, err
	}

	h := &Health{
		Status:        StatusOK,
		Ledger:        s.ledger.Stats(),
		Genesis:       genesis.Summary(),
		Verifications: s.registry.VerificationCount(),
		Claims:        claims,
	}
	if err := s.Halted(); err != nil {
		h.Status = StatusHalted
		h.HaltReason = err.Error()
	}
	return h, nil
}

// Halted returns the integrity error that halted the service, if any.
func (s *Service) Halted() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.haltErr
}

// Run seals pending transactions every BatchInterval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if s.batchInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.Halted() != nil {
				continue
			}
			if _, err := s.ledger.SealIfPending(ctx, 1); err != nil {
				s.logger.Error("interval seal failed", "error", err)
			}
		}
	}
}

// Seal seals whatever is pending, even if that is nothing.
func (s *Service) Seal(ctx context.Context) (*types.Block, error) {
	if err := s.Halted(); err != nil {
		return nil, err
	}
	return s.ledger.Seal(ctx)
}

// Close seals any pending transactions so nothing queued is lost on shutdown.
func (s *Service) Close(ctx context.Context) error {
	if s.Halted() != nil {
		return nil
	}
	_, err := s.ledger.SealIfPending(ctx, 1)
	return err
}

// maybeSeal seals when the pending buffer reaches the batch size. A failed
// seal leaves the transactions pending for the next attempt.
func (s *Service) maybeSeal(ctx context.Context) {
	if _, err := s.ledger.SealIfPending(ctx, s.batchSize); err != nil {
		s.logger.Error("seal failed; transactions stay pending", "pending", s.ledger.Pending(), "error", err)
	}
}

func (s *Service) halt(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.haltErr == nil {
		s.haltErr = err
		s.logger.Error("chain integrity check failed; writes halted", "error", err)
	}
}
