package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relves/fraledger/pkg/types"
)

// Claim statuses.
const (
	ClaimPending     = "pending"
	ClaimUnderReview = "under_review"
	ClaimApproved    = "approved"
	ClaimRejected    = "rejected"
	ClaimDisputed    = "disputed"
)

// MaxClaimList caps ListClaims results.
const MaxClaimList = 1000

var claimStatuses = map[string]bool{
	ClaimPending:     true,
	ClaimUnderReview: true,
	ClaimApproved:    true,
	ClaimRejected:    true,
	ClaimDisputed:    true,
}

// ClaimInput describes a claim to register.
type ClaimInput struct {
	ClaimType             string         `json:"claimType"`
	BeneficiaryName       string         `json:"beneficiaryName"`
	LandArea              float64        `json:"landArea"`
	Coordinates           map[string]any `json:"coordinates,omitempty"`
	VillageCode           string         `json:"villageCode"`
	SubmitterID           string         `json:"submitterId"`
	VerificationRequestID string         `json:"verificationRequestId,omitempty"`
}

// StatusUpdate changes a claim's status.
type StatusUpdate struct {
	Status         string `json:"status"`
	ApprovalStatus string `json:"approvalStatus,omitempty"`
	ActorID        string `json:"actorId"`
	Remarks        string `json:"remarks,omitempty"`
}

// ClaimStats counts claims by status.
type ClaimStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

// RecordClaim registers a claim. A non-empty VerificationRequestID must name
// an existing verification, otherwise nothing is created and
// types.ErrDanglingReference is returned.
func (r *Registry) RecordClaim(ctx context.Context, in ClaimInput) (*types.ClaimRecord, error) {
	if strings.TrimSpace(in.BeneficiaryName) == "" {
		return nil, fmt.Errorf("%w: beneficiary name", types.ErrMissingInput)
	}
	if strings.TrimSpace(in.VillageCode) == "" {
		return nil, fmt.Errorf("%w: village code", types.ErrMissingInput)
	}
	if in.LandArea < 0 {
		return nil, fmt.Errorf("%w: land area must not be negative", types.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if in.VerificationRequestID != "" {
		_, err := r.store.GetVerification(ctx, in.VerificationRequestID)
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("verification %s: %w", in.VerificationRequestID, types.ErrDanglingReference)
		}
		if err != nil {
			return nil, err
		}
	}

	now := r.now().UTC()
	id := uuid.New()
	claim := &types.ClaimRecord{
		ClaimID:               id.String(),
		ClaimNumber:           claimNumber(now, id),
		ClaimType:             in.ClaimType,
		BeneficiaryName:       in.BeneficiaryName,
		LandArea:              in.LandArea,
		Coordinates:           in.Coordinates,
		VillageCode:           in.VillageCode,
		SubmitterID:           in.SubmitterID,
		VerificationRequestID: in.VerificationRequestID,
		Status:                ClaimPending,
		CreatedAt:             now,
		UpdatedAt:             now,
		AuditTrail: []types.AuditEntry{{
			Action:      types.ActionClaimRegistered,
			Description: "Claim registered",
			ActorID:     in.SubmitterID,
			Timestamp:   now,
		}},
	}

	hash, err := r.engine.HashMetadata(claim)
	if err != nil {
		return nil, err
	}
	if err := r.store.PutClaim(ctx, claim); err != nil {
		return nil, err
	}
	if err := r.anchor(ctx, types.TxClaimRegistration, claim.ClaimID, hash, in.SubmitterID, now); err != nil {
		return nil, err
	}

	r.logger.Info("claim recorded", "claimID", claim.ClaimID, "claimNumber", claim.ClaimNumber, "verificationRequestID", in.VerificationRequestID)
	return claim, nil
}

// UpdateClaimStatus sets a claim's status and appends a STATUS_UPDATED entry.
func (r *Registry) UpdateClaimStatus(ctx context.Context, claimID string, upd StatusUpdate) (*types.ClaimRecord, error) {
	if claimID == "" {
		return nil, fmt.Errorf("%w: claim id", types.ErrMissingInput)
	}
	if upd.Status == "" {
		return nil, fmt.Errorf("%w: status", types.ErrMissingInput)
	}
	if !claimStatuses[upd.Status] {
		return nil, fmt.Errorf("%w: unknown claim status %q", types.ErrInvalidInput, upd.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	claim, err := r.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	desc := fmt.Sprintf("Status changed from %s to %s", claim.Status, upd.Status)
	if upd.Remarks != "" {
		desc += ": " + upd.Remarks
	}
	claim.Status = upd.Status
	if upd.ApprovalStatus != "" {
		claim.ApprovalStatus = upd.ApprovalStatus
	}
	claim.UpdatedAt = now
	claim.AuditTrail = append(claim.AuditTrail, types.AuditEntry{
		Action:      types.ActionStatusUpdated,
		Description: desc,
		ActorID:     upd.ActorID,
		Timestamp:   now,
	})

	hash, err := r.engine.HashMetadata(claim)
	if err != nil {
		return nil, err
	}
	if err := r.store.UpdateClaim(ctx, claim); err != nil {
		return nil, err
	}
	if err := r.anchor(ctx, types.TxClaimStatusUpdate, claim.ClaimID, hash, upd.ActorID, now); err != nil {
		return nil, err
	}

	r.logger.Info("claim status updated", "claimID", claimID, "status", upd.Status, "actorID", upd.ActorID)
	return claim, nil
}

// GetClaim returns a claim or types.ErrNotFound.
func (r *Registry) GetClaim(ctx context.Context, claimID string) (*types.ClaimRecord, error) {
	if claimID == "" {
		return nil, fmt.Errorf("%w: claim id", types.ErrMissingInput)
	}
	return r.store.GetClaim(ctx, claimID)
}

// ListClaims returns up to MaxClaimList matching claims, newest first.
func (r *Registry) ListClaims(ctx context.Context, filter types.ClaimFilter) ([]*types.ClaimRecord, error) {
	claims, err := r.store.ListClaims(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(claims) > MaxClaimList {
		claims = claims[:MaxClaimList]
	}
	return claims, nil
}

// ClaimStats counts all claims by status.
func (r *Registry) ClaimStats(ctx context.Context) (ClaimStats, error) {
	claims, err := r.store.ListClaims(ctx, types.ClaimFilter{})
	if err != nil {
		return ClaimStats{}, err
	}
	stats := ClaimStats{Total: len(claims), ByStatus: make(map[string]int)}
	for _, c := range claims {
		stats.ByStatus[c.Status]++
	}
	return stats, nil
}

func (r *Registry) anchor(ctx context.Context, typ types.TransactionType, id, hash, actor string, ts time.Time) error {
	tx := types.Transaction{
		ID:          r.ledger.TransactionID(id, hash, ts),
		Type:        typ,
		RequestID:   id,
		Hash:        hash,
		SubmitterID: actor,
		Timestamp:   ts,
	}
	if err := r.ledger.Enqueue(ctx, tx); err != nil {
		return fmt.Errorf("enqueue %s for %s: %w", typ, id, err)
	}
	return nil
}

// claimNumber formats FRA-YYYYMMDD-XXXXXXXX from the first eight hex digits of id.
func claimNumber(t time.Time, id uuid.UUID) string {
	return fmt.Sprintf("FRA-%s-%s", t.Format("20060102"), strings.ToUpper(id.String()[:8]))
}
