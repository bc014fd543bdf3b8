// Package storetest provides a conformance suite run against every storage driver.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relves/fraledger/internal/storage"
	"github.com/relves/fraledger/pkg/types"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) storage.Store

// Run exercises the storage.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("Verifications", func(t *testing.T) { testVerifications(t, newStore(t)) })
	t.Run("Claims", func(t *testing.T) { testClaims(t, newStore(t)) })
	t.Run("ListClaims", func(t *testing.T) { testListClaims(t, newStore(t)) })
	t.Run("Blocks", func(t *testing.T) { testBlocks(t, newStore(t)) })
}

// VerificationRecord returns a populated record for requestID.
func VerificationRecord(requestID string) *types.VerificationRecord {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &types.VerificationRecord{
		RequestID: requestID,
		Fingerprint: types.Fingerprint{
			DocumentHash: "aa",
			MetadataHash: "bb",
			CombinedHash: "cc",
		},
		SubmitterID:         "officer-1",
		SubmissionTimestamp: now,
		Metadata:            map[string]any{"village": "V-001"},
		Status:              types.StatusVerified,
		TransactionID:       "0xabc",
		AuditTrail: []types.AuditEntry{{
			Action:      types.ActionDocumentVerified,
			Description: "Document submitted",
			ActorID:     "officer-1",
			Timestamp:   now,
		}},
	}
}

// ClaimRecord returns a pending claim created at createdAt.
func ClaimRecord(village string, createdAt time.Time) *types.ClaimRecord {
	id := uuid.NewString()
	return &types.ClaimRecord{
		ClaimID:         id,
		ClaimNumber:     "FRA-" + createdAt.Format("20060102") + "-" + id[:8],
		ClaimType:       "IFR",
		BeneficiaryName: "Beneficiary",
		LandArea:        1.5,
		VillageCode:     village,
		SubmitterID:     "officer-1",
		Status:          "pending",
		CreatedAt:       createdAt.UTC(),
		UpdatedAt:       createdAt.UTC(),
	}
}

func testVerifications(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.GetVerification(ctx, "missing")
	require.ErrorIs(t, err, types.ErrNotFound)

	rec := VerificationRecord("req-1")
	require.NoError(t, s.PutVerification(ctx, rec))

	got, err := s.GetVerification(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Fingerprint, got.Fingerprint)
	assert.Equal(t, rec.TransactionID, got.TransactionID)
	assert.True(t, rec.SubmissionTimestamp.Equal(got.SubmissionTimestamp))
	require.Len(t, got.AuditTrail, 1)

	dup := VerificationRecord("req-1")
	dup.TransactionID = "0xother"
	require.ErrorIs(t, s.PutVerification(ctx, dup), types.ErrDuplicateRequest)

	got, err = s.GetVerification(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got.TransactionID, "duplicate must not overwrite")

	later := VerificationRecord("req-0")
	later.SubmissionTimestamp = rec.SubmissionTimestamp.Add(time.Second)
	require.NoError(t, s.PutVerification(ctx, later))
	n, err := s.CountVerifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := s.ListVerifications(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "req-1", all[0].RequestID, "oldest first")
	assert.Equal(t, "req-0", all[1].RequestID)
}

func testClaims(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	claim := ClaimRecord("V-001", time.Now())
	require.NoError(t, s.PutClaim(ctx, claim))
	require.ErrorIs(t, s.PutClaim(ctx, claim), types.ErrDuplicateRequest)

	got, err := s.GetClaim(ctx, claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, claim.ClaimNumber, got.ClaimNumber)
	assert.Equal(t, "pending", got.Status)

	got.Status = "approved"
	got.AuditTrail = append(got.AuditTrail, types.AuditEntry{Action: types.ActionStatusUpdated, Timestamp: time.Now().UTC()})
	require.NoError(t, s.UpdateClaim(ctx, got))

	updated, err := s.GetClaim(ctx, claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, "approved", updated.Status)
	assert.Len(t, updated.AuditTrail, 1)

	_, err = s.GetClaim(ctx, "missing")
	require.ErrorIs(t, err, types.ErrNotFound)
	require.ErrorIs(t, s.UpdateClaim(ctx, ClaimRecord("V-001", time.Now())), types.ErrNotFound)
}

func testListClaims(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	var ids []string
	for i, village := range []string{"V-1", "V-2", "V-1"} {
		c := ClaimRecord(village, base.Add(time.Duration(i)*time.Hour))
		if i == 2 {
			c.Status = "approved"
		}
		require.NoError(t, s.PutClaim(ctx, c))
		ids = append(ids, c.ClaimID)
	}

	all, err := s.ListClaims(ctx, types.ClaimFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, claimIDs(all), "newest first")

	v1, err := s.ListClaims(ctx, types.ClaimFilter{VillageCode: "V-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2], ids[0]}, claimIDs(v1))

	pendingV1, err := s.ListClaims(ctx, types.ClaimFilter{VillageCode: "V-1", Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0]}, claimIDs(pendingV1))

	none, err := s.ListClaims(ctx, types.ClaimFilter{Status: "rejected"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testBlocks(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	blocks, err := s.Blocks(ctx)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	// Twelve blocks so lexical ordering of keys would be caught.
	for i := uint64(0); i < 12; i++ {
		b := &types.Block{
			Index:        i,
			Timestamp:    time.Now().UTC(),
			Transactions: []types.Transaction{},
			PreviousHash: fmt.Sprintf("prev-%d", i),
			Hash:         fmt.Sprintf("hash-%d", i),
		}
		require.NoError(t, s.AppendBlock(ctx, b))
	}
	require.Error(t, s.AppendBlock(ctx, &types.Block{Index: 3, Hash: "again"}))

	blocks, err = s.Blocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 12)
	for i, b := range blocks {
		assert.Equal(t, uint64(i), b.Index)
		assert.Equal(t, fmt.Sprintf("hash-%d", i), b.Hash)
	}
}

func claimIDs(claims []*types.ClaimRecord) []string {
	ids := make([]string, len(claims))
	for i, c := range claims {
		ids[i] = c.ClaimID
	}
	return ids
}
