package registry_test

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relves/fraledger/internal/storage/dsstore"
	"github.com/relves/fraledger/pkg/hashing"
	"github.com/relves/fraledger/pkg/ledger"
	"github.com/relves/fraledger/pkg/registry"
	"github.com/relves/fraledger/pkg/types"
)

type fixture struct {
	reg    *registry.Registry
	ledger ledger.Backend
	store  *dsstore.Store
	engine *hashing.Engine
}

func newFixture(t *testing.T, backend string) *fixture {
	t.Helper()
	ctx := context.Background()
	engine := hashing.Default()
	store := dsstore.NewMemory()
	t.Cleanup(func() { store.Close() })

	l, err := ledger.NewBackend(ctx, backend, engine, nil, ledger.WithSink(store))
	require.NoError(t, err)

	reg, err := registry.New(ctx, registry.Config{Store: store, Ledger: l, Engine: engine})
	require.NoError(t, err)
	return &fixture{reg: reg, ledger: l, store: store, engine: engine}
}

func (f *fixture) input(t *testing.T, requestID string, metadata map[string]any) registry.VerificationInput {
	t.Helper()
	fp, err := f.engine.Fingerprint([]byte("document for "+requestID), metadata)
	require.NoError(t, err)
	return registry.VerificationInput{
		RequestID:   requestID,
		Fingerprint: fp,
		SubmitterID: "officer-7",
		Metadata:    metadata,
	}
}

func TestRecordVerification(t *testing.T) {
	f := newFixture(t, ledger.BackendChain)
	ctx := context.Background()

	rec, err := f.reg.RecordVerification(ctx, f.input(t, "req-1", map[string]any{"a": 1}))
	require.NoError(t, err)
	assert.Equal(t, types.StatusVerified, rec.Status)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, rec.TransactionID)
	require.Len(t, rec.AuditTrail, 1)
	assert.Equal(t, types.ActionDocumentVerified, rec.AuditTrail[0].Action)
	assert.Equal(t, 1, f.ledger.Pending())
	assert.Equal(t, int64(1), f.reg.VerificationCount())

	got, err := f.reg.GetVerification(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Fingerprint, got.Fingerprint)
}

func TestRecordVerification_Duplicate(t *testing.T) {
	f := newFixture(t, ledger.BackendChain)
	ctx := context.Background()

	first, err := f.reg.RecordVerification(ctx, f.input(t, "req-dup", nil))
	require.NoError(t, err)

	other := f.input(t, "req-dup", map[string]any{"different": true})
	_, err = f.reg.RecordVerification(ctx, other)
	require.ErrorIs(t, err, types.ErrDuplicateRequest)

	got, err := f.reg.GetVerification(ctx, "req-dup")
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, got.Fingerprint, "original record is untouched")
	assert.Equal(t, 1, f.ledger.Pending())
	assert.Equal(t, int64(1), f.reg.VerificationCount())
}

func TestRecordVerification_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t, ledger.BackendChain)
	ctx := context.Background()
	in := f.input(t, "req-race", nil)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.reg.RecordVerification(ctx, in); err == nil {
				ok.Add(1)
			} else {
				assert.ErrorIs(t, err, types.ErrDuplicateRequest)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, 1, f.ledger.Pending())
}

func TestRecordVerification_MissingInput(t *testing.T) {
	f := newFixture(t, ledger.BackendChain)
	ctx := context.Background()

	_, err := f.reg.RecordVerification(ctx, registry.VerificationInput{RequestID: "x"})
	require.ErrorIs(t, err, types.ErrMissingInput)

	in := f.input(t, "", nil)
	_, err = f.reg.RecordVerification(ctx, in)
	require.ErrorIs(t, err, types.ErrMissingInput)
}

func TestGetVerification_NotFound(t *testing.T) {
	f := newFixture(t, ledger.BackendChain)
	_, err := f.reg.GetVerification(context.Background(), "nope")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestNew_LoadsCount(t *testing.T) {
	f := newFixture(t, ledger.BackendChain)
	ctx := context.Background()
	_, err := f.reg.RecordVerification(ctx, f.input(t, "a", nil))
	require.NoError(t, err)
	_, err = f.reg.RecordVerification(ctx, f.input(t, "b", nil))
	require.NoError(t, err)

	reg, err := registry.New(ctx, registry.Config{Store: f.store, Ledger: f.ledger})
	require.NoError(t, err)
	assert.Equal(t, int64(2), reg.VerificationCount())
	assert.Equal(t, 2, f.ledger.Pending(), "pending transactions are not queued twice")
}

func TestNew_RequeuesUnsealedRecords(t *testing.T) {
	f := newFixture(t, ledger.BackendChain)
	ctx := context.Background()

	_, err := f.reg.RecordVerification(ctx, f.input(t, "sealed", nil))
	require.NoError(t, err)
	_, err = f.ledger.Seal(ctx)
	require.NoError(t, err)

	rec, err := f.reg.RecordVerification(ctx, f.input(t, "lost", map[string]any{"area": 1.0}))
	require.NoError(t, err)
	claim, err := f.reg.RecordClaim(ctx, registry.ClaimInput{
		BeneficiaryName: "Sita Devi",
		LandArea:        2.5,
		VillageCode:     "V-101",
		SubmitterID:     "officer-7",
	})
	require.NoError(t, err)

	// Restart: only the sealed blocks survive, the pending buffer does not.
	blocks, err := f.store.Blocks(ctx)
	require.NoError(t, err)
	restored, err := ledger.NewBackend(ctx, ledger.BackendChain, f.engine, blocks, ledger.WithSink(f.store))
	require.NoError(t, err)
	require.Equal(t, 0, restored.Pending())

	_, err = registry.New(ctx, registry.Config{Store: f.store, Ledger: restored, Engine: f.engine})
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Pending())

	_, err = restored.Seal(ctx)
	require.NoError(t, err)
	require.NoError(t, restored.VerifyChain(ctx))

	tx, _, err := restored.FindTransaction(ctx, rec.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, rec.Fingerprint.CombinedHash, tx.Hash)
	assert.Equal(t, types.TxDocumentVerification, tx.Type)

	tx, _, err = restored.FindTransaction(ctx, claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, types.TxClaimRegistration, tx.Type)

	// Once sealed, a further restart queues nothing.
	blocks, err = f.store.Blocks(ctx)
	require.NoError(t, err)
	again, err := ledger.NewBackend(ctx, ledger.BackendChain, f.engine, blocks)
	require.NoError(t, err)
	_, err = registry.New(ctx, registry.Config{Store: f.store, Ledger: again, Engine: f.engine})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Pending())
}

func TestRecordClaim(t *testing.T) {
	f := newFixture(t, ledger.BackendChain)
	ctx := context.Background()

	_, err := f.reg.RecordVerification(ctx, f.input(t, "req-doc", nil))
	require.NoError(t, err)
	pending := f.ledger.Pending()

	claim, err := f.reg.RecordClaim(ctx, registry.ClaimInput{
		ClaimType:             "IFR",
		BeneficiaryName:       "Sita Devi",
		LandArea:              2.5,
		VillageCode:           "V-101",
		SubmitterID:           "officer-7",
		VerificationRequestID: "req-doc",
	})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^FRA-\d{8}-[0-9A-F]{8}$`), claim.ClaimNumber)
	assert.Equal(t, registry.ClaimPending, claim.Status)
	require.Len(t, claim.AuditTrail, 1)
	assert.Equal(t, types.ActionClaimRegistered, claim.AuditTrail[0].Action)
	assert.Equal(t, pending+1, f.ledger.Pending(), "claim is anchored")

	_, err = f.ledger.Seal(ctx)
	require.NoError(t, err)
	tx, _, err := f.ledger.FindTransaction(ctx, claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, types.TxClaimRegistration, tx.Type)
}

func TestRecordClaim_DanglingReference(t *testing.T) {
	f := newFixture(t, ledger.BackendChain)
	ctx := context.Background()

	_, err := f.reg.RecordClaim(ctx, registry.ClaimInput{
		BeneficiaryName:       "Ravi",
		VillageCode:           "V-1",
		VerificationRequestID: "does-not-exist",
	})
	require.ErrorIs(t, err, types.ErrDanglingReference)

	claims, err := f.reg.ListClaims(ctx, types.ClaimFilter{})
	require.NoError(t, err)
	assert.Empty(t, claims, "nothing is created")
	assert.Equal(t, 0, f.ledger.Pending())
}

func TestRecordClaim_Validation(t *testing.T) {
	f := newFixture(t, ledger.BackendChain)
	ctx := context.Background()

	_, err := f.reg.RecordClaim(ctx, registry.ClaimInput{VillageCode: "V-1"})
	require.ErrorIs(t, err, types.ErrMissingInput)

	_, err = f.reg.RecordClaim(ctx, registry.ClaimInput{BeneficiaryName: "A", VillageCode: "V-1", LandArea: -1})
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestUpdateClaimStatus(t *testing.T) {
	f := newFixture(t, ledger.BackendChain)
	ctx := context.Background()

	claim, err := f.reg.RecordClaim(ctx, registry.ClaimInput{BeneficiaryName: "Ravi", VillageCode: "V-1"})
	require.NoError(t, err)

	updated, err := f.reg.UpdateClaimStatus(ctx, claim.ClaimID, registry.StatusUpdate{
		Status:         registry.ClaimApproved,
		ApprovalStatus: "sdlc_approved",
		ActorID:        "dlc-officer",
		Remarks:        "field survey complete",
	})
	require.NoError(t, err)
	assert.Equal(t, registry.ClaimApproved, updated.Status)
	assert.Equal(t, "sdlc_approved", updated.ApprovalStatus)
	require.Len(t, updated.AuditTrail, 2)
	assert.Equal(t, types.ActionStatusUpdated, updated.AuditTrail[1].Action)
	assert.Contains(t, updated.AuditTrail[1].Description, "pending to approved")
	assert.Equal(t, 2, f.ledger.Pending())

	got, err := f.reg.GetClaim(ctx, claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, registry.ClaimApproved, got.Status)

	_, err = f.reg.UpdateClaimStatus(ctx, "missing", registry.StatusUpdate{Status: registry.ClaimApproved})
	require.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.reg.UpdateClaimStatus(ctx, claim.ClaimID, registry.StatusUpdate{Status: "teleported"})
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestListClaimsAndStats(t *testing.T) {
	f := newFixture(t, ledger.BackendChain)
	ctx := context.Background()

	a, err := f.reg.RecordClaim(ctx, registry.ClaimInput{BeneficiaryName: "A", VillageCode: "V-1"})
	require.NoError(t, err)
	_, err = f.reg.RecordClaim(ctx, registry.ClaimInput{BeneficiaryName: "B", VillageCode: "V-2"})
	require.NoError(t, err)
	_, err = f.reg.UpdateClaimStatus(ctx, a.ClaimID, registry.StatusUpdate{Status: registry.ClaimDisputed})
	require.NoError(t, err)

	v1, err := f.reg.ListClaims(ctx, types.ClaimFilter{VillageCode: "V-1"})
	require.NoError(t, err)
	require.Len(t, v1, 1)
	assert.Equal(t, a.ClaimID, v1[0].ClaimID)

	stats, err := f.reg.ClaimStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[registry.ClaimDisputed])
	assert.Equal(t, 1, stats.ByStatus[registry.ClaimPending])
}
