package verification_test

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relves/fraledger/internal/archive"
	"github.com/relves/fraledger/internal/storage/dsstore"
	"github.com/relves/fraledger/pkg/hashing"
	"github.com/relves/fraledger/pkg/ledger"
	"github.com/relves/fraledger/pkg/registry"
	"github.com/relves/fraledger/pkg/types"
	"github.com/relves/fraledger/pkg/verification"
)

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

type env struct {
	svc    *verification.Service
	ledger ledger.Backend
	store  *dsstore.Store
	cache  *verification.LRUCache
}

func newEnv(t *testing.T, mutate func(*verification.Config)) *env {
	t.Helper()
	ctx := context.Background()
	engine := hashing.Default()
	store := dsstore.NewMemory()
	t.Cleanup(func() { store.Close() })

	l, err := ledger.NewBackend(ctx, ledger.BackendChain, engine, nil, ledger.WithSink(store))
	require.NoError(t, err)
	reg, err := registry.New(ctx, registry.Config{Store: store, Ledger: l, Engine: engine})
	require.NoError(t, err)

	cache := verification.NewLRUCache(16, time.Minute)
	cfg := verification.Config{
		Engine:   engine,
		Ledger:   l,
		Registry: reg,
		Archive:  archive.NewMemory(),
		Cache:    cache,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := verification.NewServiceWithConfig(ctx, cfg)
	require.NoError(t, err)
	return &env{svc: svc, ledger: l, store: store, cache: cache}
}

func TestSubmit_EndToEnd(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res, err := e.svc.Submit(ctx, verification.SubmitRequest{
		Document:    []byte("D1"),
		Metadata:    map[string]any{"b": 2, "a": 1},
		SubmitterID: "officer-1",
		RequestID:   "req-1",
	})
	require.NoError(t, err)

	docHash := sha("D1")
	metaHash := sha(`{"a":1,"b":2}`)
	assert.Equal(t, docHash, res.Fingerprint.DocumentHash)
	assert.Equal(t, metaHash, res.Fingerprint.MetadataHash)
	assert.Equal(t, sha(docHash+metaHash), res.Fingerprint.CombinedHash)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, res.TransactionID)
	assert.NotEmpty(t, res.ContentCID)

	require.NotNil(t, res.BlockNumber)
	assert.Equal(t, uint64(1), *res.BlockNumber)

	blocks := e.svc.Blocks(0, 0)
	require.Len(t, blocks, 2)
	assert.Equal(t, blocks[0].Hash, blocks[1].PreviousHash)
	require.Len(t, blocks[1].Transactions, 1)
	assert.Equal(t, res.Fingerprint.CombinedHash, blocks[1].Transactions[0].Hash)

	status, err := e.svc.QueryStatus(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, status.Found)
	assert.True(t, status.Confirmed)
	assert.Equal(t, types.SourceRegistry, status.Source)
	assert.Equal(t, uint64(1), status.Confirmations)
	assert.Equal(t, blocks[1].Hash, status.BlockHash)

	vr, err := e.svc.VerifyTransaction(ctx, "req-1", "")
	require.NoError(t, err)
	assert.True(t, vr.Verified)
	assert.True(t, vr.HashMatches)

	doc, err := e.svc.Document(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("D1"), doc)

	require.NoError(t, e.svc.VerifyChain(ctx))
}

func TestSubmit_GeneratesRequestID(t *testing.T) {
	e := newEnv(t, nil)
	res, err := e.svc.Submit(context.Background(), verification.SubmitRequest{Document: []byte("x")})
	require.NoError(t, err)
	assert.Len(t, res.RequestID, 36)
}

func TestSubmit_Errors(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	_, err := e.svc.Submit(ctx, verification.SubmitRequest{RequestID: "empty"})
	require.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("a"), RequestID: "dup"})
	require.NoError(t, err)
	_, err = e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("b"), RequestID: "dup"})
	require.ErrorIs(t, err, types.ErrDuplicateRequest)

	assert.Len(t, e.svc.Blocks(0, 0), 2, "rejected submissions add no block")
}

func TestSubmit_Batching(t *testing.T) {
	e := newEnv(t, func(cfg *verification.Config) { cfg.BatchSize = 3 })
	ctx := context.Background()

	for i, id := range []string{"r1", "r2"} {
		res, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte(id), RequestID: id})
		require.NoError(t, err)
		assert.Nil(t, res.BlockNumber, "submission %d still pending", i)
	}

	status, err := e.svc.QueryStatus(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, status.Found)
	assert.False(t, status.Confirmed)

	res, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("r3"), RequestID: "r3"})
	require.NoError(t, err)
	require.NotNil(t, res.BlockNumber)
	assert.Equal(t, uint64(1), *res.BlockNumber)

	b, err := e.svc.Block(1)
	require.NoError(t, err)
	assert.Len(t, b.Transactions, 3)
}

func TestClose_SealsPending(t *testing.T) {
	e := newEnv(t, func(cfg *verification.Config) { cfg.BatchSize = 10 })
	ctx := context.Background()

	_, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("x"), RequestID: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, e.ledger.Pending())

	require.NoError(t, e.svc.Close(ctx))
	assert.Equal(t, 0, e.ledger.Pending())
	assert.Len(t, e.svc.Blocks(0, 0), 2)

	// Nothing pending: no empty block.
	require.NoError(t, e.svc.Close(ctx))
	assert.Len(t, e.svc.Blocks(0, 0), 2)
}

func TestRun_SealsOnInterval(t *testing.T) {
	e := newEnv(t, func(cfg *verification.Config) {
		cfg.BatchSize = 100
		cfg.BatchInterval = 10 * time.Millisecond
	})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.svc.Run(ctx) }()

	_, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("x"), RequestID: "x"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return e.ledger.Pending() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	status, err := e.svc.QueryStatus(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, status.Confirmed)
}

func TestQueryStatus_LedgerFallback(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	submitted, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("d"), RequestID: "doc"})
	require.NoError(t, err)
	claim, err := e.svc.RecordClaim(ctx, registry.ClaimInput{
		BeneficiaryName:       "Sita",
		VillageCode:           "V-1",
		VerificationRequestID: "doc",
	})
	require.NoError(t, err)

	// A node that holds the chain but none of the records.
	engine := hashing.Default()
	blocks, err := e.store.Blocks(ctx)
	require.NoError(t, err)
	l, err := ledger.NewBackend(ctx, ledger.BackendChain, engine, blocks)
	require.NoError(t, err)
	reg, err := registry.New(ctx, registry.Config{Store: dsstore.NewMemory(), Ledger: l, Engine: engine})
	require.NoError(t, err)
	svc, err := verification.NewServiceWithConfig(ctx, verification.Config{Engine: engine, Ledger: l, Registry: reg})
	require.NoError(t, err)

	status, err := svc.QueryStatus(ctx, "doc")
	require.NoError(t, err)
	assert.True(t, status.Found)
	assert.True(t, status.Confirmed)
	assert.Equal(t, types.SourceLedger, status.Source)
	assert.Equal(t, submitted.TransactionID, status.TransactionID)
	assert.Nil(t, status.Fingerprint)

	byTx, err := svc.QueryStatus(ctx, submitted.TransactionID)
	require.NoError(t, err)
	assert.True(t, byTx.Found)

	missing, err := svc.QueryStatus(ctx, "nothing")
	require.NoError(t, err)
	assert.False(t, missing.Found)
	assert.Equal(t, types.SourceNone, missing.Source)

	_, err = svc.QueryStatus(ctx, "")
	require.ErrorIs(t, err, types.ErrMissingInput)

	// Claim transactions are on the same chain but are not verifications.
	byClaim, err := svc.QueryStatus(ctx, claim.ClaimID)
	require.NoError(t, err)
	assert.False(t, byClaim.Found)
	assert.Equal(t, types.SourceNone, byClaim.Source)
}

func TestQueryStatus_ClaimIDIsNotAVerification(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	claim, err := e.svc.RecordClaim(ctx, registry.ClaimInput{BeneficiaryName: "Ravi", VillageCode: "V-9"})
	require.NoError(t, err)
	require.Equal(t, 0, e.ledger.Pending(), "claim is sealed")

	status, err := e.svc.QueryStatus(ctx, claim.ClaimID)
	require.NoError(t, err)
	assert.False(t, status.Found)
	assert.False(t, status.Confirmed)
	assert.Empty(t, status.TransactionID)
}

func TestVerifyTransaction_Cache(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	_, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("a"), RequestID: "a"})
	require.NoError(t, err)

	first, err := e.svc.VerifyTransaction(ctx, "a", "")
	require.NoError(t, err)
	assert.Equal(t, 1, e.cache.Len())

	second, err := e.svc.VerifyTransaction(ctx, "a", "")
	require.NoError(t, err)
	assert.Equal(t, first.CheckedAt, second.CheckedAt, "served from cache")
	assert.Equal(t, 1, e.cache.Len())

	// A new block changes the key so confirmations are fresh.
	_, err = e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("b"), RequestID: "b"})
	require.NoError(t, err)
	third, err := e.svc.VerifyTransaction(ctx, "a", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), third.Confirmations)
	assert.Equal(t, 2, e.cache.Len())

	// Misses and expected-hash lookups are not cached.
	nf, err := e.svc.VerifyTransaction(ctx, "unknown", "")
	require.NoError(t, err)
	assert.False(t, nf.Found)
	_, err = e.svc.VerifyTransaction(ctx, "a", sha("a"))
	require.NoError(t, err)
	assert.Equal(t, 2, e.cache.Len())
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*types.VerificationResult, bool, error) {
	return nil, false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, *types.VerificationResult) error {
	return errors.New("cache down")
}

func TestVerifyTransaction_CacheErrorsAreMisses(t *testing.T) {
	e := newEnv(t, func(cfg *verification.Config) { cfg.Cache = failingCache{} })
	ctx := context.Background()

	_, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("a"), RequestID: "a"})
	require.NoError(t, err)
	res, err := e.svc.VerifyTransaction(ctx, "a", "")
	require.NoError(t, err)
	assert.True(t, res.Verified)
}

func TestVerifyTransaction_Concurrent(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("a"), RequestID: "a"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.svc.VerifyTransaction(ctx, "a", "")
			assert.NoError(t, err)
			assert.True(t, res.Found)
		}()
	}
	wg.Wait()
}

func TestSubmit_ConcurrentBlockNumbers(t *testing.T) {
	e := newEnv(t, func(cfg *verification.Config) { cfg.BatchSize = 1 })
	ctx := context.Background()

	const n = 300
	results := make([]*verification.SubmissionResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.svc.Submit(ctx, verification.SubmitRequest{
				Document:  []byte(fmt.Sprintf("doc-%d", i)),
				RequestID: fmt.Sprintf("req-%d", i),
			})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, e.ledger.Pending())
	require.NoError(t, e.ledger.VerifyChain(ctx))
	for _, b := range e.ledger.Blocks()[1:] {
		assert.NotEmpty(t, b.Transactions, "block %d", b.Index)
	}
	for i, res := range results {
		require.NotNil(t, res, "req-%d", i)
		require.NotNil(t, res.BlockNumber, "req-%d", i)
		_, b, err := e.ledger.FindTransaction(ctx, res.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, b.Index, *res.BlockNumber, "req-%d", i)
	}
}

func TestNewService_SealsRecordsLeftPendingAtShutdown(t *testing.T) {
	e := newEnv(t, func(cfg *verification.Config) { cfg.BatchSize = 5 })
	ctx := context.Background()

	res, err := e.svc.Submit(ctx, verification.SubmitRequest{
		Document:  []byte("patta"),
		RequestID: "unsealed",
		Metadata:  map[string]any{"area": 1.0},
	})
	require.NoError(t, err)
	assert.Nil(t, res.BlockNumber)
	claim, err := e.svc.RecordClaim(ctx, registry.ClaimInput{BeneficiaryName: "Ravi", VillageCode: "V-9"})
	require.NoError(t, err)
	require.Equal(t, 2, e.ledger.Pending())

	// The process stops without sealing; only persisted state survives.
	engine := hashing.Default()
	blocks, err := e.store.Blocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	l, err := ledger.NewBackend(ctx, ledger.BackendChain, engine, blocks, ledger.WithSink(e.store))
	require.NoError(t, err)
	reg, err := registry.New(ctx, registry.Config{Store: e.store, Ledger: l, Engine: engine})
	require.NoError(t, err)
	svc, err := verification.NewServiceWithConfig(ctx, verification.Config{Engine: engine, Ledger: l, Registry: reg, BatchSize: 5})
	require.NoError(t, err)
	require.Equal(t, 2, l.Pending(), "below batch size, still queued")

	_, err = l.Seal(ctx)
	require.NoError(t, err)

	status, err := svc.QueryStatus(ctx, "unsealed")
	require.NoError(t, err)
	assert.True(t, status.Found)
	assert.True(t, status.Confirmed)
	assert.Equal(t, res.TransactionID, status.TransactionID)

	_, _, err = l.FindTransaction(ctx, claim.ClaimID)
	require.NoError(t, err)
}

func TestNewService_SealsRequeuedBacklog(t *testing.T) {
	e := newEnv(t, func(cfg *verification.Config) { cfg.BatchSize = 5 })
	ctx := context.Background()

	_, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("a"), RequestID: "a"})
	require.NoError(t, err)

	engine := hashing.Default()
	blocks, err := e.store.Blocks(ctx)
	require.NoError(t, err)
	l, err := ledger.NewBackend(ctx, ledger.BackendChain, engine, blocks, ledger.WithSink(e.store))
	require.NoError(t, err)
	reg, err := registry.New(ctx, registry.Config{Store: e.store, Ledger: l, Engine: engine})
	require.NoError(t, err)
	svc, err := verification.NewServiceWithConfig(ctx, verification.Config{Engine: engine, Ledger: l, Registry: reg, BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, l.Pending())

	status, err := svc.QueryStatus(ctx, "a")
	require.NoError(t, err)
	assert.True(t, status.Confirmed)
}

func TestVerifyDocument(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("original"), RequestID: "r"})
	require.NoError(t, err)

	ok, err := e.svc.VerifyDocument(ctx, "r", []byte("original"))
	require.NoError(t, err)
	assert.True(t, ok.HashMatches)

	bad, err := e.svc.VerifyDocument(ctx, "r", []byte("forged"))
	require.NoError(t, err)
	assert.False(t, bad.HashMatches)
	assert.False(t, bad.Verified)
}

func TestGenerateReport(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("x"), RequestID: "r", Metadata: map[string]any{"k": "v"}})
	require.NoError(t, err)

	report, err := e.svc.GenerateReport(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, types.ReportFound, report.Status)
	assert.True(t, report.Summary.IsValid)
	require.NotNil(t, report.Record)

	missing, err := e.svc.GenerateReport(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, types.ReportNotFound, missing.Status)
}

func TestTransactionProof(t *testing.T) {
	e := newEnv(t, func(cfg *verification.Config) { cfg.BatchSize = 3 })
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte(id), RequestID: id})
		require.NoError(t, err)
	}

	p, err := e.svc.TransactionProof(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.BlockIndex)
	assert.True(t, p.Verify(hashing.Default()))
}

func TestClaims(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	claim, err := e.svc.RecordClaim(ctx, registry.ClaimInput{BeneficiaryName: "Ravi", VillageCode: "V-9"})
	require.NoError(t, err)

	updated, err := e.svc.UpdateClaimStatus(ctx, claim.ClaimID, registry.StatusUpdate{Status: registry.ClaimApproved, ActorID: "dlc-1"})
	require.NoError(t, err)
	assert.Equal(t, registry.ClaimApproved, updated.Status)
	assert.Len(t, updated.AuditTrail, 2)

	got, err := e.svc.GetClaim(ctx, claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, registry.ClaimApproved, got.Status)

	list, err := e.svc.ListClaims(ctx, types.ClaimFilter{VillageCode: "V-9"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Len(t, e.svc.Blocks(0, 0), 3, "registration and update are each sealed")
}

func TestBlocks_Paging(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte(id), RequestID: id})
		require.NoError(t, err)
	}

	assert.Len(t, e.svc.Blocks(0, 0), 4)
	page := e.svc.Blocks(1, 2)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(1), page[0].Index)
	assert.Empty(t, e.svc.Blocks(10, 2))
	assert.Empty(t, e.svc.Blocks(-1, 2))

	_, err := e.svc.Block(99)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestVerifyChain_HaltsOnTamper(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte(id), RequestID: id})
		require.NoError(t, err)
	}

	e.ledger.Blocks()[1].Transactions[0].Hash = sha("forged")

	err := e.svc.VerifyChain(ctx)
	var cie *types.ChainIntegrityError
	require.ErrorAs(t, err, &cie)
	assert.Equal(t, uint64(1), cie.Index)
	require.ErrorIs(t, e.svc.Halted(), types.ErrChainIntegrity)

	_, err = e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("c"), RequestID: "c"})
	require.ErrorIs(t, err, types.ErrChainIntegrity)
	_, err = e.svc.RecordClaim(ctx, registry.ClaimInput{BeneficiaryName: "x", VillageCode: "y"})
	require.ErrorIs(t, err, types.ErrChainIntegrity)
	_, err = e.svc.Seal(ctx)
	require.ErrorIs(t, err, types.ErrChainIntegrity)

	// Reads still work.
	status, err := e.svc.QueryStatus(ctx, "a")
	require.NoError(t, err)
	assert.True(t, status.Found)

	h, err := e.svc.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusHalted, h.Status)
	assert.NotEmpty(t, h.HaltReason)
}

func TestNewService_StartsHaltedOnBadChain(t *testing.T) {
	ctx := context.Background()
	engine := hashing.Default()
	store := dsstore.NewMemory()
	defer store.Close()

	l, err := ledger.NewBackend(ctx, ledger.BackendChain, engine, nil, ledger.WithSink(store))
	require.NoError(t, err)
	reg, err := registry.New(ctx, registry.Config{Store: store, Ledger: l, Engine: engine})
	require.NoError(t, err)
	svc, err := verification.NewServiceWithConfig(ctx, verification.Config{Engine: engine, Ledger: l, Registry: reg})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, verification.SubmitRequest{Document: []byte("a"), RequestID: "a"})
	require.NoError(t, err)

	blocks, err := store.Blocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	blocks[1].PreviousHash = sha("elsewhere")

	restored, err := ledger.NewBackend(ctx, ledger.BackendChain, engine, blocks)
	require.NoError(t, err)
	reg2, err := registry.New(ctx, registry.Config{Store: store, Ledger: restored, Engine: engine})
	require.NoError(t, err)
	svc2, err := verification.NewServiceWithConfig(ctx, verification.Config{Engine: engine, Ledger: restored, Registry: reg2})
	require.NoError(t, err)
	require.ErrorIs(t, svc2.Halted(), types.ErrChainIntegrity)
}

func TestHealth(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("a"), RequestID: "a"})
	require.NoError(t, err)

	h, err := e.svc.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusOK, h.Status)
	assert.Equal(t, 2, h.Ledger.BlockCount)
	assert.Equal(t, uint64(0), h.Genesis.Index)
	assert.Equal(t, int64(1), h.Verifications)
}

func TestCheckpoint(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer, err := ledger.NewEd25519Signer(priv, "")
	require.NoError(t, err)

	e := newEnv(t, func(cfg *verification.Config) {
		cfg.Signer = signer
		cfg.Origin = "fraledger.test"
	})
	ctx := context.Background()
	_, err = e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("a"), RequestID: "a"})
	require.NoError(t, err)

	cp, err := e.svc.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cp.Size)
	assert.True(t, cp.Verify(signer.PublicKey()))

	p, err := e.svc.InclusionProof(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, ledger.VerifyInclusion(p, cp.RootHash))

	noSigner := newEnv(t, nil)
	_, err = noSigner.svc.Checkpoint(ctx)
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestDocument_NoArchive(t *testing.T) {
	e := newEnv(t, func(cfg *verification.Config) { cfg.Archive = nil })
	ctx := context.Background()
	res, err := e.svc.Submit(ctx, verification.SubmitRequest{Document: []byte("a"), RequestID: "a"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ContentCID, "cid is still recorded")

	_, err = e.svc.Document(ctx, "a")
	require.ErrorIs(t, err, types.ErrNotFound)
}
