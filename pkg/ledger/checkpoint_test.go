package ledger_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relves/fraledger/pkg/hashing"
	"github.com/relves/fraledger/pkg/ledger"
	"github.com/relves/fraledger/pkg/types"
)

func newSigner(t *testing.T) *ledger.Ed25519Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	s, err := ledger.NewEd25519Signer(priv, "")
	require.NoError(t, err)
	return s
}

func buildChain(t *testing.T, sealed int) *ledger.Ledger {
	t.Helper()
	ctx := context.Background()
	l, err := ledger.New(ctx, hashing.Default())
	require.NoError(t, err)
	for i := 0; i < sealed; i++ {
		_, err := l.Seal(ctx)
		require.NoError(t, err)
	}
	return l
}

func TestNewEd25519Signer(t *testing.T) {
	s := newSigner(t)
	assert.Contains(t, s.Name(), "fraledger-")
	assert.NotZero(t, s.KeyHash())

	_, err := ledger.NewEd25519Signer(ed25519.PrivateKey{1, 2, 3}, "x")
	require.Error(t, err)
}

func TestCheckpoint_SignAndVerify(t *testing.T) {
	s := newSigner(t)
	l := buildChain(t, 4)

	cp, err := ledger.NewCheckpoint(l.Blocks(), "fraledger.test/log", s)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cp.Size)
	assert.Equal(t, "fraledger.test/log", cp.Origin)
	assert.True(t, cp.Verify(s.PublicKey()))

	cp.Size++
	assert.False(t, cp.Verify(s.PublicKey()), "body change invalidates signature")

	other := newSigner(t)
	cp.Size--
	assert.False(t, cp.Verify(other.PublicKey()))
}

func TestTreeRoot_Empty(t *testing.T) {
	root, err := ledger.TreeRoot(nil)
	require.NoError(t, err)
	assert.Len(t, root, 32)
}

func TestInclusionProof(t *testing.T) {
	for _, sealed := range []int{0, 1, 2, 4, 6} {
		l := buildChain(t, sealed)
		blocks := l.Blocks()
		root, err := ledger.TreeRoot(blocks)
		require.NoError(t, err)

		for i := range blocks {
			p, err := ledger.NewInclusionProof(blocks, uint64(i))
			require.NoError(t, err)
			assert.Equal(t, root, p.RootHash)
			require.NoError(t, ledger.VerifyInclusion(p, root), "size=%d index=%d", len(blocks), i)

			forged := *p
			forged.BlockHash = hashing.Default().Sum("forged")
			require.ErrorIs(t, ledger.VerifyInclusion(&forged, root), types.ErrChainIntegrity)
		}
	}
}

func TestInclusionProof_OutOfRange(t *testing.T) {
	l := buildChain(t, 1)
	_, err := ledger.NewInclusionProof(l.Blocks(), 2)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestTransactionProof(t *testing.T) {
	ctx := context.Background()
	engine := hashing.Default()
	l, err := ledger.New(ctx, engine)
	require.NoError(t, err)

	var txs []types.Transaction
	for _, id := range []string{"a", "b", "c"} {
		tx := newTx(l, id)
		txs = append(txs, tx)
		require.NoError(t, l.Enqueue(ctx, tx))
	}
	block, err := l.Seal(ctx)
	require.NoError(t, err)

	for _, tx := range txs {
		p, err := ledger.NewTransactionProof(engine, block, tx.ID)
		require.NoError(t, err)
		assert.True(t, p.Verify(engine))
	}

	_, err = ledger.NewTransactionProof(engine, block, "0xmissing")
	require.ErrorIs(t, err, types.ErrNotFound)
}
