// Package dsstore implements storage.Store over an IPFS datastore. With the
// map datastore it is the in-memory driver used for tests and development.
package dsstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ipfs/boxo/datastore/dshelp"
	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	dssync "github.com/ipfs/go-datastore/sync"

	"github.com/relves/fraledger/internal/storage"
	"github.com/relves/fraledger/pkg/types"
)

var (
	verificationsPrefix = ds.NewKey("/verifications")
	claimsPrefix        = ds.NewKey("/claims")
	blocksPrefix        = ds.NewKey("/blocks")
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	d ds.Datastore

	// Serializes check-then-put; the datastore only locks single operations.
	mu sync.Mutex
}

// New wraps an existing datastore.
func New(d ds.Datastore) *Store {
	return &Store{d: d}
}

// NewMemory returns a store backed by a thread-safe map datastore.
func NewMemory() *Store {
	return New(dssync.MutexWrap(ds.NewMapDatastore()))
}

// Datastore exposes the underlying datastore so other components can share it.
func (s *Store) Datastore() ds.Datastore {
	return s.d
}

func (s *Store) Close() error {
	return s.d.Close()
}

func (s *Store) PutVerification(ctx context.Context, rec *types.VerificationRecord) error {
	data, err := rec.Serialize()
	if err != nil {
		return fmt.Errorf("serialize verification: %w", err)
	}
	return s.insert(ctx, recordKey(verificationsPrefix, rec.RequestID), data, "verification "+rec.RequestID)
}

func (s *Store) GetVerification(ctx context.Context, requestID string) (*types.VerificationRecord, error) {
	data, err := s.get(ctx, recordKey(verificationsPrefix, requestID), "verification "+requestID)
	if err != nil {
		return nil, err
	}
	var rec types.VerificationRecord
	if err := rec.Deserialize(data); err != nil {
		return nil, fmt.Errorf("decode verification %s: %w", requestID, err)
	}
	return &rec, nil
}

func (s *Store) CountVerifications(ctx context.Context) (int, error) {
	res, err := s.d.Query(ctx, query.Query{Prefix: verificationsPrefix.String(), KeysOnly: true})
	if err != nil {
		return 0, err
	}
	entries, err := res.Rest()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ListVerifications returns every record, oldest submission first.
func (s *Store) ListVerifications(ctx context.Context) ([]*types.VerificationRecord, error) {
	res, err := s.d.Query(ctx, query.Query{Prefix: verificationsPrefix.String()})
	if err != nil {
		return nil, err
	}
	entries, err := res.Rest()
	if err != nil {
		return nil, err
	}

	recs := make([]*types.VerificationRecord, 0, len(entries))
	for _, e := range entries {
		var rec types.VerificationRecord
		if err := rec.Deserialize(e.Value); err != nil {
			return nil, fmt.Errorf("decode verification %s: %w", e.Key, err)
		}
		recs = append(recs, &rec)
	}
	slices.SortFunc(recs, func(a, b *types.VerificationRecord) int {
		if c := a.SubmissionTimestamp.Compare(b.SubmissionTimestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.RequestID, b.RequestID)
	})
	return recs, nil
}

func (s *Store) PutClaim(ctx context.Context, claim *types.ClaimRecord) error {
	data, err := claim.Serialize()
	if err != nil {
		return fmt.Errorf("serialize claim: %w", err)
	}
	return s.insert(ctx, recordKey(claimsPrefix, claim.ClaimID), data, "claim "+claim.ClaimID)
}

func (s *Store) UpdateClaim(ctx context.Context, claim *types.ClaimRecord) error {
	data, err := claim.Serialize()
	if err != nil {
		return fmt.Errorf("serialize claim: %w", err)
	}
	key := recordKey(claimsPrefix, claim.ClaimID)

	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.d.Has(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("claim %s: %w", claim.ClaimID, types.ErrNotFound)
	}
	return s.d.Put(ctx, key, data)
}

func (s *Store) GetClaim(ctx context.Context, claimID string) (*types.ClaimRecord, error) {
	data, err := s.get(ctx, recordKey(claimsPrefix, claimID), "claim "+claimID)
	if err != nil {
		return nil, err
	}
	var claim types.ClaimRecord
	if err := claim.Deserialize(data); err != nil {
		return nil, fmt.Errorf("decode claim %s: %w", claimID, err)
	}
	return &claim, nil
}

func (s *Store) ListClaims(ctx context.Context, filter types.ClaimFilter) ([]*types.ClaimRecord, error) {
	res, err := s.d.Query(ctx, query.Query{Prefix: claimsPrefix.String()})
	if err != nil {
		return nil, err
	}
	entries, err := res.Rest()
	if err != nil {
		return nil, err
	}

	var claims []*types.ClaimRecord
	for _, e := range entries {
		var claim types.ClaimRecord
		if err := claim.Deserialize(e.Value); err != nil {
			return nil, fmt.Errorf("decode claim %s: %w", e.Key, err)
		}
		if filter.Matches(&claim) {
			claims = append(claims, &claim)
		}
	}
	slices.SortFunc(claims, func(a, b *types.ClaimRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ClaimID, b.ClaimID)
	})
	return claims, nil
}

func (s *Store) AppendBlock(ctx context.Context, block *types.Block) error {
	data, err := block.Serialize()
	if err != nil {
		return fmt.Errorf("serialize block: %w", err)
	}
	if err := s.insert(ctx, blockKey(block.Index), data, fmt.Sprintf("block %d", block.Index)); err != nil {
		return fmt.Errorf("append block %d: %w", block.Index, err)
	}
	return nil
}

func (s *Store) Blocks(ctx context.Context) ([]*types.Block, error) {
	res, err := s.d.Query(ctx, query.Query{
		Prefix: blocksPrefix.String(),
		Orders: []query.Order{query.OrderByKey{}},
	})
	if err != nil {
		return nil, err
	}
	entries, err := res.Rest()
	if err != nil {
		return nil, err
	}

	blocks := make([]*types.Block, 0, len(entries))
	for _, e := range entries {
		var b types.Block
		if err := b.Deserialize(e.Value); err != nil {
			return nil, fmt.Errorf("decode block %s: %w", e.Key, err)
		}
		blocks = append(blocks, &b)
	}
	return blocks, nil
}

func (s *Store) insert(ctx context.Context, key ds.Key, data []byte, what string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.d.Has(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%s: %w", what, types.ErrDuplicateRequest)
	}
	return s.d.Put(ctx, key, data)
}

func (s *Store) get(ctx context.Context, key ds.Key, what string) ([]byte, error) {
	data, err := s.d.Get(ctx, key)
	if errors.Is(err, ds.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", what, types.ErrNotFound)
	}
	return data, err
}

// recordKey base32-encodes id into one key segment. ds.Key path-cleans raw
// strings, so "./a" would alias "a" and "../blocks/1" would leave the prefix.
func recordKey(prefix ds.Key, id string) ds.Key {
	return prefix.Child(dshelp.NewKeyFromBinary([]byte(id)))
}

// Zero padded so key order is index order.
func blockKey(index uint64) ds.Key {
	return blocksPrefix.ChildString(fmt.Sprintf("%020d", index))
}
