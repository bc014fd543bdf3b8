// Package mongo implements storage.Store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/relves/fraledger/internal/storage"
	"github.com/relves/fraledger/pkg/types"
)

const (
	verificationsCollection = "verifications"
	claimsCollection        = "claims"
	blocksCollection        = "blocks"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	client        *mongo.Client
	verifications *mongo.Collection
	claims        *mongo.Collection
	blocks        *mongo.Collection
}

type recordDoc struct {
	ID          string    `bson:"_id"`
	Status      string    `bson:"status,omitempty"`
	VillageCode string    `bson:"village_code,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	Data        []byte    `bson:"data"`
}

type blockDoc struct {
	Index int64  `bson:"_id"`
	Hash  string `bson:"hash"`
	Data  []byte `bson:"data"`
}

// Open connects to uri and prepares the collections of database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:        client,
		verifications: db.Collection(verificationsCollection),
		claims:        db.Collection(claimsCollection),
		blocks:        db.Collection(blocksCollection),
	}

	_, err = s.claims.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "village_code", Value: 1}}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("create claim indexes: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes every collection. Only tests call it.
func (s *Store) Drop(ctx context.Context) error {
	for _, c := range []*mongo.Collection{s.verifications, s.claims, s.blocks} {
		if err := c.Drop(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) PutVerification(ctx context.Context, rec *types.VerificationRecord) error {
	data, err := rec.Serialize()
	if err != nil {
		return fmt.Errorf("serialize verification: %w", err)
	}
	_, err = s.verifications.InsertOne(ctx, recordDoc{
		ID:        rec.RequestID,
		CreatedAt: rec.SubmissionTimestamp,
		Data:      data,
	})
	return translate(err, "verification "+rec.RequestID)
}

func (s *Store) GetVerification(ctx context.Context, requestID string) (*types.VerificationRecord, error) {
	var doc recordDoc
	if err := s.verifications.FindOne(ctx, bson.M{"_id": requestID}).Decode(&doc); err != nil {
		return nil, translate(err, "verification "+requestID)
	}
	var rec types.VerificationRecord
	if err := rec.Deserialize(doc.Data); err != nil {
		return nil, fmt.Errorf("decode verification %s: %w", requestID, err)
	}
	return &rec, nil
}

func (s *Store) CountVerifications(ctx context.Context) (int, error) {
	n, err := s.verifications.CountDocuments(ctx, bson.D{})
	return int(n), err
}

func (s *Store) ListVerifications(ctx context.Context) ([]*types.VerificationRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.verifications.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var recs []*types.VerificationRecord
	for cursor.Next(ctx) {
		var doc recordDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		var rec types.VerificationRecord
		if err := rec.Deserialize(doc.Data); err != nil {
			return nil, fmt.Errorf("decode verification %s: %w", doc.ID, err)
		}
		recs = append(recs, &rec)
	}
	return recs, cursor.Err()
}

func (s *Store) PutClaim(ctx context.Context, claim *types.ClaimRecord) error {
	data, err := claim.Serialize()
	if err != nil {
		return fmt.Errorf("serialize claim: %w", err)
	}
	_, err = s.claims.InsertOne(ctx, claimDoc(claim, data))
	return translate(err, "claim "+claim.ClaimID)
}

func (s *Store) UpdateClaim(ctx context.Context, claim *types.ClaimRecord) error {
	data, err := claim.Serialize()
	if err != nil {
		return fmt.Errorf("serialize claim: %w", err)
	}
	res, err := s.claims.ReplaceOne(ctx, bson.M{"_id": claim.ClaimID}, claimDoc(claim, data))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("claim %s: %w", claim.ClaimID, types.ErrNotFound)
	}
	return nil
}

func (s *Store) GetClaim(ctx context.Context, claimID string) (*types.ClaimRecord, error) {
	var doc recordDoc
	if err := s.claims.FindOne(ctx, bson.M{"_id": claimID}).Decode(&doc); err != nil {
		return nil, translate(err, "claim "+claimID)
	}
	var claim types.ClaimRecord
	if err := claim.Deserialize(doc.Data); err != nil {
		return nil, fmt.Errorf("decode claim %s: %w", claimID, err)
	}
	return &claim, nil
}

func (s *Store) ListClaims(ctx context.Context, filter types.ClaimFilter) ([]*types.ClaimRecord, error) {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if filter.VillageCode != "" {
		q["village_code"] = filter.VillageCode
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})

	cursor, err := s.claims.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var claims []*types.ClaimRecord
	for cursor.Next(ctx) {
		var doc recordDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		var claim types.ClaimRecord
		if err := claim.Deserialize(doc.Data); err != nil {
			return nil, fmt.Errorf("decode claim %s: %w", doc.ID, err)
		}
		claims = append(claims, &claim)
	}
	return claims, cursor.Err()
}

func (s *Store) AppendBlock(ctx context.Context, block *types.Block) error {
	data, err := block.Serialize()
	if err != nil {
		return fmt.Errorf("serialize block: %w", err)
	}
	_, err = s.blocks.InsertOne(ctx, blockDoc{Index: int64(block.Index), Hash: block.Hash, Data: data})
	if err != nil {
		return fmt.Errorf("append block %d: %w", block.Index, translate(err, "block"))
	}
	return nil
}

func (s *Store) Blocks(ctx context.Context) ([]*types.Block, error) {
	cursor, err := s.blocks.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var blocks []*types.Block
	for cursor.Next(ctx) {
		var doc blockDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		var b types.Block
		if err := b.Deserialize(doc.Data); err != nil {
			return nil, fmt.Errorf("decode block %d: %w", doc.Index, err)
		}
		blocks = append(blocks, &b)
	}
	return blocks, cursor.Err()
}

func claimDoc(claim *types.ClaimRecord, data []byte) recordDoc {
	return recordDoc{
		ID:          claim.ClaimID,
		Status:      claim.Status,
		VillageCode: claim.VillageCode,
		CreatedAt:   claim.CreatedAt,
		Data:        data,
	}
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", what, types.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", what, types.ErrDuplicateRequest)
	default:
		return err
	}
}
