// Package postgres implements storage.Store on PostgreSQL via sqlx and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/relves/fraledger/internal/storage"
	"github.com/relves/fraledger/pkg/types"
)

// Migrations creates the schema. Each statement is idempotent.
var Migrations = []string{
	`CREATE TABLE IF NOT EXISTS verifications (
		request_id   TEXT PRIMARY KEY,
		submitter_id TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		data         JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS claims (
		claim_id     TEXT PRIMARY KEY,
		claim_number TEXT NOT NULL UNIQUE,
		status       TEXT NOT NULL,
		village_code TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		data         JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status)`,
	`CREATE INDEX IF NOT EXISTS idx_claims_village ON claims(village_code)`,
	`CREATE TABLE IF NOT EXISTS blocks (
		block_index BIGINT PRIMARY KEY,
		hash        TEXT NOT NULL,
		data        JSONB NOT NULL
	)`,
}

const uniqueViolation = "23505"

var _ storage.Store = (*Store)(nil)

type Store struct {
	db *sqlx.DB
}

// Open connects to dsn and applies Migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	for _, migration := range Migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migration: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Truncate removes every row. Only tests call it.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE verifications, claims, blocks`)
	return err
}

func (s *Store) PutVerification(ctx context.Context, rec *types.VerificationRecord) error {
	data, err := rec.Serialize()
	if err != nil {
		return fmt.Errorf("serialize verification: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO verifications (request_id, submitter_id, created_at, data) VALUES (?, ?, ?, ?)`),
		rec.RequestID, rec.SubmitterID, rec.SubmissionTimestamp, data)
	return translate(err, "verification "+rec.RequestID)
}

func (s *Store) GetVerification(ctx context.Context, requestID string) (*types.VerificationRecord, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, s.db.Rebind(
		`SELECT data FROM verifications WHERE request_id = ?`), requestID)
	if err != nil {
		return nil, translate(err, "verification "+requestID)
	}
	var rec types.VerificationRecord
	if err := rec.Deserialize(data); err != nil {
		return nil, fmt.Errorf("decode verification %s: %w", requestID, err)
	}
	return &rec, nil
}

func (s *Store) CountVerifications(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM verifications`)
	return n, err
}

func (s *Store) ListVerifications(ctx context.Context) ([]*types.VerificationRecord, error) {
	var rows [][]byte
	if err := s.db.SelectContext(ctx, &rows, `SELECT data FROM verifications ORDER BY created_at, request_id`); err != nil {
		return nil, err
	}
	recs := make([]*types.VerificationRecord, 0, len(rows))
	for _, data := range rows {
		var rec types.VerificationRecord
		if err := rec.Deserialize(data); err != nil {
			return nil, fmt.Errorf("decode verification: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}

func (s *Store) PutClaim(ctx context.Context, claim *types.ClaimRecord) error {
	data, err := claim.Serialize()
	if err != nil {
		return fmt.Errorf("serialize claim: %w", err)
	}
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO claims (claim_id, claim_number, status, village_code, created_at, data)
		 VALUES (:claim_id, :claim_number, :status, :village_code, :created_at, :data)`,
		claimRow{
			ClaimID:     claim.ClaimID,
			ClaimNumber: claim.ClaimNumber,
			Status:      claim.Status,
			VillageCode: claim.VillageCode,
			CreatedAt:   claim.CreatedAt,
			Data:        data,
		})
	return translate(err, "claim "+claim.ClaimID)
}

func (s *Store) UpdateClaim(ctx context.Context, claim *types.ClaimRecord) error {
	data, err := claim.Serialize()
	if err != nil {
		return fmt.Errorf("serialize claim: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE claims SET status = ?, village_code = ?, data = ? WHERE claim_id = ?`),
		claim.Status, claim.VillageCode, data, claim.ClaimID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("claim %s: %w", claim.ClaimID, types.ErrNotFound)
	}
	return nil
}

func (s *Store) GetClaim(ctx context.Context, claimID string) (*types.ClaimRecord, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, s.db.Rebind(
		`SELECT data FROM claims WHERE claim_id = ?`), claimID)
	if err != nil {
		return nil, translate(err, "claim "+claimID)
	}
	var claim types.ClaimRecord
	if err := claim.Deserialize(data); err != nil {
		return nil, fmt.Errorf("decode claim %s: %w", claimID, err)
	}
	return &claim, nil
}

func (s *Store) ListClaims(ctx context.Context, filter types.ClaimFilter) ([]*types.ClaimRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.VillageCode != "" {
		where = append(where, "village_code = ?")
		args = append(args, filter.VillageCode)
	}
	query := `SELECT data FROM claims`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, claim_id`

	var rows [][]byte
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	claims := make([]*types.ClaimRecord, 0, len(rows))
	for _, data := range rows {
		var claim types.ClaimRecord
		if err := claim.Deserialize(data); err != nil {
			return nil, fmt.Errorf("decode claim: %w", err)
		}
		claims = append(claims, &claim)
	}
	return claims, nil
}

func (s *Store) AppendBlock(ctx context.Context, block *types.Block) error {
	data, err := block.Serialize()
	if err != nil {
		return fmt.Errorf("serialize block: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO blocks (block_index, hash, data) VALUES (?, ?, ?)`),
		int64(block.Index), block.Hash, data)
	if err != nil {
		return fmt.Errorf("append block %d: %w", block.Index, translate(err, "block"))
	}
	return nil
}

func (s *Store) Blocks(ctx context.Context) ([]*types.Block, error) {
	var rows [][]byte
	if err := s.db.SelectContext(ctx, &rows, `SELECT data FROM blocks ORDER BY block_index`); err != nil {
		return nil, err
	}
	blocks := make([]*types.Block, 0, len(rows))
	for _, data := range rows {
		var b types.Block
		if err := b.Deserialize(data); err != nil {
			return nil, fmt.Errorf("decode block: %w", err)
		}
		blocks = append(blocks, &b)
	}
	return blocks, nil
}

type claimRow struct {
	ClaimID     string    `db:"claim_id"`
	ClaimNumber string    `db:"claim_number"`
	Status      string    `db:"status"`
	VillageCode string    `db:"village_code"`
	CreatedAt   time.Time `db:"created_at"`
	Data        []byte    `db:"data"`
}

func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, types.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", what, types.ErrDuplicateRequest)
	}
	return err
}
