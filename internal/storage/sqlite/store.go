package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/relves/fraledger/pkg/types"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// DBFile is the database file name created under the store directory.
const DBFile = "fraledger.db"

type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (or creates) the database under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	dbPath := filepath.Join(dir, DBFile)
	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)"+
		"&_pragma=foreign_keys(ON)"+
		"&_pragma=busy_timeout(5000)"+ // Wait up to 5s on lock instead of returning SQLITE_BUSY immediately
		"&_pragma=synchronous(NORMAL)"+
		"&_pragma=wal_autocheckpoint(1000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connection pool - SQLite handles concurrent writes poorly
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the database file path.
func (s *Store) DBPath() string {
	return s.dbPath
}

// PutVerification inserts rec. Existing request IDs are left untouched.
func (s *Store) PutVerification(ctx context.Context, rec *types.VerificationRecord) error {
	data, err := rec.Serialize()
	if err != nil {
		return fmt.Errorf("serialize verification: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO verifications (request_id, submitter_id, created_at, data)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(request_id) DO NOTHING`,
		rec.RequestID, rec.SubmitterID, rec.SubmissionTimestamp.UnixNano(), data)
	if err != nil {
		return err
	}
	return insertedOrDuplicate(res, "verification "+rec.RequestID)
}

func (s *Store) GetVerification(ctx context.Context, requestID string) (*types.VerificationRecord, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM verifications WHERE request_id = ?`,
		requestID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("verification %s: %w", requestID, types.ErrNotFound)
	}
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
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verifications`).Scan(&n)
	return n, err
}

// ListVerifications returns every record, oldest submission first.
func (s *Store) ListVerifications(ctx context.Context) ([]*types.VerificationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM verifications ORDER BY created_at, request_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*types.VerificationRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec types.VerificationRecord
		if err := rec.Deserialize(data); err != nil {
			return nil, fmt.Errorf("decode verification: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// PutClaim inserts a new claim.
func (s *Store) PutClaim(ctx context.Context, claim *types.ClaimRecord) error {
	data, err := claim.Serialize()
	if err != nil {
		return fmt.Errorf("serialize claim: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO claims (claim_id, claim_number, status, village_code, created_at, data)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		claim.ClaimID, claim.ClaimNumber, claim.Status, claim.VillageCode, claim.CreatedAt.UnixNano(), data)
	if err != nil {
		return err
	}
	return insertedOrDuplicate(res, "claim "+claim.ClaimID)
}

// UpdateClaim replaces the stored claim.
func (s *Store) UpdateClaim(ctx context.Context, claim *types.ClaimRecord) error {
	data, err := claim.Serialize()
	if err != nil {
		return fmt.Errorf("serialize claim: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE claims SET status = ?, village_code = ?, data = ? WHERE claim_id = ?`,
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
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM claims WHERE claim_id = ?`,
		claimID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %s: %w", claimID, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var claim types.ClaimRecord
	if err := claim.Deserialize(data); err != nil {
		return nil, fmt.Errorf("decode claim %s: %w", claimID, err)
	}
	return &claim, nil
}

// ListClaims returns matching claims, newest first.
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

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*types.ClaimRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var claim types.ClaimRecord
		if err := claim.Deserialize(data); err != nil {
			return nil, fmt.Errorf("decode claim: %w", err)
		}
		claims = append(claims, &claim)
	}
	return claims, rows.Err()
}

func insertedOrDuplicate(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, types.ErrDuplicateRequest)
	}
	return nil
}
