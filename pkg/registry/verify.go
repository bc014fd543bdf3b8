package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/relves/fraledger/pkg/types"
)

// VerifyTransaction re-checks a recorded submission. An unknown request is not
// an error: the result has Found == false. expectedHash, when given, must equal
// the record's combined or document hash.
func (r *Registry) VerifyTransaction(ctx context.Context, requestID, expectedHash string) (*types.VerificationResult, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id", types.ErrMissingInput)
	}
	var expected string
	if expectedHash != "" {
		var err error
		if expected, err = r.engine.NormalizeHash(expectedHash); err != nil {
			return nil, err
		}
	}

	res := &types.VerificationResult{
		RequestID:  requestID,
		TrustLevel: types.TrustBasic,
		CheckedAt:  r.now().UTC(),
	}

	rec, err := r.store.GetVerification(ctx, requestID)
	if errors.Is(err, types.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	res.Found = true
	res.TransactionID = rec.TransactionID

	fp := rec.Fingerprint
	recomputed, err := r.engine.CombineHashes(fp.DocumentHash, fp.MetadataHash, "")
	if err != nil {
		return nil, err
	}
	res.HashMatches = recomputed == fp.CombinedHash &&
		(expected == "" || expected == fp.CombinedHash || expected == fp.DocumentHash)

	tx, block, err := r.ledger.FindTransaction(ctx, rec.TransactionID)
	switch {
	case err == nil:
		res.Confirmed = true
		idx := block.Index
		res.BlockNumber = &idx
		res.Confirmations = r.ledger.Latest().Index - block.Index + 1
		if tx.Hash != fp.CombinedHash {
			res.HashMatches = false
		}
	case errors.Is(err, types.ErrNotFound):
		// Still pending.
	default:
		return nil, err
	}

	res.Verified = res.HashMatches && rec.Status == types.StatusVerified
	res.Score = ConfidenceScore(rec, res.Confirmed)
	res.Confidence = float64(res.Score) / 100
	res.TrustLevel = TrustLevelFor(res.Score)
	return res, nil
}

// GenerateReport builds the audit view of a verification. Unknown requests
// produce a NOT_FOUND report rather than an error.
func (r *Registry) GenerateReport(ctx context.Context, requestID string) (*types.VerificationReport, error) {
	res, err := r.VerifyTransaction(ctx, requestID, "")
	if err != nil {
		return nil, err
	}
	return r.Report(ctx, res)
}

// Report builds a report around an existing verification result.
func (r *Registry) Report(ctx context.Context, res *types.VerificationResult) (*types.VerificationReport, error) {
	report := &types.VerificationReport{
		RequestID:    res.RequestID,
		Status:       types.ReportNotFound,
		Verification: res,
		Summary: types.ReportSummary{
			IsValid:        res.Verified,
			TrustLevel:     res.TrustLevel,
			IntegrityScore: IntegrityScore(res),
		},
		Recommendations: Recommendations(res),
		GeneratedAt:     r.now().UTC(),
	}
	if !res.Found {
		return report, nil
	}

	rec, err := r.store.GetVerification(ctx, res.RequestID)
	if err != nil {
		return nil, err
	}
	report.Status = types.ReportFound
	report.Record = rec
	return report, nil
}
