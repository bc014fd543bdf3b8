package registry

import (
	"github.com/relves/fraledger/pkg/ledger"
	"github.com/relves/fraledger/pkg/types"
)

// Confidence weights. These values are part of the compatibility contract
// with existing reports and must not be tuned.
const (
	weightDocumentHash  = 25
	weightMetadataHash  = 15
	weightCombinedHash  = 10
	weightBlockRef      = 20
	weightRealTxID      = 20
	weightMetadataGiven = 10
)

// Trust tier thresholds.
const (
	goldThreshold   = 90
	silverThreshold = 70
	bronzeThreshold = 50
)

// Integrity score weights for reports.
const (
	integrityFound         = 30
	integrityConfirmed     = 20
	integrityVerified      = 25
	integrityHashMatches   = 15
	integrityConfirmations = 10
	integrityMax           = 100

	// MinConfirmations is the depth at which a transaction earns the
	// confirmations component of the integrity score.
	MinConfirmations = 6
)

// highConfidence separates "proceed" from "consider additional verification".
const highConfidence = 0.8

// Recommendation texts.
const (
	RecommendResubmit   = "Document not found: resubmit the document for verification."
	RecommendCheck      = "Verification failed: check document integrity and resubmit."
	RecommendAdditional = "Confidence is below 80%: consider additional verification."
	RecommendProceed    = "Document verified with high confidence: proceed."
)

// ConfidenceScore scores a record's completeness out of 100. hasBlock reports
// whether the record's transaction is sealed in a block.
func ConfidenceScore(rec *types.VerificationRecord, hasBlock bool) int {
	score := 0
	if rec.Fingerprint.DocumentHash != "" {
		score += weightDocumentHash
	}
	if rec.Fingerprint.MetadataHash != "" {
		score += weightMetadataHash
	}
	if rec.Fingerprint.CombinedHash != "" {
		score += weightCombinedHash
	}
	if hasBlock {
		score += weightBlockRef
	}
	if rec.TransactionID != "" && !ledger.IsMockTransactionID(rec.TransactionID) {
		score += weightRealTxID
	}
	if len(rec.Metadata) > 0 {
		score += weightMetadataGiven
	}
	return score
}

// TrustLevelFor maps a confidence score to its tier.
func TrustLevelFor(score int) types.TrustLevel {
	switch {
	case score >= goldThreshold:
		return types.TrustGold
	case score >= silverThreshold:
		return types.TrustSilver
	case score >= bronzeThreshold:
		return types.TrustBronze
	default:
		return types.TrustBasic
	}
}

// IntegrityScore is the report score, capped at 100.
func IntegrityScore(res *types.VerificationResult) int {
	score := 0
	if res.Found {
		score += integrityFound
	}
	if res.Confirmed {
		score += integrityConfirmed
	}
	if res.Verified {
		score += integrityVerified
	}
	if res.HashMatches {
		score += integrityHashMatches
	}
	if res.Confirmations >= MinConfirmations {
		score += integrityConfirmations
	}
	return min(score, integrityMax)
}

// Recommendations returns the report advice for a verification result.
func Recommendations(res *types.VerificationResult) []string {
	switch {
	case !res.Found:
		return []string{RecommendResubmit}
	case !res.Verified:
		return []string{RecommendCheck}
	case res.Confidence < highConfidence:
		return []string{RecommendAdditional}
	default:
		return []string{RecommendProceed}
	}
}
