package types

import "time"

// TrustLevel is a coarse confidence label derived from a record's completeness.
type TrustLevel string

const (
	TrustGold   TrustLevel = "GOLD"
	TrustSilver TrustLevel = "SILVER"
	TrustBronze TrustLevel = "BRONZE"
	TrustBasic  TrustLevel = "BASIC"
)

// VerificationResult is the outcome of re-verifying a recorded submission.
type VerificationResult struct {
	RequestID     string     `json:"requestId"`
	Found         bool       `json:"found"`
	Verified      bool       `json:"verified"`
	Confirmed     bool       `json:"confirmed"`
	HashMatches   bool       `json:"hashMatches"`
	Confidence    float64    `json:"confidence"`
	Score         int        `json:"score"`
	TrustLevel    TrustLevel `json:"trustLevel"`
	TransactionID string     `json:"transactionId,omitempty"`
	BlockNumber   *uint64    `json:"blockNumber,omitempty"`
	Confirmations uint64     `json:"confirmations"`
	CheckedAt     time.Time  `json:"checkedAt"`
}

// ReportStatus is the top-level status of a verification report.
type ReportStatus string

const (
	ReportFound    ReportStatus = "FOUND"
	ReportNotFound ReportStatus = "NOT_FOUND"
)

// ReportSummary condenses a verification into audit-friendly fields.
type ReportSummary struct {
	IsValid        bool       `json:"isValid"`
	TrustLevel     TrustLevel `json:"trustLevel"`
	IntegrityScore int        `json:"integrityScore"`
}

// VerificationReport is the audit/export view of a verification.
type VerificationReport struct {
	RequestID       string              `json:"requestId"`
	Status          ReportStatus        `json:"status"`
	Verification    *VerificationResult `json:"verification"`
	Record          *VerificationRecord `json:"record,omitempty"`
	Summary         ReportSummary       `json:"summary"`
	Recommendations []string            `json:"recommendations"`
	GeneratedAt     time.Time           `json:"generatedAt"`
}

// StatusSource tells where QueryStatus found a request.
type StatusSource string

const (
	SourceRegistry StatusSource = "registry"
	SourceLedger   StatusSource = "ledger"
	SourceNone     StatusSource = "none"
)

// VerificationStatus is the badge-level status of a request.
type VerificationStatus struct {
	RequestID           string       `json:"requestId"`
	Found               bool         `json:"found"`
	Confirmed           bool         `json:"confirmed"`
	Source              StatusSource `json:"source"`
	TransactionID       string       `json:"transactionId,omitempty"`
	BlockNumber         *uint64      `json:"blockNumber,omitempty"`
	BlockHash           string       `json:"blockHash,omitempty"`
	Confirmations       uint64       `json:"confirmations"`
	Fingerprint         *Fingerprint `json:"fingerprint,omitempty"`
	SubmissionTimestamp *time.Time   `json:"submissionTimestamp,omitempty"`
}
