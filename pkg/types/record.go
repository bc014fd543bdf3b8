// Package types holds the data model shared by the hashing, ledger, registry
// and verification packages.
package types

import (
	"encoding/json"
	"time"
)

// Fingerprint identifies a submitted document's content and context.
// All hashes are lower-case hex digests.
type Fingerprint struct {
	DocumentHash string `json:"documentHash"`
	MetadataHash string `json:"metadataHash"`
	CombinedHash string `json:"combinedHash"`
}

// RecordStatus is the status of a verification record.
type RecordStatus string

const (
	StatusVerified RecordStatus = "VERIFIED"
)

// AuditAction names an entry in an audit trail.
type AuditAction string

const (
	ActionDocumentVerified AuditAction = "DOCUMENT_VERIFIED"
	ActionClaimRegistered  AuditAction = "CLAIM_REGISTERED"
	ActionStatusUpdated    AuditAction = "STATUS_UPDATED"
)

// AuditEntry is one append-only step of a record's history.
type AuditEntry struct {
	Action      AuditAction `json:"action"`
	Description string      `json:"description"`
	ActorID     string      `json:"actorId,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// VerificationRecord is the canonical, immutable evidence of a submission.
type VerificationRecord struct {
	RequestID           string         `json:"requestId"`
	Fingerprint         Fingerprint    `json:"fingerprint"`
	SubmitterID         string         `json:"submitterId"`
	SubmissionTimestamp time.Time      `json:"submissionTimestamp"`
	FileInfo            map[string]any `json:"fileInfo,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	Status              RecordStatus   `json:"status"`
	TransactionID       string         `json:"transactionId"`
	ContentCID          string         `json:"contentCid,omitempty"`
	AuditTrail          []AuditEntry   `json:"auditTrail"`
}

// Serialize converts a VerificationRecord to JSON bytes for storage.
func (r *VerificationRecord) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

// Deserialize populates a VerificationRecord from JSON bytes.
func (r *VerificationRecord) Deserialize(data []byte) error {
	return json.Unmarshal(data, r)
}

// ClaimRecord is a forest-rights claim that may reference a verification.
type ClaimRecord struct {
	ClaimID               string         `json:"claimId"`
	ClaimNumber           string         `json:"claimNumber"`
	ClaimType             string         `json:"claimType,omitempty"`
	BeneficiaryName       string         `json:"beneficiaryName"`
	LandArea              float64        `json:"landArea"`
	Coordinates           map[string]any `json:"coordinates,omitempty"`
	VillageCode           string         `json:"villageCode"`
	SubmitterID           string         `json:"submitterId"`
	VerificationRequestID string         `json:"verificationRequestId,omitempty"`
	Status                string         `json:"status"`
	ApprovalStatus        string         `json:"approvalStatus,omitempty"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
	AuditTrail            []AuditEntry   `json:"auditTrail"`
}

// Serialize converts a ClaimRecord to JSON bytes for storage.
func (c *ClaimRecord) Serialize() ([]byte, error) {
	return json.Marshal(c)
}

// Deserialize populates a ClaimRecord from JSON bytes.
func (c *ClaimRecord) Deserialize(data []byte) error {
	return json.Unmarshal(data, c)
}

// ClaimFilter narrows ListClaims. Empty fields match everything.
type ClaimFilter struct {
	Status      string
	VillageCode string
}

// Matches reports whether the claim satisfies the filter.
func (f ClaimFilter) Matches(c *ClaimRecord) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.VillageCode != "" && c.VillageCode != f.VillageCode {
		return false
	}
	return true
}
