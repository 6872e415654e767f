package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Status tracks a document through the ingestion pipeline. It only moves
// forward under normal flow; the admin status endpoint is the sole path that
// may set it backward.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus maps a wire value onto the closed status set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Decision is the review outcome of a document, independent of Status.
type Decision string

const (
	DecisionApproved     Decision = "approved"
	DecisionRejected     Decision = "rejected"
	DecisionManualReview Decision = "manual_review"
	DecisionPending      Decision = "pending"
)

// ParseDecision accepts both the canonical lowercase values and the
// uppercase aliases used by the upload endpoints (APPROVED, REJECTED,
// MANUAL_REVIEW, PENDING).
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "approved", "APPROVED":
		return DecisionApproved, nil
	case "rejected", "REJECTED":
		return DecisionRejected, nil
	case "manual_review", "MANUAL_REVIEW":
		return DecisionManualReview, nil
	case "pending", "PENDING":
		return DecisionPending, nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// Observation is one entry of a document's append-only audit trail. A
// rejected decision must carry at least one observation with the rejection
// reason.
type Observation struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Document is the canonical record of an ingested artifact.
// Pure domain model: no database tags, usable across layers.
type Document struct {
	ID            string        `json:"id"`
	FolderID      string        `json:"folder_id"`
	OwnerID       string        `json:"owner_id"`
	OriginalName  string        `json:"original_name"`
	SanitizedName string        `json:"sanitized_name"`
	MimeType      string        `json:"mime_type"`
	FileExtension string        `json:"file_extension"`
	SizeBytes     int64         `json:"size_bytes"`
	StorageKey    string        `json:"storage_key"`
	StorageBucket string        `json:"storage_bucket"`
	Status        Status        `json:"status"`
	Decision      Decision      `json:"decision"`
	Observations  []Observation `json:"observations"`
	Version       int64         `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewDocumentID builds a collision-resistant identifier without any
// coordination: millisecond timestamp plus a random suffix. Concurrent
// uploads of the same file name still get distinct ids.
func NewDocumentID(now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("%d-%s", now.UnixMilli(), hex.EncodeToString(b[:]))
}

// Folder is an external entity, read-only to this service. Inactive folders
// are treated as not found by the resolver.
type Folder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}
