// Package validate holds the pure upload validation rules. No side effects:
// callers run it before any object or metadata write.
package validate

import (
	"errors"
	"strings"

	"docingest/internal/model"
)

var (
	ErrInvalidType        = errors.New("validate: mime type not allowed")
	ErrInvalidSize        = errors.New("validate: size out of bounds")
	ErrInvalidDecision    = errors.New("validate: unknown decision")
	ErrMissingExplanation = errors.New("validate: rejected decision requires explanation")
)

// DefaultMaxSizeBytes is the upload ceiling when no configuration overrides
// it (50 MiB).
const DefaultMaxSizeBytes = int64(50 << 20)

// DefaultAllowedTypes covers documents, common images and common archive
// formats.
var DefaultAllowedTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
	"text/csv",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/zip",
	"application/x-zip-compressed",
}

// Validator applies the upload business rules. The zero value is not
// usable; construct with New.
type Validator struct {
	allowed      map[string]struct{}
	maxSizeBytes int64
}

// New builds a Validator. Empty allowedTypes or a non-positive maxSize fall
// back to the defaults.
func New(allowedTypes []string, maxSizeBytes int64) *Validator {
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultAllowedTypes
	}
	if maxSizeBytes <= 0 {
		maxSizeBytes = DefaultMaxSizeBytes
	}
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &Validator{allowed: allowed, maxSizeBytes: maxSizeBytes}
}

// Validate enforces the allow-list, the size ceiling and the
// rejection-needs-a-reason rule. Decision must already be a parsed member
// of the closed set; raw wire strings go through model.ParseDecision first.
func (v *Validator) Validate(mimeType string, sizeBytes int64, decision model.Decision, explanation string) error {
	// Parameters may carry a "type; charset=..." suffix from the client.
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if _, ok := v.allowed[mt]; !ok {
		return ErrInvalidType
	}
	if sizeBytes <= 0 || sizeBytes > v.maxSizeBytes {
		return ErrInvalidSize
	}
	switch decision {
	case model.DecisionApproved, model.DecisionRejected, model.DecisionManualReview, model.DecisionPending:
	default:
		return ErrInvalidDecision
	}
	if decision == model.DecisionRejected && strings.TrimSpace(explanation) == "" {
		return ErrMissingExplanation
	}
	return nil
}

// MaxSizeBytes exposes the configured ceiling for request-level checks.
func (v *Validator) MaxSizeBytes() int64 {
	return v.maxSizeBytes
}
