package repository

import (
	"context"

	"docingest/internal/model"
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here, strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record. Status and decision must be
	// set by the caller; Create assigns createdAt = updatedAt = now and
	// version = 1. Returns the stored document.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// Update applies a partial merge. It always refreshes updatedAt and
	// bumps version. The document id and folder id are immutable: the
	// patch carries no such fields. Missing row yields sql.ErrNoRows.
	Update(ctx context.Context, id string, patch UpdatePatch) (*model.Document, error)

	// FindByID returns a document by its ID.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// List returns a paginated list of documents and total rows count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// Delete removes a document by ID and returns the removed record so
	// observers can emit a snapshot. Missing row yields sql.ErrNoRows.
	Delete(ctx context.Context, id string) (*model.Document, error)
}

// UpdatePatch holds the merge fields of an update. Nil pointers leave the
// stored value untouched; AppendObservations extends the audit trail and
// never rewrites it.
type UpdatePatch struct {
	Status             *model.Status
	Decision           *model.Decision
	AppendObservations []model.Observation
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
