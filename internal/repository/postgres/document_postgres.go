package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"docingest/internal/model"
	"docingest/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, folder_id, owner_id, original_name, sanitized_name,
		mime_type, file_extension, size_bytes, storage_key, storage_bucket,
		status, decision, observations, version, created_at, updated_at`

// scanDocument reads one row into a model.Document. Observations are stored
// as a JSONB array.
func scanDocument(row interface{ Scan(dest ...any) error }) (*model.Document, error) {
	var (
		d   model.Document
		obs []byte
	)
	if err := row.Scan(
		&d.ID,
		&d.FolderID,
		&d.OwnerID,
		&d.OriginalName,
		&d.SanitizedName,
		&d.MimeType,
		&d.FileExtension,
		&d.SizeBytes,
		&d.StorageKey,
		&d.StorageBucket,
		&d.Status,
		&d.Decision,
		&obs,
		&d.Version,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(obs) > 0 {
		if err := json.Unmarshal(obs, &d.Observations); err != nil {
			return nil, fmt.Errorf("decode observations: %w", err)
		}
	}
	return &d, nil
}

func marshalObservations(obs []model.Observation) ([]byte, error) {
	if obs == nil {
		obs = []model.Observation{}
	}
	return json.Marshal(obs)
}

// Create inserts a new document row and returns the stored record. Both
// timestamps are assigned here; version starts at 1.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, folder_id, owner_id, original_name, sanitized_name,
			mime_type, file_extension, size_bytes, storage_key, storage_bucket,
			status, decision, observations, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, $14, $14)
		RETURNING ` + documentColumns

	obs, err := marshalObservations(doc.Observations)
	if err != nil {
		return nil, fmt.Errorf("encode observations: %w", err)
	}

	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.FolderID,
		doc.OwnerID,
		doc.OriginalName,
		doc.SanitizedName,
		doc.MimeType,
		doc.FileExtension,
		doc.SizeBytes,
		doc.StorageKey,
		doc.StorageBucket,
		string(doc.Status),
		string(doc.Decision),
		obs,
		now,
	)
	return scanDocument(row)
}

// Update applies a partial merge in a single statement: untouched fields
// keep their stored value via COALESCE, observations are appended with the
// jsonb concatenation operator, and version is bumped unconditionally.
func (r *DocumentPostgres) Update(ctx context.Context, id string, patch repository.UpdatePatch) (*model.Document, error) {
	const q = `
		UPDATE documents
		SET status = COALESCE($2, status),
		    decision = COALESCE($3, decision),
		    observations = observations || $4::jsonb,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $1
		RETURNING ` + documentColumns

	var status, decision any
	if patch.Status != nil {
		status = string(*patch.Status)
	}
	if patch.Decision != nil {
		decision = string(*patch.Decision)
	}
	obs, err := marshalObservations(patch.AppendObservations)
	if err != nil {
		return nil, fmt.Errorf("encode observations: %w", err)
	}

	row := r.db.QueryRowContext(ctx, q, id, status, decision, obs, time.Now().UTC())
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// List returns documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + documentColumns + `
		FROM documents
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

// Delete removes a document by ID, returning the removed row so the change
// feed can carry a snapshot. sql.ErrNoRows when the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) (*model.Document, error) {
	const q = `DELETE FROM documents WHERE id = $1 RETURNING ` + documentColumns
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}
