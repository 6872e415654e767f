package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"docingest/internal/model"
	"docingest/internal/repository"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var documentCols = []string{
	"id", "folder_id", "owner_id", "original_name", "sanitized_name",
	"mime_type", "file_extension", "size_bytes", "storage_key", "storage_bucket",
	"status", "decision", "observations", "version", "created_at", "updated_at",
}

func documentRow(id string, version int64, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(documentCols).AddRow(
		id, "f-1", "u-1", "cv.pdf", "cv.pdf",
		"application/pdf", ".pdf", int64(1024), "uploads/1_cv.pdf", "documents",
		"completed", "approved", []byte(`[{"type":"auto","message":"ok","severity":"info"}]`), version, now, now,
	)
}

func TestDocumentPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	doc := &model.Document{
		ID:            "d-1",
		FolderID:      "f-1",
		OwnerID:       "u-1",
		OriginalName:  "cv.pdf",
		SanitizedName: "cv.pdf",
		MimeType:      "application/pdf",
		FileExtension: ".pdf",
		SizeBytes:     1024,
		StorageKey:    "uploads/1_cv.pdf",
		StorageBucket: "documents",
		Status:        model.StatusCompleted,
		Decision:      model.DecisionApproved,
	}

	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(documentRow("d-1", 1, time.Now().UTC()))

	stored, err := repo.Create(ctx, doc)

	require.NoError(t, err)
	assert.Equal(t, "d-1", stored.ID)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, model.DecisionApproved, stored.Decision)
	require.Len(t, stored.Observations, 1)
	assert.Equal(t, "ok", stored.Observations[0].Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("partial merge", func(t *testing.T) {
		status := model.StatusCompleted
		mock.ExpectQuery("UPDATE documents").
			WithArgs("d-1", "completed", nil, []byte("[]"), sqlmock.AnyArg()).
			WillReturnRows(documentRow("d-1", 2, time.Now().UTC()))

		stored, err := repo.Update(ctx, "d-1", repository.UpdatePatch{Status: &status})

		require.NoError(t, err)
		assert.Equal(t, int64(2), stored.Version)
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectQuery("UPDATE documents").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Update(ctx, "missing", repository.UpdatePatch{})
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs("d-1").
			WillReturnRows(documentRow("d-1", 1, time.Now()))

		doc, err := repo.FindByID(ctx, "d-1")
		require.NoError(t, err)
		assert.Equal(t, "d-1", doc.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, doc)
	})
}

func TestDocumentPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM documents ORDER BY").
		WithArgs(10, 0).
		WillReturnRows(documentRow("d-1", 1, time.Now()))

	res, err := repo.List(ctx, repository.PageQuery{Limit: 10, Offset: 0})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Len(t, res.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("returns removed row", func(t *testing.T) {
		mock.ExpectQuery("DELETE FROM documents WHERE id = ?").
			WithArgs("d-1").
			WillReturnRows(documentRow("d-1", 3, time.Now()))

		removed, err := repo.Delete(ctx, "d-1")
		require.NoError(t, err)
		assert.Equal(t, "d-1", removed.ID)
		assert.Equal(t, int64(3), removed.Version)
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectQuery("DELETE FROM documents WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Delete(ctx, "missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}
