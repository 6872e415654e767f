package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"docingest/internal/folder"
	"docingest/internal/model"
	"docingest/internal/multipart"
	"docingest/internal/repository"
	"docingest/internal/storage"
	"docingest/internal/validate"
)

var (
	ErrIDRequired     = errors.New("id is required")
	ErrNotFound       = errors.New("document not found")
	ErrFileRequired   = errors.New("file part is required")
	ErrFolderRequired = errors.New("folderId or folderName is required")
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// BatchItem is one file of a bulk upload. Status carries the wire decision
// value (APPROVED, REJECTED, ...); empty means pending.
type BatchItem struct {
	FileName    string
	ContentType string
	Data        []byte
	FolderID    string
	FolderName  string
	Status      string
	Explanation string
	OwnerID     string
}

// BatchResult is the per-file outcome of a bulk upload. One file's failure
// never aborts the others.
type BatchResult struct {
	Name     string
	Success  bool
	Document *model.Document
	Err      error
}

// UploadURLRequest asks for a pre-signed client-direct upload.
type UploadURLRequest struct {
	FolderID    string
	FolderName  string
	FileName    string
	FileType    string
	FileSize    int64
	Status      string
	Explanation string
	OwnerID     string
}

// UploadURLResult is the two-phase flow handshake: the client PUTs bytes to
// UploadURL, then calls ConfirmUpload with DocumentID.
type UploadURLResult struct {
	UploadURL   string
	DownloadURL string
	DocumentID  string
	ExpiresIn   int64
	Document    *model.Document
}

// UploadService defines the use cases of the ingestion pipeline.
type UploadService interface {
	// ProcessUpload runs the full pipeline on a raw multipart body:
	// decode, validate, resolve folder, write object, persist metadata.
	// No side effect happens before decode and validation both pass.
	ProcessUpload(ctx context.Context, body []byte, boundary string, base64Encoded bool) (*model.Document, error)

	// ProcessBatch runs N independent single-file pipelines concurrently
	// and reports a per-file result list.
	ProcessBatch(ctx context.Context, items []BatchItem) []BatchResult

	// CreateUploadURL issues a pre-signed PUT plus a pending metadata
	// record for the client-direct upload flow.
	CreateUploadURL(ctx context.Context, req UploadURLRequest) (*UploadURLResult, error)

	// ConfirmUpload finalizes a client-direct upload: pending → completed.
	ConfirmUpload(ctx context.Context, fileID string) (*model.Document, error)

	// UpdateStatus is the administrative path for changing a document's
	// decision (or pipeline status). Rejections require an explanation.
	UpdateStatus(ctx context.Context, id, status, explanation string) (*model.Document, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id string) (*model.Document, error)

	// List returns documents using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*DocumentListResult, error)

	// Delete removes a document from both storage and repository.
	Delete(ctx context.Context, id string) error
}

// uploadService is a concrete implementation of UploadService.
type uploadService struct {
	store      storage.Storage
	repo       repository.DocumentRepository
	folders    folder.Resolver
	validator  *validate.Validator
	namespace  string
	presignTTL time.Duration
}

// NewUploadService constructs the pipeline service. namespace prefixes
// every storage key; presignTTL bounds pre-signed URL lifetime.
func NewUploadService(store storage.Storage, repo repository.DocumentRepository, folders folder.Resolver, validator *validate.Validator, namespace string, presignTTL time.Duration) UploadService {
	if namespace == "" {
		namespace = "uploads"
	}
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &uploadService{
		store:      store,
		repo:       repo,
		folders:    folders,
		validator:  validator,
		namespace:  namespace,
		presignTTL: presignTTL,
	}
}

func (s *uploadService) ProcessUpload(ctx context.Context, body []byte, boundary string, base64Encoded bool) (*model.Document, error) {
	form, err := multipart.Decode(body, boundary, base64Encoded)
	if err != nil {
		return nil, err
	}
	if form.File == nil {
		return nil, ErrFileRequired
	}

	return s.uploadOne(ctx, uploadInput{
		fileName:    form.File.Filename,
		contentType: form.File.ContentType,
		data:        form.File.Data,
		folderID:    form.Fields["folderId"],
		folderName:  form.Fields["folderName"],
		status:      form.Fields["status"],
		explanation: form.Fields["explanation"],
		ownerID:     form.Fields["ownerId"],
	})
}

func (s *uploadService) ProcessBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item BatchItem) {
			defer wg.Done()
			doc, err := s.uploadOne(ctx, uploadInput{
				fileName:    item.FileName,
				contentType: item.ContentType,
				data:        item.Data,
				folderID:    item.FolderID,
				folderName:  item.FolderName,
				status:      item.Status,
				explanation: item.Explanation,
				ownerID:     item.OwnerID,
			})
			results[i] = BatchResult{
				Name:     item.FileName,
				Success:  err == nil,
				Document: doc,
				Err:      err,
			}
		}(i, item)
	}
	wg.Wait()

	return results
}

type uploadInput struct {
	fileName    string
	contentType string
	data        []byte
	folderID    string
	folderName  string
	status      string
	explanation string
	ownerID     string
}

// uploadOne is the single-file pipeline. Validation and folder resolution
// both precede the object write, so bad input leaves no partial state. A
// metadata failure after a successful object write is surfaced and the
// object stays behind as an orphan (reconciled out of band, never rolled
// back here).
func (s *uploadService) uploadOne(ctx context.Context, in uploadInput) (*model.Document, error) {
	if in.fileName == "" || len(in.data) == 0 {
		return nil, ErrFileRequired
	}

	decision := model.DecisionPending
	if in.status != "" {
		d, err := model.ParseDecision(in.status)
		if err != nil {
			return nil, validate.ErrInvalidDecision
		}
		decision = d
	}

	size := int64(len(in.data))
	if err := s.validator.Validate(in.contentType, size, decision, in.explanation); err != nil {
		return nil, err
	}

	fld, err := s.resolveFolder(ctx, in.folderID, in.folderName)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := storage.ObjectKey(s.namespace, in.fileName, now)

	objInfo, err := s.store.Put(ctx, key, bytes.NewReader(in.data), storage.PutObjectOptions{
		Size:        size,
		ContentType: in.contentType,
		Metadata: map[string]string{
			"original-filename": in.fileName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	doc := &model.Document{
		ID:            model.NewDocumentID(now),
		FolderID:      fld.ID,
		OwnerID:       in.ownerID,
		OriginalName:  in.fileName,
		SanitizedName: storage.SanitizeName(in.fileName),
		MimeType:      in.contentType,
		FileExtension: filepath.Ext(in.fileName),
		SizeBytes:     objInfo.Size,
		StorageKey:    key,
		StorageBucket: s.store.Bucket(),
		Status:        model.StatusCompleted,
		Decision:      decision,
	}
	if decision == model.DecisionRejected {
		doc.Observations = []model.Observation{{
			Type:     "decision",
			Message:  in.explanation,
			Severity: "error",
		}}
	}

	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		// The object at key is now an orphan; operators reconcile those
		// out of band.
		return nil, fmt.Errorf("save metadata for %s: %w", key, err)
	}
	return stored, nil
}

func (s *uploadService) CreateUploadURL(ctx context.Context, req UploadURLRequest) (*UploadURLResult, error) {
	if req.FileName == "" {
		return nil, ErrFileRequired
	}

	decision := model.DecisionPending
	if req.Status != "" {
		d, err := model.ParseDecision(req.Status)
		if err != nil {
			return nil, validate.ErrInvalidDecision
		}
		decision = d
	}

	if err := s.validator.Validate(req.FileType, req.FileSize, decision, req.Explanation); err != nil {
		return nil, err
	}

	fld, err := s.resolveFolder(ctx, req.FolderID, req.FolderName)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := storage.ObjectKey(s.namespace, req.FileName, now)

	uploadURL, err := s.store.PresignPut(ctx, key, s.presignTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	downloadURL, err := s.store.PresignGet(ctx, key, s.presignTTL)
	if err != nil {
		return nil, fmt.Errorf("presign download: %w", err)
	}

	doc := &model.Document{
		ID:            model.NewDocumentID(now),
		FolderID:      fld.ID,
		OwnerID:       req.OwnerID,
		OriginalName:  req.FileName,
		SanitizedName: storage.SanitizeName(req.FileName),
		MimeType:      req.FileType,
		FileExtension: filepath.Ext(req.FileName),
		SizeBytes:     req.FileSize,
		StorageKey:    key,
		StorageBucket: s.store.Bucket(),
		Status:        model.StatusPending,
		Decision:      decision,
	}
	if decision == model.DecisionRejected {
		doc.Observations = []model.Observation{{
			Type:     "decision",
			Message:  req.Explanation,
			Severity: "error",
		}}
	}

	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("save metadata for %s: %w", key, err)
	}

	return &UploadURLResult{
		UploadURL:   uploadURL,
		DownloadURL: downloadURL,
		DocumentID:  stored.ID,
		ExpiresIn:   int64(s.presignTTL.Seconds()),
		Document:    stored,
	}, nil
}

func (s *uploadService) ConfirmUpload(ctx context.Context, fileID string) (*model.Document, error) {
	if fileID == "" {
		return nil, ErrIDRequired
	}

	status := model.StatusCompleted
	doc, err := s.repo.Update(ctx, fileID, repository.UpdatePatch{Status: &status})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *uploadService) UpdateStatus(ctx context.Context, id, status, explanation string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}

	var patch repository.UpdatePatch
	if d, err := model.ParseDecision(status); err == nil {
		if d == model.DecisionRejected {
			if explanation == "" {
				return nil, validate.ErrMissingExplanation
			}
			patch.AppendObservations = []model.Observation{{
				Type:     "decision",
				Message:  explanation,
				Severity: "error",
			}}
		}
		patch.Decision = &d
	} else if st, err := model.ParseStatus(status); err == nil {
		// Pipeline status override: the explicit administrative action
		// that may move status backward.
		patch.Status = &st
	} else {
		return nil, validate.ErrInvalidDecision
	}

	doc, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Get returns a document by ID.
func (s *uploadService) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// List returns paginated documents without exposing repository types.
func (s *uploadService) List(ctx context.Context, limit, offset int) (*DocumentListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// Delete removes the object first, then the metadata row. The repository
// delete is what emits the deleted change event.
func (s *uploadService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *uploadService) resolveFolder(ctx context.Context, id, name string) (*model.Folder, error) {
	switch {
	case id != "":
		return s.folders.Resolve(ctx, id, folder.ByID)
	case name != "":
		return s.folders.Resolve(ctx, name, folder.ByName)
	}
	return nil, ErrFolderRequired
}
