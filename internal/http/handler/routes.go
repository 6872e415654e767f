package handler

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"mime"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"docingest/internal/folder"
	"docingest/internal/gateway"
	"docingest/internal/model"
	"docingest/internal/multipart"
	"docingest/internal/service"
	"docingest/internal/validate"
)

// batchFileRequest is one entry of a bulk upload request. Data carries the
// file bytes base64-encoded, JSON being the transport.
type batchFileRequest struct {
	FileName    string `json:"fileName"`
	FileType    string `json:"fileType"`
	Data        string `json:"data"`
	FolderID    string `json:"folderId"`
	FolderName  string `json:"folderName"`
	Status      string `json:"status"`
	Explanation string `json:"explanation"`
	OwnerID     string `json:"ownerId"`
}

type batchRequest struct {
	Files []batchFileRequest `json:"files"`
}

type batchFileResponse struct {
	FileName string          `json:"fileName"`
	Success  bool            `json:"success"`
	Document *model.Document `json:"document,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type uploadURLRequest struct {
	FileName    string `json:"fileName"`
	FileType    string `json:"fileType"`
	FileSize    int64  `json:"fileSize"`
	FolderID    string `json:"folderId"`
	FolderName  string `json:"folderName"`
	Status      string `json:"status"`
	Explanation string `json:"explanation"`
	OwnerID     string `json:"ownerId"`
}

type confirmRequest struct {
	DocumentID string `json:"documentId"`
}

type statusRequest struct {
	DocumentID  string `json:"documentId"`
	Status      string `json:"status"`
	Explanation string `json:"explanation"`
}

// BodyLimit sizes the transport body cap from the upload ceiling. Fiber's
// default (4 MiB) would reject large uploads with a bare 413 before the
// pipeline ever runs. Base64 wrapping inflates payloads by 4/3 and multipart
// framing adds headers, so the cap carries headroom beyond the raw ceiling.
func BodyLimit(maxSizeBytes int64) int {
	if maxSizeBytes <= 0 {
		maxSizeBytes = validate.DefaultMaxSizeBytes
	}
	return int(maxSizeBytes/3*4) + 1<<20
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin: decode the transport, call the service, map errors.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.UploadService, hub *gateway.Hub) {
	// Health endpoint: checks DB connectivity only
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})

	// Simple liveness probe
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	// Full pipeline upload. The raw multipart body is decoded in-process;
	// a base64-wrapped body (API gateways with text-only payloads do this)
	// must be announced via Content-Transfer-Encoding: base64.
	app.Post("/upload", func(c *fiber.Ctx) error {
		_, params, err := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_CONTENT_TYPE", "cannot parse content type")
		}
		boundary := params["boundary"]
		base64Encoded := c.Get("Content-Transfer-Encoding") == "base64"

		doc, err := svc.ProcessUpload(c.UserContext(), c.Body(), boundary, base64Encoded)
		if err != nil {
			return uploadError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	})

	// Bulk upload: N files in one JSON request, processed as N independent
	// pipelines. Per-file outcomes are reported; the request itself only
	// fails on malformed JSON.
	app.Post("/upload/batch", func(c *fiber.Ctx) error {
		var req batchRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}
		if len(req.Files) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILES_REQUIRED", "at least one file is required")
		}

		responses := make([]batchFileResponse, len(req.Files))
		items := make([]service.BatchItem, 0, len(req.Files))
		positions := make([]int, 0, len(req.Files))
		for i, f := range req.Files {
			data, err := base64.StdEncoding.DecodeString(f.Data)
			if err != nil {
				// Marked failed in place; the valid siblings still run.
				responses[i] = batchFileResponse{FileName: f.FileName, Error: "invalid base64 data"}
				continue
			}
			items = append(items, service.BatchItem{
				FileName:    f.FileName,
				ContentType: f.FileType,
				Data:        data,
				FolderID:    f.FolderID,
				FolderName:  f.FolderName,
				Status:      f.Status,
				Explanation: f.Explanation,
				OwnerID:     f.OwnerID,
			})
			positions = append(positions, i)
		}

		succeeded := 0
		for i, r := range svc.ProcessBatch(c.UserContext(), items) {
			resp := batchFileResponse{FileName: r.Name, Success: r.Success, Document: r.Document}
			if r.Err != nil {
				resp.Error = r.Err.Error()
			}
			responses[positions[i]] = resp
			if r.Success {
				succeeded++
			}
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"total":     len(req.Files),
			"succeeded": succeeded,
			"failed":    len(req.Files) - succeeded,
			"results":   responses,
		})
	})

	// Two-phase client-direct upload, step one: pre-signed PUT plus a
	// pending metadata record.
	app.Post("/upload/url", func(c *fiber.Ctx) error {
		var req uploadURLRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}

		res, err := svc.CreateUploadURL(c.UserContext(), service.UploadURLRequest{
			FileName:    req.FileName,
			FileType:    req.FileType,
			FileSize:    req.FileSize,
			FolderID:    req.FolderID,
			FolderName:  req.FolderName,
			Status:      req.Status,
			Explanation: req.Explanation,
			OwnerID:     req.OwnerID,
		})
		if err != nil {
			return uploadError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"uploadUrl":   res.UploadURL,
			"downloadUrl": res.DownloadURL,
			"documentId":  res.DocumentID,
			"expiresIn":   res.ExpiresIn,
			"document":    res.Document,
		})
	})

	// Two-phase upload, step two: the client finished its PUT.
	app.Post("/upload/confirm", func(c *fiber.Ctx) error {
		var req confirmRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}
		doc, err := svc.ConfirmUpload(c.UserContext(), req.DocumentID)
		if err != nil {
			return uploadError(c, err)
		}
		return c.JSON(doc)
	})

	// Administrative status/decision update.
	app.Put("/upload", func(c *fiber.Ctx) error {
		var req statusRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}
		doc, err := svc.UpdateStatus(c.UserContext(), req.DocumentID, req.Status, req.Explanation)
		if err != nil {
			return uploadError(c, err)
		}
		return c.JSON(doc)
	})

	// List documents endpoint with limit & offset
	app.Get("/documents", func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return uploadError(c, err)
		}
		return c.JSON(res)
	})

	// Get document by ID
	app.Get("/documents/:id", func(c *fiber.Ctx) error {
		doc, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return uploadError(c, err)
		}
		return c.JSON(doc)
	})

	// Delete document by ID
	app.Delete("/documents/:id", func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), c.Params("id")); err != nil {
			return uploadError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Realtime change feed. Subscribers optionally scope to one folder via
	// ?folderId=...
	app.Use("/ws", gateway.Upgrade())
	app.Get("/ws", hub.Handler())
}

// uploadError translates pipeline errors into the standard error envelope.
// Validation and client mistakes map to 400, unknown ids and folders to 404,
// a down folder directory to 503, everything else to an opaque 500.
func uploadError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, multipart.ErrNoBoundary):
		return writeError(c, fiber.StatusBadRequest, "INVALID_MULTIPART", "multipart boundary not found")
	case errors.Is(err, multipart.ErrEmptyBody):
		return writeError(c, fiber.StatusBadRequest, "INVALID_MULTIPART", "multipart body has no parts")
	case errors.Is(err, multipart.ErrBadEncoding):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ENCODING", "body is not valid base64")
	case errors.Is(err, service.ErrFileRequired):
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
	case errors.Is(err, service.ErrFolderRequired):
		return writeError(c, fiber.StatusBadRequest, "FOLDER_REQUIRED", "folderId or folderName is required")
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "document id is required")
	case errors.Is(err, validate.ErrInvalidType):
		return writeError(c, fiber.StatusBadRequest, "INVALID_TYPE", "file type not allowed")
	case errors.Is(err, validate.ErrInvalidSize):
		return writeError(c, fiber.StatusBadRequest, "INVALID_SIZE", "file size out of bounds")
	case errors.Is(err, validate.ErrInvalidDecision):
		return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "unknown status value")
	case errors.Is(err, validate.ErrMissingExplanation):
		return writeError(c, fiber.StatusBadRequest, "EXPLANATION_REQUIRED", "rejected uploads require an explanation")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, folder.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "FOLDER_NOT_FOUND", "folder not found or inactive")
	case errors.Is(err, folder.ErrDirectoryUnavailable):
		return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "folder directory unavailable")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
