// File HTTP handlers.
//
// This file exposes REST endpoints for uploaded structure files:
//   - POST   /files                 (upload, multipart, multiple files)
//   - GET    /files                 (list, paginated/sorted/searched)
//   - GET    /files/{hash}/info     (molecule statistics, computed once)
//   - GET    /files/{hash}/download (raw file download)
//   - DELETE /files/{hash}          (delete owned file)
//   - GET    /files/quota           (storage consumption report)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acctwo/charges-backend/internal/domain"
	"github.com/acctwo/charges-backend/internal/services"
	"github.com/acctwo/charges-backend/internal/storage"
)

// FileService defines the upload/listing operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type FileService interface {
	// Upload validates, stores, and records one uploaded file.
	Upload(ctx context.Context, owner, name string, data []byte) (*domain.FileRecord, error)
	// ListPage returns a page of the owner's file records and the total count.
	ListPage(ctx context.Context, owner, search, orderBy, order string, page, pageSize int) ([]domain.FileRecord, int64, error)
	// Resolve locates the owner's stored file for a hash.
	Resolve(ctx context.Context, owner, hash string) (storage.StoredFile, error)
	// Delete removes the owner's stored file and its metadata record.
	Delete(ctx context.Context, owner, hash string) error
	// Quota reports the owner's storage consumption.
	Quota(ctx context.Context, owner string) (services.QuotaInfo, error)
}

//
// DTOs
//

// UploadedFile describes one stored upload in an upload response.
type UploadedFile struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// UploadResponse lists the outcome of a multipart upload.
type UploadResponse struct {
	Files []UploadedFile `json:"files"`
}

// ListFilesResponse wraps a page of file records and pagination information.
type ListFilesResponse struct {
	Files      []domain.FileRecord `json:"files"`
	Pagination Pagination          `json:"pagination"`
}

// failUpload maps upload-specific service errors to HTTP responses.
func failUpload(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyUpload):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "uploaded file is empty")
	case errors.Is(err, services.ErrInvalidFileType):
		fail(c, http.StatusBadRequest, ErrCodeInvalidFileType, "unsupported file type (sdf, mol2, pdb, cif)")
	case errors.Is(err, services.ErrFileTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge, "file exceeds the size limit")
	case errors.Is(err, services.ErrQuotaExceeded):
		fail(c, http.StatusInsufficientStorage, ErrCodeQuotaExceeded, "storage quota exceeded")
	case errors.Is(err, services.ErrLoadFailed):
		fail(c, http.StatusBadRequest, ErrCodeLoadFailed, "file could not be parsed into molecules")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// UploadFiles godoc
// @ID          uploadFiles
// @Summary     Upload structure files
// @Description Stores one or more structure files (sdf, mol2, pdb, cif) under content-addressed names. Re-uploading identical bytes returns the existing entry.
// @Tags        Files
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
// @Param       files      formData  file  true  "Structure file(s)"
//
// @Success     201  {object}  handlers.UploadResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     413  {object}  handlers.ErrorResponse  "File too large"
// @Failure     507  {object}  handlers.ErrorResponse  "Quota exceeded"
// @Router      /files [post]
func (h *Handlers) UploadFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart form required")
		return
	}
	parts := form.File["files"]
	if len(parts) == 0 {
		parts = form.File["file"]
	}
	if len(parts) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no files provided")
		return
	}

	uid := userID(c)
	out := UploadResponse{Files: make([]UploadedFile, 0, len(parts))}
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable multipart file")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable multipart file")
			return
		}

		rec, err := h.fileSvc.Upload(c.Request.Context(), uid, part.Filename, data)
		if err != nil {
			failUpload(c, err)
			return
		}
		out.Files = append(out.Files, UploadedFile{Name: rec.Name, Hash: rec.Hash, Size: rec.Size})
	}
	ok(c, http.StatusCreated, out)
}

// ListFiles godoc
// @ID          listFiles
// @Summary     List uploaded files (paginated)
// @Tags        Files
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
// @Param       page       query   int     false "Page number"       minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"    minimum(1) maximum(100) default(20)
// @Param       search     query   string  false "Name substring filter"
// @Param       order_by   query   string  false "Sort column"       Enums(name, size, uploaded_at)
// @Param       order      query   string  false "Sort direction"    Enums(asc, desc)
//
// @Success     200  {object}  handlers.ListFilesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /files [get]
func (h *Handlers) ListFiles(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.fileSvc.ListPage(
		c.Request.Context(), userID(c),
		c.Query("search"), c.Query("order_by"), c.Query("order"),
		page, pageSize,
	)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListFilesResponse{
		Files: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// FileInfo godoc
// @ID          fileInfo
// @Summary     Get molecule statistics for an uploaded file
// @Description Returns molecule count, total atoms, and the atom-type histogram. Stats are computed once per content hash and cached.
// @Tags        Files
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
// @Param       hash       path    string  true  "File content hash"
//
// @Success     200  {object}  domain.MoleculeSetStats
// @Failure     404  {object}  handlers.ErrorResponse  "File not found"
// @Failure     400  {object}  handlers.ErrorResponse  "Load failed"
// @Router      /files/{hash}/info [get]
func (h *Handlers) FileInfo(c *gin.Context) {
	stats, err := h.chargeSvc.Info(c.Request.Context(), userID(c), []string{c.Param("hash")})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, stats[0])
}

// DownloadFile godoc
// @ID          downloadFile
// @Summary     Download an uploaded file
// @Tags        Files
// @Produce     application/octet-stream
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
// @Param       hash       path    string  true  "File content hash"
//
// @Success     200  {string} string "File bytes"
// @Failure     404  {object} handlers.ErrorResponse "File not found"
// @Router      /files/{hash}/download [get]
func (h *Handlers) DownloadFile(c *gin.Context) {
	f, err := h.fileSvc.Resolve(c.Request.Context(), userID(c), c.Param("hash"))
	if err != nil {
		failService(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, f.Name))
	c.File(f.Path)
}

// DeleteFile godoc
// @ID          deleteFile
// @Summary     Delete an uploaded file
// @Tags        Files
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
// @Param       hash       path    string  true  "File content hash"
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "File not found"
// @Router      /files/{hash} [delete]
func (h *Handlers) DeleteFile(c *gin.Context) {
	if err := h.fileSvc.Delete(c.Request.Context(), userID(c), c.Param("hash")); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// FileQuota godoc
// @ID          fileQuota
// @Summary     Report storage consumption for the caller
// @Tags        Files
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
//
// @Success     200  {object}  services.QuotaInfo
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /files/quota [get]
func (h *Handlers) FileQuota(c *gin.Context) {
	q, err := h.fileSvc.Quota(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, q)
}
