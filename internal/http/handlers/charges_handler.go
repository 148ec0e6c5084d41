// Charge HTTP handlers.
//
// This file exposes REST endpoints for charge computation resources:
//   - POST   /charges/calculate                       (run a computation batch)
//   - GET    /charges/methods                         (available methods)
//   - POST   /charges/methods/suitable                (suitable methods for files)
//   - GET    /charges/methods/suitable/{id}           (suitable methods for a set)
//   - GET    /charges/parameters/{method}             (available parameter sets)
//   - GET    /charges/calculations                    (list, paginated, ETag support)
//   - GET    /charges/calculations/{id}               (full computation view)
//   - DELETE /charges/calculations/{id}               (delete set + artifacts)
//   - GET    /charges/calculations/{id}/mmcif         (mmCIF artifact per file)
//   - GET    /charges/calculations/{id}/json          (JSON artifact)
//   - GET    /charges/calculations/{id}/download      (zip of all artifacts)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// computation exists for (user, key), POST /charges/calculate returns the
// stored computation's view and sets `Idempotency-Replayed: true`.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/acctwo/charges-backend/internal/domain"
	"github.com/acctwo/charges-backend/internal/export"
	"github.com/acctwo/charges-backend/internal/http/middleware"
	"github.com/acctwo/charges-backend/internal/repo"
	"github.com/acctwo/charges-backend/internal/services"
	"github.com/acctwo/charges-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChargeService defines the computation operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChargeService interface {
	// Calculate runs a computation batch and returns its id and results.
	Calculate(ctx context.Context, owner, computationID string, settings services.SettingsValue, work []services.WorkItem) (string, []services.CalculationResult, error)
	// Suitable resolves the method intersection for a set of file hashes.
	Suitable(ctx context.Context, owner string, hashes []string, permissiveTypes bool) (*services.SuitableMethods, error)
	// SuitableForComputation resolves suitability over an existing set's files.
	SuitableForComputation(ctx context.Context, owner, computationID string) (*services.SuitableMethods, error)
	// Methods lists every supported method identifier.
	Methods(ctx context.Context) ([]string, error)
	// Parameters lists the parameter sets published for a method.
	Parameters(ctx context.Context, method string) ([]string, error)
	// Info returns per-file molecule statistics, computing them on first request.
	Info(ctx context.Context, owner string, hashes []string) ([]domain.MoleculeSetStats, error)
	// DeleteComputation removes a computation and its artifacts.
	DeleteComputation(ctx context.Context, owner, computationID string) error
}

// ComputationService defines read access to stored calculation sets.
type ComputationService interface {
	// Get returns the full view of one computation owned by the user.
	Get(ctx context.Context, userID, computationID string) (*services.ComputationView, error)
	// ListPage returns a page of computation previews and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]services.ComputationPreview, int64, error)
	// Stats returns aggregate listing metadata for ETag generation.
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
}

//
// DTOs
//

// ConfigDto is one requested (method, parameters) pair. An empty method asks
// the server to select the most suitable method for the batch.
type ConfigDto struct {
	// Method identifier; empty selects the most suitable method.
	Method string `json:"method" example:"eem"`
	// Parameters names a published parameter set; null for parameter-free methods.
	Parameters *string `json:"parameters" example:"EEM_00_NEEMP_ccd2016_npa"`
}

// CalculateRequest is the JSON payload for running a computation batch.
type CalculateRequest struct {
	// ComputationID resumes/extends an existing computation; generated when empty.
	ComputationID string `json:"computation_id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// Files lists content hashes of previously uploaded files.
	Files []string `json:"files" binding:"required,min=1"`
	// Configs lists the configs to apply to Files; empty means "pick for me".
	Configs []ConfigDto `json:"configs"`
	// Settings is the advanced-settings triple shared by all configs.
	Settings SettingsDto `json:"settings"`
}

// SettingsDto mirrors the advanced-settings triple.
type SettingsDto struct {
	ReadHetatm      bool `json:"read_hetatm" example:"true"`
	IgnoreWater     bool `json:"ignore_water" example:"false"`
	PermissiveTypes bool `json:"permissive_types" example:"false"`
}

// CalculateResponse wraps a finished computation batch.
type CalculateResponse struct {
	ComputationID string                       `json:"computation_id"`
	Results       []services.CalculationResult `json:"results"`
}

// SuitableMethodsRequest is the JSON payload for a suitability query.
type SuitableMethodsRequest struct {
	// Files lists content hashes of previously uploaded files.
	Files []string `json:"files" binding:"required,min=1"`
	// PermissiveTypes applies permissive atom typing while parsing.
	PermissiveTypes bool `json:"permissive_types"`
}

// MethodsResponse lists method identifiers.
type MethodsResponse struct {
	Methods []string `json:"methods"`
}

// ParametersResponse lists parameter-set names for one method.
type ParametersResponse struct {
	Method     string   `json:"method"`
	Parameters []string `json:"parameters"`
}

// ListComputationsResponse wraps a page of computation previews.
type ListComputationsResponse struct {
	Computations []services.ComputationPreview `json:"computations"`
	Pagination   Pagination                    `json:"pagination"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for computations and uploaded files.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	db        *gorm.DB
	chargeSvc ChargeService
	compSvc   ComputationService
	fileSvc   FileService
	idemTTL   time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
// db is used for idempotency records and ETag pre-checks.
func New(db *gorm.DB, chargeSvc ChargeService, compSvc ComputationService, fileSvc FileService) *Handlers {
	return &Handlers{
		db:        db,
		chargeSvc: chargeSvc,
		compSvc:   compSvc,
		fileSvc:   fileSvc,
		idemTTL:   24 * time.Hour,
	}
}

// userID extracts the user id from Gin context (set by upstream middleware).
// If absent, it falls back to the "X-User-ID" header; the empty string is the
// shared guest identity. It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// failService maps service-level errors to HTTP responses.
func failService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrComputationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "computation not found")
	case errors.Is(err, services.ErrFileNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "file not found")
	case errors.Is(err, services.ErrNoSuitableMethod):
		fail(c, http.StatusBadRequest, ErrCodeNoSuitableMethod, "no method is suitable for every file")
	case errors.Is(err, services.ErrEmptyWork):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no files to calculate")
	case errors.Is(err, services.ErrLoadFailed):
		fail(c, http.StatusBadRequest, ErrCodeLoadFailed, "failed to load molecules")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// Calculate godoc
// @ID          calculateCharges
// @Summary     Calculate partial atomic charges
// @Description Runs every requested config over the given file hashes; previously computed (file, config, settings) tuples are served from the store without recomputation. Supports idempotency via the Idempotency-Key header.
// @Tags        Charges
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (guest when absent)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.CalculateRequest  true  "Computation payload"
//
// @Success     200  {object}  handlers.CalculateResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "File not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /charges/calculate [post]
func (h *Handlers) Calculate(c *gin.Context) {
	ctx := c.Request.Context()

	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: files required")
		return
	}

	currentUser := userID(c)

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, currentUser, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if view, verr := h.compSvc.Get(ctx, currentUser, rec.ComputationID); verr == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, CalculateResponse{
					ComputationID: view.ID,
					Results:       view.Results,
				})
				return
			}
		}
	}

	settings := services.SettingsValue{
		ReadHetatm:      req.Settings.ReadHetatm,
		IgnoreWater:     req.Settings.IgnoreWater,
		PermissiveTypes: req.Settings.PermissiveTypes,
	}
	configs := req.Configs
	if len(configs) == 0 {
		configs = []ConfigDto{{}} // server-side method selection
	}
	work := make([]services.WorkItem, 0, len(configs))
	for _, cfg := range configs {
		work = append(work, services.WorkItem{
			Config: services.ConfigValue{Method: cfg.Method, Parameters: cfg.Parameters},
			Files:  req.Files,
		})
	}

	id, results, err := h.chargeSvc.Calculate(ctx, currentUser, req.ComputationID, settings, work)
	if err != nil {
		failService(c, err)
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.db != nil {
		_, _ = repo.CreateIdempotency(ctx, h.db, currentUser, idemKey, id, http.StatusOK, h.idemTTL)
	}

	ok(c, http.StatusOK, CalculateResponse{ComputationID: id, Results: results})
}

// Methods godoc
// @ID          availableMethods
// @Summary     List available calculation methods
// @Tags        Methods
// @Produce     json
// @Success     200  {object}  handlers.MethodsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /charges/methods [get]
func (h *Handlers) Methods(c *gin.Context) {
	methods, err := h.chargeSvc.Methods(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, MethodsResponse{Methods: methods})
}

// SuitableMethods godoc
// @ID          suitableMethods
// @Summary     Resolve suitable methods for a set of files
// @Description Returns only methods (and parameter sets) valid for every file in the batch; unresolvable hashes are skipped.
// @Tags        Methods
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
// @Param       body       body    handlers.SuitableMethodsRequest  true  "File hashes"
//
// @Success     200  {object}  services.SuitableMethods
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /charges/methods/suitable [post]
func (h *Handlers) SuitableMethods(c *gin.Context) {
	var req SuitableMethodsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: files required")
		return
	}
	sm, err := h.chargeSvc.Suitable(c.Request.Context(), userID(c), req.Files, req.PermissiveTypes)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, sm)
}

// SuitableMethodsForComputation godoc
// @ID          suitableMethodsForComputation
// @Summary     Resolve suitable methods for an existing computation's files
// @Tags        Methods
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
// @Param       id         path    string  true  "Computation ID"
//
// @Success     200  {object}  services.SuitableMethods
// @Failure     404  {object}  handlers.ErrorResponse  "Computation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /charges/methods/suitable/{id} [get]
func (h *Handlers) SuitableMethodsForComputation(c *gin.Context) {
	sm, err := h.chargeSvc.SuitableForComputation(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, sm)
}

// Parameters godoc
// @ID          availableParameters
// @Summary     List parameter sets for a method
// @Tags        Parameters
// @Produce     json
//
// @Param       method  path  string  true  "Method identifier"  example(eem)
//
// @Success     200  {object}  handlers.ParametersResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /charges/parameters/{method} [get]
func (h *Handlers) Parameters(c *gin.Context) {
	method := c.Param("method")
	params, err := h.chargeSvc.Parameters(c.Request.Context(), method)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ParametersResponse{Method: method, Parameters: params})
}

// ListComputations godoc
// @ID          listComputations
// @Summary     List computations (paginated)
// @Description Returns a page of the user's computations. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Calculations
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (guest when absent)"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"      minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"   minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListComputationsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /charges/calculations [get]
func (h *Handlers) ListComputations(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.compSvc.Stats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"computations:%s:%d:%d"`, uid, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.compSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListComputationsResponse{
		Computations: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetComputation godoc
// @ID          getComputation
// @Summary     Get a computation's full view
// @Tags        Calculations
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
// @Param       id         path    string  true  "Computation ID"
//
// @Success     200  {object}  services.ComputationView
// @Failure     404  {object}  handlers.ErrorResponse  "Computation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /charges/calculations/{id} [get]
func (h *Handlers) GetComputation(c *gin.Context) {
	view, err := h.compSvc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// DeleteComputation godoc
// @ID          deleteComputation
// @Summary     Delete a computation
// @Description Removes the calculation set (cascading to its calculations) and any stored artifacts.
// @Tags        Calculations
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
// @Param       id         path    string  true  "Computation ID"
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Computation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /charges/calculations/{id} [delete]
func (h *Handlers) DeleteComputation(c *gin.Context) {
	if err := h.chargeSvc.DeleteComputation(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// ComputationMmCIF godoc
// @ID          computationMmCIF
// @Summary     Download a computation's charges for one file as mmCIF
// @Tags        Calculations
// @Produce     chemical/x-mmcif
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
// @Param       id         path    string  true  "Computation ID"
// @Param       file_hash  query   string  true  "File hash within the computation"
//
// @Success     200  {string} string "mmCIF document"
// @Failure     404  {object} handlers.ErrorResponse "Computation or file not found"
// @Router      /charges/calculations/{id}/mmcif [get]
func (h *Handlers) ComputationMmCIF(c *gin.Context) {
	view, err := h.compSvc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	hash := c.Query("file_hash")
	sets, name := chargeSetsForFile(view, hash)
	if len(sets) == 0 {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "file not part of this computation")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteMmCIF(&buf, sets); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.fw2.cif"`, name))
	c.Data(http.StatusOK, "chemical/x-mmcif", buf.Bytes())
}

// ComputationJSON godoc
// @ID          computationJSON
// @Summary     Download a computation's full view as a JSON document
// @Tags        Calculations
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
// @Param       id         path    string  true  "Computation ID"
//
// @Success     200  {object} services.ComputationView
// @Failure     404  {object} handlers.ErrorResponse "Computation not found"
// @Router      /charges/calculations/{id}/json [get]
func (h *Handlers) ComputationJSON(c *gin.Context) {
	view, err := h.compSvc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	data, err := export.JSONArtifact(view)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, view.ID))
	c.Data(http.StatusOK, "application/json", data)
}

// ComputationDownload godoc
// @ID          computationDownload
// @Summary     Download all of a computation's artifacts as a zip archive
// @Description The archive holds one mmCIF per input file plus the JSON view.
// @Tags        Calculations
// @Produce     application/zip
//
// @Param       X-User-ID  header  string  false "User ID (guest when absent)"
// @Param       id         path    string  true  "Computation ID"
//
// @Success     200  {string} string "Zip archive"
// @Failure     404  {object} handlers.ErrorResponse "Computation not found"
// @Router      /charges/calculations/{id}/download [get]
func (h *Handlers) ComputationDownload(c *gin.Context) {
	view, err := h.compSvc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}

	entries := make([]export.ZipEntry, 0, len(view.Files)+1)
	for _, f := range view.Files {
		sets, name := chargeSetsForFile(view, f.FileHash)
		if len(sets) == 0 {
			continue
		}
		var buf bytes.Buffer
		if err := export.WriteMmCIF(&buf, sets); err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
			return
		}
		entries = append(entries, export.ZipEntry{Name: name + ".fw2.cif", Data: buf.Bytes()})
	}
	if data, err := export.JSONArtifact(view); err == nil {
		entries = append(entries, export.ZipEntry{Name: view.ID + ".json", Data: data})
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, view.ID))
	c.Header("Content-Type", "application/zip")
	c.Status(http.StatusOK)
	if err := export.WriteZip(c.Writer, entries); err != nil {
		// Headers are already out; nothing more we can do for this response.
		_ = c.Error(err)
	}
}

// chargeSetsForFile collects the per-config charge sets of one input file, in
// the computation's config-manifest order, plus the file's display name.
func chargeSetsForFile(view *services.ComputationView, hash string) ([]export.ChargeSet, string) {
	sets := make([]export.ChargeSet, 0, len(view.Results))
	name := hash
	for _, res := range view.Results {
		for _, calc := range res.Calculations {
			if calc.FileHash != hash || calc.Error != "" {
				continue
			}
			name = calc.File
			params := ""
			if res.Config.Parameters != nil {
				params = *res.Config.Parameters
			}
			sets = append(sets, export.ChargeSet{
				Method:     res.Config.Method,
				Parameters: params,
				Charges:    calc.Charges,
			})
		}
	}
	return sets, name
}
