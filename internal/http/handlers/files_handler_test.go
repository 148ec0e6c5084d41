package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/acctwo/charges-backend/internal/domain"
	"github.com/acctwo/charges-backend/internal/services"
	"github.com/acctwo/charges-backend/internal/storage"
)

type fakeFileSvc struct {
	uploaded  []string
	uploadErr error
	records   []domain.FileRecord
	total     int64
	listErr   error
	gotSearch string
	gotOrder  string
	resolved  storage.StoredFile
	resolveErr error
	deleteErr  error
	quota      services.QuotaInfo
	quotaErr   error
}

func (f *fakeFileSvc) Upload(_ context.Context, _, name string, data []byte) (*domain.FileRecord, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploaded = append(f.uploaded, name)
	return &domain.FileRecord{
		ID:   "rec-" + name,
		Hash: storage.Hash(data),
		Name: name,
		Size: int64(len(data)),
	}, nil
}

func (f *fakeFileSvc) ListPage(_ context.Context, _, search, orderBy, _ string, _, _ int) ([]domain.FileRecord, int64, error) {
	f.gotSearch = search
	f.gotOrder = orderBy
	return f.records, f.total, f.listErr
}

func (f *fakeFileSvc) Resolve(context.Context, string, string) (storage.StoredFile, error) {
	return f.resolved, f.resolveErr
}

func (f *fakeFileSvc) Delete(context.Context, string, string) error {
	return f.deleteErr
}

func (f *fakeFileSvc) Quota(context.Context, string) (services.QuotaInfo, error) {
	return f.quota, f.quotaErr
}

func newFilesRouter(chargeSvc ChargeService, fileSvc FileService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(nil, chargeSvc, &fakeCompSvc{}, fileSvc)

	r := gin.New()
	r.POST("/files", h.UploadFiles)
	r.GET("/files", h.ListFiles)
	r.GET("/files/quota", h.FileQuota)
	r.GET("/files/:hash/info", h.FileInfo)
	r.GET("/files/:hash/download", h.DownloadFile)
	r.DELETE("/files/:hash", h.DeleteFile)
	return r
}

// postMultipart uploads the given name->content pairs under the "files" field.
func postMultipart(t *testing.T, r *gin.Engine, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadFiles(t *testing.T) {
	fileSvc := &fakeFileSvc{}
	r := newFilesRouter(&fakeChargeSvc{}, fileSvc)

	w := postMultipart(t, r, map[string]string{
		"mol.sdf":     "sdf-bytes",
		"protein.pdb": "pdb-bytes",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Files) != 2 {
		t.Fatalf("uploaded files = %d, want 2", len(resp.Files))
	}
	for _, f := range resp.Files {
		if f.Hash == "" || f.Size == 0 {
			t.Fatalf("incomplete upload entry: %+v", f)
		}
	}
	if len(fileSvc.uploaded) != 2 {
		t.Fatalf("service saw %d uploads", len(fileSvc.uploaded))
	}
}

func TestUploadFiles_NoParts(t *testing.T) {
	r := newFilesRouter(&fakeChargeSvc{}, &fakeFileSvc{})

	w := postMultipart(t, r, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUploadFiles_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty", services.ErrEmptyUpload, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad type", services.ErrInvalidFileType, http.StatusBadRequest, ErrCodeInvalidFileType},
		{"too large", services.ErrFileTooLarge, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge},
		{"quota", services.ErrQuotaExceeded, http.StatusInsufficientStorage, ErrCodeQuotaExceeded},
		{"unparsable", services.ErrLoadFailed, http.StatusBadRequest, ErrCodeLoadFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newFilesRouter(&fakeChargeSvc{}, &fakeFileSvc{uploadErr: tc.err})
			w := postMultipart(t, r, map[string]string{"mol.sdf": "x"})
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if resp := decodeError(t, w); resp.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestListFiles(t *testing.T) {
	fileSvc := &fakeFileSvc{
		records: []domain.FileRecord{
			{ID: "rec-1", Hash: "abc123", Name: "mol.sdf", Size: 9},
		},
		total: 1,
	}
	r := newFilesRouter(&fakeChargeSvc{}, fileSvc)

	w := doJSON(t, r, http.MethodGet, "/files?search=mol&order_by=size", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ListFilesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Files) != 1 || resp.Files[0].Name != "mol.sdf" {
		t.Fatalf("unexpected listing: %+v", resp.Files)
	}
	if resp.Pagination.Total != 1 || resp.Pagination.HasNext {
		t.Fatalf("unexpected pagination: %+v", resp.Pagination)
	}
	if fileSvc.gotSearch != "mol" || fileSvc.gotOrder != "size" {
		t.Fatalf("query params not forwarded: search=%q order_by=%q", fileSvc.gotSearch, fileSvc.gotOrder)
	}
}

func TestFileInfo(t *testing.T) {
	chargeSvc := &fakeChargeSvc{
		info: []domain.MoleculeSetStats{
			{FileHash: "abc123", TotalMolecules: 1, TotalAtoms: 3},
		},
	}
	r := newFilesRouter(chargeSvc, &fakeFileSvc{})

	w := doJSON(t, r, http.MethodGet, "/files/abc123/info", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats domain.MoleculeSetStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.FileHash != "abc123" || stats.TotalAtoms != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	chargeSvc.info, chargeSvc.infoErr = nil, services.ErrFileNotFound
	w = doJSON(t, r, http.MethodGet, "/files/missing/info", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestDownloadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stored.sdf")
	if err := os.WriteFile(path, []byte("sdf-bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	fileSvc := &fakeFileSvc{
		resolved: storage.StoredFile{Hash: "abc123", Name: "mol.sdf", Path: path, Size: 9},
	}
	r := newFilesRouter(&fakeChargeSvc{}, fileSvc)

	w := doJSON(t, r, http.MethodGet, "/files/abc123/download", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `"mol.sdf"`) {
		t.Fatalf("content disposition = %q", cd)
	}
	if w.Body.String() != "sdf-bytes" {
		t.Fatalf("body = %q", w.Body.String())
	}

	fileSvc.resolveErr = services.ErrFileNotFound
	w = doJSON(t, r, http.MethodGet, "/files/missing/download", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestDeleteFile(t *testing.T) {
	fileSvc := &fakeFileSvc{}
	r := newFilesRouter(&fakeChargeSvc{}, fileSvc)

	w := doJSON(t, r, http.MethodDelete, "/files/abc123", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}

	fileSvc.deleteErr = services.ErrFileNotFound
	w = doJSON(t, r, http.MethodDelete, "/files/abc123", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestFileQuota(t *testing.T) {
	fileSvc := &fakeFileSvc{quota: services.QuotaInfo{UsedBytes: 6, QuotaBytes: 1 << 20}}
	r := newFilesRouter(&fakeChargeSvc{}, fileSvc)

	w := doJSON(t, r, http.MethodGet, "/files/quota", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var q services.QuotaInfo
	if err := json.Unmarshal(w.Body.Bytes(), &q); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if q.UsedBytes != 6 || q.QuotaBytes != 1<<20 {
		t.Fatalf("unexpected quota: %+v", q)
	}

	fileSvc.quotaErr = errors.New("stat failed")
	w = doJSON(t, r, http.MethodGet, "/files/quota", nil, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
