package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adisetya/qrbatch/internal/batch"
	"github.com/adisetya/qrbatch/internal/config"
)

func testServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			RequestTimeout: time.Minute,
		},
		Upload: config.UploadConfig{
			MaxFileSize: 1 << 20,
			Dir:         filepath.Join(dir, "uploads"),
		},
		Generate: config.GenerateConfig{
			OutputDir:     filepath.Join(dir, "qr_output"),
			Workers:       2,
			MaxConcurrent: 1,
			MaxWait:       time.Second,
			MaxPayloadLen: 500,
		},
	}
	for _, d := range []string{cfg.Upload.Dir, cfg.Generate.OutputDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}

	runner := batch.NewRunner(cfg, nil)
	limiter := batch.NewLimiter(cfg.Generate.MaxConcurrent, cfg.Generate.MaxWait)
	return NewServer(cfg, runner, limiter, nil), cfg
}

func multipartUpload(t *testing.T, fieldFile, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(fieldFile, fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleGenerate(t *testing.T) {
	srv, cfg := testServer(t)

	csvData := []byte("NO IDENTITAS,NOMOR KK,NAMA LENGKAP,KODE QR\n" +
		"3201234567890001,3201234567890002,Budi Santoso,payload-satu\n" +
		"12345,3201234567890004,Too Short,payload-dua\n")
	body, contentType := multipartUpload(t, "file", "warga.csv", csvData)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var summary batch.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("response is not a summary: %v", err)
	}
	if summary.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", summary.TotalRows)
	}
	if summary.Generated != 1 {
		t.Errorf("Generated = %d, want 1 (errors: %v)", summary.Generated, summary.Errors)
	}
	if summary.Invalid != 1 {
		t.Errorf("Invalid = %d, want 1", summary.Invalid)
	}
	if summary.ZipFileName == "" {
		t.Error("ZipFileName is empty")
	}

	// The archive must land directly in the output dir for /download.
	if _, err := os.Stat(filepath.Join(cfg.Generate.OutputDir, summary.ZipFileName)); err != nil {
		t.Errorf("archive not found in output dir: %v", err)
	}
}

func TestHandleGenerate_RepeatUploadSkips(t *testing.T) {
	srv, _ := testServer(t)

	csvData := []byte("NO IDENTITAS,NOMOR KK,NAMA LENGKAP,KODE QR\n" +
		"3201234567890001,3201234567890002,Budi Santoso,payload-satu\n")

	upload := func() batch.Summary {
		t.Helper()
		body, contentType := multipartUpload(t, "file", "warga.csv", csvData)
		req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var summary batch.Summary
		if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
			t.Fatalf("response is not a summary: %v", err)
		}
		return summary
	}

	first := upload()
	if first.Generated != 1 || first.Skipped != 0 {
		t.Fatalf("first upload generated = %d, skipped = %d", first.Generated, first.Skipped)
	}

	// The output root is keyed on the original file name, so a second
	// upload of the same file finds its images already present.
	second := upload()
	if second.Generated != 0 {
		t.Errorf("second upload Generated = %d, want 0", second.Generated)
	}
	if second.Skipped != 1 {
		t.Errorf("second upload Skipped = %d, want 1", second.Skipped)
	}
	if first.ZipFileName != "warga.zip" {
		t.Errorf("ZipFileName = %q, want %q", first.ZipFileName, "warga.zip")
	}
	if second.ZipFileName != first.ZipFileName {
		t.Errorf("zip name changed across runs: %q vs %q", first.ZipFileName, second.ZipFileName)
	}
}

func TestHandleGenerate_MissingFileField(t *testing.T) {
	srv, _ := testServer(t)

	body, contentType := multipartUpload(t, "other", "warga.csv", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleGenerate_UnsupportedFormat(t *testing.T) {
	srv, _ := testServer(t)

	body, contentType := multipartUpload(t, "file", "warga.txt", []byte("a,b\n1,2\n"))
	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error response is not JSON: %v", err)
	}
	if resp.Code != "FILE006" {
		t.Errorf("error code = %q, want FILE006", resp.Code)
	}
}

func TestHandleDownload(t *testing.T) {
	srv, cfg := testServer(t)

	archive := filepath.Join(cfg.Generate.OutputDir, "warga.zip")
	if err := os.WriteFile(archive, []byte("zip-bytes"), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/download/warga.zip", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="warga.zip"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Body.String() != "zip-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleDownload_Missing(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/download/nope.zip", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDownload_AnyDirectChildServed(t *testing.T) {
	srv, cfg := testServer(t)

	// The contract is path containment only, not an extension filter.
	if err := os.WriteFile(filepath.Join(cfg.Generate.OutputDir, "notes.txt"), []byte("contents"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/download/notes.txt", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "contents" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleDownload_DirectoryNotServed(t *testing.T) {
	srv, cfg := testServer(t)

	// Batch output trees live as directories under the output dir; only
	// files are downloadable.
	if err := os.MkdirAll(filepath.Join(cfg.Generate.OutputDir, "warga"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/download/warga", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var status batch.LimiterStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("response is not a limiter status: %v", err)
	}
	if status.MaxConcurrent != 1 {
		t.Errorf("MaxConcurrent = %d, want 1", status.MaxConcurrent)
	}
}

func TestHandleBatchHistory_DisabledReturnsEmptyList(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/batches", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON list", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestIndexServesPage(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("QR Batch Generator")) {
		t.Error("index page body missing title")
	}
}
