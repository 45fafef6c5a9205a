package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adisetya/qrbatch/internal/batch"
	"github.com/adisetya/qrbatch/internal/history"
)

// handleIndex serves the embedded upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleGenerate accepts a multipart upload, runs the batch
// synchronously, and returns the summary as JSON. The optional
// "signature" field carries the HMAC-SHA256 hex digest of the file.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, r, batch.ErrTooLarge, http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("missing file field: %w", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	inputPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}
	defer s.limiter.Release()

	// The output root is derived from the original file name, not the
	// timestamped stored copy, so re-uploading the same file targets the
	// same tree and previously generated images are skipped.
	base := filepath.Base(header.Filename)
	base = batch.SanitizeFolderName(strings.TrimSuffix(base, filepath.Ext(base)))
	outputRoot := filepath.Join(s.cfg.Generate.OutputDir, base)

	summary, err := s.runner.Run(r.Context(), inputPath, outputRoot, r.FormValue("signature"))
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	s.recordBatch(r, header.Filename, base, summary)

	writeJSON(w, summary)
}

// saveUpload copies the uploaded stream into the upload directory under
// a sanitized, timestamp-prefixed name so concurrent uploads of the
// same file never collide.
func (s *Server) saveUpload(src io.Reader, originalName string) (string, error) {
	name := batch.SanitizeFileName(filepath.Base(originalName))
	name = fmt.Sprintf("%d-%s", time.Now().UnixNano(), name)

	dest := filepath.Join(s.cfg.Upload.Dir, name)
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("save upload: %w", err)
	}
	return dest, nil
}

// recordBatch persists the summary to the history store. Failures are
// logged by the store caller and never affect the response.
func (s *Server) recordBatch(r *http.Request, fileName, outputName string, summary *batch.Summary) {
	if !s.history.Enabled() {
		return
	}
	err := s.history.RecordBatch(r.Context(), history.BatchRecord{
		ID:          summary.BatchID,
		FileName:    fileName,
		OutputName:  outputName,
		TotalRows:   summary.TotalRows,
		Generated:   summary.Generated,
		Skipped:     summary.Skipped,
		Invalid:     summary.Invalid,
		Errored:     len(summary.Errors),
		ZipFileName: summary.ZipFileName,
		DurationMs:  summary.DurationMs,
	})
	if err != nil {
		logRequestError(r, "record batch history", err)
	}
}

// handleDownload serves a named file from the output directory as an
// attachment. Only direct children of the output directory are
// reachable; path traversal attempts get a 404 rather than a hint that
// the path was understood.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" {
		s.respondError(w, r, batch.ErrNotFound, http.StatusNotFound)
		return
	}

	root, err := filepath.Abs(s.cfg.Generate.OutputDir)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	dest := filepath.Join(root, filepath.Base(filename))
	if !batch.WithinRoot(root, dest) {
		s.respondError(w, r, batch.ErrNotFound, http.StatusNotFound)
		return
	}

	info, err := os.Stat(dest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.respondError(w, r, batch.ErrNotFound, http.StatusNotFound)
			return
		}
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if info.IsDir() {
		s.respondError(w, r, batch.ErrNotFound, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(dest)))
	http.ServeFile(w, r, dest)
}

// handleBatchHistory returns recent batch runs from the history store.
func (s *Server) handleBatchHistory(w http.ResponseWriter, r *http.Request) {
	if !s.history.Enabled() {
		writeJSON(w, []history.BatchRecord{})
		return
	}

	records, err := s.history.RecentBatches(r.Context(), 50)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []history.BatchRecord{}
	}
	writeJSON(w, records)
}

// handleStatus reports the batch limiter state for monitoring.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.limiter.Status())
}
