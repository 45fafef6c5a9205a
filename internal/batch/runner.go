package batch

// runner.go orchestrates one full batch: validate the input file, parse
// the table, check required headers, fan rows out to a bounded worker
// pool, aggregate outcomes, and archive the output tree once every
// worker has joined.
//
// Batch-level failures (validation, schema, signature) are returned to
// the caller before any row is processed. Row-level failures are tagged
// outcomes, counted in the summary, and never abort the batch.

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/adisetya/qrbatch/internal/audit"
	"github.com/adisetya/qrbatch/internal/config"
	"github.com/adisetya/qrbatch/internal/logging"
)

// Runner executes batches with a fixed worker pool. It is safe for
// concurrent use; callers bound the number of simultaneous batches with
// a Limiter.
type Runner struct {
	workers          int
	taskDelay        time.Duration
	maxPayloadLen    int
	maxFileSize      int64
	requireSignature bool
	signatureSecret  string
	auditLog         *audit.Log
}

// NewRunner builds a Runner from the generation and security settings.
func NewRunner(cfg *config.Config, auditLog *audit.Log) *Runner {
	return &Runner{
		workers:          cfg.Generate.Workers,
		taskDelay:        cfg.Generate.TaskDelay,
		maxPayloadLen:    cfg.Generate.MaxPayloadLen,
		maxFileSize:      cfg.Upload.MaxFileSize,
		requireSignature: cfg.Security.RequireSignature,
		signatureSecret:  cfg.Security.SignatureSecret,
		auditLog:         auditLog,
	}
}

// Run processes the table at inputPath into outputRoot and returns the
// batch summary. signature is the optional HMAC-SHA256 hex digest over
// the input file; it is only consulted when signatures are required.
func (r *Runner) Run(ctx context.Context, inputPath, outputRoot, signature string) (*Summary, error) {
	start := time.Now()
	batchID := uuid.New().String()
	log := logging.WithFields(ctx, "batch_id", batchID, "input", filepath.Base(inputPath))

	if err := ValidateInputFile(inputPath, r.maxFileSize); err != nil {
		return nil, err
	}

	if r.requireSignature {
		if strings.TrimSpace(signature) == "" {
			return nil, ErrSignatureRequired
		}
		if err := VerifySignature(inputPath, signature, r.signatureSecret); err != nil {
			return nil, err
		}
	}

	table, err := ReadTable(inputPath)
	if err != nil {
		return nil, err
	}

	if missing := table.MissingColumns(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	writer, err := NewWriter(outputRoot)
	if err != nil {
		return nil, err
	}

	log.Info("batch started", "rows", len(table.Rows), "workers", r.workers)

	// One unit of work per row; outcomes land at their row's index so
	// aggregation is independent of completion order.
	outcomes := make([]Outcome, len(table.Rows))
	var g errgroup.Group
	g.SetLimit(r.workers)

	for i, row := range table.Rows {
		i, row := i, row
		g.Go(func() error {
			if r.taskDelay > 0 {
				time.Sleep(r.taskDelay)
			}
			out, entry := r.processRow(i, row, writer, batchID)
			outcomes[i] = out
			r.auditLog.Write(entry)
			return nil
		})
	}

	// Workers never return errors; this is purely the join barrier.
	// Archiving must not start before it.
	_ = g.Wait()

	summary := aggregate(batchID, filepath.Base(inputPath), outcomes)

	zipName := filepath.Base(writer.Root()) + ".zip"
	zipPath := filepath.Join(filepath.Dir(writer.Root()), zipName)
	if err := ZipTree(writer.Root(), zipPath); err != nil {
		return nil, fmt.Errorf("archive output: %w", err)
	}
	summary.ZipFileName = zipName
	summary.DurationMs = time.Since(start).Milliseconds()

	r.auditLog.Write(audit.Entry{
		Time:    time.Now().UTC(),
		BatchID: batchID,
		Action:  "finished",
		Message: fmt.Sprintf("generated=%d skipped=%d invalid=%d errors=%d", summary.Generated, summary.Skipped, summary.Invalid, len(summary.Errors)),
	})

	log.Info("batch finished",
		"generated", summary.Generated,
		"skipped", summary.Skipped,
		"invalid", summary.Invalid,
		"errors", len(summary.Errors),
		"duration_ms", summary.DurationMs,
	)

	return summary, nil
}

// processRow is one unit of work: normalize plus QR write. It returns
// the row's outcome together with its audit entry, so the two observable
// effects of a row stay paired and testable. Panics are contained into
// error outcomes.
func (r *Runner) processRow(idx int, row Row, w *Writer, batchID string) (out Outcome, entry audit.Entry) {
	identityHash := audit.HashValue(CleanNumber(row[ColIdentity]))
	familyCardHash := audit.HashValue(CleanNumber(row[ColFamilyCard]))

	defer func() {
		if p := recover(); p != nil {
			out = Outcome{Row: idx, Status: StatusError, Message: fmt.Sprintf("internal error: %v", p)}
			entry = entryFor(batchID, identityHash, familyCardHash, out)
		}
	}()

	rec, ferr := Normalize(row, r.maxPayloadLen)
	if ferr != nil {
		out = Outcome{Row: idx, Status: StatusInvalid, Message: ferr.Error()}
		return out, entryFor(batchID, identityHash, familyCardHash, out)
	}

	out = w.Generate(rec)
	out.Row = idx
	return out, entryFor(batchID, identityHash, familyCardHash, out)
}

// entryFor derives the audit record for one outcome. The generated file
// name is deliberately not recorded: it embeds the identity numbers,
// which the audit trail only ever stores as hashes.
func entryFor(batchID, identityHash, familyCardHash string, out Outcome) audit.Entry {
	return audit.Entry{
		Time:           time.Now().UTC(),
		BatchID:        batchID,
		Row:            out.Row,
		IdentityHash:   identityHash,
		FamilyCardHash: familyCardHash,
		Action:         string(out.Status),
		Message:        out.Message,
	}
}

// aggregate folds per-row outcomes into the batch summary. Blocked rows
// count into the error list, keeping generated+skipped+invalid+errors
// equal to the number of input rows.
func aggregate(batchID, fileName string, outcomes []Outcome) *Summary {
	s := &Summary{
		BatchID:   batchID,
		FileName:  fileName,
		TotalRows: len(outcomes),
		Errors:    []string{},
	}
	for _, out := range outcomes {
		switch out.Status {
		case StatusCreated:
			s.Generated++
		case StatusSkipped:
			s.Skipped++
		case StatusInvalid:
			s.Invalid++
		case StatusBlocked, StatusError:
			s.Errors = append(s.Errors, out.Message)
		}
	}
	return s
}
