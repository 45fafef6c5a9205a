// Package audit appends one structured record per processed row to a
// persistent JSONL log. Identity numbers are stored only as one-way
// hashes, never in clear text. Writes are best-effort: a failing audit
// log is reported to the diagnostic log and never interrupts batch
// processing.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Entry is one audit record. Action mirrors the row's outcome tag; for
// batch-level records it is "finished".
type Entry struct {
	Time           time.Time `json:"ts"`
	BatchID        string    `json:"batch_id,omitempty"`
	Row            int       `json:"row_idx"`
	IdentityHash   string    `json:"nik_hash,omitempty"`
	FamilyCardHash string    `json:"kk_hash,omitempty"`
	Action         string    `json:"action"`
	Message        string    `json:"message,omitempty"`
}

// HashValue returns the SHA-256 hex digest of value, or the empty string
// for empty input so absent fields are omitted from the record.
func HashValue(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Log is an append-only JSONL audit sink that tolerates concurrent
// writers.
type Log struct {
	mu sync.Mutex
	f  *os.File
}

// Open opens (or creates) the audit log at path in append mode.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Log{f: f}, nil
}

// Write appends one entry. Failures are logged and swallowed: the audit
// trail is best-effort, not transactionally required for the output.
func (l *Log) Write(e Entry) {
	if l == nil {
		return
	}

	line, err := json.Marshal(e)
	if err != nil {
		slog.Error("marshal audit entry", "error", err)
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(line); err != nil {
		slog.Error("write audit entry", "error", err)
	}
}

// Close closes the underlying file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
