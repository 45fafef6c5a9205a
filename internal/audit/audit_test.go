package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestHashValue(t *testing.T) {
	got := HashValue("3201234567890001")
	if len(got) != 64 {
		t.Errorf("HashValue() length = %d, want 64 hex chars", len(got))
	}
	if got == "3201234567890001" {
		t.Error("HashValue() returned the input unchanged")
	}
	if got != HashValue("3201234567890001") {
		t.Error("HashValue() is not deterministic")
	}
	if HashValue("") != "" {
		t.Error("HashValue(\"\") should be empty so the field is omitted")
	}
}

func TestLog_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	log.Write(Entry{
		Time:         time.Now().UTC(),
		BatchID:      "batch-1",
		Row:          0,
		IdentityHash: HashValue("3201234567890001"),
		Action:       "created",
	})
	log.Write(Entry{
		Time:    time.Now().UTC(),
		BatchID: "batch-1",
		Row:     1,
		Action:  "invalid",
		Message: "NO IDENTITAS: invalid NIK: 123",
	})
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		entries = append(entries, e)
	}

	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Action != "created" {
		t.Errorf("entry 0 action = %q", entries[0].Action)
	}
	if entries[0].IdentityHash != HashValue("3201234567890001") {
		t.Errorf("entry 0 identity hash = %q", entries[0].IdentityHash)
	}
	if entries[1].Message != "NO IDENTITAS: invalid NIK: 123" {
		t.Errorf("entry 1 message = %q", entries[1].Message)
	}
}

func TestLog_AppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	for i := 0; i < 2; i++ {
		log, err := Open(path)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		log.Write(Entry{Action: "finished"})
		log.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Errorf("lines = %d, want 2 (log must append, not truncate)", got)
	}
}

func TestLog_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(row int) {
			defer wg.Done()
			log.Write(Entry{Row: row, Action: "created"})
		}(i)
	}
	wg.Wait()
	log.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("interleaved write corrupted a line: %v", err)
		}
		lines++
	}
	if lines != writers {
		t.Errorf("lines = %d, want %d", lines, writers)
	}
}

func TestLog_NilReceiverIsSafe(t *testing.T) {
	var log *Log
	log.Write(Entry{Action: "created"})
	if err := log.Close(); err != nil {
		t.Errorf("Close() on nil log error = %v", err)
	}
}
