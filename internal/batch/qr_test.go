package batch

import (
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testRecord() *Canonical {
	return &Canonical{
		Identity:    "3201234567890001",
		FamilyCard:  "3201234567890002",
		Name:        "Budi_Santoso",
		District:    "Kecamatan",
		Subdistrict: "Kelurahan",
		Payload:     "https://example.org/v/abc123",
	}
}

func TestWriter_GenerateCreatesImage(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	out := w.Generate(testRecord())
	if out.Status != StatusCreated {
		t.Fatalf("Status = %q (%s), want created", out.Status, out.Message)
	}

	wantName := "3201234567890001-3201234567890002-Budi_Santoso.png"
	if out.FileName != wantName {
		t.Errorf("FileName = %q, want %q", out.FileName, wantName)
	}

	dest := filepath.Join(w.Root(), "Kecamatan", "Kelurahan", wantName)
	f, err := os.Open(dest)
	if err != nil {
		t.Fatalf("open generated image: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode generated image: %v", err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		t.Error("generated image is empty")
	}
}

func TestWriter_GenerateSkipsExisting(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	rec := testRecord()
	if out := w.Generate(rec); out.Status != StatusCreated {
		t.Fatalf("first Generate status = %q", out.Status)
	}

	out := w.Generate(rec)
	if out.Status != StatusSkipped {
		t.Errorf("second Generate status = %q, want skipped", out.Status)
	}
	if out.FileName == "" {
		t.Error("skipped outcome should carry the file name")
	}
}

func TestWriter_GenerateUpscalesImage(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	out := w.Generate(testRecord())
	if out.Status != StatusCreated {
		t.Fatalf("Status = %q", out.Status)
	}

	dest := filepath.Join(w.Root(), "Kecamatan", "Kelurahan", out.FileName)
	f, err := os.Open(dest)
	if err != nil {
		t.Fatalf("open image: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode image: %v", err)
	}

	// The smallest QR symbol is 21 modules plus an 8-module quiet zone,
	// rendered at 10px per module and upscaled 6x.
	if img.Bounds().Dx() < 21*10*6 {
		t.Errorf("image width = %d, upscaling not applied", img.Bounds().Dx())
	}
}

func TestWriter_GenerateNoTempLeftovers(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	if out := w.Generate(testRecord()); out.Status != StatusCreated {
		t.Fatalf("Status = %q", out.Status)
	}

	var leftovers []string
	err = filepath.WalkDir(w.Root(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.Contains(d.Name(), ".tmp-") {
			leftovers = append(leftovers, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk output: %v", err)
	}
	if len(leftovers) > 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}

func TestWithinRoot(t *testing.T) {
	root := string(os.PathSeparator) + filepath.Join("srv", "out")

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "a", "b.png"), true},
		{root, true},
		{filepath.Join(root, "..", "other"), false},
		{string(os.PathSeparator) + filepath.Join("srv", "outside"), false},
		{filepath.Join(root, "a", "..", "..", "escape"), false},
	}

	for _, tt := range tests {
		if got := WithinRoot(root, tt.path); got != tt.want {
			t.Errorf("WithinRoot(%q, %q) = %v, want %v", root, tt.path, got, tt.want)
		}
	}
}

func TestWriter_EmptyPayloadFails(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	rec := testRecord()
	rec.Payload = ""

	out := w.Generate(rec)
	if out.Status != StatusError {
		t.Errorf("Status = %q, want error for empty payload", out.Status)
	}
}
