package batch

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func TestZipTree(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "output")

	if err := os.MkdirAll(filepath.Join(source, "Kecamatan", "Kelurahan"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(source, "Kecamatan", "Kelurahan"), "a.png", []byte("png-bytes"))
	writeFile(t, source, "b.txt", []byte("hello"))

	target := filepath.Join(dir, "output.zip")
	if err := ZipTree(source, target); err != nil {
		t.Fatalf("ZipTree() error = %v", err)
	}

	zr, err := zip.OpenReader(target)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	names := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		names[f.Name] = true
	}

	// Entries are rooted at the source folder name with forward slashes.
	for _, want := range []string{
		"output/",
		"output/b.txt",
		"output/Kecamatan/",
		"output/Kecamatan/Kelurahan/",
		"output/Kecamatan/Kelurahan/a.png",
	} {
		if !names[want] {
			t.Errorf("archive missing entry %q (have %v)", want, names)
		}
	}
}

func TestZipTree_FileContentsSurvive(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "output")
	if err := os.MkdirAll(source, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, source, "data.txt", []byte("round trip"))

	target := filepath.Join(dir, "output.zip")
	if err := ZipTree(source, target); err != nil {
		t.Fatalf("ZipTree() error = %v", err)
	}

	zr, err := zip.OpenReader(target)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "output/data.txt" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		buf := make([]byte, 64)
		n, _ := rc.Read(buf)
		rc.Close()
		if got := string(buf[:n]); got != "round trip" {
			t.Errorf("entry content = %q, want %q", got, "round trip")
		}
		return
	}
	t.Fatal("archive entry output/data.txt not found")
}
