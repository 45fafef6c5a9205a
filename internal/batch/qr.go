package batch

// qr.go renders one QR image per canonical record into the output tree.
//
// Layout: <root>/<district>/<subdistrict>/<nik>-<kk>-<name>.png. Both
// the folder and the final file path are checked to stay lexically under
// the output root before the filesystem is touched. Existing files are
// never overwritten: a re-run of the same batch skips them.

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
)

const (
	// qrModulePixels is the rendered size of one QR module before
	// upscaling; the standard 4-module quiet zone is included.
	qrModulePixels = 10

	// qrScaleFactor is the integer upscale applied to the rendered
	// symbol for print-quality output.
	qrScaleFactor = 6
)

// Writer persists QR images for canonical records under a fixed output
// root. It is safe for concurrent use: every valid record maps to a
// distinct destination path.
type Writer struct {
	root string // absolute
}

// NewWriter resolves root to an absolute path and creates it.
func NewWriter(root string) (*Writer, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve output root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}
	return &Writer{root: abs}, nil
}

// Root returns the absolute output root.
func (w *Writer) Root() string {
	return w.root
}

// Generate renders the QR image for rec and persists it atomically.
// It never returns an error: unexpected failures become error-status
// outcomes so one bad row cannot abort the batch. The Row field of the
// returned Outcome is left for the caller to fill in.
func (w *Writer) Generate(rec *Canonical) Outcome {
	dir := filepath.Join(w.root, rec.District, rec.Subdistrict)
	if !WithinRoot(w.root, dir) {
		return Outcome{Status: StatusBlocked, Message: "illegal folder path detected"}
	}

	fileName := SanitizeFileName(fmt.Sprintf("%s-%s-%s.png", rec.Identity, rec.FamilyCard, rec.Name))
	dest := filepath.Join(dir, fileName)
	if !WithinRoot(w.root, dest) {
		return Outcome{Status: StatusBlocked, Message: "illegal file path detected"}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Outcome{Status: StatusError, Message: fmt.Sprintf("create folder: %v", err)}
	}

	// Existence means a previous run already produced this record.
	if _, err := os.Stat(dest); err == nil {
		return Outcome{Status: StatusSkipped, FileName: fileName}
	}

	img, err := renderQR(rec.Payload)
	if err != nil {
		return Outcome{Status: StatusError, Message: fmt.Sprintf("render qr: %v", err)}
	}

	if err := writeAtomic(dest, img); err != nil {
		return Outcome{Status: StatusError, Message: fmt.Sprintf("write %s: %v", fileName, err)}
	}

	return Outcome{Status: StatusCreated, FileName: fileName}
}

// renderQR encodes payload at the highest error-correction level and
// upscales the symbol with a Catmull-Rom filter.
func renderQR(payload string) (image.Image, error) {
	code, err := qrcode.New(payload, qrcode.Highest)
	if err != nil {
		return nil, err
	}

	// A negative size renders qrModulePixels pixels per module with the
	// quiet zone included.
	src := code.Image(-qrModulePixels)
	b := src.Bounds()

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*qrScaleFactor, b.Dy()*qrScaleFactor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst, nil
}

// writeAtomic encodes img as PNG to a temporary sibling file and renames
// it into place, so a concurrent reader (the archiver) never observes a
// partially-written image.
func writeAtomic(dest string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return err
	}

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// WithinRoot reports whether path stays lexically under root. Both paths
// are expected to be absolute; the check is purely lexical, matching the
// containment guarantee the sanitizers already provide.
func WithinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
