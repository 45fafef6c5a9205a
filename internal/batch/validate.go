package batch

// validate.go performs the batch-level checks that run before any row is
// processed: file presence, size, container shape, text encoding, and
// the optional HMAC signature over the raw file bytes. All failures here
// abort the whole batch; nothing is written.

import (
	"archive/zip"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Sentinel errors for batch-level failures. Handlers match these with
// errors.Is to choose a status code and user message.
var (
	ErrNotFound             = errors.New("input file not found")
	ErrEmptyFile            = errors.New("input file is empty")
	ErrTooLarge             = errors.New("input file exceeds the size limit")
	ErrMalformedSpreadsheet = errors.New("spreadsheet is not a valid workbook")
	ErrMalformedText        = errors.New("csv file is not valid text")
	ErrUnsupportedFormat    = errors.New("unsupported file format")
	ErrMissingColumns       = errors.New("missing required columns")
	ErrSignatureRequired    = errors.New("file signature required")
	ErrBadSignature         = errors.New("file signature mismatch")
)

// textProbeSize is how much of a CSV file is sampled for encoding checks.
const textProbeSize = 2048

// ValidateInputFile confirms that the file at path exists, is non-empty,
// is under maxSize bytes, and is well-formed for its declared extension:
// .xlsx/.xls must be a valid zip container, .csv must decode as UTF-8 or
// ISO-8859-1. Only reads, no side effects.
func ValidateInputFile(path string, maxSize int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return fmt.Errorf("stat input file: %w", err)
	}
	if info.Size() == 0 {
		return ErrEmptyFile
	}
	if info.Size() > maxSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, info.Size(), maxSize)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		// An xlsx workbook is a zip archive of XML parts; a quick
		// container probe rejects renamed junk before parsing.
		zr, err := zip.OpenReader(path)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedSpreadsheet, err)
		}
		zr.Close()
	case ".csv":
		if err := probeText(path); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	return nil
}

// probeText reads a small sample and checks it decodes under UTF-8 or,
// as a fallback, strict ISO-8859-1.
func probeText(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	sample := make([]byte, textProbeSize)
	n, err := f.Read(sample)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read csv sample: %w", err)
	}
	sample = sample[:n]

	if utf8.Valid(sample) {
		return nil
	}
	if _, err := charmap.ISO8859_1.NewDecoder().Bytes(sample); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedText, err)
	}
	return nil
}

// VerifySignature checks an HMAC-SHA256 hex digest over the raw file
// bytes against the shared secret, using a constant-time comparison.
func VerifySignature(path, signatureHex, secret string) error {
	want, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil {
		return fmt.Errorf("%w: signature is not valid hex", ErrBadSignature)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input for signature check: %w", err)
	}
	defer f.Close()

	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := io.Copy(mac, f); err != nil {
		return fmt.Errorf("hash input for signature check: %w", err)
	}

	if !hmac.Equal(mac.Sum(nil), want) {
		return ErrBadSignature
	}
	return nil
}
