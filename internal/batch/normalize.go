package batch

// normalize.go turns one raw table row into a Canonical record.
//
// Identity and family-card numbers are reduced to digits and must be
// exactly 16 characters. Name and region labels are reduced to
// filesystem-safe tokens before any path is derived from them, so a
// hostile cell value like "../../etc" can never influence the output
// location.

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	nonDigitRe     = regexp.MustCompile(`\D`)
	unsafeFileRe   = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	unsafeFolderRe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// FieldError describes why a row failed domain validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// CleanNumber strips every non-digit character from value.
func CleanNumber(value string) string {
	return nonDigitRe.ReplaceAllString(value, "")
}

// validNumber reports whether value is all digits of the given length.
func validNumber(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for _, c := range value {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// SanitizeFileName reduces name to the file-safe allow-list
// [a-zA-Z0-9._-], replacing everything else with underscore and trimming
// leading/trailing underscores. An empty result falls back to "file".
func SanitizeFileName(name string) string {
	name = unsafeFileRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return fallbackFileToken
	}
	return name
}

// SanitizeFolderName reduces name to the folder-safe allow-list
// [a-zA-Z0-9_-]; the dot is excluded so no traversal sequence survives.
// An empty result falls back to "folder".
func SanitizeFolderName(name string) string {
	name = unsafeFolderRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return fallbackFolderToken
	}
	return name
}

// Normalize extracts and cleans identity fields from one raw row into a
// Canonical record. It returns a FieldError instead of a record when the
// row fails domain validation; the caller records that as an invalid
// outcome.
func Normalize(row Row, maxPayloadLen int) (*Canonical, *FieldError) {
	identity := CleanNumber(row[ColIdentity])
	if !validNumber(identity, IdentityNumberLength) {
		return nil, &FieldError{Field: ColIdentity, Message: fmt.Sprintf("invalid NIK: %s", identity)}
	}

	familyCard := CleanNumber(row[ColFamilyCard])
	if !validNumber(familyCard, IdentityNumberLength) {
		return nil, &FieldError{Field: ColFamilyCard, Message: fmt.Sprintf("invalid KK: %s", familyCard)}
	}

	payload := html.EscapeString(strings.TrimSpace(row[ColPayload]))
	if len(payload) > maxPayloadLen {
		return nil, &FieldError{Field: ColPayload, Message: "QR content too long"}
	}

	name := SanitizeFileName(strings.ReplaceAll(row[ColFullName], " ", "_"))

	return &Canonical{
		Identity:    identity,
		FamilyCard:  familyCard,
		Name:        name,
		District:    regionLabel(row, ColDistrict, DefaultDistrict),
		Subdistrict: regionLabel(row, ColSubdistrict, DefaultSubdistrict),
		Payload:     payload,
	}, nil
}

// regionLabel resolves an optional region column: a missing or blank
// column yields the fixed placeholder label, anything else is sanitized
// to a folder-safe token.
func regionLabel(row Row, col, placeholder string) string {
	value, ok := row[col]
	if !ok || strings.TrimSpace(value) == "" {
		return placeholder
	}
	return SanitizeFolderName(value)
}
