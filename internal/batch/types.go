// Package batch implements the QR generation pipeline: input file
// validation, row normalization, QR rendering, and concurrent batch
// orchestration. This package has no HTTP dependencies and can be driven
// by any frontend.
package batch

// Required table columns, matched exactly and case-sensitively.
const (
	ColIdentity    = "NO IDENTITAS"
	ColFamilyCard  = "NOMOR KK"
	ColFullName    = "NAMA LENGKAP"
	ColPayload     = "KODE QR"
	ColDistrict    = "KECAMATAN"
	ColSubdistrict = "KELURAHAN"
)

// RequiredColumns lists the columns every input table must supply.
// KECAMATAN and KELURAHAN are optional and default to placeholder labels.
var RequiredColumns = []string{ColIdentity, ColFamilyCard, ColFullName, ColPayload}

// IdentityNumberLength is the exact digit count of national identity and
// family-card numbers. This is a domain constant and must not be relaxed.
const IdentityNumberLength = 16

// Placeholder labels used when a region column is absent from the table.
const (
	DefaultDistrict    = "Kecamatan"
	DefaultSubdistrict = "Kelurahan"
)

// Fallback tokens when sanitization leaves nothing usable.
const (
	fallbackFileToken   = "file"
	fallbackFolderToken = "folder"
)

// Row is one raw table row keyed by column header.
type Row map[string]string

// Canonical is a row after field extraction, validation, and
// sanitization. It is only constructed after digit-length validation has
// passed; destination paths are never derived from unvalidated input.
type Canonical struct {
	Identity    string // exactly 16 digits
	FamilyCard  string // exactly 16 digits
	Name        string // filesystem-safe token
	District    string // folder-safe token
	Subdistrict string // folder-safe token
	Payload     string // trimmed, HTML-escaped, length-capped
}

// Status tags the per-row result of attempted QR generation.
type Status string

const (
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped"
	StatusInvalid Status = "invalid"
	StatusBlocked Status = "blocked"
	StatusError   Status = "error"
)

// Outcome is the tagged per-row result. Exactly one Outcome is produced
// per input row; collection order is unspecified because rows are
// processed concurrently.
type Outcome struct {
	Row      int    // zero-based ordinal of the input row
	Status   Status
	FileName string // set for created/skipped outcomes
	Message  string // reason for invalid/blocked/error outcomes
}

// Summary aggregates all per-row outcomes of one full batch run.
// It is built only after every dispatched row has completed.
type Summary struct {
	BatchID     string   `json:"batch_id"`
	FileName    string   `json:"file_name"`
	TotalRows   int      `json:"total_rows"`
	Generated   int      `json:"generated"`
	Skipped     int      `json:"skipped"`
	Invalid     int      `json:"invalid"`
	Errors      []string `json:"errors"`
	ZipFileName string   `json:"zip_filename"`
	DurationMs  int64    `json:"duration_ms"`
}
