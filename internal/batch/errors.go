package batch

// errors.go maps batch-level failures to user-facing messages with
// support codes, so clients see a single descriptive message while the
// technical error stays in the server log.

import "errors"

// UserMessage is a client-safe rendering of an internal error.
type UserMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// MapError translates an internal error into a UserMessage. Unknown
// errors get a generic message; the technical detail is logged
// server-side only.
func MapError(err error) UserMessage {
	switch {
	case errors.Is(err, ErrNotFound):
		return UserMessage{Code: "FILE001", Message: "The input file could not be found.", Action: "Upload the file again."}
	case errors.Is(err, ErrEmptyFile):
		return UserMessage{Code: "FILE002", Message: "The uploaded file is empty.", Action: "Upload a file with data rows."}
	case errors.Is(err, ErrTooLarge):
		return UserMessage{Code: "FILE003", Message: "The uploaded file exceeds the size limit.", Action: "Split the file into smaller batches."}
	case errors.Is(err, ErrMalformedSpreadsheet):
		return UserMessage{Code: "FILE004", Message: "The spreadsheet file is not a valid workbook.", Action: "Re-export the file as .xlsx and try again."}
	case errors.Is(err, ErrMalformedText):
		return UserMessage{Code: "FILE005", Message: "The CSV file is not readable text.", Action: "Save the file with UTF-8 encoding."}
	case errors.Is(err, ErrUnsupportedFormat):
		return UserMessage{Code: "FILE006", Message: "Only .xlsx, .xls, and .csv files are accepted.", Action: "Convert the file to a supported format."}
	case errors.Is(err, ErrMissingColumns):
		return UserMessage{Code: "SCH001", Message: err.Error(), Action: "Add the missing columns to the table header."}
	case errors.Is(err, ErrSignatureRequired):
		return UserMessage{Code: "SIG001", Message: "A file signature is required but was not provided.", Action: "Include the HMAC-SHA256 signature with the upload."}
	case errors.Is(err, ErrBadSignature):
		return UserMessage{Code: "SIG002", Message: "The file signature does not match.", Action: "Re-sign the file with the shared secret."}
	case errors.Is(err, ErrTooManyBatches):
		return UserMessage{Code: "BUSY001", Message: "Too many batches are being processed right now.", Action: "Wait a moment and try again."}
	default:
		return UserMessage{Code: "GEN001", Message: "The batch could not be processed.", Action: "Check the server log for details."}
	}
}
