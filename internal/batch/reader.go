package batch

// reader.go parses the input table into ordered rows keyed by header.
// Spreadsheets go through excelize; CSV goes through encoding/csv with
// BOM skipping and an ISO-8859-1 fallback for files exported by legacy
// Windows tooling.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a parsed input file: the header row plus every data row in
// file order.
type Table struct {
	Headers []string
	Rows    []Row
}

// ReadTable parses the file at path according to its extension.
// ValidateInputFile is expected to have run first; an unsupported
// extension still fails here defensively.
func ReadTable(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return readSpreadsheet(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// MissingColumns returns the required column names absent from the
// table's header, in declaration order. Matching is exact and
// case-sensitive.
func (t *Table) MissingColumns() []string {
	present := make(map[string]bool, len(t.Headers))
	for _, h := range t.Headers {
		present[h] = true
	}

	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

func readSpreadsheet(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSpreadsheet, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedSpreadsheet)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet has no header row", ErrMalformedSpreadsheet)
	}

	headers := rows[0]
	table := &Table{Headers: headers, Rows: make([]Row, 0, len(rows)-1)}
	for _, cells := range rows[1:] {
		table.Rows = append(table.Rows, rowFromCells(headers, cells))
	}
	return table, nil
}

func readCSV(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	// Windows exports commonly carry a UTF-8 BOM; strip it so the first
	// header cell matches exactly.
	data = bytes.TrimPrefix(data, utf8BOM)

	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedText, err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: csv has no header row", ErrMalformedText)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedText, err)
	}

	table := &Table{Headers: headers}
	for {
		cells, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// An unparsable line fails the whole batch; every input row
			// must be accounted for by an outcome, and a line the parser
			// cannot read never gets one.
			return nil, fmt.Errorf("%w: %v", ErrMalformedText, err)
		}
		table.Rows = append(table.Rows, rowFromCells(headers, cells))
	}
	return table, nil
}

// rowFromCells maps one record onto the header; cells beyond the header
// width are dropped, short rows simply omit the trailing columns.
func rowFromCells(headers []string, cells []string) Row {
	row := make(Row, len(headers))
	for i, cell := range cells {
		if i < len(headers) {
			row[headers[i]] = cell
		}
	}
	return row
}
