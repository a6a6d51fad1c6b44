// Package importer extracts a tabular phrase report from a ZIP-wrapped XLSX
// upload. It selects the right archive member and worksheet, slices off the
// preamble rows above the header, and hands the raw column-positioned table
// to the upsert engine. Cell values are not interpreted here.
package importer

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tealeg/xlsx"
)

const spreadsheetExt = ".xlsx"

// headerRowIndex is the 0-based row holding the column headers; everything
// above it is report preamble and gets discarded.
const headerRowIndex = 3

var (
	// ErrBadArchive means the payload is not a readable ZIP archive.
	ErrBadArchive = errors.New("not a valid zip archive")

	// ErrNoSpreadsheet means the archive contains no .xlsx member at all.
	ErrNoSpreadsheet = errors.New("no spreadsheet found in archive")

	// ErrEmptySheet means the selected worksheet has a header but no data rows.
	ErrEmptySheet = errors.New("worksheet has no data rows")
)

// NoDataSheetError reports that no worksheet matched the marker and no
// positional fallback was possible. It carries the available sheet names so
// the user can be told what the workbook actually contains.
type NoDataSheetError struct {
	Available []string
}

func (e *NoDataSheetError) Error() string {
	return fmt.Sprintf("no data worksheet found; available sheets: %s", strings.Join(e.Available, ", "))
}

// Table is the raw tabular result of an extraction: a header row and the data
// rows below it, all as string cells in their original column positions.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]string
}

// Width returns the number of columns in the header row.
func (t *Table) Width() int { return len(t.Header) }

// ExtractTable unpacks a ZIP payload, locates the phrase spreadsheet and its
// data worksheet, and returns the table starting at the header row.
//
// Member selection: prefer a member whose name case-insensitively contains
// fileMarker and ends with .xlsx; otherwise fall back to the first .xlsx
// member; fail with ErrNoSpreadsheet when there is none.
//
// Worksheet selection: prefer a sheet whose name case-insensitively contains
// sheetMarker; otherwise fall back to the third sheet when the workbook has
// at least three; fail with *NoDataSheetError otherwise.
func ExtractTable(data []byte, fileMarker, sheetMarker string) (*Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	member := pickMember(zr, fileMarker)
	if member == nil {
		return nil, ErrNoSpreadsheet
	}

	rc, err := member.Open()
	if err != nil {
		return nil, fmt.Errorf("open archive member %q: %w", member.Name, err)
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read archive member %q: %w", member.Name, err)
	}

	wb, err := xlsx.OpenBinary(raw)
	if err != nil {
		return nil, fmt.Errorf("parse spreadsheet %q: %w", member.Name, err)
	}

	sheet, err := pickSheet(wb, sheetMarker)
	if err != nil {
		return nil, err
	}

	return sheetTable(sheet)
}

// pickMember chooses the archive entry to parse, or nil when no .xlsx exists.
func pickMember(zr *zip.Reader, marker string) *zip.File {
	marker = strings.ToLower(marker)
	var fallback *zip.File
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		if !strings.HasSuffix(name, spreadsheetExt) {
			continue
		}
		if marker != "" && strings.Contains(name, marker) {
			return f
		}
		if fallback == nil {
			fallback = f
		}
	}
	return fallback
}

// pickSheet chooses the worksheet holding the data table.
func pickSheet(wb *xlsx.File, marker string) (*xlsx.Sheet, error) {
	marker = strings.ToLower(marker)
	names := make([]string, 0, len(wb.Sheets))
	for _, s := range wb.Sheets {
		names = append(names, s.Name)
		if marker != "" && strings.Contains(strings.ToLower(s.Name), marker) {
			return s, nil
		}
	}
	// Upstream report layout puts the query table on the third sheet.
	if len(wb.Sheets) >= 3 {
		return wb.Sheets[2], nil
	}
	return nil, &NoDataSheetError{Available: names}
}

// sheetTable slices the sheet at the header row and stringifies the cells.
func sheetTable(sheet *xlsx.Sheet) (*Table, error) {
	if len(sheet.Rows) <= headerRowIndex+1 {
		return nil, ErrEmptySheet
	}
	t := &Table{
		Sheet:  sheet.Name,
		Header: rowStrings(sheet.Rows[headerRowIndex]),
	}
	for _, r := range sheet.Rows[headerRowIndex+1:] {
		t.Rows = append(t.Rows, rowStrings(r))
	}
	if len(t.Rows) == 0 {
		return nil, ErrEmptySheet
	}
	return t, nil
}

func rowStrings(r *xlsx.Row) []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.String()
	}
	return out
}
