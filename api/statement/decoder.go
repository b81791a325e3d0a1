package statement

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/ikanisa/ibimina/internal/config"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrMissingHeaderRow    = errors.New("statement file has no header row")
	ErrFileTooLarge        = fmt.Errorf("statement file exceeds %d bytes", config.MaxUploadBytes)
	ErrTooManyRows         = fmt.Errorf("statement file exceeds %d rows", config.MaxStatementRows)
)

const nbsp = " "

// normalizeCell trims, removes non-breaking spaces and collapses whitespace.
func normalizeCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, nbsp, " ")
	return strings.Join(strings.Fields(s), " ")
}

// allEmptyRow returns true when every cell in the row is empty or whitespace.
func allEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// FileExt returns the lower-cased extension of an uploaded filename.
func FileExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// ParseStatementFile decodes an uploaded statement file into the
// format-agnostic header/row shape the rest of the pipeline consumes.
// Delimited text (.csv), spreadsheet (.xlsx) and legacy spreadsheet (.xls)
// inputs all normalize to the same Table. Size and row ceilings are applied
// before rows are materialized; ctx aborts a large decode between rows.
func ParseStatementFile(ctx context.Context, data []byte, ext string) (*Table, error) {
	if len(data) > config.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}
	records, err := readRecords(data, ext)
	if err != nil {
		return nil, err
	}
	return buildTable(ctx, records)
}

func readRecords(data []byte, ext string) ([][]string, error) {
	switch ext {
	case ".csv", ".txt":
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		return r.ReadAll()
	case ".xlsx":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sheet := f.GetSheetName(0)
		return f.GetRows(sheet)
	case ".xls":
		wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		sheet := wb.GetSheet(0)
		if sheet == nil {
			return nil, ErrMissingHeaderRow
		}
		records := make([][]string, 0, int(sheet.MaxRow)+1)
		for i := 0; i <= int(sheet.MaxRow); i++ {
			row := sheet.Row(i)
			if row == nil {
				records = append(records, nil)
				continue
			}
			cells := make([]string, row.LastCol()+1)
			for j := 0; j <= row.LastCol(); j++ {
				cells[j] = row.Col(j)
			}
			records = append(records, cells)
		}
		return records, nil
	}
	return nil, ErrUnsupportedFileType
}

func buildTable(ctx context.Context, records [][]string) (*Table, error) {
	// skip leading blank lines before the header (bank exports often carry
	// a title block above the real table)
	start := 0
	for start < len(records) && allEmptyRow(records[start]) {
		start++
	}
	if start >= len(records) {
		return nil, ErrMissingHeaderRow
	}
	headerRow := records[start]
	dataRows := records[start+1:]
	if len(dataRows) > config.MaxStatementRows {
		return nil, ErrTooManyRows
	}

	headers := make([]string, 0, len(headerRow))
	colIdx := make([]int, 0, len(headerRow))
	for j, h := range headerRow {
		h = normalizeCell(h)
		if h == "" {
			continue
		}
		headers = append(headers, h)
		colIdx = append(colIdx, j)
	}
	if len(headers) == 0 {
		return nil, ErrMissingHeaderRow
	}

	rows := make([]RawRow, 0, len(dataRows))
	for i, rec := range dataRows {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if allEmptyRow(rec) {
			continue
		}
		row := make(RawRow, len(headers))
		for k, h := range headers {
			j := colIdx[k]
			if j >= len(rec) {
				// absent, not empty: masks must tell the two apart
				row[h] = nil
				continue
			}
			v := normalizeCell(rec[j])
			row[h] = &v
		}
		rows = append(rows, row)
	}
	return &Table{Headers: headers, Rows: rows}, nil
}
