package statement

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	csvData := strings.Join([]string{
		"Date,Txn ID,Phone,Amount,Reference",
		"2024-09-01,TXN1,0788123456,5000,KIGALI.SACCOX.IKIMINA1",
		"2024-09-02,TXN2,0788123457,3000",
		"",
		"2024-09-03,TXN3,0788123458,1500,",
	}, "\n")

	table, err := ParseStatementFile(context.Background(), []byte(csvData), ".csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Txn ID", "Phone", "Amount", "Reference"}, table.Headers)
	require.Len(t, table.Rows, 3, "blank lines are dropped")

	// short row: cell absent entirely, so nil rather than empty string
	assert.Nil(t, table.Rows[1]["Reference"])
	// present but empty cell stays an empty string
	ref := table.Rows[2]["Reference"]
	require.NotNil(t, ref)
	assert.Equal(t, "", *ref)

	v := table.Rows[0]["Txn ID"]
	require.NotNil(t, v)
	assert.Equal(t, "TXN1", *v)
}

func TestParseCSVLeadingTitleBlock(t *testing.T) {
	csvData := "\n\nDate,Txn,Phone,Amount\n2024-09-01,T1,0788123456,100\n"
	table, err := ParseStatementFile(context.Background(), []byte(csvData), ".csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Txn", "Phone", "Amount"}, table.Headers)
	assert.Len(t, table.Rows, 1)
}

func TestParseMissingHeader(t *testing.T) {
	_, err := ParseStatementFile(context.Background(), []byte(""), ".csv")
	assert.ErrorIs(t, err, ErrMissingHeaderRow)

	_, err = ParseStatementFile(context.Background(), []byte("\n  ,  ,\n"), ".csv")
	assert.ErrorIs(t, err, ErrMissingHeaderRow)
}

func TestParseUnsupportedExtension(t *testing.T) {
	_, err := ParseStatementFile(context.Background(), []byte("x"), ".pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestParseTooManyRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("Date,Txn,Phone,Amount\n")
	for i := 0; i < 20001; i++ {
		fmt.Fprintf(&b, "2024-09-01,T%d,0788123456,100\n", i)
	}
	_, err := ParseStatementFile(context.Background(), []byte(b.String()), ".csv")
	assert.ErrorIs(t, err, ErrTooManyRows)
}

func TestParseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	csvData := "Date,Txn,Phone,Amount\n2024-09-01,T1,0788123456,100\n"
	_, err := ParseStatementFile(ctx, []byte(csvData), ".csv")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Date", "Txn ID", "Phone", "Amount"},
		{"2024-09-01", "TXN1", "0788123456", "5000"},
		{"2024-09-02", "TXN2", "0788123457", "3000"},
	}
	for i, row := range rows {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, val))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := ParseStatementFile(context.Background(), buf.Bytes(), ".xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Txn ID", "Phone", "Amount"}, table.Headers)
	require.Len(t, table.Rows, 2)
	v := table.Rows[1]["Amount"]
	require.NotNil(t, v)
	assert.Equal(t, "3000", *v)
}

func TestNormalizeCell(t *testing.T) {
	assert.Equal(t, "a b", normalizeCell("  a  b  "))
	assert.Equal(t, "", normalizeCell("   "))
}

func TestFileExt(t *testing.T) {
	assert.Equal(t, ".csv", FileExt("Statement.CSV"))
	assert.Equal(t, ".xlsx", FileExt("export.xlsx"))
	assert.Equal(t, "", FileExt("noext"))
}
