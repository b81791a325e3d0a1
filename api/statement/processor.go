package statement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Assembler builds the typed record from the per-field cells. It is called
// even when the row failed validation so previews can render a best-effort
// record; ProcessedRow.Errors stays the admissibility authority.
type Assembler func(cells map[string]ProcessedCell) StatementRow

// ProcessRow applies each field's mask to its mapped cell and assembles the
// typed record. Every invalid cell contributes one error, in field
// declaration order; optional-field masks only report invalid when a value
// is present but malformed, so absence never errors.
func ProcessRow(specs []FieldSpec, row RawRow, assemble Assembler) ProcessedRow {
	cells := make(map[string]ProcessedCell, len(specs))
	var errs []string
	for _, spec := range specs {
		var raw *string
		if spec.ColumnKey != nil {
			raw = row[*spec.ColumnKey]
		}
		res := ApplyMask(spec.MaskID, raw)
		cells[spec.Key] = ProcessedCell{Value: res.Value, Valid: res.Valid, Reason: res.Reason}
		if !res.Valid {
			errs = append(errs, fmt.Sprintf("%s: %s", spec.Key, res.Reason))
		}
	}
	return ProcessedRow{Record: assemble(cells), Cells: cells, Errors: errs}
}

// ProcessBatch runs every raw row through the pipeline and also returns the
// importable subset. len(valid) + number of invalid rows always equals
// len(all).
func ProcessBatch(specs []FieldSpec, rows []RawRow) (all []ProcessedRow, valid []ProcessedRow) {
	all = make([]ProcessedRow, 0, len(rows))
	for _, row := range rows {
		p := ProcessRow(specs, row, AssembleStatementRow)
		all = append(all, p)
		if p.Valid() {
			valid = append(valid, p)
		}
	}
	return all, valid
}

// AssembleStatementRow is the default assembler. Cells that failed their
// mask carry raw strings, so every conversion here is lenient: the point is
// a record that renders in a preview without panicking, not a trusted one.
func AssembleStatementRow(cells map[string]ProcessedCell) StatementRow {
	var rec StatementRow
	if s, ok := cells[FieldOccurredAt].Value.(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			rec.OccurredAt = t
		}
	}
	if s, ok := cells[FieldTxnID].Value.(string); ok {
		rec.TxnID = strings.TrimSpace(s)
	}
	if s, ok := cells[FieldMsisdn].Value.(string); ok {
		rec.Msisdn = strings.TrimSpace(s)
	}
	rec.Amount = coerceAmount(cells[FieldAmount].Value)
	if s, ok := cells[FieldReference].Value.(string); ok && s != "" {
		ref := s
		rec.Reference = &ref
	}
	return rec
}

// coerceAmount keeps preview rendering non-throwing: a valid amount cell
// holds a decimal already, anything else gets a lenient parse that
// defaults to zero.
func coerceAmount(v interface{}) decimal.Decimal {
	switch a := v.(type) {
	case decimal.Decimal:
		return a
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(a), ",", "")
		s = strings.ReplaceAll(s, " ", "")
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
	}
	return decimal.Zero
}

// RowFromParsedSMS converts one externally parsed SMS payload into the
// RawRow shape so the message path reuses the file pipeline unchanged.
// Column names equal field names (identity mapping).
func RowFromParsedSMS(msg ParsedSMS) RawRow {
	row := RawRow{
		FieldOccurredAt: strptr(msg.OccurredAt),
		FieldTxnID:      strptr(msg.TxnID),
		FieldMsisdn:     strptr(msg.Msisdn),
		FieldAmount:     strptr(msg.Amount),
		FieldReference:  nil,
	}
	if msg.Reference != nil {
		row[FieldReference] = msg.Reference
	}
	return row
}

// SMSFieldSpecs is the identity mapping used by the message path: each
// logical field reads the column of the same name. masks overrides the
// default mask per field, as in Mapping.FieldSpecs.
func SMSFieldSpecs(masks map[string]string) []FieldSpec {
	m := NewMapping()
	for _, f := range AllFields {
		m.Set(f, f)
	}
	specs := m.FieldSpecs(masks)
	// SMS parsers emit ISO timestamps, so the date default differs from
	// the file path's day-first default.
	if masks[FieldOccurredAt] == "" {
		for i := range specs {
			if specs[i].Key == FieldOccurredAt {
				specs[i].MaskID = MaskDateISO
			}
		}
	}
	return specs
}

func strptr(s string) *string {
	return &s
}
