package statement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Logical fields of a statement row. Order matters: per-row errors are
// reported in this order.
const (
	FieldOccurredAt = "occurred_at"
	FieldTxnID      = "txn_id"
	FieldMsisdn     = "msisdn"
	FieldAmount     = "amount"
	FieldReference  = "reference"
)

// RequiredFields are the logical fields a mapping must cover before a file
// can be processed. Reference stays optional.
var RequiredFields = []string{FieldOccurredAt, FieldTxnID, FieldMsisdn, FieldAmount}

// AllFields lists every logical field in declaration order.
var AllFields = []string{FieldOccurredAt, FieldTxnID, FieldMsisdn, FieldAmount, FieldReference}

// RawRow maps a column header to the raw cell text. A nil value means the
// cell was absent in the source, which masks treat differently from "".
type RawRow map[string]*string

// Table is the format-agnostic output of the tabular decoder.
type Table struct {
	Headers []string
	Rows    []RawRow
}

// FieldSpec binds one logical field to a mask and a source column for one
// processing pass. ColumnKey is nil when the field is unmapped.
type FieldSpec struct {
	Key       string
	MaskID    string
	ColumnKey *string
}

// ProcessedCell is the mask outcome for one (row, field) pair. Value holds
// the normalized value on success and the raw text on failure so previews
// can still render it.
type ProcessedCell struct {
	Value  interface{} `json:"value"`
	Valid  bool        `json:"valid"`
	Reason string      `json:"reason,omitempty"`
}

// StatementRow is the canonical, ledger-ready record produced from one
// valid statement line.
type StatementRow struct {
	OccurredAt time.Time       `json:"occurred_at"`
	TxnID      string          `json:"txn_id"`
	Msisdn     string          `json:"msisdn"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  *string         `json:"reference,omitempty"`
}

// ProcessedRow carries the best-effort record, the per-cell outcomes and
// the aggregated row errors. Errors is empty iff every required cell (and
// every present optional cell with a strict mask) validated; Record must
// not be trusted while Errors is non-empty.
type ProcessedRow struct {
	Record StatementRow             `json:"record"`
	Cells  map[string]ProcessedCell `json:"cells"`
	Errors []string                 `json:"errors"`
}

// Valid reports whether the row may enter the import batch.
func (p ProcessedRow) Valid() bool {
	return len(p.Errors) == 0
}

// BatchFeedback is the pre-import diagnostic summary over a full processed
// batch, valid and invalid rows alike.
type BatchFeedback struct {
	DuplicateTxnIDs       []string `json:"duplicate_txn_ids"`
	DuplicateRowCount     int      `json:"duplicate_row_count"`
	MissingReferenceCount int      `json:"missing_reference_count"`
	AutoMatchCount        int      `json:"auto_match_count"`
	InvalidMsisdnCount    int      `json:"invalid_msisdn_count"`
	InvalidDateCount      int      `json:"invalid_date_count"`
}

// ImportResult is the sole outcome of a commit. Inserted = Posted +
// Unallocated and Inserted + Duplicates equals the submitted row count.
type ImportResult struct {
	Inserted    int `json:"inserted"`
	Duplicates  int `json:"duplicates"`
	Posted      int `json:"posted"`
	Unallocated int `json:"unallocated"`
}

// PaymentStatus is the initial reconciliation state of a persisted payment.
// The external matcher later moves UNALLOCATED records to POSTED; this
// engine never transitions existing rows.
type PaymentStatus string

const (
	StatusUnallocated PaymentStatus = "UNALLOCATED"
	StatusPosted      PaymentStatus = "POSTED"
)

// PaymentRecord is the persisted shape, keyed (SaccoID, TxnID).
type PaymentRecord struct {
	PaymentID  string          `json:"payment_id"`
	SaccoID    string          `json:"sacco_id"`
	TxnID      string          `json:"txn_id"`
	Msisdn     string          `json:"msisdn"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
	Reference  *string         `json:"reference,omitempty"`
	Status     PaymentStatus   `json:"status"`
	IkiminaID  *string         `json:"ikimina_id,omitempty"`
	MemberID   *string         `json:"member_id,omitempty"`
}

// ReferenceTarget is the ikimina (and optionally member) a structured
// reference resolves to.
type ReferenceTarget struct {
	IkiminaID string
	MemberID  *string
}

// ParsedSMS is the output of the external SMS-to-fields parser for one
// message. It is fed through the same pipeline as a file row using an
// identity mapping.
type ParsedSMS struct {
	OccurredAt string  `json:"occurred_at"`
	TxnID      string  `json:"txn_id"`
	Msisdn     string  `json:"msisdn"`
	Amount     string  `json:"amount"`
	Reference  *string `json:"reference,omitempty"`
}
