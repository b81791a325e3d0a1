package statement

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// smsImportRequest carries the output of the external SMS-to-fields parser.
// Lines the parser could not handle arrive in Failures and are echoed back
// in the accounting so no input line silently disappears.
type smsImportRequest struct {
	SaccoID   string      `json:"sacco_id"`
	IkiminaID *string     `json:"ikimina_id,omitempty"`
	Variant   string      `json:"variant,omitempty"`
	Messages  []ParsedSMS `json:"messages"`
	Failures  []string    `json:"failures,omitempty"`
	Preview   bool        `json:"preview,omitempty"`
}

// ImportParsedSMS handles POST /statement/sms/import. Each parsed message
// becomes a RawRow under the identity mapping and flows through the same
// process -> analyze -> commit pipeline as a file row. With preview=true
// the commit is skipped and only diagnostics return.
func ImportParsedSMS(pool *pgxpool.Pool, variants *VariantRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req smsImportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.SaccoID) == "" {
			http.Error(w, "sacco_id required", http.StatusBadRequest)
			return
		}
		if len(req.Messages) == 0 {
			http.Error(w, "no parsed messages submitted", http.StatusBadRequest)
			return
		}

		variantName := req.Variant
		if variantName == "" {
			variantName = "sms-momo"
		}
		specs := SMSFieldSpecs(variants.Masks(variantName))

		rawRows := make([]RawRow, 0, len(req.Messages))
		for _, msg := range req.Messages {
			rawRows = append(rawRows, RowFromParsedSMS(msg))
		}
		all, valid := ProcessBatch(specs, rawRows)
		feedback := Analyze(all)

		if req.Preview {
			writeJSON(w, map[string]interface{}{
				"success":        true,
				"feedback":       feedback,
				"row_count":      len(all),
				"valid_rows":     len(valid),
				"parse_failures": len(req.Failures),
				"rows":           all,
			})
			return
		}
		if len(valid) == 0 {
			http.Error(w, "no valid rows to import", http.StatusBadRequest)
			return
		}

		rows := make([]StatementRow, 0, len(valid))
		for _, pr := range valid {
			rows = append(rows, pr.Record)
		}
		repo := NewPaymentRepository(pool)
		result, err := CommitStatementRows(ctx, repo, req.SaccoID, req.IkiminaID, rows)
		if err != nil {
			http.Error(w, "Import failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{
			"success":        true,
			"result":         result,
			"feedback":       feedback,
			"rejected":       len(all) - len(valid),
			"parse_failures": len(req.Failures),
		})
	}
}
