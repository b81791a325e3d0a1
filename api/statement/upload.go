package statement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ikanisa/ibimina/api/utils"
	"github.com/ikanisa/ibimina/internal/config"
)

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// previewPayload is the per-request pipeline outcome shared by the preview
// and import handlers.
type previewPayload struct {
	table    *Table
	mapping  *Mapping
	specs    []FieldSpec
	all      []ProcessedRow
	valid    []ProcessedRow
	feedback BatchFeedback
}

// runFilePipeline decodes an uploaded file and runs it through
// automap -> overrides -> process -> analyze. Structural failures (bad
// file, missing header) come back as errors; per-row problems land in the
// processed rows.
func runFilePipeline(ctx context.Context, data []byte, ext string, variants *VariantRegistry, variantName string, mappingOverride, maskOverride map[string]string) (*previewPayload, error) {
	table, err := ParseStatementFile(ctx, data, ext)
	if err != nil {
		return nil, err
	}

	mapping := AutoMap(table.Headers)
	for field, column := range mappingOverride {
		mapping.Set(field, column)
	}

	masks := variants.Masks(variantName)
	for field, maskID := range maskOverride {
		masks[field] = maskID
	}

	specs := mapping.FieldSpecs(masks)
	all, valid := ProcessBatch(specs, table.Rows)
	return &previewPayload{
		table:    table,
		mapping:  mapping,
		specs:    specs,
		all:      all,
		valid:    valid,
		feedback: Analyze(all),
	}, nil
}

type uploadRequest struct {
	data      []byte
	ext       string
	saccoID   string
	ikiminaID *string
	variant   string
	mapping   map[string]string
	masks     map[string]string
}

func readUploadRequest(r *http.Request) (*uploadRequest, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("failed to parse multipart form")
	}
	saccoID := strings.TrimSpace(r.FormValue("sacco_id"))
	if saccoID == "" {
		return nil, fmt.Errorf("sacco_id required in form")
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		return nil, fmt.Errorf("no file uploaded")
	}
	fh := files[0]
	if fh.Size > config.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s", fh.Filename)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, config.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s", fh.Filename)
	}
	if len(data) > config.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}

	req := &uploadRequest{
		data:    data,
		ext:     FileExt(fh.Filename),
		saccoID: saccoID,
		variant: strings.TrimSpace(r.FormValue("variant")),
	}
	if ik := strings.TrimSpace(r.FormValue("ikimina_id")); ik != "" {
		req.ikiminaID = &ik
	}
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.mapping); err != nil {
			return nil, fmt.Errorf("mapping must be a JSON object of field to column")
		}
	}
	if raw := r.FormValue("masks"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.masks); err != nil {
			return nil, fmt.Errorf("masks must be a JSON object of field to mask id")
		}
	}
	return req, nil
}

// PreviewStatement handles POST /statement/preview: it runs the full
// pipeline without touching the payment store and returns the per-row
// breakdown the operator reviews before committing.
func PreviewStatement(variants *VariantRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := readUploadRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p, err := runFilePipeline(r.Context(), req.data, req.ext, variants, req.variant, req.mapping, req.masks)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]interface{}{
			"success":        true,
			"headers":        p.table.Headers,
			"mapping":        p.mapping.Columns(),
			"missing_fields": p.mapping.MissingFields(),
			"feedback":       p.feedback,
			"row_count":      len(p.all),
			"valid_rows":     len(p.valid),
			"rows":           p.all,
		})
	}
}

// ImportStatement handles POST /statement/import: the same pipeline as
// preview, then staging, optional S3 archival of the original file, and
// the batch commit of the valid rows.
func ImportStatement(pool *pgxpool.Pool, variants *VariantRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req, err := readUploadRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p, err := runFilePipeline(ctx, req.data, req.ext, variants, req.variant, req.mapping, req.masks)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if missing := p.mapping.MissingFields(); len(missing) > 0 {
			http.Error(w, "mapping incomplete, missing: "+strings.Join(missing, ", "), http.StatusBadRequest)
			return
		}
		if len(p.valid) == 0 {
			http.Error(w, "no valid rows to import", http.StatusBadRequest)
			return
		}

		repo := NewPaymentRepository(pool)
		batchID := uuid.New().String()
		if err := repo.StageStatementRows(ctx, batchID, p.table); err != nil {
			// staging is the audit trail, not the import itself
			log.Printf("[STATEMENT-IMPORT] staging batch %s failed: %v", batchID, err)
		}
		if stmtS3Enabled() {
			key := buildStatementS3Key(req.saccoID, fileHash(req.data), req.ext)
			if err := archiveStatementToS3(ctx, key, req.data, detectContentType(req.data)); err != nil {
				log.Printf("[STATEMENT-IMPORT] s3 archive failed: %v", err)
			}
		}

		rows := make([]StatementRow, 0, len(p.valid))
		for _, pr := range p.valid {
			rows = append(rows, pr.Record)
		}
		result, err := CommitStatementRows(ctx, repo, req.saccoID, req.ikiminaID, rows)
		if err != nil {
			http.Error(w, "Import failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{
			"success":  true,
			"batch_id": batchID,
			"result":   result,
			"feedback": p.feedback,
			"rejected": len(p.all) - len(p.valid),
		})
	}
}

// ListSaccoPayments handles GET /statement/payments?sacco_id=...&page=N&limit=M
func ListSaccoPayments(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		saccoID := strings.TrimSpace(r.URL.Query().Get("sacco_id"))
		if saccoID == "" {
			http.Error(w, "sacco_id query parameter required", http.StatusBadRequest)
			return
		}
		pagination, err := utils.ExtractPagination(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		repo := NewPaymentRepository(pool)
		total, err := repo.CountPayments(r.Context(), saccoID)
		if err != nil {
			writeJSON(w, map[string]interface{}{"success": false, "error": err.Error()})
			return
		}
		pagination.SetPaginationStats(total)
		payments, err := repo.ListPayments(r.Context(), saccoID, pagination.Limit, pagination.Offset)
		if err != nil {
			writeJSON(w, map[string]interface{}{"success": false, "error": err.Error()})
			return
		}
		writeJSON(w, map[string]interface{}{"success": true, "data": payments, "pagination": pagination})
	}
}
