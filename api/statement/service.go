package statement

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ikanisa/ibimina/internal/serviceiface"
)

type StatementService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewStatementService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &StatementService{config: cfg, pool: pool}
}

func (s *StatementService) Name() string {
	return "statement"
}

func (s *StatementService) Start() error {
	port := 7143
	if s.config != nil {
		if p, ok := s.config["port"].(int); ok && p > 0 {
			port = p
		}
	}
	variants := NewVariantRegistry()
	path := os.Getenv("STMT_VARIANTS_FILE")
	if path == "" {
		path = "variants.yaml"
	}
	if err := variants.LoadVariantFile(path); err != nil {
		return fmt.Errorf("load variants: %w", err)
	}
	go StartStatementService(s.pool, variants, port)
	return nil
}

func (s *StatementService) Stop() error {
	return nil
}

// StartStatementService serves the import/reconciliation endpoints.
func StartStatementService(pool *pgxpool.Pool, variants *VariantRegistry, port int) {
	router := mux.NewRouter()
	router.HandleFunc("/statement/preview", PreviewStatement(variants)).Methods("POST")
	router.HandleFunc("/statement/import", ImportStatement(pool, variants)).Methods("POST")
	router.HandleFunc("/statement/sms/import", ImportParsedSMS(pool, variants)).Methods("POST")
	router.HandleFunc("/statement/payments", ListSaccoPayments(pool)).Methods("GET")
	router.HandleFunc("/statement/masks", ListMaskOptions(variants)).Methods("GET")

	addr := fmt.Sprintf(":%d", port)
	log.Println("Statement Service started on", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Statement Service failed: %v", err)
	}
}

// ListMaskOptions handles GET /statement/masks: the mask choices per field
// and the configured variants, for the import wizard to render.
func ListMaskOptions(variants *VariantRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields := make(map[string][]map[string]string, len(AllFields))
		for _, f := range AllFields {
			opts := MaskOptions(f)
			list := make([]map[string]string, 0, len(opts))
			for _, o := range opts {
				list = append(list, map[string]string{"id": o.ID, "label": o.Label})
			}
			fields[f] = list
		}
		writeJSON(w, map[string]interface{}{
			"success":  true,
			"fields":   fields,
			"variants": variants.Names(),
		})
	}
}
