package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/gorilla/mux"

	"github.com/ikanisa/ibimina/internal/logger"
)

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}

// createReverseProxy returns a reverse proxy handler for the given target
// URL, logging each forwarded request for audit.
func createReverseProxy(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remote, err := url.Parse(target)
		if err != nil {
			http.Error(w, "Bad gateway target", http.StatusInternalServerError)
			return
		}
		if logger.GlobalLogger != nil {
			logger.GlobalLogger.LogAudit(fmt.Sprintf("gateway %s %s from %s", r.Method, r.URL.Path, extractClientIP(r)))
		}
		proxy := httputil.NewSingleHostReverseProxy(remote)
		proxy.ServeHTTP(w, r)
	}
}

func statementServiceURL() string {
	if u := os.Getenv("STATEMENT_SERVICE_URL"); u != "" {
		return u
	}
	return "http://localhost:7143"
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// StartGateway fronts the statement service for the admin application.
func StartGateway(port int) {
	router := mux.NewRouter()
	router.HandleFunc("/health", HealthHandler).Methods("GET")
	router.PathPrefix("/statement/").HandlerFunc(createReverseProxy(statementServiceURL()))

	addr := fmt.Sprintf(":%d", port)
	log.Println("Gateway started on", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Gateway failed: %v", err)
	}
}
