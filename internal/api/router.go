package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/stockhunter/internal/api/handlers"
	"github.com/wonny/stockhunter/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(
	screen *handlers.ScreenHandler,
	database *handlers.DatabaseHandler,
	auth *handlers.AuthHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Screening
	api.HandleFunc("/screen", screen.ScreenKR).Methods("POST")
	api.HandleFunc("/stock-codes", screen.StockCodes).Methods("GET")
	api.HandleFunc("/us/screen", screen.ScreenUS).Methods("POST")
	api.HandleFunc("/us/symbols", screen.USSymbols).Methods("GET")

	// Credentials
	api.HandleFunc("/validate-credentials", auth.ValidateCredentials).Methods("POST")

	// Database maintenance
	api.HandleFunc("/database/status", database.Status).Methods("GET")
	api.HandleFunc("/database/stock-master", database.Masters).Methods("GET")
	api.HandleFunc("/database/progress", database.Progress).Methods("GET")
	api.HandleFunc("/database/initialize", database.Initialize).Methods("POST")
	api.HandleFunc("/database/update", database.Update).Methods("POST")
	api.HandleFunc("/database/sync-stock-names", database.SyncStockNames).Methods("POST")
	api.HandleFunc("/database/upload-stock-master", database.UploadMaster).Methods("POST")

	// Apply middleware
	r.Use(corsMiddleware)
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "stockhunter-api",
	})
}

// corsMiddleware allows the browser frontend to call the API directly
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
