package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// isoMillis reproduz o formato ISO-8601 em UTC com milissegundos (ex.: 2024-01-01T12:00:00.000Z).
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler responde GET /api/health. now é injetável para testes.
func HealthHandler(now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:    "OK",
			Timestamp: now().UTC().Format(isoMillis),
		})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
