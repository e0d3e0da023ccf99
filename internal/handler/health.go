package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

const apiVersion = "1.0.0"

type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Liveness answers as long as the process is up; it deliberately checks
// nothing else so a slow database cannot get the pod restarted.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   apiVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness reports whether the API can take traffic, which for this service
// means the database answers a ping.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, dbStatus := http.StatusOK, "ok"
	if err := h.db.PingContext(ctx); err != nil {
		slog.Warn("readiness check failed: database unreachable", "error", err)
		status, dbStatus = http.StatusServiceUnavailable, "down"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "down"
	}

	RespondJSON(w, status, map[string]any{
		"status":    overall,
		"version":   apiVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": map[string]string{
			"database": dbStatus,
		},
	})
}
