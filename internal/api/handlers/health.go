package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewHealthHandler(db *gorm.DB, redis *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Health reports per-component status. The database is required; redis
// only degrades background processing, but both flip the overall status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		Components: map[string]string{},
	}

	if h.dbAlive() {
		resp.Components["database"] = "up"
	} else {
		resp.Components["database"] = "down"
		resp.Status = "degraded"
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			resp.Components["redis"] = "down"
			resp.Status = "degraded"
		} else {
			resp.Components["redis"] = "up"
		}
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// Ready answers load balancer probes. The service can take traffic as
// long as the database responds.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.dbAlive() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *HealthHandler) dbAlive() bool {
	sqlDB, err := h.db.DB()
	return err == nil && sqlDB.Ping() == nil
}
