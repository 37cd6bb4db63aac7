package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/userbase/internal/model"
)

// StatusServiceInterface はステータスハンドラーが必要とするサービスインターフェース。
type StatusServiceInterface interface {
	Current(ctx context.Context) (*model.SystemStatus, error)
}

// HealthChecker はDB疎通確認のインターフェース。*sqlx.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// StatusHandler は稼働状況のHTTPハンドラー。
type StatusHandler struct {
	service StatusServiceInterface
	db      HealthChecker
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(service StatusServiceInterface, db HealthChecker) *StatusHandler {
	return &StatusHandler{
		service: service,
		db:      db,
	}
}

type databaseStatusResponse struct {
	Version         string `json:"version"`
	MaxConnections  int    `json:"max_connections"`
	OpenConnections int    `json:"open_connections"`
}

type statusResponse struct {
	UpdatedAt    time.Time `json:"updated_at"`
	Dependencies struct {
		Database databaseStatusResponse `json:"database"`
	} `json:"dependencies"`
}

// Status はデータベースの稼働状況を返す。
// GET /api/v1/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.Current(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var resp statusResponse
	resp.UpdatedAt = current.UpdatedAt
	resp.Dependencies.Database = databaseStatusResponse{
		Version:         current.Database.Version,
		MaxConnections:  current.Database.MaxConnections,
		OpenConnections: current.Database.OpenConnections,
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health はDBに疎通できる場合に200を返す。
// GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		slog.Warn("health check failed", slog.String("error", err.Error()))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
