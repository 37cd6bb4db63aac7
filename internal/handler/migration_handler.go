package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/userbase/internal/database"
	"github.com/hitoshi/userbase/internal/metrics"
	"github.com/hitoshi/userbase/internal/middleware"
	"github.com/hitoshi/userbase/internal/model"
)

// MigrationLedger はマイグレーションハンドラーが必要とするレジャーのインターフェース。
type MigrationLedger interface {
	ApplyPending(ctx context.Context) (*database.ApplyResult, error)
	Pending(ctx context.Context) ([]model.Migration, error)
	Rollback(ctx context.Context) error
}

// MigrationHandler はマイグレーション適用のHTTPハンドラー。
type MigrationHandler struct {
	ledger  MigrationLedger
	metrics metrics.MetricsCollector
}

// NewMigrationHandler はMigrationHandlerを生成する。collectorがnilの場合は記録しない。
func NewMigrationHandler(ledger MigrationLedger, collector metrics.MetricsCollector) *MigrationHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &MigrationHandler{
		ledger:  ledger,
		metrics: collector,
	}
}

// migrationResponse はマイグレーション情報のAPIレスポンス。
type migrationResponse struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"`
}

// Apply は未適用のマイグレーションを適用する。
// POST /api/v1/migrations
// 適用した場合は201、適用対象がなかった場合は200と空の配列を返す。
func (h *MigrationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledger.ApplyPending(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if result.Outcome == database.OutcomeNonePending {
		writeJSON(w, http.StatusOK, toMigrationResponses(nil))
		return
	}

	h.metrics.RecordMigrationsApplied(len(result.Applied))
	writeJSON(w, http.StatusCreated, toMigrationResponses(result.Applied))
}

// ListPending は未適用のマイグレーションを適用せずに返す。
// GET /api/v1/migrations
func (h *MigrationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.ledger.Pending(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toMigrationResponses(pending))
}

// Rollback はロールバック要求を拒否する。
// DELETE /api/v1/migrations
func (h *MigrationHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	err := h.ledger.Rollback(r.Context())
	switch {
	case errors.Is(err, database.ErrRollbackUnsupported):
		slog.Warn("マイグレーションのロールバック要求を拒否しました",
			slog.String("remote_addr", r.RemoteAddr),
		)
		w.Header().Set("Allow", "GET, POST")
		writeAPIErrorResponse(w, http.StatusMethodNotAllowed, model.NewMigrationRollbackUnsupportedError())
	case err != nil:
		handleServiceError(w, r, err)
	default:
		// レジャーがロールバックを受け付けた場合も、このAPIでは成功として扱わない
		slog.Error("ロールバック不可のレジャーがエラーを返しませんでした",
			slog.String("remote_addr", r.RemoteAddr),
		)
		middleware.WriteInternalServerError(w)
	}
}

func toMigrationResponses(migrations []model.Migration) []migrationResponse {
	resp := make([]migrationResponse, 0, len(migrations))
	for _, m := range migrations {
		resp = append(resp, migrationResponse{
			Name:      m.Name,
			Path:      m.Path,
			Timestamp: m.Timestamp,
		})
	}
	return resp
}
