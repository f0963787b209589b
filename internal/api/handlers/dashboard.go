// dashboard.go — обработчик статистики для панели.
package handlers

import (
	"net/http"

	apierrors "github.com/hoangtu0812/pocketfile-lite/internal/api/errors"
)

// DashboardStats — GET /api/dashboard/stats.
func (h *APIHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "dashboard_stats", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, mapDashboard(stats))
}
