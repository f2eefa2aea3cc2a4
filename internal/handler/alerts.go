package handler

import (
	"net/http"

	"appproft-buybox-sync/internal/alert"
	"appproft-buybox-sync/pkg/apierror"
	"appproft-buybox-sync/pkg/response"
)

// AlertHandler exposes hijack alerts and their summary report.
type AlertHandler struct {
	alerts *alert.Manager
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(alerts *alert.Manager) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// List handles GET /api/v1/alerts. ?state=active (default) or resolved.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		state = "active"
	}

	var (
		views []alert.AlertView
		err   error
	)
	switch state {
	case "active":
		views, err = h.alerts.Active(r.Context())
	case "resolved":
		views, err = h.alerts.Resolved(r.Context())
	default:
		response.Error(w, apierror.BadRequest("state must be active or resolved"))
		return
	}
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, views)
}

// Summary handles GET /api/v1/alerts/summary.
func (h *AlertHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.alerts.Summary(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, summary)
}
