package handler

import (
	"errors"
	"net/http"

	"appproft-buybox-sync/internal/service"
	"appproft-buybox-sync/pkg/apierror"
	"appproft-buybox-sync/pkg/response"
)

// SyncHandler exposes manual sync control and run status.
type SyncHandler struct {
	sync *service.SyncService
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(sync *service.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// TriggerResponse acknowledges a manual trigger.
type TriggerResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Trigger handles POST /api/v1/sync - starts a manual run in the
// background. Returns 409 when a run is already active.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.StartManual(); err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			response.Error(w, apierror.Conflict("a sync run is already in progress"))
			return
		}
		response.Error(w, err)
		return
	}

	response.JSON(w, http.StatusAccepted, TriggerResponse{
		Triggered: true,
		Message:   "sync run started",
	})
}

// Status handles GET /api/v1/sync/status - reports whether a run is
// active plus the most recent run record.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.sync.Status(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, status)
}
