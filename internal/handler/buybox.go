package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"appproft-buybox-sync/internal/repository"
	"appproft-buybox-sync/pkg/apierror"
	"appproft-buybox-sync/pkg/response"
)

// BuyBoxHandler exposes ownership state and history.
type BuyBoxHandler struct {
	repo repository.TrackingRepository
}

// NewBuyBoxHandler creates a new buy box handler.
func NewBuyBoxHandler(repo repository.TrackingRepository) *BuyBoxHandler {
	return &BuyBoxHandler{repo: repo}
}

// List handles GET /api/v1/buybox - current status of every observed item.
func (h *BuyBoxHandler) List(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.repo.ListStatuses(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, statuses)
}

// Get handles GET /api/v1/buybox/{asin} - current status for one item.
func (h *BuyBoxHandler) Get(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	if asin == "" {
		response.Error(w, apierror.BadRequest("asin is required"))
		return
	}

	status, err := h.repo.GetStatus(r.Context(), asin)
	if err != nil {
		response.Error(w, err)
		return
	}
	if status == nil {
		response.Error(w, apierror.NotFound("no tracking data for asin "+asin))
		return
	}
	response.OK(w, status)
}

// History handles GET /api/v1/buybox/{asin}/history - ownership
// transitions for one item, newest first. ?limit= caps the rows.
func (h *BuyBoxHandler) History(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	if asin == "" {
		response.Error(w, apierror.BadRequest("asin is required"))
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(w, apierror.BadRequest("limit must be a positive integer"))
			return
		}
		if parsed > 1000 {
			parsed = 1000
		}
		limit = parsed
	}

	transitions, err := h.repo.ListTransitions(r.Context(), asin, limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, transitions)
}
