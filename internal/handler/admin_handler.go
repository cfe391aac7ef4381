package handler

import (
	"net/http"
	"strings"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AdminHandler serves the back-office order endpoints.
type AdminHandler struct {
	orders         service.OrderService
	reconciliation service.ReconciliationService
	logger         zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(orders service.OrderService, reconciliation service.ReconciliationService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		orders:         orders,
		reconciliation: reconciliation,
		logger:         logger.With().Str("handler", "admin").Logger(),
	}
}

// ListOrders handles GET /api/admin/orders?page&limit&status&search.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	filter := model.OrderFilter{
		Page:   page,
		Limit:  limit,
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	}
	if raw := r.URL.Query().Get("status"); raw != "" && raw != "all" {
		status, ok := model.ParseOrderStatus(raw)
		if !ok {
			writeError(w, r, model.NewValidationError("Invalid status"), h.logger)
			return
		}
		filter.Status = &status
	}

	result, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetOrder handles GET /api/admin/orders/{id}.
func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// UpdateStatus handles PATCH /api/admin/orders/{id}.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req model.UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.reconciliation.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *AdminHandler) orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, model.NewValidationError("invalid order ID format"), h.logger)
		return uuid.Nil, false
	}
	return id, true
}
