package http

import (
	"net/http"

	domorder "example.com/storefront/internal/domain/order"
)

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	var filter domorder.ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domorder.ParseStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		filter.Status = &status
	}

	orders, err := a.orderSvc.List(r.Context(), filter)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": mapOrders(orders)})
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.orderSvc.GetByID(r.Context(), id)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

func (a *API) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req updateOrderStatusRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	status, err := domorder.ParseStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.orderSvc.Transition(r.Context(), id, status)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}
