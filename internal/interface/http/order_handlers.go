package http

import (
	"net/http"

	domcart "example.com/storefront/internal/domain/cart"
	domorder "example.com/storefront/internal/domain/order"
	checkoutuc "example.com/storefront/internal/usecase/checkout"
)

type checkoutRequest struct {
	DeliveryType string `json:"deliveryType" validate:"required"`
	PaymentType  string `json:"paymentType" validate:"required"`
	Name         string `json:"name" validate:"max=255"`
	Phone        string `json:"phone" validate:"max=32"`
	Email        string `json:"email" validate:"omitempty,email"`
	Address      string `json:"address" validate:"max=512"`
	Comment      string `json:"comment"`
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	owner, ok := cartOwner(r)
	if !ok {
		respondError(w, http.StatusBadRequest, domcart.ErrEmptyCart)
		return
	}

	order, err := a.checkoutSvc.Checkout(r.Context(), owner, checkoutuc.Input{
		DeliveryType: domorder.DeliveryType(req.DeliveryType),
		PaymentType:  domorder.PaymentType(req.PaymentType),
		Contact: domorder.Contact{
			Name:    req.Name,
			Phone:   req.Phone,
			Email:   req.Email,
			Address: req.Address,
			Comment: req.Comment,
		},
	})
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, mapOrder(order))
}

func (a *API) handleListMyOrders(w http.ResponseWriter, r *http.Request) {
	user := getAuthUser(r.Context())

	orders, err := a.orderSvc.ListByAccount(r.Context(), user.UserID)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": mapOrders(orders)})
}

func (a *API) handleGetMyOrder(w http.ResponseWriter, r *http.Request) {
	user := getAuthUser(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.orderSvc.GetForAccount(r.Context(), user.UserID, id)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

func (a *API) handleCancelMyOrder(w http.ResponseWriter, r *http.Request) {
	user := getAuthUser(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.orderSvc.Cancel(r.Context(), user.UserID, id)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}
