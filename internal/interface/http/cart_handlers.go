package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	domcart "example.com/storefront/internal/domain/cart"
	"example.com/storefront/internal/infra/session"
)

// quantity accepts a JSON integer or a string holding one.
type quantity int64

func (q *quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return domcart.ErrInvalidQuantity
		}
		data = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return domcart.ErrInvalidQuantity
	}
	*q = quantity(n)
	return nil
}

type upsertCartRequest struct {
	ProductID string    `json:"productId" validate:"required"`
	Quantity  *quantity `json:"quantity" validate:"required"`
}

func (a *API) handleGetCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		writeJSON(w, http.StatusOK, mapCart(domcart.EmptyView(owner)))
		return
	}

	view, err := a.cartSvc.Get(r.Context(), owner)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCart(view))
}

func (a *API) handleUpsertCart(w http.ResponseWriter, r *http.Request) {
	var req upsertCartRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	// A guest gets a session id up front, but the cookie is only sent once
	// the first write has landed.
	owner, hasSession := cartOwner(r)
	if !hasSession {
		owner = domcart.SessionOwner(session.NewID())
	}
	view, err := a.cartSvc.Upsert(r.Context(), owner, req.ProductID, int64(*req.Quantity))
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	if !hasSession {
		a.setSessionCookie(w, owner.SessionID)
	}
	writeJSON(w, http.StatusOK, mapCart(view))
}

func (a *API) handleCartCount(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		respondError(w, http.StatusNotFound, domcart.ErrCartNotFound)
		return
	}

	count, err := a.cartSvc.Count(r.Context(), owner)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (a *API) handleClearCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		respondError(w, http.StatusNotFound, domcart.ErrCartNotFound)
		return
	}

	if err := a.cartSvc.Clear(r.Context(), owner); err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"error":   false,
		"message": "cart cleared",
	})
}
