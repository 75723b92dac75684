package cart

import "errors"

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrInvalidData     = errors.New("invalid cart data")
	ErrInvalidQuantity = errors.New("quantity must be an integer")
	ErrInvalidOwner    = errors.New("cart owner is required")
	ErrEmptyCart       = errors.New("cart is empty")
)
