package order

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrInvalidDeliveryType = errors.New("invalid delivery type")
	ErrInvalidPaymentType  = errors.New("invalid payment type")
	ErrContactRequired     = errors.New("contact name and phone are required")
	ErrAddressRequired     = errors.New("delivery address is required")
	ErrEmptyOrderItems     = errors.New("no items to checkout")
)
