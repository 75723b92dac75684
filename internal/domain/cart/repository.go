package cart

import "context"

// Store persists carts line by line. Implementations must apply each call
// atomically so concurrent writes to different products never overwrite each other.
type Store interface {
	// Load returns ErrCartNotFound when the owner has never written to a cart.
	Load(ctx context.Context, owner Owner) (*Cart, error)
	// SetQuantity creates the cart on first use and sets the line quantity.
	SetQuantity(ctx context.Context, owner Owner, productID ProductRef, quantity int64) error
	// AddQuantity adds delta to the line, creating it when missing. The
	// result is capped at MaxQuantity.
	AddQuantity(ctx context.Context, owner Owner, productID ProductRef, delta int64) error
	RemoveItem(ctx context.Context, owner Owner, productID ProductRef) error
	// RemoveItems deletes each given line only while its stored quantity
	// still equals the given one. Lines changed since they were read stay.
	RemoveItems(ctx context.Context, owner Owner, items []Item) error
	// Clear empties the cart but keeps it.
	Clear(ctx context.Context, owner Owner) error
	// Delete discards the cart entirely.
	Delete(ctx context.Context, owner Owner) error
}
