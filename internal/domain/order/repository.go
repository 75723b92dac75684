package order

import "context"

type ListFilter struct {
	AccountID *int64
	Status    *Status
}

type Repository interface {
	Create(ctx context.Context, o *Order) (*Order, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]*Order, error)
	// UpdateStatus sets the status only if it still equals from. It returns
	// ErrInvalidTransition when another writer changed the status first.
	UpdateStatus(ctx context.Context, id int64, from, to Status) (*Order, error)
}
