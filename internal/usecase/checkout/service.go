package checkout

import (
	"context"

	"go.uber.org/zap"

	domcart "example.com/storefront/internal/domain/cart"
	domorder "example.com/storefront/internal/domain/order"
	orderuc "example.com/storefront/internal/usecase/order"
)

type CartService interface {
	Snapshot(ctx context.Context, owner domcart.Owner) ([]domcart.Item, error)
	RemoveSnapshot(ctx context.Context, owner domcart.Owner, items []domcart.Item) error
}

type OrderService interface {
	Create(ctx context.Context, in orderuc.CreateInput) (*domorder.Order, error)
}

type Service struct {
	carts  CartService
	orders OrderService
	log    *zap.Logger
}

func NewService(carts CartService, orders OrderService, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		carts:  carts,
		orders: orders,
		log:    log,
	}
}

type Input struct {
	DeliveryType domorder.DeliveryType
	PaymentType  domorder.PaymentType
	Contact      domorder.Contact
}

// Checkout turns the owner's cart into a new order and then removes the
// ordered lines from the cart. Lines written while the order was being
// created stay in the cart. Once the order exists a failed removal is
// logged, not returned.
func (s *Service) Checkout(ctx context.Context, owner domcart.Owner, in Input) (*domorder.Order, error) {
	items, err := s.carts.Snapshot(ctx, owner)
	if err != nil {
		return nil, err
	}

	create := orderuc.CreateInput{
		Items:        items,
		DeliveryType: in.DeliveryType,
		PaymentType:  in.PaymentType,
		Contact:      in.Contact,
	}
	if owner.IsAccount() {
		accountID := owner.AccountID
		create.AccountID = &accountID
	}

	o, err := s.orders.Create(ctx, create)
	if err != nil {
		return nil, err
	}

	if err := s.carts.RemoveSnapshot(ctx, owner, items); err != nil {
		s.log.Error("failed to clear cart after checkout",
			zap.String("owner", owner.Key()),
			zap.Int64("order_id", o.ID),
			zap.Error(err))
	}

	return o, nil
}
