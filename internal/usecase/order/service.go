package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	domcart "example.com/storefront/internal/domain/cart"
	domorder "example.com/storefront/internal/domain/order"
	domproduct "example.com/storefront/internal/domain/product"
)

type ProductRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]*domproduct.Product, error)
}

type Service struct {
	repo     domorder.Repository
	products ProductRepository
	pricing  domorder.Pricing
	now      func() time.Time
}

func NewService(repo domorder.Repository, products ProductRepository, pricing domorder.Pricing) *Service {
	return &Service{
		repo:     repo,
		products: products,
		pricing:  pricing,
		now:      time.Now,
	}
}

type CreateInput struct {
	AccountID    *int64
	Items        []domcart.Item
	DeliveryType domorder.DeliveryType
	PaymentType  domorder.PaymentType
	Contact      domorder.Contact
}

func (in CreateInput) validate() error {
	if !in.DeliveryType.IsValid() {
		return domorder.ErrInvalidDeliveryType
	}
	if !in.PaymentType.IsValid() {
		return domorder.ErrInvalidPaymentType
	}
	if len(in.Items) == 0 {
		return domorder.ErrEmptyOrderItems
	}
	if in.AccountID == nil && (strings.TrimSpace(in.Contact.Name) == "" || strings.TrimSpace(in.Contact.Phone) == "") {
		return domorder.ErrContactRequired
	}
	if in.DeliveryType == domorder.DeliveryCourier && strings.TrimSpace(in.Contact.Address) == "" {
		return domorder.ErrAddressRequired
	}
	return nil
}

// Create freezes the given items into a new order with status new.
// The caller owns the source cart and clears it afterwards.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domorder.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(in.Items))
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, domcart.ErrInvalidData
		}
		ids = append(ids, item.ProductID.String())
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	productMap := make(map[domcart.ProductRef]*domproduct.Product, len(products))
	for _, p := range products {
		productMap[domcart.CanonicalRef(p.ID)] = p
	}

	items := make([]domorder.Item, 0, len(in.Items))
	for _, item := range in.Items {
		p, ok := productMap[item.ProductID]
		if !ok || !p.IsActive {
			return nil, fmt.Errorf("%w: %s", domproduct.ErrProductNotFound, item.ProductID)
		}
		items = append(items, domorder.Item{
			ProductID: item.ProductID.String(),
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  item.Quantity,
		})
	}

	now := s.now().UTC()
	deliveryCost := s.pricing.DeliveryCostFor(in.DeliveryType)
	o := &domorder.Order{
		AccountID:    in.AccountID,
		Contact:      trimContact(in.Contact),
		Status:       domorder.StatusNew,
		DeliveryType: in.DeliveryType,
		PaymentType:  in.PaymentType,
		DeliveryCost: deliveryCost,
		Cost:         domorder.ItemsTotal(items).Add(deliveryCost),
		Items:        items,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return s.repo.Create(ctx, o)
}

func trimContact(c domorder.Contact) domorder.Contact {
	return domorder.Contact{
		Name:    strings.TrimSpace(c.Name),
		Phone:   strings.TrimSpace(c.Phone),
		Email:   strings.TrimSpace(c.Email),
		Address: strings.TrimSpace(c.Address),
		Comment: strings.TrimSpace(c.Comment),
	}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domorder.Order, error) {
	return s.repo.GetByID(ctx, id)
}

// GetForAccount hides orders of other accounts behind ErrOrderNotFound.
func (s *Service) GetForAccount(ctx context.Context, accountID, id int64) (*domorder.Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.BelongsTo(accountID) {
		return nil, domorder.ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, filter domorder.ListFilter) ([]*domorder.Order, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, domorder.ErrInvalidStatus
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) ListByAccount(ctx context.Context, accountID int64) ([]*domorder.Order, error) {
	return s.repo.List(ctx, domorder.ListFilter{AccountID: &accountID})
}

// Transition applies one state machine step. A rejected step leaves the
// stored order untouched.
func (s *Service) Transition(ctx context.Context, id int64, next domorder.Status) (*domorder.Order, error) {
	if !next.IsValid() {
		return nil, domorder.ErrInvalidStatus
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := o.Status
	if err := o.TransitionTo(next, s.now().UTC()); err != nil {
		return nil, err
	}

	return s.repo.UpdateStatus(ctx, id, from, next)
}

// Cancel lets a customer cancel an own order that has not been dispatched.
func (s *Service) Cancel(ctx context.Context, accountID, id int64) (*domorder.Order, error) {
	if _, err := s.GetForAccount(ctx, accountID, id); err != nil {
		return nil, err
	}
	return s.Transition(ctx, id, domorder.StatusCancelled)
}
