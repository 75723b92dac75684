package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusPending   Status = "pending"
	StatusDelivery  Status = "delivery"
	StatusCancelled Status = "cancelled"
	StatusSuccess   Status = "success"
)

var transitions = map[Status][]Status{
	StatusNew:      {StatusPending, StatusCancelled},
	StatusPending:  {StatusDelivery, StatusCancelled},
	StatusDelivery: {StatusSuccess},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusPending, StatusDelivery, StatusCancelled, StatusSuccess:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusSuccess
}

// CanTransitionTo reports whether the state machine allows s -> next.
// Cancellation is only possible before dispatch.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.IsValid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

type DeliveryType string

const (
	DeliveryCourier DeliveryType = "delivery"
	DeliverySelf    DeliveryType = "self"
)

func (d DeliveryType) IsValid() bool {
	switch d {
	case DeliveryCourier, DeliverySelf:
		return true
	default:
		return false
	}
}

type PaymentType string

const (
	PaymentCashToCourier PaymentType = "cashToCourier"
	PaymentCardOnline    PaymentType = "cardOnline"
	PaymentCardToCourier PaymentType = "cardToCourier"
)

func (p PaymentType) IsValid() bool {
	switch p {
	case PaymentCashToCourier, PaymentCardOnline, PaymentCardToCourier:
		return true
	default:
		return false
	}
}

// Contact describes the customer of an order placed without an account,
// and the delivery address for any order.
type Contact struct {
	Name    string
	Phone   string
	Email   string
	Address string
	Comment string
}

// Pricing is loaded once at start and shared read-only.
type Pricing struct {
	DeliveryCost decimal.Decimal
}

// DeliveryCostFor returns the fee charged for the delivery type.
func (p Pricing) DeliveryCostFor(d DeliveryType) decimal.Decimal {
	if d == DeliveryCourier {
		return p.DeliveryCost
	}
	return decimal.Zero
}

type Order struct {
	ID           int64
	AccountID    *int64
	Contact      Contact
	Status       Status
	DeliveryType DeliveryType
	PaymentType  PaymentType
	DeliveryCost decimal.Decimal
	Cost         decimal.Decimal
	Items        []Item
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Item is frozen at checkout; later product or cart changes do not touch it.
type Item struct {
	ID        int64
	OrderID   int64
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int64
}

func (i Item) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

// ItemsTotal sums price x quantity over all items.
func ItemsTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total())
	}
	return total
}

func (o *Order) BelongsTo(accountID int64) bool {
	return o.AccountID != nil && *o.AccountID == accountID
}

// TransitionTo moves the order to next or returns ErrInvalidTransition leaving it untouched.
func (o *Order) TransitionTo(next Status, now time.Time) error {
	if !next.IsValid() {
		return ErrInvalidStatus
	}
	if !o.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}
