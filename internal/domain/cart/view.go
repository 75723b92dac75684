package cart

import "github.com/shopspring/decimal"

// Line is a cart item joined with the product fields a client renders.
type Line struct {
	ProductID ProductRef
	Quantity  int64
	Available bool
	Name      string
	Image     string
	Price     decimal.Decimal
	LineTotal decimal.Decimal
}

type View struct {
	Owner         Owner
	Items         []Line
	ItemCount     int
	TotalQuantity int64
	Subtotal      decimal.Decimal
}

func EmptyView(owner Owner) *View {
	return &View{
		Owner:    owner,
		Items:    []Line{},
		Subtotal: decimal.Zero,
	}
}
