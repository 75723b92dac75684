package product

import "github.com/shopspring/decimal"

type Product struct {
	ID          string
	Name        string
	Description string
	Image       string
	Price       decimal.Decimal
	IsActive    bool
}
