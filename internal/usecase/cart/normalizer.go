package cart

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domcart "example.com/storefront/internal/domain/cart"
	domproduct "example.com/storefront/internal/domain/product"
)

// Normalizer resolves product references into renderable cart lines.
// A line whose product is gone is kept with Available=false; it counts
// toward TotalQuantity but not toward Subtotal.
type Normalizer struct {
	products ProductRepository
	log      *zap.Logger
}

func NewNormalizer(products ProductRepository, log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{products: products, log: log}
}

func (n *Normalizer) Normalize(ctx context.Context, c *domcart.Cart) (*domcart.View, error) {
	view := domcart.EmptyView(c.Owner)
	if len(c.Items) == 0 {
		return view, nil
	}

	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID.String())
	}

	products, err := n.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	productMap := make(map[domcart.ProductRef]*domproduct.Product, len(products))
	for _, p := range products {
		productMap[domcart.CanonicalRef(p.ID)] = p
	}

	view.Items = make([]domcart.Line, 0, len(c.Items))
	for _, item := range c.Items {
		line := domcart.Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     decimal.Zero,
			LineTotal: decimal.Zero,
		}
		if p, ok := productMap[item.ProductID]; ok && p.IsActive {
			line.Available = true
			line.Name = p.Name
			line.Image = p.Image
			line.Price = p.Price
			line.LineTotal = p.Price.Mul(decimal.NewFromInt(item.Quantity))
			view.Subtotal = view.Subtotal.Add(line.LineTotal)
		} else {
			n.log.Warn("cart references unavailable product",
				zap.String("product_id", item.ProductID.String()),
				zap.String("owner", c.Owner.Key()))
		}
		view.Items = append(view.Items, line)
		view.TotalQuantity += item.Quantity
	}
	view.ItemCount = len(view.Items)

	return view, nil
}
