package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	domcart "example.com/storefront/internal/domain/cart"
)

var errNotAccountCart = errors.New("postgres cart repository only stores account carts")

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CartRepository stores account carts in postgres, one row per cart line.
type CartRepository struct {
	db querier
}

func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{db: pool}
}

func accountID(owner domcart.Owner) (int64, error) {
	if !owner.IsAccount() {
		return 0, errNotAccountCart
	}
	return owner.AccountID, nil
}

func (r *CartRepository) Load(ctx context.Context, owner domcart.Owner) (*domcart.Cart, error) {
	userID, err := accountID(owner)
	if err != nil {
		return nil, err
	}

	var cartID int64
	err = r.db.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domcart.ErrCartNotFound
		}
		return nil, errors.Wrap(err, "select cart")
	}

	rows, err := r.db.Query(ctx, `
        SELECT product_id, quantity
        FROM cart_items
        WHERE cart_id = $1
        ORDER BY added_at, product_id
    `, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "select cart items")
	}
	defer rows.Close()

	c := &domcart.Cart{Owner: owner, Items: []domcart.Item{}}
	for rows.Next() {
		var (
			productID string
			quantity  int64
		)
		if err := rows.Scan(&productID, &quantity); err != nil {
			return nil, errors.Wrap(err, "scan cart item")
		}
		c.Items = append(c.Items, domcart.Item{
			ProductID: domcart.CanonicalRef(productID),
			Quantity:  quantity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate cart items")
	}
	return c, nil
}

func (r *CartRepository) ensureCart(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
        INSERT INTO carts (user_id) VALUES ($1)
        ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
        RETURNING id
    `, userID).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "ensure cart")
	}
	return id, nil
}

func (r *CartRepository) SetQuantity(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef, quantity int64) error {
	if quantity > domcart.MaxQuantity {
		return domcart.ErrInvalidQuantity
	}
	return r.upsert(ctx, owner, productID, quantity, `
        INSERT INTO cart_items (cart_id, product_id, quantity)
        VALUES ($1, $2, $3)
        ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
    `)
}

func (r *CartRepository) AddQuantity(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef, delta int64) error {
	return r.upsert(ctx, owner, productID, domcart.AddQuantities(0, delta), `
        INSERT INTO cart_items (cart_id, product_id, quantity)
        VALUES ($1, $2, $3)
        ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = LEAST(cart_items.quantity + EXCLUDED.quantity, $4)
    `, domcart.MaxQuantity)
}

func (r *CartRepository) upsert(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef, quantity int64, query string, extra ...any) error {
	if quantity <= 0 {
		return domcart.ErrInvalidData
	}
	userID, err := accountID(owner)
	if err != nil {
		return err
	}
	cartID, err := r.ensureCart(ctx, userID)
	if err != nil {
		return err
	}
	args := append([]any{cartID, productID.String(), quantity}, extra...)
	_, err = r.db.Exec(ctx, query, args...)
	return errors.Wrap(err, "upsert cart item")
}

func (r *CartRepository) RemoveItem(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef) error {
	userID, err := accountID(owner)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
        DELETE FROM cart_items ci
        USING carts c
        WHERE c.id = ci.cart_id AND c.user_id = $1 AND ci.product_id = $2
    `, userID, productID.String())
	return errors.Wrap(err, "remove cart item")
}

// RemoveItems deletes the lines that still hold the given quantities in one transaction.
func (r *CartRepository) RemoveItems(ctx context.Context, owner domcart.Owner, items []domcart.Item) error {
	userID, err := accountID(owner)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for _, item := range items {
			if err := removeLine(ctx, tx, userID, item); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "remove cart items")
}

func removeLine(ctx context.Context, db querier, userID int64, item domcart.Item) error {
	_, err := db.Exec(ctx, `
        DELETE FROM cart_items ci
        USING carts c
        WHERE c.id = ci.cart_id AND c.user_id = $1 AND ci.product_id = $2 AND ci.quantity = $3
    `, userID, item.ProductID.String(), item.Quantity)
	return err
}

func (r *CartRepository) Clear(ctx context.Context, owner domcart.Owner) error {
	userID, err := accountID(owner)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
        DELETE FROM cart_items ci
        USING carts c
        WHERE c.id = ci.cart_id AND c.user_id = $1
    `, userID)
	return errors.Wrap(err, "clear cart")
}

func (r *CartRepository) Delete(ctx context.Context, owner domcart.Owner) error {
	userID, err := accountID(owner)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	return errors.Wrap(err, "delete cart")
}

var _ domcart.Store = (*CartRepository)(nil)
