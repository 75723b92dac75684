package mysql

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	domcart "example.com/storefront/internal/domain/cart"
)

var errNotAccountCart = errors.New("mysql cart repository only stores account carts")

// CartRepository stores account carts. Every write touches a single
// cart_items row, so concurrent writes to different products never
// overwrite each other.
type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
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
	err = r.db.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = ?`, userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domcart.ErrCartNotFound
		}
		return nil, errors.Wrap(err, "select cart")
	}

	rows, err := r.db.QueryContext(ctx, `
        SELECT product_id, quantity
        FROM cart_items
        WHERE cart_id = ?
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

// ensureCart returns the cart id of the user, creating the cart on first use.
func (r *CartRepository) ensureCart(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO carts (user_id) VALUES (?)
        ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), updated_at = CURRENT_TIMESTAMP
    `, userID)
	if err != nil {
		return 0, errors.Wrap(err, "ensure cart")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "ensure cart id")
	}
	return id, nil
}

func (r *CartRepository) SetQuantity(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef, quantity int64) error {
	if quantity <= 0 {
		return domcart.ErrInvalidData
	}
	if quantity > domcart.MaxQuantity {
		return domcart.ErrInvalidQuantity
	}
	userID, err := accountID(owner)
	if err != nil {
		return err
	}
	cartID, err := r.ensureCart(ctx, userID)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
        INSERT INTO cart_items (cart_id, product_id, quantity)
        VALUES (?, ?, ?)
        ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)
    `, cartID, productID.String(), quantity)
	return errors.Wrap(err, "set cart item quantity")
}

func (r *CartRepository) AddQuantity(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef, delta int64) error {
	if delta <= 0 {
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

	_, err = r.db.ExecContext(ctx, `
        INSERT INTO cart_items (cart_id, product_id, quantity)
        VALUES (?, ?, ?)
        ON DUPLICATE KEY UPDATE quantity = LEAST(quantity + VALUES(quantity), ?)
    `, cartID, productID.String(), domcart.AddQuantities(0, delta), domcart.MaxQuantity)
	return errors.Wrap(err, "add cart item quantity")
}

func (r *CartRepository) RemoveItem(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef) error {
	userID, err := accountID(owner)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
        DELETE ci FROM cart_items ci
        JOIN carts c ON c.id = ci.cart_id
        WHERE c.user_id = ? AND ci.product_id = ?
    `, userID, productID.String())
	return errors.Wrap(err, "remove cart item")
}

func (r *CartRepository) RemoveItems(ctx context.Context, owner domcart.Owner, items []domcart.Item) (retErr error) {
	userID, err := accountID(owner)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin remove items tx")
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
            DELETE ci FROM cart_items ci
            JOIN carts c ON c.id = ci.cart_id
            WHERE c.user_id = ? AND ci.product_id = ? AND ci.quantity = ?
        `, userID, item.ProductID.String(), item.Quantity)
		if err != nil {
			return errors.Wrap(err, "remove cart item")
		}
	}
	return errors.Wrap(tx.Commit(), "commit remove items")
}

func (r *CartRepository) Clear(ctx context.Context, owner domcart.Owner) error {
	userID, err := accountID(owner)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
        DELETE ci FROM cart_items ci
        JOIN carts c ON c.id = ci.cart_id
        WHERE c.user_id = ?
    `, userID)
	return errors.Wrap(err, "clear cart")
}

func (r *CartRepository) Delete(ctx context.Context, owner domcart.Owner) error {
	userID, err := accountID(owner)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM carts WHERE user_id = ?`, userID)
	return errors.Wrap(err, "delete cart")
}

var _ domcart.Store = (*CartRepository)(nil)
