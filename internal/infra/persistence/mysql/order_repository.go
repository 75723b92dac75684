package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	domorder "example.com/storefront/internal/domain/order"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, contact_name, contact_phone, contact_email, address, comment,
        status, delivery_type, payment_type, delivery_cost, cost, created_at, updated_at`

func scanOrder(row rowScanner) (*domorder.Order, error) {
	var (
		o      domorder.Order
		userID sql.NullInt64
	)
	err := row.Scan(
		&o.ID, &userID,
		&o.Contact.Name, &o.Contact.Phone, &o.Contact.Email, &o.Contact.Address, &o.Contact.Comment,
		&o.Status, &o.DeliveryType, &o.PaymentType, &o.DeliveryCost, &o.Cost,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		id := userID.Int64
		o.AccountID = &id
	}
	return &o, nil
}

// Create stores the order and its frozen items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domorder.Order) (_ *domorder.Order, retErr error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin order tx")
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var userID sql.NullInt64
	if o.AccountID != nil {
		userID = sql.NullInt64{Int64: *o.AccountID, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
        INSERT INTO orders (user_id, contact_name, contact_phone, contact_email, address, comment,
            status, delivery_type, payment_type, delivery_cost, cost, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, userID, o.Contact.Name, o.Contact.Phone, o.Contact.Email, o.Contact.Address, o.Contact.Comment,
		string(o.Status), string(o.DeliveryType), string(o.PaymentType), o.DeliveryCost, o.Cost,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert order")
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "order id")
	}

	for _, item := range o.Items {
		_, err = tx.ExecContext(ctx, `
            INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity)
            VALUES (?, ?, ?, ?, ?)
        `, orderID, item.ProductID, item.Name, item.Price, item.Quantity)
		if err != nil {
			return nil, errors.Wrap(err, "insert order item")
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit order")
	}

	return r.GetByID(ctx, orderID)
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domorder.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domorder.ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "select order")
	}
	items, err := r.listOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *OrderRepository) List(ctx context.Context, filter domorder.ListFilter) ([]*domorder.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.AccountID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *filter.AccountID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select orders")
	}
	defer rows.Close()

	orders := []*domorder.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate orders")
	}

	for _, o := range orders {
		items, err := r.listOrderItems(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		o.Items = items
	}
	return orders, nil
}

// UpdateStatus only writes when the stored status still equals from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, from, to domorder.Status) (*domorder.Order, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ? AND status = ?
    `, string(to), id, string(from))
	if err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "update order status rows")
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domorder.ErrInvalidTransition
	}
	return r.GetByID(ctx, id)
}

func (r *OrderRepository) listOrderItems(ctx context.Context, orderID int64) ([]domorder.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, order_id, product_id, product_name, unit_price, quantity
        FROM order_items WHERE order_id = ?
        ORDER BY id
    `, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select order items")
	}
	defer rows.Close()

	items := []domorder.Item{}
	for rows.Next() {
		var item domorder.Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		items = append(items, item)
	}
	return items, errors.Wrap(rows.Err(), "iterate order items")
}
