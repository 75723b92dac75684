package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	domproduct "example.com/storefront/internal/domain/product"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, name, description, image, price, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domproduct.Product, error) {
	var p domproduct.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Image, &p.Price, &p.IsActive); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domproduct.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domproduct.ErrProductNotFound
		}
		return nil, errors.Wrap(err, "select product")
	}
	return p, nil
}

// GetByIDs returns the products that exist; missing ids are silently absent.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]*domproduct.Product, error) {
	if len(ids) == 0 {
		return []*domproduct.Product{}, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select products")
	}
	defer rows.Close()

	products := make([]*domproduct.Product, 0, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		products = append(products, p)
	}
	return products, errors.Wrap(rows.Err(), "iterate products")
}
