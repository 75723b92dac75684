package postgres

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	domcart "example.com/storefront/internal/domain/cart"
)

func TestCartRepository_RejectsSessionOwner(t *testing.T) {
	repo := &CartRepository{}
	ctx := context.Background()
	guest := domcart.SessionOwner("sid")

	_, err := repo.Load(ctx, guest)
	require.ErrorIs(t, err, errNotAccountCart)
	require.ErrorIs(t, repo.AddQuantity(ctx, guest, "p1", 1), errNotAccountCart)
	require.ErrorIs(t, repo.Clear(ctx, guest), errNotAccountCart)
}

func TestCartRepository_RejectsNonPositive(t *testing.T) {
	repo := &CartRepository{}

	err := repo.SetQuantity(context.Background(), domcart.AccountOwner(1), "p1", 0)
	require.ErrorIs(t, err, domcart.ErrInvalidData)
}

type execCall struct {
	sql  string
	args []any
}

// recordingDB records Exec calls and hands out recordingTx on Begin.
type recordingDB struct {
	execs   []execCall
	execErr error
	tx      *recordingTx
}

func (d *recordingDB) Begin(ctx context.Context) (pgx.Tx, error) {
	d.tx = &recordingTx{db: d}
	return d.tx, nil
}

func (d *recordingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.execs = append(d.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("DELETE 1"), d.execErr
}

func (d *recordingDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

func (d *recordingDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return cartIDRow(3)
}

type cartIDRow int64

func (r cartIDRow) Scan(dest ...any) error {
	*dest[0].(*int64) = int64(r)
	return nil
}

type recordingTx struct {
	pgx.Tx
	db         *recordingDB
	committed  bool
	rolledBack bool
}

func (t *recordingTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *recordingTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *recordingTx) Rollback(ctx context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

func TestCartRepository_RemoveItemsMatchesQuantityInTx(t *testing.T) {
	db := &recordingDB{}
	repo := &CartRepository{db: db}

	err := repo.RemoveItems(context.Background(), domcart.AccountOwner(7), []domcart.Item{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	})

	require.NoError(t, err)
	require.True(t, db.tx.committed)
	require.Len(t, db.execs, 2)
	require.Contains(t, db.execs[0].sql, "ci.quantity = $3")
	require.Equal(t, []any{int64(7), "p1", int64(2)}, db.execs[0].args)
	require.Equal(t, []any{int64(7), "p2", int64(1)}, db.execs[1].args)
}

func TestCartRepository_RemoveItemsRollsBack(t *testing.T) {
	db := &recordingDB{execErr: errors.New("serialization failure")}
	repo := &CartRepository{db: db}

	err := repo.RemoveItems(context.Background(), domcart.AccountOwner(7), []domcart.Item{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	})

	require.Error(t, err)
	require.True(t, db.tx.rolledBack)
	require.False(t, db.tx.committed)
	require.Len(t, db.execs, 1)
}

func TestCartRepository_AddQuantityCaps(t *testing.T) {
	db := &recordingDB{}
	repo := &CartRepository{db: db}

	err := repo.AddQuantity(context.Background(), domcart.AccountOwner(7), "p1", math.MaxInt64)

	require.NoError(t, err)
	require.Len(t, db.execs, 1)
	require.Contains(t, db.execs[0].sql, "LEAST(cart_items.quantity + EXCLUDED.quantity, $4)")
	require.Equal(t, []any{int64(3), "p1", domcart.MaxQuantity, domcart.MaxQuantity}, db.execs[0].args)
}

func TestCartRepository_SetQuantityRejectsAboveMax(t *testing.T) {
	repo := &CartRepository{}

	err := repo.SetQuantity(context.Background(), domcart.AccountOwner(1), "p1", domcart.MaxQuantity+1)
	require.ErrorIs(t, err, domcart.ErrInvalidQuantity)
}

// Runs against a migrated database when STOREFRONT_TEST_POSTGRES_DSN is set.
func TestCartRepository_ConcurrentLines(t *testing.T) {
	dsn := os.Getenv("STOREFRONT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	repo := NewCartRepository(pool)
	owner := domcart.AccountOwner(424242)
	require.NoError(t, repo.Delete(ctx, owner))
	defer repo.Delete(ctx, owner)

	products := []domcart.ProductRef{"pg-a", "pg-b", "pg-c", "pg-d"}
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range products {
		g.Go(func() error {
			return repo.AddQuantity(gctx, owner, p, 2)
		})
	}
	require.NoError(t, g.Wait())

	c, err := repo.Load(ctx, owner)
	require.NoError(t, err)
	require.Len(t, c.Items, len(products))
	require.Equal(t, int64(8), c.Count())
}
