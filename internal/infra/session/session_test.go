package session

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	domcart "example.com/storefront/internal/domain/cart"
)

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	require.NotEqual(t, a, b)
	require.True(t, ValidID(a))
	require.False(t, ValidID(""))
	require.False(t, ValidID("not-a-uuid"))
}

func TestRedisCartStore_Keys(t *testing.T) {
	s := NewRedisCartStore(nil, "", time.Hour)

	k, err := s.keys(domcart.SessionOwner("abc"))
	require.NoError(t, err)
	require.Equal(t, "storefront:cart:abc", k.marker)
	require.Equal(t, "storefront:cart:abc:items", k.items)
	require.Equal(t, "storefront:cart:abc:order", k.order)

	_, err = s.keys(domcart.AccountOwner(1))
	require.ErrorIs(t, err, errNotSessionCart)
}

func TestRedisCartStore_RejectsNonPositive(t *testing.T) {
	s := NewRedisCartStore(nil, "", time.Hour)

	err := s.SetQuantity(context.Background(), domcart.SessionOwner("abc"), "p1", -1)
	require.ErrorIs(t, err, domcart.ErrInvalidData)
}

func TestRedisCartStore_RejectsAboveMax(t *testing.T) {
	s := NewRedisCartStore(nil, "", time.Hour)

	err := s.SetQuantity(context.Background(), domcart.SessionOwner("abc"), "p1", domcart.MaxQuantity+1)
	require.ErrorIs(t, err, domcart.ErrInvalidQuantity)
}

// newRedisStore connects to a real server when STOREFRONT_TEST_REDIS_ADDR is set.
func newRedisStore(t *testing.T) (*RedisCartStore, domcart.Owner) {
	t.Helper()
	addr := os.Getenv("STOREFRONT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOREFRONT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	s := NewRedisCartStore(client, "test:cart:", time.Minute)
	owner := domcart.SessionOwner(NewID())
	t.Cleanup(func() {
		_ = s.Delete(context.Background(), owner)
		_ = client.Close()
	})
	return s, owner
}

func TestRedisCartStore_Lifecycle(t *testing.T) {
	s, owner := newRedisStore(t)
	ctx := context.Background()

	_, err := s.Load(ctx, owner)
	require.ErrorIs(t, err, domcart.ErrCartNotFound)

	require.NoError(t, s.SetQuantity(ctx, owner, "p2", 3))
	require.NoError(t, s.AddQuantity(ctx, owner, "p1", 1))
	require.NoError(t, s.AddQuantity(ctx, owner, "p1", 2))

	c, err := s.Load(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, []domcart.Item{
		{ProductID: "p2", Quantity: 3},
		{ProductID: "p1", Quantity: 3},
	}, c.Items)

	require.NoError(t, s.Clear(ctx, owner))
	c, err = s.Load(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, c.Items)

	require.NoError(t, s.Delete(ctx, owner))
	_, err = s.Load(ctx, owner)
	require.ErrorIs(t, err, domcart.ErrCartNotFound)
}

func TestRedisCartStore_AddQuantityCaps(t *testing.T) {
	s, owner := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetQuantity(ctx, owner, "p1", domcart.MaxQuantity-1))
	require.NoError(t, s.AddQuantity(ctx, owner, "p1", 5))
	require.NoError(t, s.AddQuantity(ctx, owner, "p2", math.MaxInt64))

	c, err := s.Load(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, []domcart.Item{
		{ProductID: "p1", Quantity: domcart.MaxQuantity},
		{ProductID: "p2", Quantity: domcart.MaxQuantity},
	}, c.Items)
}

func TestRedisCartStore_RemoveItemsKeepsChangedLines(t *testing.T) {
	s, owner := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetQuantity(ctx, owner, "p1", 2))
	require.NoError(t, s.SetQuantity(ctx, owner, "p2", 1))
	c, err := s.Load(ctx, owner)
	require.NoError(t, err)
	snapshot := c.Snapshot()

	require.NoError(t, s.SetQuantity(ctx, owner, "p2", 4))
	require.NoError(t, s.SetQuantity(ctx, owner, "p3", 3))
	require.NoError(t, s.RemoveItems(ctx, owner, snapshot))

	c, err = s.Load(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, []domcart.Item{
		{ProductID: "p2", Quantity: 4},
		{ProductID: "p3", Quantity: 3},
	}, c.Items)
}
