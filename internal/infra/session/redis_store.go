package session

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	domcart "example.com/storefront/internal/domain/cart"
)

const defaultKeyPrefix = "storefront:cart:"

var errNotSessionCart = errors.New("redis cart store only stores session carts")

// incrCapped adds ARGV[2] to field ARGV[1] of the items hash and caps the
// result at ARGV[3].
var incrCapped = redis.NewScript(`
local q = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
local max = tonumber(ARGV[3])
if q > max then
  redis.call('HSET', KEYS[1], ARGV[1], max)
  q = max
end
return q
`)

// removeUnchanged deletes each product/quantity pair in ARGV from the items
// hash and the order set, but only while the stored quantity still matches.
var removeUnchanged = redis.NewScript(`
local removed = 0
for i = 1, #ARGV, 2 do
  if redis.call('HGET', KEYS[1], ARGV[i]) == ARGV[i + 1] then
    redis.call('HDEL', KEYS[1], ARGV[i])
    redis.call('ZREM', KEYS[2], ARGV[i])
    removed = removed + 1
  end
end
return removed
`)

// RedisCartStore keeps anonymous carts in redis. Each cart uses three keys:
// a marker that survives Clear, a hash of product -> quantity and a sorted
// set recording the order in which lines were first added. All keys share
// the session TTL, which is refreshed on every write.
type RedisCartStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

func NewRedisCartStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisCartStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisCartStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		now:       time.Now,
	}
}

type cartKeys struct {
	marker string
	items  string
	order  string
}

func (s *RedisCartStore) keys(owner domcart.Owner) (cartKeys, error) {
	if owner.IsAccount() || owner.SessionID == "" {
		return cartKeys{}, errNotSessionCart
	}
	base := s.keyPrefix + owner.SessionID
	return cartKeys{
		marker: base,
		items:  base + ":items",
		order:  base + ":order",
	}, nil
}

func (s *RedisCartStore) Load(ctx context.Context, owner domcart.Owner) (*domcart.Cart, error) {
	k, err := s.keys(owner)
	if err != nil {
		return nil, err
	}

	var (
		exists *redis.IntCmd
		order  *redis.StringSliceCmd
		items  *redis.MapStringStringCmd
	)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.Exists(ctx, k.marker)
		order = pipe.ZRange(ctx, k.order, 0, -1)
		items = pipe.HGetAll(ctx, k.items)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "load session cart")
	}
	if exists.Val() == 0 {
		return nil, domcart.ErrCartNotFound
	}

	quantities := items.Val()
	c := &domcart.Cart{Owner: owner, Items: make([]domcart.Item, 0, len(quantities))}
	seen := make(map[string]struct{}, len(quantities))
	appendLine := func(productID string) error {
		raw, ok := quantities[productID]
		if !ok {
			return nil
		}
		seen[productID] = struct{}{}
		qty, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parse quantity of %s", productID)
		}
		if qty > 0 {
			c.Items = append(c.Items, domcart.Item{ProductID: domcart.ProductRef(productID), Quantity: qty})
		}
		return nil
	}

	for _, productID := range order.Val() {
		if err := appendLine(productID); err != nil {
			return nil, err
		}
	}
	// Lines missing from the order index are appended last.
	for productID := range quantities {
		if _, ok := seen[productID]; ok {
			continue
		}
		if err := appendLine(productID); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (s *RedisCartStore) SetQuantity(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef, quantity int64) error {
	if quantity > domcart.MaxQuantity {
		return domcart.ErrInvalidQuantity
	}
	return s.write(ctx, owner, productID, quantity, func(pipe redis.Pipeliner, k cartKeys) {
		pipe.HSet(ctx, k.items, productID.String(), quantity)
	})
}

func (s *RedisCartStore) AddQuantity(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef, delta int64) error {
	delta = domcart.AddQuantities(0, delta)
	return s.write(ctx, owner, productID, delta, func(pipe redis.Pipeliner, k cartKeys) {
		incrCapped.Eval(ctx, pipe, []string{k.items}, productID.String(), delta, domcart.MaxQuantity)
	})
}

func (s *RedisCartStore) write(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef, quantity int64, apply func(redis.Pipeliner, cartKeys)) error {
	if quantity <= 0 {
		return domcart.ErrInvalidData
	}
	k, err := s.keys(owner)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, k.marker, "1", s.ttl)
		apply(pipe, k)
		pipe.ZAddNX(ctx, k.order, redis.Z{
			Score:  float64(s.now().UnixNano()),
			Member: productID.String(),
		})
		pipe.Expire(ctx, k.items, s.ttl)
		pipe.Expire(ctx, k.order, s.ttl)
		return nil
	})
	return errors.Wrap(err, "write session cart")
}

func (s *RedisCartStore) RemoveItem(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef) error {
	k, err := s.keys(owner)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, k.items, productID.String())
		pipe.ZRem(ctx, k.order, productID.String())
		return nil
	})
	return errors.Wrap(err, "remove session cart item")
}

func (s *RedisCartStore) RemoveItems(ctx context.Context, owner domcart.Owner, items []domcart.Item) error {
	k, err := s.keys(owner)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	args := make([]any, 0, 2*len(items))
	for _, item := range items {
		args = append(args, item.ProductID.String(), strconv.FormatInt(item.Quantity, 10))
	}
	err = removeUnchanged.Run(ctx, s.client, []string{k.items, k.order}, args...).Err()
	return errors.Wrap(err, "remove session cart items")
}

func (s *RedisCartStore) Clear(ctx context.Context, owner domcart.Owner) error {
	k, err := s.keys(owner)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k.items, k.order)
		pipe.Expire(ctx, k.marker, s.ttl)
		return nil
	})
	return errors.Wrap(err, "clear session cart")
}

func (s *RedisCartStore) Delete(ctx context.Context, owner domcart.Owner) error {
	k, err := s.keys(owner)
	if err != nil {
		return err
	}
	err = s.client.Del(ctx, k.marker, k.items, k.order).Err()
	return errors.Wrap(err, "delete session cart")
}

var _ domcart.Store = (*RedisCartStore)(nil)
