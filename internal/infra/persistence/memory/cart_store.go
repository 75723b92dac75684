package memory

import (
	"context"
	"sync"
	"time"

	domcart "example.com/storefront/internal/domain/cart"
)

const cleanupInterval = time.Minute

// CartStore keeps carts in process memory. It serves anonymous session carts
// when no redis is configured, and backs tests.
//
// With a positive ttl an entry expires ttl after its last write, reads as
// ErrCartNotFound from then on and is dropped by a background sweep.
type CartStore struct {
	mu    sync.Mutex
	carts map[string]*entry
	ttl   time.Duration
	now   func() time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type entry struct {
	owner     domcart.Owner
	items     []domcart.Item
	expiresAt time.Time
}

// NewCartStore returns a store whose carts expire ttl after their last
// write. A ttl <= 0 keeps carts until deleted. Call Close to stop the sweep.
func NewCartStore(ttl time.Duration) *CartStore {
	s := &CartStore{
		carts:    make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	if ttl > 0 {
		s.wg.Add(1)
		go s.cleanupLoop()
	}
	return s
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *CartStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *CartStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *CartStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.carts {
		if s.expired(e, now) {
			delete(s.carts, key)
		}
	}
}

func (s *CartStore) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && !now.Before(e.expiresAt)
}

// live returns the unexpired entry of owner. Callers hold s.mu.
func (s *CartStore) live(owner domcart.Owner) (*entry, bool) {
	e, ok := s.carts[owner.Key()]
	if !ok {
		return nil, false
	}
	if s.expired(e, s.now()) {
		delete(s.carts, owner.Key())
		return nil, false
	}
	return e, true
}

// touch returns the entry of owner for writing, creating it when missing,
// and pushes its expiry out by ttl. Callers hold s.mu.
func (s *CartStore) touch(owner domcart.Owner) *entry {
	e, ok := s.live(owner)
	if !ok {
		e = &entry{owner: owner, items: []domcart.Item{}}
		s.carts[owner.Key()] = e
	}
	e.expiresAt = s.now().Add(s.ttl)
	return e
}

func (s *CartStore) Load(ctx context.Context, owner domcart.Owner) (*domcart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(owner)
	if !ok {
		return nil, domcart.ErrCartNotFound
	}
	items := make([]domcart.Item, len(e.items))
	copy(items, e.items)
	return &domcart.Cart{Owner: e.owner, Items: items}, nil
}

func (s *CartStore) SetQuantity(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef, quantity int64) error {
	if quantity <= 0 {
		return domcart.ErrInvalidData
	}
	if quantity > domcart.MaxQuantity {
		return domcart.ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.touch(owner)
	for i := range e.items {
		if e.items[i].ProductID == productID {
			e.items[i].Quantity = quantity
			return nil
		}
	}
	e.items = append(e.items, domcart.Item{ProductID: productID, Quantity: quantity})
	return nil
}

func (s *CartStore) AddQuantity(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef, delta int64) error {
	if delta <= 0 {
		return domcart.ErrInvalidData
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.touch(owner)
	for i := range e.items {
		if e.items[i].ProductID == productID {
			e.items[i].Quantity = domcart.AddQuantities(e.items[i].Quantity, delta)
			return nil
		}
	}
	e.items = append(e.items, domcart.Item{ProductID: productID, Quantity: domcart.AddQuantities(0, delta)})
	return nil
}

func (s *CartStore) RemoveItem(ctx context.Context, owner domcart.Owner, productID domcart.ProductRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(owner)
	if !ok {
		return nil
	}
	for i := range e.items {
		if e.items[i].ProductID == productID {
			e.items = append(e.items[:i], e.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *CartStore) RemoveItems(ctx context.Context, owner domcart.Owner, items []domcart.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(owner)
	if !ok {
		return nil
	}
	want := make(map[domcart.ProductRef]int64, len(items))
	for _, item := range items {
		want[item.ProductID] = item.Quantity
	}
	kept := e.items[:0]
	for _, item := range e.items {
		if q, ok := want[item.ProductID]; ok && q == item.Quantity {
			continue
		}
		kept = append(kept, item)
	}
	e.items = kept
	return nil
}

func (s *CartStore) Clear(ctx context.Context, owner domcart.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.live(owner); ok {
		e.items = []domcart.Item{}
		e.expiresAt = s.now().Add(s.ttl)
	}
	return nil
}

func (s *CartStore) Delete(ctx context.Context, owner domcart.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, owner.Key())
	return nil
}

var _ domcart.Store = (*CartStore)(nil)
