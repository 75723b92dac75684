package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	domcart "example.com/storefront/internal/domain/cart"
	domproduct "example.com/storefront/internal/domain/product"
)

type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domproduct.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domproduct.Product, error)
}

type Options struct {
	// VerifyGuestProducts applies the product existence check to session
	// carts too. Off by default: only account carts are checked.
	VerifyGuestProducts bool
}

type Service struct {
	accounts   domcart.Store
	sessions   domcart.Store
	products   ProductRepository
	normalizer *Normalizer
	log        *zap.Logger
	opts       Options
}

func NewService(accounts, sessions domcart.Store, products ProductRepository, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		accounts:   accounts,
		sessions:   sessions,
		products:   products,
		normalizer: NewNormalizer(products, log),
		log:        log,
		opts:       opts,
	}
}

func (s *Service) storeFor(owner domcart.Owner) (domcart.Store, error) {
	if !owner.Valid() {
		return nil, domcart.ErrInvalidOwner
	}
	if owner.IsAccount() {
		return s.accounts, nil
	}
	return s.sessions, nil
}

// load returns an empty cart instead of ErrCartNotFound.
func (s *Service) load(ctx context.Context, store domcart.Store, owner domcart.Owner) (*domcart.Cart, error) {
	c, err := store.Load(ctx, owner)
	if errors.Is(err, domcart.ErrCartNotFound) {
		return &domcart.Cart{Owner: owner, Items: []domcart.Item{}}, nil
	}
	return c, err
}

// Upsert sets, adds or removes one cart line:
//
//	existing, quantity > 0   -> overwrite quantity
//	existing, quantity <= 0  -> remove line
//	missing,  quantity > 0   -> append line
//	missing,  quantity <= 0  -> ErrInvalidData
func (s *Service) Upsert(ctx context.Context, owner domcart.Owner, rawProductID string, quantity int64) (*domcart.View, error) {
	store, err := s.storeFor(owner)
	if err != nil {
		return nil, err
	}

	productID := domcart.CanonicalRef(rawProductID)
	if productID == "" {
		return nil, domcart.ErrInvalidData
	}
	if quantity > domcart.MaxQuantity {
		return nil, fmt.Errorf("%w no greater than %d", domcart.ErrInvalidQuantity, domcart.MaxQuantity)
	}

	if owner.IsAccount() || s.opts.VerifyGuestProducts {
		if err := s.ensureProduct(ctx, productID); err != nil {
			return nil, err
		}
	}

	c, err := s.load(ctx, store, owner)
	if err != nil {
		return nil, err
	}

	exists := c.Find(productID) >= 0
	switch {
	case quantity > 0:
		err = store.SetQuantity(ctx, owner, productID, quantity)
	case exists:
		err = store.RemoveItem(ctx, owner, productID)
	default:
		return nil, domcart.ErrInvalidData
	}
	if err != nil {
		return nil, err
	}

	// Read back what was persisted rather than trusting c.
	return s.Get(ctx, owner)
}

func (s *Service) ensureProduct(ctx context.Context, productID domcart.ProductRef) error {
	p, err := s.products.GetByID(ctx, productID.String())
	if err != nil {
		if errors.Is(err, domproduct.ErrProductNotFound) {
			return fmt.Errorf("%w: %s", domproduct.ErrProductNotFound, productID)
		}
		return err
	}
	if !p.IsActive {
		return fmt.Errorf("%w: %s", domproduct.ErrProductNotFound, productID)
	}
	return nil
}

// Get returns the normalized cart, or an empty view when the owner has no cart yet.
func (s *Service) Get(ctx context.Context, owner domcart.Owner) (*domcart.View, error) {
	store, err := s.storeFor(owner)
	if err != nil {
		return nil, err
	}
	c, err := s.load(ctx, store, owner)
	if err != nil {
		return nil, err
	}
	return s.normalizer.Normalize(ctx, c)
}

// Count returns the sum of quantities. ErrCartNotFound if no cart exists.
func (s *Service) Count(ctx context.Context, owner domcart.Owner) (int64, error) {
	store, err := s.storeFor(owner)
	if err != nil {
		return 0, err
	}
	c, err := store.Load(ctx, owner)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// Clear empties an existing cart. ErrCartNotFound if no cart exists.
func (s *Service) Clear(ctx context.Context, owner domcart.Owner) error {
	store, err := s.storeFor(owner)
	if err != nil {
		return err
	}
	if _, err := store.Load(ctx, owner); err != nil {
		return err
	}
	return store.Clear(ctx, owner)
}

// Snapshot returns a detached copy of the cart items for checkout.
func (s *Service) Snapshot(ctx context.Context, owner domcart.Owner) ([]domcart.Item, error) {
	store, err := s.storeFor(owner)
	if err != nil {
		return nil, err
	}
	c, err := s.load(ctx, store, owner)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, domcart.ErrEmptyCart
	}
	return c.Snapshot(), nil
}

// RemoveSnapshot takes the snapshotted lines out of the cart after checkout.
// A line whose quantity changed since the snapshot was taken is kept, as
// are lines added in the meantime.
func (s *Service) RemoveSnapshot(ctx context.Context, owner domcart.Owner, items []domcart.Item) error {
	store, err := s.storeFor(owner)
	if err != nil {
		return err
	}
	return store.RemoveItems(ctx, owner, items)
}

type MergeResult struct {
	Merged  int
	Skipped []domcart.ProductRef
}

// MergeOnLogin folds the session cart into the account cart by adding
// quantities per product, then discards the session cart. Lines with a
// non-positive quantity or an unknown product are skipped. Sums saturate at
// MaxQuantity.
//
// Each line leaves the session cart before it is added to the account cart,
// so a retried merge never counts it twice. When the add fails the line is
// put back into the session cart.
func (s *Service) MergeOnLogin(ctx context.Context, sessionID string, accountID int64) (MergeResult, error) {
	var result MergeResult

	session := domcart.SessionOwner(sessionID)
	account := domcart.AccountOwner(accountID)
	if !session.Valid() || !account.Valid() {
		return result, domcart.ErrInvalidOwner
	}

	sc, err := s.sessions.Load(ctx, session)
	if errors.Is(err, domcart.ErrCartNotFound) {
		return result, nil
	}
	if err != nil {
		return result, err
	}

	totals := make(map[domcart.ProductRef]int64, len(sc.Items))
	for _, item := range sc.Items {
		if item.Quantity <= 0 {
			result.Skipped = append(result.Skipped, item.ProductID)
			continue
		}
		totals[item.ProductID] = domcart.AddQuantities(totals[item.ProductID], item.Quantity)
	}

	known, err := s.knownProducts(ctx, totals)
	if err != nil {
		return result, err
	}

	ids := make([]domcart.ProductRef, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if !known[id] {
			s.log.Warn("skipping unknown product during cart merge",
				zap.String("product_id", id.String()),
				zap.Int64("account_id", accountID))
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if err := s.sessions.RemoveItem(ctx, session, id); err != nil {
			return result, err
		}
		if err := s.accounts.AddQuantity(ctx, account, id, totals[id]); err != nil {
			if restoreErr := s.sessions.AddQuantity(ctx, session, id, totals[id]); restoreErr != nil {
				s.log.Error("failed to restore session cart line after merge error",
					zap.String("product_id", id.String()),
					zap.Int64("quantity", totals[id]),
					zap.Error(restoreErr))
			}
			return result, err
		}
		result.Merged++
	}

	if err := s.sessions.Delete(ctx, session); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Service) knownProducts(ctx context.Context, totals map[domcart.ProductRef]int64) (map[domcart.ProductRef]bool, error) {
	known := make(map[domcart.ProductRef]bool, len(totals))
	if len(totals) == 0 {
		return known, nil
	}
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id.String())
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.IsActive {
			known[domcart.CanonicalRef(p.ID)] = true
		}
	}
	return known, nil
}
