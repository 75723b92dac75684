package cart

import (
	"math"
	"strconv"
	"strings"
)

// MaxQuantity caps a single cart line. Additive writes saturate at it.
const MaxQuantity int64 = 9999

// ProductRef is the canonical form of a product id as stored in a cart.
type ProductRef string

// CanonicalRef normalizes a raw product id so stored and incoming ids compare equal.
func CanonicalRef(raw string) ProductRef {
	return ProductRef(strings.ToLower(strings.TrimSpace(raw)))
}

func (r ProductRef) String() string {
	return string(r)
}

type Item struct {
	ProductID ProductRef
	Quantity  int64
}

// AddQuantities returns a+b for non-negative line quantities, saturated at MaxQuantity.
func AddQuantities(a, b int64) int64 {
	if a >= MaxQuantity || b >= MaxQuantity || a+b > MaxQuantity {
		return MaxQuantity
	}
	return a + b
}

// Owner identifies whose cart it is. Exactly one of AccountID or SessionID is set.
type Owner struct {
	AccountID int64
	SessionID string
}

func AccountOwner(accountID int64) Owner {
	return Owner{AccountID: accountID}
}

func SessionOwner(sessionID string) Owner {
	return Owner{SessionID: sessionID}
}

func (o Owner) IsAccount() bool {
	return o.AccountID > 0
}

func (o Owner) Valid() bool {
	if o.IsAccount() {
		return o.SessionID == ""
	}
	return o.SessionID != ""
}

func (o Owner) Key() string {
	if o.IsAccount() {
		return "account:" + strconv.FormatInt(o.AccountID, 10)
	}
	return "session:" + o.SessionID
}

type Cart struct {
	Owner Owner
	Items []Item
}

// Find returns the index of the line for productID, or -1.
func (c *Cart) Find(productID ProductRef) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// Count sums the line quantities, saturating at math.MaxInt64.
func (c *Cart) Count() int64 {
	var total int64
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			continue
		}
		if total > math.MaxInt64-item.Quantity {
			return math.MaxInt64
		}
		total += item.Quantity
	}
	return total
}

// Snapshot returns a copy of the items that shares no memory with the cart.
func (c *Cart) Snapshot() []Item {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return items
}
