package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	domorder "example.com/storefront/internal/domain/order"
	domproduct "example.com/storefront/internal/domain/product"
	domuser "example.com/storefront/internal/domain/user"
	"example.com/storefront/internal/infra/persistence/memory"
	"example.com/storefront/internal/infra/security"
	authuc "example.com/storefront/internal/usecase/auth"
	cartuc "example.com/storefront/internal/usecase/cart"
	checkoutuc "example.com/storefront/internal/usecase/checkout"
	orderuc "example.com/storefront/internal/usecase/order"
)

// --- Mock Repositories ---

type mockProductRepository struct {
	products map[string]*domproduct.Product
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: map[string]*domproduct.Product{
			"p1":  {ID: "p1", Name: "Green tea", Price: decimal.NewFromInt(10), IsActive: true},
			"p2":  {ID: "p2", Name: "Cup", Price: decimal.RequireFromString("4.5"), IsActive: true},
			"old": {ID: "old", Name: "Retired", Price: decimal.NewFromInt(1), IsActive: false},
		},
	}
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domproduct.Product, error) {
	if p, ok := m.products[id]; ok {
		cloned := *p
		return &cloned, nil
	}
	return nil, domproduct.ErrProductNotFound
}

func (m *mockProductRepository) GetByIDs(ctx context.Context, ids []string) ([]*domproduct.Product, error) {
	var result []*domproduct.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			cloned := *p
			result = append(result, &cloned)
		}
	}
	return result, nil
}

type mockUserRepository struct {
	users map[string]*domuser.User
}

func (m *mockUserRepository) Create(ctx context.Context, u *domuser.User) (*domuser.User, error) {
	if _, ok := m.users[u.Email]; ok {
		return nil, domuser.ErrEmailAlreadyUsed
	}
	u.ID = int64(len(m.users) + 1)
	m.users[u.Email] = u
	return u, nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*domuser.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domuser.ErrUserNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domuser.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, domuser.ErrUserNotFound
}

type mockOrderRepository struct {
	mu     sync.Mutex
	orders map[int64]*domorder.Order
	nextID int64
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[int64]*domorder.Order), nextID: 1}
}

func cloneOrder(o *domorder.Order) *domorder.Order {
	cloned := *o
	cloned.Items = append([]domorder.Item{}, o.Items...)
	return &cloned
}

func (m *mockOrderRepository) Create(ctx context.Context, o *domorder.Order) (*domorder.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := cloneOrder(o)
	stored.ID = m.nextID
	m.nextID++
	m.orders[stored.ID] = stored
	return cloneOrder(stored), nil
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id int64) (*domorder.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		return cloneOrder(o), nil
	}
	return nil, domorder.ErrOrderNotFound
}

func (m *mockOrderRepository) List(ctx context.Context, filter domorder.ListFilter) ([]*domorder.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domorder.Order{}
	for _, o := range m.orders {
		if filter.AccountID != nil && !o.BelongsTo(*filter.AccountID) {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		result = append(result, cloneOrder(o))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id int64, from, to domorder.Status) (*domorder.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domorder.ErrOrderNotFound
	}
	if o.Status != from {
		return nil, domorder.ErrInvalidTransition
	}
	o.Status = to
	return cloneOrder(o), nil
}

// --- Test server ---

const testPassword = "secret123"

type testEnv struct {
	handler  http.Handler
	tokens   *security.JWTService
	accounts *memory.CartStore
	sessions *memory.CartStore
	orders   *mockOrderRepository
	users    *mockUserRepository
	ready    error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hasher := security.NewBcryptService(bcrypt.MinCost)
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)

	env := &testEnv{
		tokens:   security.NewJWTService("test-secret", time.Hour),
		accounts: memory.NewCartStore(0),
		sessions: memory.NewCartStore(time.Hour),
		orders:   newMockOrderRepository(),
		users: &mockUserRepository{users: map[string]*domuser.User{
			"ann@example.com":   {ID: 1, Name: "Ann", Email: "ann@example.com", PasswordHash: hash, RoleCode: domuser.RoleCodeCustomer},
			"admin@example.com": {ID: 2, Name: "Admin", Email: "admin@example.com", PasswordHash: hash, RoleCode: domuser.RoleCodeAdmin},
		}},
	}

	t.Cleanup(func() { _ = env.sessions.Close() })

	products := newMockProductRepository()
	cartSvc := cartuc.NewService(env.accounts, env.sessions, products, nil, cartuc.Options{})
	orderSvc := orderuc.NewService(env.orders, products, domorder.Pricing{DeliveryCost: decimal.NewFromInt(10)})

	api := NewAPI(Dependencies{
		AuthService:     authuc.NewService(env.users, hasher, env.tokens),
		CartService:     cartSvc,
		OrderService:    orderSvc,
		CheckoutService: checkoutuc.NewService(cartSvc, orderSvc, nil),
		TokenService:    env.tokens,
		Session:         SessionConfig{CookieName: "sid", TTL: time.Hour},
		Readiness: []ReadinessCheck{{
			Name:  "mysql",
			Check: func(ctx context.Context) error { return env.ready },
		}},
	})
	env.handler = api.Router()
	return env
}

func (e *testEnv) tokenFor(t *testing.T, email string) string {
	t.Helper()
	u, ok := e.users.users[email]
	require.True(t, ok)
	token, err := e.tokens.GenerateToken(u)
	require.NoError(t, err)
	return token
}

type requestOption func(*http.Request)

func withToken(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withSession(sid string) requestOption {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "sid", Value: sid}) }
}

func (e *testEnv) do(t *testing.T, method, path, body string, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			return c.Value
		}
	}
	t.Fatalf("no sid cookie in %q", strings.Join(rec.Header().Values("Set-Cookie"), "; "))
	return ""
}
