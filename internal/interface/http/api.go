package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domcart "example.com/storefront/internal/domain/cart"
	domorder "example.com/storefront/internal/domain/order"
	domproduct "example.com/storefront/internal/domain/product"
	domuser "example.com/storefront/internal/domain/user"
	"example.com/storefront/internal/infra/logger"
	authuc "example.com/storefront/internal/usecase/auth"
	cartuc "example.com/storefront/internal/usecase/cart"
	checkoutuc "example.com/storefront/internal/usecase/checkout"
	orderuc "example.com/storefront/internal/usecase/order"
)

type API struct {
	authSvc     *authuc.Service
	cartSvc     *cartuc.Service
	orderSvc    *orderuc.Service
	checkoutSvc *checkoutuc.Service
	tokenSvc    authuc.TokenService
	validator   *validator.Validate
	log         *zap.Logger
	session     SessionConfig
	checks      []ReadinessCheck
}

// SessionConfig controls the cookie that carries the anonymous cart id.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// ReadinessCheck is one backing service checked by /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Dependencies struct {
	AuthService     *authuc.Service
	CartService     *cartuc.Service
	OrderService    *orderuc.Service
	CheckoutService *checkoutuc.Service
	TokenService    authuc.TokenService
	Logger          *zap.Logger
	Session         SessionConfig
	Readiness       []ReadinessCheck
}

func NewAPI(deps Dependencies) *API {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	session := deps.Session
	if session.CookieName == "" {
		session.CookieName = "sid"
	}
	return &API{
		authSvc:     deps.AuthService,
		cartSvc:     deps.CartService,
		orderSvc:    deps.OrderService,
		checkoutSvc: deps.CheckoutService,
		tokenSvc:    deps.TokenService,
		validator:   validator.New(),
		log:         log,
		session:     session,
		checks:      deps.Readiness,
	}
}

func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logger.RequestLogger(a.log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.AllowContentType("application/json", "text/plain"))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", a.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.identify)

		r.Post("/auth/login", a.handleLogin)

		r.Route("/cart", func(cr chi.Router) {
			cr.Get("/", a.handleGetCart)
			cr.Post("/", a.handleUpsertCart)
			cr.Patch("/", a.handleUpsertCart)
			cr.Delete("/", a.handleClearCart)
			cr.Get("/count", a.handleCartCount)
		})

		r.Post("/orders", a.handleCheckout)

		r.Group(func(pr chi.Router) {
			pr.Use(a.requireAuth)
			pr.Get("/orders", a.handleListMyOrders)
			pr.Get("/orders/{id}", a.handleGetMyOrder)
			pr.Post("/orders/{id}/cancel", a.handleCancelMyOrder)
		})

		r.Group(func(ar chi.Router) {
			ar.Use(a.requireAuth)
			ar.Use(a.requireRoles(domuser.RoleCodeAdmin))

			ar.Route("/admin/orders", func(rr chi.Router) {
				rr.Get("/", a.handleListOrders)
				rr.Get("/{id}", a.handleGetOrder)
				rr.Patch("/{id}", a.handleUpdateOrderStatus)
			})
		})
	})

	return r
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(a.checks))
	for _, c := range a.checks {
		if err := c.Check(ctx); err != nil {
			logger.FromContext(r.Context(), a.log).Warn("readiness check failed",
				zap.String("check", c.Name), zap.Error(err))
			results[c.Name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[c.Name] = "up"
	}
	writeJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": results,
	})
}

func (a *API) decodeAndValidate(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return a.validator.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func respondError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: true, Message: err.Error()})
}

func parseIDParam(r *http.Request, key string) (int64, error) {
	idStr := chi.URLParam(r, key)
	return strconv.ParseInt(idStr, 10, 64)
}

func mapUser(u *domuser.User) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"name":      u.Name,
		"email":     u.Email,
		"phone":     u.Phone,
		"role_code": u.RoleCode,
	}
}

func mapCart(v *domcart.View) map[string]any {
	items := make([]map[string]any, 0, len(v.Items))
	for _, line := range v.Items {
		item := map[string]any{
			"product_id": line.ProductID,
			"quantity":   line.Quantity,
			"available":  line.Available,
		}
		if line.Available {
			item["name"] = line.Name
			item["image"] = line.Image
			item["price"] = line.Price
			item["total"] = line.LineTotal
		}
		items = append(items, item)
	}
	return map[string]any{
		"items":          items,
		"item_count":     v.ItemCount,
		"total_quantity": v.TotalQuantity,
		"subtotal":       v.Subtotal,
	}
}

func mapOrder(o *domorder.Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, map[string]any{
			"product_id": item.ProductID,
			"name":       item.Name,
			"price":      item.Price,
			"quantity":   item.Quantity,
			"total":      item.Total(),
		})
	}

	return map[string]any{
		"id":            o.ID,
		"user_id":       o.AccountID,
		"status":        o.Status,
		"delivery_type": o.DeliveryType,
		"payment_type":  o.PaymentType,
		"delivery_cost": o.DeliveryCost,
		"cost":          o.Cost,
		"contact": map[string]string{
			"name":    o.Contact.Name,
			"phone":   o.Contact.Phone,
			"email":   o.Contact.Email,
			"address": o.Contact.Address,
			"comment": o.Contact.Comment,
		},
		"created_at": o.CreatedAt,
		"updated_at": o.UpdatedAt,
		"items":      items,
	}
}

func mapOrders(orders []*domorder.Order) []map[string]any {
	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, mapOrder(o))
	}
	return out
}

var errInternal = errors.New("internal server error")

func (a *API) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domcart.ErrInvalidData),
		errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, domcart.ErrInvalidOwner),
		errors.Is(err, domcart.ErrEmptyCart),
		errors.Is(err, domorder.ErrInvalidStatus),
		errors.Is(err, domorder.ErrInvalidDeliveryType),
		errors.Is(err, domorder.ErrInvalidPaymentType),
		errors.Is(err, domorder.ErrContactRequired),
		errors.Is(err, domorder.ErrAddressRequired),
		errors.Is(err, domorder.ErrEmptyOrderItems),
		errors.Is(err, domuser.ErrInvalidRoleCode),
		errors.Is(err, domuser.ErrInvalidCredential):
		respondError(w, http.StatusBadRequest, err)
	case errors.Is(err, domcart.ErrCartNotFound),
		errors.Is(err, domproduct.ErrProductNotFound),
		errors.Is(err, domorder.ErrOrderNotFound),
		errors.Is(err, domuser.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err)
	case errors.Is(err, domorder.ErrInvalidTransition),
		errors.Is(err, domuser.ErrEmailAlreadyUsed):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, domuser.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, err)
	default:
		logger.FromContext(r.Context(), a.log).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
	}
}
