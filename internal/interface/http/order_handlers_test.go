package http

import (
	"errors"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	domorder "example.com/storefront/internal/domain/order"
)

func checkoutAsAnn(t *testing.T, env *testEnv) (token string, orderID int64) {
	t.Helper()
	token = env.tokenFor(t, "ann@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/cart", `{"productId":"p1","quantity":2}`, withToken(token))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/orders",
		`{"deliveryType":"delivery","paymentType":"cardOnline","address":"1 Main st"}`, withToken(token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	require.Equal(t, "new", body["status"])
	require.Equal(t, "10", body["delivery_cost"])
	require.Equal(t, "30", body["cost"])
	return token, int64(body["id"].(float64))
}

func TestCheckout_AccountClearsCart(t *testing.T) {
	env := newTestEnv(t)
	token, _ := checkoutAsAnn(t, env)

	rec := env.do(t, http.MethodGet, "/api/v1/cart/count", "", withToken(token))
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, decodeBody(t, rec)["count"])
}

func TestCheckout_GuestNeedsContact(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart", `{"productId":"p2","quantity":2}`)
	sid := sessionCookie(t, rec)

	rec = env.do(t, http.MethodPost, "/api/v1/orders",
		`{"deliveryType":"self","paymentType":"cashToCourier"}`, withSession(sid))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, domorder.ErrContactRequired.Error(), decodeBody(t, rec)["message"])

	rec = env.do(t, http.MethodPost, "/api/v1/orders",
		`{"deliveryType":"self","paymentType":"cashToCourier","name":"Bob","phone":"555"}`, withSession(sid))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	require.Nil(t, body["user_id"])
	require.Equal(t, "0", body["delivery_cost"])
	require.Equal(t, "9", body["cost"])
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", `{"deliveryType":"self","paymentType":"cardOnline"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_InvalidPaymentType(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "ann@example.com")
	env.do(t, http.MethodPost, "/api/v1/cart", `{"productId":"p1","quantity":1}`, withToken(token))

	rec := env.do(t, http.MethodPost, "/api/v1/orders", `{"deliveryType":"self","paymentType":"barter"}`, withToken(token))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrders_CustomerHistoryAndCancel(t *testing.T) {
	env := newTestEnv(t)
	token, id := checkoutAsAnn(t, env)
	path := "/api/v1/orders/" + strconv.FormatInt(id, 10)

	rec := env.do(t, http.MethodGet, "/api/v1/orders", "", withToken(token))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["data"], 1)

	rec = env.do(t, http.MethodGet, path, "", withToken(env.tokenFor(t, "admin@example.com")))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/cancel", "", withToken(token))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "cancelled", decodeBody(t, rec)["status"])

	rec = env.do(t, http.MethodPost, path+"/cancel", "", withToken(token))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestOrders_RequireAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/orders", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminOrders_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	customer, id := checkoutAsAnn(t, env)
	admin := env.tokenFor(t, "admin@example.com")
	path := "/api/v1/admin/orders/" + strconv.FormatInt(id, 10)

	rec := env.do(t, http.MethodPatch, path, `{"status":"pending"}`, withToken(customer))
	require.Equal(t, http.StatusForbidden, rec.Code)

	for _, step := range []string{"pending", "delivery"} {
		rec = env.do(t, http.MethodPatch, path, `{"status":"`+step+`"}`, withToken(admin))
		require.Equal(t, http.StatusOK, rec.Code, step)
		require.Equal(t, step, decodeBody(t, rec)["status"])
	}

	rec = env.do(t, http.MethodPatch, path, `{"status":"cancelled"}`, withToken(admin))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, path, "", withToken(admin))
	require.Equal(t, "delivery", decodeBody(t, rec)["status"])

	rec = env.do(t, http.MethodPatch, path, `{"status":"shipped"}`, withToken(admin))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/orders?status=delivery", "", withToken(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["data"], 1)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/orders?status=bogus", "", withToken(admin))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth_Readiness(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env.ready = errors.New("connection refused")
	rec = env.do(t, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "down", decodeBody(t, rec)["checks"].(map[string]any)["mysql"])
}
