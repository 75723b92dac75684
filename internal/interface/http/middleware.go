package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	domcart "example.com/storefront/internal/domain/cart"
	domuser "example.com/storefront/internal/domain/user"
	"example.com/storefront/internal/infra/session"
)

type ctxKey int

const ctxIdentityKey ctxKey = iota

var (
	errUnauthenticated = errors.New("unauthenticated")
	errForbidden       = errors.New("forbidden")
)

type authUser struct {
	UserID   int64
	RoleCode domuser.RoleCode
	Email    string
	Name     string
}

// identity is who is calling: an account, a browser session, both or neither.
type identity struct {
	User      *authUser
	SessionID string
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("x-access-token"))
}

// identify resolves the optional account token and the session cookie.
// A token that is present but invalid is rejected rather than ignored.
func (a *API) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := &identity{}

		if token := bearerToken(r); token != "" {
			claims, err := a.tokenSvc.ParseToken(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, errUnauthenticated)
				return
			}
			id.User = &authUser{
				UserID:   claims.UserID,
				RoleCode: claims.RoleCode,
				Email:    claims.Email,
				Name:     claims.Name,
			}
		}

		if c, err := r.Cookie(a.session.CookieName); err == nil && session.ValidID(c.Value) {
			id.SessionID = c.Value
		}

		ctx := context.WithValue(r.Context(), ctxIdentityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getAuthUser(r.Context()) == nil {
			respondError(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requireRoles(roles ...domuser.RoleCode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := getAuthUser(r.Context())
			if user == nil {
				respondError(w, http.StatusUnauthorized, errUnauthenticated)
				return
			}
			for _, role := range roles {
				if user.RoleCode == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondError(w, http.StatusForbidden, errForbidden)
		})
	}
}

func getIdentity(ctx context.Context) *identity {
	if id, ok := ctx.Value(ctxIdentityKey).(*identity); ok {
		return id
	}
	return &identity{}
}

func getAuthUser(ctx context.Context) *authUser {
	return getIdentity(ctx).User
}

// cartOwner picks the account cart for signed-in callers and the session
// cart otherwise. ok is false for a guest without a session.
func cartOwner(r *http.Request) (owner domcart.Owner, ok bool) {
	id := getIdentity(r.Context())
	if id.User != nil {
		return domcart.AccountOwner(id.User.UserID), true
	}
	if id.SessionID == "" {
		return domcart.Owner{}, false
	}
	return domcart.SessionOwner(id.SessionID), true
}

func (a *API) setSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.session.CookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(a.session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
