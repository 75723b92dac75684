package http

import (
	"net/http"

	"go.uber.org/zap"

	"example.com/storefront/internal/infra/logger"
	authuc "example.com/storefront/internal/usecase/auth"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// handleLogin issues a token and folds the caller's session cart into the
// account cart. A failed merge does not fail the login.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.authSvc.Login(r.Context(), authuc.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}

	merged := 0
	if sid := getIdentity(r.Context()).SessionID; sid != "" {
		res, err := a.cartSvc.MergeOnLogin(r.Context(), sid, result.User.ID)
		if err != nil {
			logger.FromContext(r.Context(), a.log).Error("cart merge on login failed",
				zap.Int64("user_id", result.User.ID), zap.Error(err))
		}
		merged = res.Merged
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":  result.Token,
		"user":   mapUser(result.User),
		"merged": merged,
	})
}
