package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kasrafouladi/Elmosyar/internal/api/httpx"
	"github.com/kasrafouladi/Elmosyar/internal/api/validate"
	"github.com/kasrafouladi/Elmosyar/internal/auth"
	repo "github.com/kasrafouladi/Elmosyar/internal/repository"
	"github.com/kasrafouladi/Elmosyar/internal/services"
)

// AuthHandler issues access tokens for existing accounts without checking
// credentials, so it is mounted only when APP_ENV is "dev".
type AuthHandler struct {
	TM    *auth.TokenManager
	Users repo.Users
}

func NewAuthHandler(tm *auth.TokenManager, users repo.Users) *AuthHandler {
	return &AuthHandler{TM: tm, Users: users}
}

type tokenReq struct {
	UserID string `json:"user_id" validate:"required"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"` // saniye
}

func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		badRequest(w, err.Error())
		return
	}
	ok, err := h.Users.Exists(r.Context(), req.UserID)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	if !ok {
		httpx.WriteServiceError(w, services.ErrUserNotFound)
		return
	}
	access, exp, err := h.TM.Issue(req.UserID)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "TOKEN_ISSUED", "token issued", tokenResp{
		AccessToken: access,
		ExpiresIn:   int64(time.Until(exp).Truncate(time.Second).Seconds()),
	})
}
