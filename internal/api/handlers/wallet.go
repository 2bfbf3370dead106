package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kasrafouladi/Elmosyar/internal/api/httpx"
	"github.com/kasrafouladi/Elmosyar/internal/api/validate"
	"github.com/kasrafouladi/Elmosyar/internal/middleware"
	"github.com/kasrafouladi/Elmosyar/internal/services"
)

type WalletHandler struct {
	Wallets *services.WalletService
}

func NewWalletHandler(ws *services.WalletService) *WalletHandler {
	return &WalletHandler{Wallets: ws}
}

type amountReq struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}

type transferReq struct {
	ToUserID string `json:"to_user_id" validate:"required"`
	Amount   int64  `json:"amount" validate:"gt=0"`
}

func badRequest(w http.ResponseWriter, msg string) {
	httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", msg, nil)
}

// decode reads a JSON body into v and validates it. It writes the error
// response itself and reports false when the request must stop.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field == "amount" {
			httpx.WriteError(w, http.StatusBadRequest, services.CodeInvalidAmount, "amount must be a positive integer", nil)
			return false
		}
		badRequest(w, "invalid JSON body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		code := "BAD_REQUEST"
		var errs validate.Errs
		if errors.As(err, &errs) && errs.Has("amount") {
			code = services.CodeInvalidAmount
		}
		httpx.WriteError(w, http.StatusBadRequest, code, err.Error(), nil)
		return false
	}
	return true
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := middleware.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	}
	return uid, ok
}

func itemIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "invalid item id")
		return 0, false
	}
	return id, true
}

func (h *WalletHandler) MyWallet(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	wl, err := h.Wallets.Wallet(r.Context(), uid)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "WALLET", "wallet", wl)
}

func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req amountReq
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Wallets.Deposit(r.Context(), uid, req.Amount)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteResult(w, res)
}

func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req amountReq
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Wallets.Withdraw(r.Context(), uid, req.Amount)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteResult(w, res)
}

func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req transferReq
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Wallets.Transfer(r.Context(), uid, req.ToUserID, req.Amount)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteResult(w, res)
}

func (h *WalletHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}
	res, err := h.Wallets.Purchase(r.Context(), uid, itemID)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteResult(w, res)
}

func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	txs, err := h.Wallets.Transactions(r.Context(), uid, limit, offset)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "TRANSACTIONS", "transactions", txs)
}

func (h *WalletHandler) Purchases(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	txs, err := h.Wallets.Purchases(r.Context(), uid)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "PURCHASES", "purchased items", txs)
}

func (h *WalletHandler) Sales(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	txs, err := h.Wallets.Sales(r.Context(), uid)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "SALES", "sold items", txs)
}
