package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kasrafouladi/Elmosyar/internal/api/httpx"
	"github.com/kasrafouladi/Elmosyar/internal/services"
)

type PaymentHandler struct {
	Payments *services.PaymentService
}

func NewPaymentHandler(ps *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{Payments: ps}
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}
	s, err := h.Payments.CreateSession(r.Context(), uid, itemID)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusCreated, services.CodeSessionCreated, "payment session created", s)
}

// Verify accepts the authority as a JSON body field or as the ?authority=
// query parameter the gateway redirect carries.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	authority := r.URL.Query().Get("authority")
	if authority == "" && r.ContentLength != 0 {
		var req struct {
			Authority string `json:"authority"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		authority = req.Authority
	}
	res, err := h.Payments.Verify(r.Context(), uid, authority)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	if res.Code == services.CodePaymentFailed {
		httpx.WriteError(w, http.StatusPaymentRequired, res.Code, res.Message, res.Data)
		return
	}
	httpx.WriteResult(w, res)
}
