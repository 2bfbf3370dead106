package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/kasrafouladi/Elmosyar/internal/services"
)

// Envelope is the body of every wallet response.
type Envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Data    any    `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteOK(w http.ResponseWriter, status int, code, msg string, data any) {
	WriteJSON(w, status, Envelope{Message: msg, Code: code, Data: data})
}

func WriteError(w http.ResponseWriter, status int, code, msg string, data any) {
	WriteJSON(w, status, Envelope{Error: true, Message: msg, Code: code, Data: data})
}

// WriteResult renders a completed wallet operation.
func WriteResult(w http.ResponseWriter, res services.Result) {
	WriteOK(w, http.StatusOK, res.Code, res.Message, res.Data)
}

// WriteServiceError renders err by its kind. Internal causes are never exposed.
func WriteServiceError(w http.ResponseWriter, err error) {
	e := services.AsError("request", err)
	msg := e.Message
	if e.Kind == services.KindInternal {
		msg = "internal server error"
	}
	WriteError(w, StatusOf(e.Kind), e.Code, msg, nil)
}

func StatusOf(k services.Kind) int {
	switch k {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
