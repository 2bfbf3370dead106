package middleware

import (
	"log/slog"
	"net/http"

	"github.com/kasrafouladi/Elmosyar/internal/api/httpx"
	"github.com/kasrafouladi/Elmosyar/internal/services"
)

func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic", "err", rec, "request_id", RequestIDFrom(r.Context()), "path", r.URL.Path)
				httpx.WriteError(w, http.StatusInternalServerError, services.CodeServerError, "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
