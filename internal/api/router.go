package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kasrafouladi/Elmosyar/internal/api/handlers"
	"github.com/kasrafouladi/Elmosyar/internal/auth"
	"github.com/kasrafouladi/Elmosyar/internal/config"
	"github.com/kasrafouladi/Elmosyar/internal/metrics"
	"github.com/kasrafouladi/Elmosyar/internal/middleware"
	repo "github.com/kasrafouladi/Elmosyar/internal/repository"
	"github.com/kasrafouladi/Elmosyar/internal/services"
)

type RouterDeps struct {
	Cfg      config.Config
	Log      *slog.Logger
	TM       *auth.TokenManager
	Users    repo.Users
	Wallets  *services.WalletService
	Payments *services.PaymentService
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RequestLogger(d.Log), middleware.Recover, middleware.HTTPMetrics)
	r.Use(middleware.RateLimit(d.Cfg.RateRPS, d.Cfg.RateBurst))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	am := middleware.NewAuthMiddleware(d.TM, d.Cfg.Env)
	wh := handlers.NewWalletHandler(d.Wallets)
	ph := handlers.NewPaymentHandler(d.Payments)

	r.Route("/api/v1", func(r chi.Router) {
		if d.Cfg.Env == "dev" {
			r.Post("/auth/token", handlers.NewAuthHandler(d.TM, d.Users).Token)
		}

		r.Route("/wallet", func(r chi.Router) {
			r.Use(am.Auth)

			r.Get("/mywallet", wh.MyWallet)
			r.Post("/deposit", wh.Deposit)
			r.Post("/withdraw", wh.Withdraw)
			r.Post("/transfer", wh.Transfer)
			r.Post("/purchase/{itemID}", wh.Purchase)
			r.Get("/transactions", wh.Transactions)
			r.Get("/purchases", wh.Purchases)
			r.Get("/sales", wh.Sales)

			r.Post("/payment/create/{itemID}", ph.Create)
			r.Post("/payment/verify", ph.Verify)
		})
	})

	return r
}
