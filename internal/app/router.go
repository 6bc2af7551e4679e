package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/storefront/internal/app/handlers"
	"github.com/linemk/storefront/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront/internal/lib/logger/handlers/urllog"
	"github.com/linemk/storefront/internal/service"
)

// Services бизнес-слой, который обслуживает роутер
type Services struct {
	Auth     service.AuthServiceInterface
	Products service.ProductService
	Orders   service.OrderService
	Payments service.PaymentService
}

type RouterOptions struct {
	JWTSecret string
	Health    handlers.Pinger
	// MetricsHandler монтируется на MetricsPath, если не nil
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter собирает chi-роутер со всеми эндпоинтами магазина
func NewRouter(log *slog.Logger, svc Services, opts RouterOptions) http.Handler {
	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	if opts.Health != nil {
		router.Get("/healthz", handlers.HealthHandler(log, opts.Health))
	}
	if opts.MetricsHandler != nil {
		router.Method(http.MethodGet, opts.MetricsPath, opts.MetricsHandler)
	}

	auth := jwtmiddleware.NewJWTMiddleware(opts.JWTSecret)

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", handlers.RegisterHandler(log, svc.Auth))
		r.Post("/auth/login", handlers.LoginHandler(log, svc.Auth))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", handlers.ListProductsHandler(log, svc.Products))
			r.Get("/{id}", handlers.GetProductHandler(log, svc.Products))

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Post("/{id}/reviews", handlers.CreateReviewHandler(log, svc.Products))

				r.With(jwtmiddleware.AdminOnly).Post("/", handlers.CreateProductHandler(log, svc.Products))
				r.With(jwtmiddleware.AdminOnly).Put("/{id}", handlers.UpdateProductHandler(log, svc.Products))
				r.With(jwtmiddleware.AdminOnly).Delete("/{id}", handlers.DeleteProductHandler(log, svc.Products))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(auth)
			r.Post("/", handlers.CreateOrderHandler(log, svc.Orders))
			r.Get("/myorders", handlers.MyOrdersHandler(log, svc.Orders))
			r.Post("/create-payment-intent", handlers.CreatePaymentIntentHandler(log, svc.Payments))
			r.Put("/payment-intents/{id}", handlers.UpdatePaymentIntentHandler(log, svc.Payments))
			r.Get("/{id}", handlers.GetOrderHandler(log, svc.Orders))

			r.Group(func(r chi.Router) {
				r.Use(jwtmiddleware.AdminOnly)
				r.Get("/", handlers.ListOrdersHandler(log, svc.Orders))
				r.Put("/{id}", handlers.UpdateOrderStatusHandler(log, svc.Orders))
				r.Get("/payment-intents", handlers.ListPaymentIntentsHandler(log, svc.Payments))
			})
		})
	})

	return router
}
