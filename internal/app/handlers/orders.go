package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront/internal/service"
)

// OrderItemRequest позиция корзины. Имя и цена берутся из каталога, присланные игнорируются.
type OrderItemRequest struct {
	ProductID string `json:"_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// CreateOrderRequest тело POST /api/orders
type CreateOrderRequest struct {
	Items           []OrderItemRequest     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentDetails  models.PaymentDetails  `json:"paymentDetails"`
	TotalAmount     *float64               `json:"totalAmount" validate:"omitempty,gte=0"`
	PaymentIntentID string                 `json:"paymentIntentId"`
}

// UpdateOrderStatusRequest тело PUT /api/orders/{id}
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

// CreateOrderHandler обрабатывает POST /api/orders
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeMessage(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req CreateOrderRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		lines := make([]service.OrderLine, 0, len(req.Items))
		for _, item := range req.Items {
			lines = append(lines, service.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		order, err := orderService.PlaceOrder(r.Context(), userID, service.PlaceOrderInput{
			Items:           lines,
			ShippingAddress: req.ShippingAddress,
			PaymentDetails:  req.PaymentDetails,
			TotalAmount:     req.TotalAmount,
			PaymentIntentID: req.PaymentIntentID,
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, order)
	}
}

// MyOrdersHandler обрабатывает GET /api/orders/myorders
func MyOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.MyOrdersHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeMessage(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		orders, err := orderService.MyOrders(r.Context(), userID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, orders)
	}
}

// GetOrderHandler обрабатывает GET /api/orders/{id}: владелец или админ
func GetOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeMessage(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		order, err := orderService.GetOrder(r.Context(), userID, jwtmiddleware.IsAdmin(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, order)
	}
}

// ListOrdersHandler обрабатывает GET /api/orders (только админ)
func ListOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListOrdersHandler"
		logger := log.With(slog.String("op", op))

		orders, err := orderService.ListOrders(r.Context())
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, orders)
	}
}

// UpdateOrderStatusHandler обрабатывает PUT /api/orders/{id} (только админ)
func UpdateOrderStatusHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateOrderStatusHandler"
		logger := log.With(slog.String("op", op))

		var req UpdateOrderStatusRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		order, err := orderService.UpdateStatus(r.Context(), chi.URLParam(r, "id"), models.OrderStatus(req.Status))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, order)
	}
}
