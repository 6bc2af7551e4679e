package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/metrics"
	"github.com/linemk/storefront/internal/storage"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderLine позиция корзины, присланная клиентом
type OrderLine struct {
	ProductID string
	Quantity  int
}

// PlaceOrderInput данные нового заказа. TotalAmount и PaymentIntentID необязательны.
type PlaceOrderInput struct {
	Items           []OrderLine
	ShippingAddress models.ShippingAddress
	PaymentDetails  models.PaymentDetails
	TotalAmount     *float64
	PaymentIntentID string
}

type OrderService interface {
	PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, userID string, isAdmin bool, orderID string) (*models.Order, error)
	MyOrders(ctx context.Context, userID string) ([]*models.Order, error)
	ListOrders(ctx context.Context) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error)
}

type orderService struct {
	log         *slog.Logger
	tx          storage.TxManager
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
	paymentRepo storage.PaymentStorage
	metrics     *metrics.Metrics
}

func NewOrderService(
	log *slog.Logger,
	tx storage.TxManager,
	productRepo storage.ProductStorage,
	orderRepo storage.OrderStorage,
	paymentRepo storage.PaymentStorage,
	m *metrics.Metrics,
) OrderService {
	return &orderService{
		log:         log,
		tx:          tx,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		metrics:     m,
	}
}

// PlaceOrder создаёт заказ: списывает остатки по каждой позиции, фиксирует снимки
// имени и цены и сохраняет заказ. Всё выполняется в одной транзакции: при любой
// ошибке остатки, заказ и запись о платеже не меняются.
func (s *orderService) PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (*models.Order, error) {
	const op = "service.OrderService.PlaceOrder"
	logger := s.log.With(slog.String("op", op), slog.String("userID", userID), slog.Int("lines", len(in.Items)))
	logger.Info("placing order")

	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	if err := validateOrderInput(in); err != nil {
		logger.Warn("invalid order", slog.Any("error", err))
		s.metrics.OrderFailed("validation")
		return nil, err
	}

	var intentID *primitive.ObjectID
	if in.PaymentIntentID != "" {
		oid, err := primitive.ObjectIDFromHex(in.PaymentIntentID)
		if err != nil {
			s.metrics.OrderFailed("payment_intent")
			return nil, newError(ErrValidation, "Invalid payment intent")
		}
		intentID = &oid
	}

	var created *models.Order
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		items := make([]models.OrderItem, 0, len(in.Items))
		total := decimal.Zero

		for _, line := range in.Items {
			item, err := s.reserveLine(txCtx, line)
			if err != nil {
				return err
			}
			items = append(items, item)
			total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		total = total.Round(2)

		if in.TotalAmount != nil && !decimal.NewFromFloat(*in.TotalAmount).Round(2).Equal(total) {
			return &Error{
				Kind: ErrValidation,
				Msg:  fmt.Sprintf("Order total mismatch: expected %s, got %s", total.StringFixed(2), decimal.NewFromFloat(*in.TotalAmount).StringFixed(2)),
			}
		}

		status := models.OrderPending
		if in.PaymentDetails.Status == models.PaymentStatusCompleted {
			status = models.OrderProcessing
		}

		totalAmount, _ := total.Float64()
		order := &models.Order{
			ID:              primitive.NewObjectID(),
			UserID:          uid,
			Items:           items,
			ShippingAddress: trimAddress(in.ShippingAddress),
			PaymentDetails:  in.PaymentDetails,
			PaymentIntentID: intentID,
			TotalAmount:     totalAmount,
			Status:          status,
		}

		if intentID != nil {
			if err := s.checkIntent(txCtx, *intentID, uid, total); err != nil {
				return err
			}
			if err := s.paymentRepo.Reconcile(txCtx, *intentID, uid, order.ID); err != nil {
				if errors.Is(err, storage.ErrPaymentIntentNotFound) {
					return newError(ErrValidation, "Payment intent not found or already used")
				}
				return fmt.Errorf("%s: failed to reconcile payment intent: %w: %w", op, ErrPersistence, err)
			}
		}

		created, err = s.orderRepo.CreateOrder(txCtx, order)
		if err != nil {
			return fmt.Errorf("%s: failed to create order: %w: %w", op, ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		s.metrics.OrderFailed(failureReason(err))
		var e *Error
		if errors.As(err, &e) {
			logger.Warn("order rejected", slog.String("reason", e.Msg))
			return nil, err
		}
		logger.Error("failed to place order", slog.Any("error", err))
		if errors.Is(err, ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}

	s.metrics.OrderPlaced(created.TotalAmount)
	logger.Info("order placed", slog.String("orderID", created.ID.Hex()), slog.Float64("total", created.TotalAmount))
	return created, nil
}

// reserveLine проверяет остаток товара, списывает его и возвращает снимок позиции
func (s *orderService) reserveLine(ctx context.Context, line OrderLine) (models.OrderItem, error) {
	const op = "service.OrderService.reserveLine"

	pid, err := primitive.ObjectIDFromHex(line.ProductID)
	if err != nil {
		return models.OrderItem{}, newError(ErrNotFound, "Product not found: %s", line.ProductID)
	}
	product, err := s.productRepo.GetByID(ctx, pid)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return models.OrderItem{}, newError(ErrNotFound, "Product not found: %s", line.ProductID)
		}
		return models.OrderItem{}, fmt.Errorf("%s: failed to get product: %w: %w", op, ErrPersistence, err)
	}

	if product.Stock < line.Quantity {
		return models.OrderItem{}, insufficientStock(product)
	}
	// условное списание: параллельный заказ мог забрать остаток после чтения
	if err := s.productRepo.DecrementStock(ctx, pid, line.Quantity); err != nil {
		if errors.Is(err, storage.ErrInsufficientStock) {
			return models.OrderItem{}, insufficientStock(product)
		}
		return models.OrderItem{}, fmt.Errorf("%s: failed to decrement stock: %w: %w", op, ErrPersistence, err)
	}

	return models.OrderItem{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Quantity:  line.Quantity,
	}, nil
}

// checkIntent проверяет, что запись о платеже принадлежит пользователю, ещё не
// использована и её сумма равна сумме заказа до цента
func (s *orderService) checkIntent(ctx context.Context, id, userID primitive.ObjectID, total decimal.Decimal) error {
	const op = "service.OrderService.checkIntent"

	intent, err := s.paymentRepo.GetIntentByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrPaymentIntentNotFound) {
			return newError(ErrValidation, "Payment intent not found or already used")
		}
		return fmt.Errorf("%s: failed to get payment intent: %w: %w", op, ErrPersistence, err)
	}
	if intent.UserID != userID ||
		(intent.Status != models.PaymentIntentPending && intent.Status != models.PaymentIntentCaptured) {
		return newError(ErrValidation, "Payment intent not found or already used")
	}

	paid := decimal.NewFromFloat(intent.Amount).Round(2)
	if !paid.Equal(total) {
		return &Error{
			Kind: ErrValidation,
			Msg:  fmt.Sprintf("Payment amount mismatch: paid %s, order total %s", paid.StringFixed(2), total.StringFixed(2)),
		}
	}
	return nil
}

func insufficientStock(p *models.Product) *Error {
	return &Error{Kind: ErrInsufficientStock, Msg: fmt.Sprintf("Insufficient stock for %s", p.Name)}
}

func (s *orderService) GetOrder(ctx context.Context, userID string, isAdmin bool, orderID string) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"
	logger := s.log.With(slog.String("op", op), slog.String("userID", userID), slog.String("orderID", orderID))

	oid, err := parseID(orderID, "Order not found")
	if err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetOrderByID(ctx, oid)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, newError(ErrNotFound, "Order not found")
		}
		logger.Error("failed to get order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w: %w", op, ErrPersistence, err)
	}

	if !isAdmin && order.UserID.Hex() != userID {
		logger.Warn("order belongs to another user")
		return nil, newError(ErrForbidden, "Not authorized to view this order")
	}
	return order, nil
}

func (s *orderService) MyOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	const op = "service.OrderService.MyOrders"

	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, uid)
	if err != nil {
		s.log.Error("failed to get orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get orders: %w: %w", op, ErrPersistence, err)
	}
	return orders, nil
}

func (s *orderService) ListOrders(ctx context.Context) ([]*models.Order, error) {
	const op = "service.OrderService.ListOrders"

	orders, err := s.orderRepo.ListOrders(ctx)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list orders: %w: %w", op, ErrPersistence, err)
	}
	return orders, nil
}

// UpdateStatus переводит заказ в новый статус по таблице переходов. Отмена
// возвращает все позиции на склад в той же транзакции, что и смена статуса.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	const op = "service.OrderService.UpdateStatus"
	logger := s.log.With(slog.String("op", op), slog.String("orderID", orderID), slog.String("status", string(status)))

	if !status.Valid() {
		return nil, newError(ErrValidation, "Unknown order status %q", status)
	}
	oid, err := parseID(orderID, "Order not found")
	if err != nil {
		return nil, err
	}

	var updated *models.Order
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.GetOrderByID(txCtx, oid)
		if err != nil {
			if errors.Is(err, storage.ErrOrderNotFound) {
				return newError(ErrNotFound, "Order not found")
			}
			return fmt.Errorf("%s: failed to get order: %w: %w", op, ErrPersistence, err)
		}

		if !order.Status.CanTransitionTo(status) {
			return &Error{
				Kind: ErrInvalidTransition,
				Msg:  fmt.Sprintf("Cannot change order status from %s to %s", order.Status, status),
			}
		}

		updated, err = s.orderRepo.UpdateStatus(txCtx, oid, order.Status, status)
		if err != nil {
			if errors.Is(err, storage.ErrStatusConflict) {
				return newError(ErrConflict, "Order status changed, please retry")
			}
			return fmt.Errorf("%s: failed to update status: %w: %w", op, ErrPersistence, err)
		}

		if status == models.OrderCancelled {
			for _, item := range order.Items {
				if err := s.productRepo.IncrementStock(txCtx, item.ProductID, item.Quantity); err != nil {
					// товар могли удалить из каталога, возвращать остаток некуда
					if errors.Is(err, storage.ErrProductNotFound) {
						logger.Warn("cancelled item product is gone", slog.String("productID", item.ProductID.Hex()))
						continue
					}
					return fmt.Errorf("%s: failed to restock: %w: %w", op, ErrPersistence, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			logger.Warn("status change rejected", slog.String("reason", e.Msg))
			return nil, err
		}
		logger.Error("failed to update order status", slog.Any("error", err))
		if errors.Is(err, ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}

	if status == models.OrderCancelled {
		units := 0
		for _, item := range updated.Items {
			units += item.Quantity
		}
		s.metrics.StockReleased(units)
	}
	logger.Info("order status updated")
	return updated, nil
}

func validateOrderInput(in PlaceOrderInput) error {
	if len(in.Items) == 0 {
		return newError(ErrValidation, "No order items")
	}
	for _, line := range in.Items {
		if line.Quantity < 1 {
			return newError(ErrValidation, "Quantity must be at least 1")
		}
	}
	if missing := in.ShippingAddress.MissingFields(); len(missing) > 0 {
		return newError(ErrValidation, "Missing shipping fields: %s", strings.Join(missing, ", "))
	}
	if in.PaymentDetails.PaymentMethod != models.PaymentMethodPayPal {
		return newError(ErrValidation, "Unsupported payment method %q", in.PaymentDetails.PaymentMethod)
	}
	return nil
}

func trimAddress(a models.ShippingAddress) models.ShippingAddress {
	return models.ShippingAddress{
		FirstName: strings.TrimSpace(a.FirstName),
		LastName:  strings.TrimSpace(a.LastName),
		Address:   strings.TrimSpace(a.Address),
		City:      strings.TrimSpace(a.City),
		State:     strings.TrimSpace(a.State),
		ZipCode:   strings.TrimSpace(a.ZipCode),
		Phone:     strings.TrimSpace(a.Phone),
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "persistence"
	}
}

// parseUserID разбирает идентификатор из токена. Токен с чужим форматом sub считается недействительным.
func parseUserID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, newError(ErrUnauthorized, "Not authorized, token failed")
	}
	return oid, nil
}
