package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/metrics"
	"github.com/linemk/storefront/internal/storage"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

type PaymentService interface {
	CreateIntent(ctx context.Context, userID string, amount float64) (*models.PaymentIntent, error)
	UpdateIntent(ctx context.Context, userID, intentID string, status models.PaymentIntentStatus, externalID string) (*models.PaymentIntent, error)
	ListIntents(ctx context.Context, status models.PaymentIntentStatus) ([]*models.PaymentIntent, error)
}

type paymentService struct {
	log         *slog.Logger
	paymentRepo storage.PaymentStorage
	metrics     *metrics.Metrics
}

func NewPaymentService(log *slog.Logger, paymentRepo storage.PaymentStorage, m *metrics.Metrics) PaymentService {
	return &paymentService{
		log:         log,
		paymentRepo: paymentRepo,
		metrics:     m,
	}
}

// допустимые переходы записи о платеже, инициированные клиентом
var intentTransitions = map[models.PaymentIntentStatus][]models.PaymentIntentStatus{
	models.PaymentIntentCaptured:  {models.PaymentIntentPending},
	models.PaymentIntentFailed:    {models.PaymentIntentPending},
	models.PaymentIntentCancelled: {models.PaymentIntentPending},
}

// CreateIntent записывает ожидаемый платёж до обращения к провайдеру.
// Reference передаётся провайдеру и связывает списание с записью.
func (s *paymentService) CreateIntent(ctx context.Context, userID string, amount float64) (*models.PaymentIntent, error) {
	const op = "service.PaymentService.CreateIntent"
	logger := s.log.With(slog.String("op", op), slog.String("userID", userID))

	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	value := decimal.NewFromFloat(amount).Round(2)
	if !value.IsPositive() {
		return nil, newError(ErrValidation, "Amount must be positive")
	}
	rounded, _ := value.Float64()

	intent, err := s.paymentRepo.CreateIntent(ctx, &models.PaymentIntent{
		UserID:    uid,
		Amount:    rounded,
		Currency:  DefaultCurrency,
		Reference: uuid.NewString(),
		Status:    models.PaymentIntentPending,
	})
	if err != nil {
		logger.Error("failed to create payment intent", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create payment intent: %w: %w", op, ErrPersistence, err)
	}

	s.metrics.PaymentIntent(string(models.PaymentIntentPending))
	logger.Info("payment intent created", slog.String("intentID", intent.ID.Hex()), slog.String("amount", value.StringFixed(2)))
	return intent, nil
}

// UpdateIntent фиксирует результат обращения к провайдеру: captured, failed или cancelled.
func (s *paymentService) UpdateIntent(ctx context.Context, userID, intentID string, status models.PaymentIntentStatus, externalID string) (*models.PaymentIntent, error) {
	const op = "service.PaymentService.UpdateIntent"
	logger := s.log.With(
		slog.String("op", op),
		slog.String("userID", userID),
		slog.String("intentID", intentID),
		slog.String("status", string(status)),
	)

	from, ok := intentTransitions[status]
	if !ok {
		return nil, newError(ErrValidation, "Unsupported payment intent status %q", status)
	}
	if status == models.PaymentIntentCaptured && externalID == "" {
		return nil, newError(ErrValidation, "Captured payment requires a provider id")
	}

	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	id, err := parseID(intentID, "Payment intent not found")
	if err != nil {
		return nil, err
	}

	intent, err := s.paymentRepo.TransitionIntent(ctx, id, uid, from, status, externalID)
	if err != nil {
		if errors.Is(err, storage.ErrPaymentIntentNotFound) {
			logger.Warn("payment intent not found or not pending")
			return nil, newError(ErrNotFound, "Payment intent not found")
		}
		logger.Error("failed to update payment intent", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update payment intent: %w: %w", op, ErrPersistence, err)
	}

	s.metrics.PaymentIntent(string(status))
	logger.Info("payment intent updated")
	return intent, nil
}

// ListIntents возвращает записи о платежах; captured без заказа требуют ручной сверки.
func (s *paymentService) ListIntents(ctx context.Context, status models.PaymentIntentStatus) ([]*models.PaymentIntent, error) {
	const op = "service.PaymentService.ListIntents"

	if status != "" && !status.Valid() {
		return nil, newError(ErrValidation, "Unknown payment intent status %q", status)
	}
	intents, err := s.paymentRepo.ListIntents(ctx, status)
	if err != nil {
		s.log.Error("failed to list payment intents", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list payment intents: %w: %w", op, ErrPersistence, err)
	}
	return intents, nil
}
