package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront/internal/service"
)

type CreatePaymentIntentRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
}

type UpdatePaymentIntentRequest struct {
	Status     string `json:"status" validate:"required,oneof=captured failed cancelled"`
	ExternalID string `json:"externalId"`
}

// CreatePaymentIntentHandler обрабатывает POST /api/orders/create-payment-intent
func CreatePaymentIntentHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreatePaymentIntentHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeMessage(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req CreatePaymentIntentRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		intent, err := paymentService.CreateIntent(r.Context(), userID, req.Amount)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, intent)
	}
}

// UpdatePaymentIntentHandler обрабатывает PUT /api/orders/payment-intents/{id}
func UpdatePaymentIntentHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdatePaymentIntentHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeMessage(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req UpdatePaymentIntentRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		intent, err := paymentService.UpdateIntent(r.Context(), userID, chi.URLParam(r, "id"), models.PaymentIntentStatus(req.Status), req.ExternalID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, intent)
	}
}

// ListPaymentIntentsHandler обрабатывает GET /api/orders/payment-intents?status= (только админ)
func ListPaymentIntentsHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListPaymentIntentsHandler"
		logger := log.With(slog.String("op", op))

		status := models.PaymentIntentStatus(r.URL.Query().Get("status"))
		intents, err := paymentService.ListIntents(r.Context(), status)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, intents)
	}
}
