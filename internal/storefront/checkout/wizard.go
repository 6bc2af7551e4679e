// Package checkout мастер оформления заказа: адрес доставки, оплата, подтверждение.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/service"
	"github.com/linemk/storefront/internal/storefront/api"
	"github.com/linemk/storefront/internal/storefront/cart"
	"github.com/linemk/storefront/internal/storefront/state"
	"github.com/shopspring/decimal"
)

type Step int

const (
	StepShippingInfo Step = iota
	StepPaymentMethod
	StepConfirm
	StepAbandoned
)

func (s Step) String() string {
	switch s {
	case StepShippingInfo:
		return "shipping"
	case StepPaymentMethod:
		return "payment"
	case StepConfirm:
		return "confirm"
	case StepAbandoned:
		return "abandoned"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

var (
	ErrShippingIncomplete = fmt.Errorf("%w: shipping address incomplete", service.ErrValidation)
	ErrEmptyCart          = fmt.Errorf("%w: cart is empty", service.ErrValidation)
	ErrWrongStep          = fmt.Errorf("%w: action not allowed at this step", service.ErrValidation)
	ErrPaymentInProgress  = fmt.Errorf("%w: payment in progress", service.ErrConflict)
	ErrPaymentFailed      = fmt.Errorf("%w: payment failed", service.ErrUpstream)
	// ErrPaymentCancelled возвращает PaymentCapturer, если покупатель отменил оплату
	ErrPaymentCancelled = fmt.Errorf("%w: payment cancelled", service.ErrUpstream)
)

// Capture результат списания у провайдера
type Capture struct {
	ID     string
	Status string
}

// PaymentCapturer внешний платёжный провайдер. reference связывает списание
// с записью о платеже на сервере.
type PaymentCapturer interface {
	Capture(ctx context.Context, reference string, amount decimal.Decimal) (*Capture, error)
}

// Backend операции сервера, которые нужны мастеру. Реализуется *api.Client.
type Backend interface {
	CreatePaymentIntent(ctx context.Context, amount float64) (*models.PaymentIntent, error)
	UpdatePaymentIntent(ctx context.Context, id string, status models.PaymentIntentStatus, externalID string) (*models.PaymentIntent, error)
	CreateOrder(ctx context.Context, req api.OrderRequest) (*models.Order, error)
}

type Wizard struct {
	log      *slog.Logger
	store    *state.Store
	backend  Backend
	capturer PaymentCapturer

	mu       sync.Mutex
	step     Step
	shipping models.ShippingAddress
	paying   bool
	intent   *models.PaymentIntent
	capture  *Capture
	order    *models.Order
	// позиции и сумма, за которые списаны деньги; повторная отправка заказа идёт по ним
	paidLines []cart.Line
	paidTotal decimal.Decimal
}

func NewWizard(log *slog.Logger, store *state.Store, backend Backend, capturer PaymentCapturer) *Wizard {
	return &Wizard{
		log:      log,
		store:    store,
		backend:  backend,
		capturer: capturer,
		step:     StepShippingInfo,
	}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Order подтверждённый заказ, nil до шага Confirm
func (w *Wizard) Order() *models.Order {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order
}

// HasCapture сообщает, что деньги уже списаны и заказ можно отправить повторно
func (w *Wizard) HasCapture() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.capture != nil
}

// SetShipping заполняет адрес; доступно только на первом шаге
func (w *Wizard) SetShipping(addr models.ShippingAddress) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepShippingInfo {
		return ErrWrongStep
	}
	w.shipping = addr
	return nil
}

// Next переходит к оплате, если все поля адреса заполнены
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepShippingInfo {
		return ErrWrongStep
	}
	if missing := w.shipping.MissingFields(); len(missing) > 0 {
		err := fmt.Errorf("%w: missing %s", ErrShippingIncomplete, strings.Join(missing, ", "))
		w.store.SetError(err)
		return err
	}
	w.step = StepPaymentMethod
	w.store.SetError(nil)
	return nil
}

// Back возвращает к адресу доставки; во время оплаты недоступно
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepPaymentMethod {
		return ErrWrongStep
	}
	if w.paying {
		return ErrPaymentInProgress
	}
	w.step = StepShippingInfo
	return nil
}

// Abandon завершает мастер без побочных эффектов. После списания отказ
// невозможен: заказ нужно отправить повторно.
func (w *Wizard) Abandon() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.step == StepConfirm || w.step == StepAbandoned:
		return ErrWrongStep
	case w.paying || w.capture != nil:
		return ErrPaymentInProgress
	}
	w.step = StepAbandoned
	return nil
}

// Pay списывает оплату и создаёт заказ. Если списание уже было, а заказ не
// создался, повторный вызов отправляет заказ на оплаченные позиции, даже если
// корзина с тех пор изменилась.
// После начала списания отмена ctx не прерывает операцию.
func (w *Wizard) Pay(ctx context.Context) error {
	const op = "checkout.Wizard.Pay"
	logger := w.log.With(slog.String("op", op))

	w.mu.Lock()
	if w.step != StepPaymentMethod {
		w.mu.Unlock()
		return ErrWrongStep
	}
	if w.paying {
		w.mu.Unlock()
		return ErrPaymentInProgress
	}
	captured := w.capture != nil
	lines := w.paidLines
	if !captured {
		lines = w.store.CartLines()
	}
	if len(lines) == 0 {
		w.mu.Unlock()
		return ErrEmptyCart
	}
	w.paying = true
	shipping := w.shipping
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.paying = false
		w.mu.Unlock()
	}()

	if !captured {
		if err := w.capturePayment(ctx, logger, lines); err != nil {
			w.store.SetError(err)
			return err
		}
	}

	w.mu.Lock()
	capture, intent, total := w.capture, w.intent, w.paidTotal
	w.mu.Unlock()

	order, err := w.backend.CreateOrder(context.WithoutCancel(ctx), buildOrderRequest(lines, shipping, capture, intent, total))
	if err != nil {
		logger.Error("failed to place order, payment is kept", slog.String("captureID", capture.ID), slog.Any("error", err))
		err = fmt.Errorf("%s: place order: %w", op, err)
		w.store.SetError(err)
		return err
	}

	w.mu.Lock()
	w.order = order
	w.step = StepConfirm
	w.mu.Unlock()

	w.store.AddOrder(order)
	// из корзины уходят только оплаченные товары
	_ = w.store.UpdateCart(func(c *cart.Cart) error {
		for _, l := range lines {
			_ = c.Remove(l.Product.ID)
		}
		return nil
	})
	w.store.SetError(nil)
	logger.Info("order placed", slog.String("orderID", order.ID.Hex()))
	return nil
}

func (w *Wizard) capturePayment(ctx context.Context, logger *slog.Logger, lines []cart.Line) error {
	total := linesTotal(lines)
	amount, _ := total.Float64()
	intent, err := w.backend.CreatePaymentIntent(ctx, amount)
	if err != nil {
		logger.Error("failed to create payment intent", slog.Any("error", err))
		return fmt.Errorf("create payment intent: %w", err)
	}

	ctx = context.WithoutCancel(ctx)
	capture, err := w.capturer.Capture(ctx, intent.Reference, total)
	if err != nil {
		status := models.PaymentIntentFailed
		if errors.Is(err, ErrPaymentCancelled) {
			status = models.PaymentIntentCancelled
		}
		if _, uerr := w.backend.UpdatePaymentIntent(ctx, intent.ID.Hex(), status, ""); uerr != nil {
			logger.Warn("failed to report payment result", slog.String("status", string(status)), slog.Any("error", uerr))
		}
		logger.Warn("payment not captured", slog.String("status", string(status)), slog.Any("error", err))
		if errors.Is(err, service.ErrUpstream) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	// запись остаётся pending, если отчёт не дошёл; сервер примет её при создании заказа
	if _, err := w.backend.UpdatePaymentIntent(ctx, intent.ID.Hex(), models.PaymentIntentCaptured, capture.ID); err != nil {
		logger.Warn("failed to report captured payment", slog.String("captureID", capture.ID), slog.Any("error", err))
	}

	w.mu.Lock()
	w.intent = intent
	w.capture = capture
	w.paidLines = lines
	w.paidTotal = total
	w.mu.Unlock()
	return nil
}

// linesTotal считается так же, как cart.Total
func linesTotal(lines []cart.Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total.Round(2)
}

func buildOrderRequest(lines []cart.Line, shipping models.ShippingAddress, capture *Capture, intent *models.PaymentIntent, total decimal.Decimal) api.OrderRequest {
	items := make([]api.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, api.OrderItem{ProductID: l.Product.ID.Hex(), Quantity: l.Quantity})
	}
	amount, _ := total.Float64()

	req := api.OrderRequest{
		Items:           items,
		ShippingAddress: shipping,
		PaymentDetails: models.PaymentDetails{
			ID:            capture.ID,
			Status:        capture.Status,
			PaymentMethod: models.PaymentMethodPayPal,
		},
		TotalAmount: &amount,
	}
	if intent != nil {
		req.PaymentIntentID = intent.ID.Hex()
	}
	return req
}
