package service_test

import (
	"context"
	"testing"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/metrics"
	"github.com/linemk/storefront/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type orderFixture struct {
	products *fakeProductRepo
	orders   *fakeOrderRepo
	payments *fakePaymentRepo
	tx       *fakeTx
	metrics  *metrics.Metrics
	svc      service.OrderService
	userID   primitive.ObjectID
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		products: newFakeProductRepo(),
		orders:   newFakeOrderRepo(),
		payments: newFakePaymentRepo(),
		metrics:  metrics.New(prometheus.NewRegistry()),
		userID:   primitive.NewObjectID(),
	}
	f.tx = &fakeTx{products: f.products, orders: f.orders, payments: f.payments}
	f.svc = service.NewOrderService(newLogger(), f.tx, f.products, f.orders, f.payments, f.metrics)
	return f
}

func validAddress() models.ShippingAddress {
	return models.ShippingAddress{
		FirstName: "Ann",
		LastName:  "Lee",
		Address:   "1 Main St",
		City:      "Springfield",
		State:     "IL",
		ZipCode:   "62701",
		Phone:     "555-0100",
	}
}

func orderInput(lines ...service.OrderLine) service.PlaceOrderInput {
	return service.PlaceOrderInput{
		Items:           lines,
		ShippingAddress: validAddress(),
		PaymentDetails: models.PaymentDetails{
			ID:            "PAY-1",
			Status:        models.PaymentStatusCompleted,
			PaymentMethod: models.PaymentMethodPayPal,
		},
	}
}

func TestOrderService_PlaceOrder_ExactStock(t *testing.T) {
	f := newOrderFixture()
	p := f.products.add("Go book", 19.99, 2)

	order, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), orderInput(service.OrderLine{ProductID: p.ID.Hex(), Quantity: 2}))
	require.NoError(t, err, "Order for exactly the available stock should succeed")

	assert.Equal(t, 0, f.products.products[p.ID].Stock, "Stock should drop to zero")
	assert.Equal(t, 39.98, order.TotalAmount)
	assert.Equal(t, models.OrderProcessing, order.Status, "Completed payment should move order to processing")
	assert.Equal(t, f.userID, order.UserID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Go book", order.Items[0].Name, "Item name is a snapshot of the product")
	assert.Equal(t, 19.99, order.Items[0].Price)
	assert.Equal(t, 1, f.tx.commits)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrdersPlaced()))
}

func TestOrderService_PlaceOrder_InsufficientStockLeavesStockUntouched(t *testing.T) {
	f := newOrderFixture()
	book := f.products.add("Go book", 10, 5)
	mug := f.products.add("Go mug", 7.5, 1)

	_, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), orderInput(
		service.OrderLine{ProductID: book.ID.Hex(), Quantity: 3},
		service.OrderLine{ProductID: mug.ID.Hex(), Quantity: 2},
	))

	assert.ErrorIs(t, err, service.ErrInsufficientStock)
	assert.ErrorIs(t, err, service.ErrValidation, "Insufficient stock is a validation failure")
	assert.Contains(t, service.Message(err, ""), "Go mug", "Message should name the product")
	assert.Equal(t, 5, f.products.products[book.ID].Stock, "First line must be rolled back")
	assert.Equal(t, 1, f.products.products[mug.ID].Stock)
	assert.Empty(t, f.orders.orders, "No order should be stored")
	assert.Equal(t, 1, f.tx.rollbacks)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrderFailures("insufficient_stock")))
}

func TestOrderService_PlaceOrder_UnknownProduct(t *testing.T) {
	f := newOrderFixture()
	book := f.products.add("Go book", 10, 5)

	_, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), orderInput(
		service.OrderLine{ProductID: book.ID.Hex(), Quantity: 1},
		service.OrderLine{ProductID: primitive.NewObjectID().Hex(), Quantity: 1},
	))

	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Equal(t, 5, f.products.products[book.ID].Stock)
	assert.Empty(t, f.orders.orders)
}

func TestOrderService_PlaceOrder_SameProductTwice(t *testing.T) {
	f := newOrderFixture()
	p := f.products.add("Go book", 10, 3)

	_, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), orderInput(
		service.OrderLine{ProductID: p.ID.Hex(), Quantity: 2},
		service.OrderLine{ProductID: p.ID.Hex(), Quantity: 2},
	))

	assert.ErrorIs(t, err, service.ErrInsufficientStock, "Lines for the same product share its stock")
	assert.Equal(t, 3, f.products.products[p.ID].Stock)
}

func TestOrderService_PlaceOrder_Validation(t *testing.T) {
	f := newOrderFixture()
	p := f.products.add("Go book", 10, 3)
	line := service.OrderLine{ProductID: p.ID.Hex(), Quantity: 1}

	tests := []struct {
		name  string
		input func() service.PlaceOrderInput
	}{
		{"no items", func() service.PlaceOrderInput { return orderInput() }},
		{"zero quantity", func() service.PlaceOrderInput {
			return orderInput(service.OrderLine{ProductID: p.ID.Hex(), Quantity: 0})
		}},
		{"blank city", func() service.PlaceOrderInput {
			in := orderInput(line)
			in.ShippingAddress.City = "  "
			return in
		}},
		{"unsupported payment method", func() service.PlaceOrderInput {
			in := orderInput(line)
			in.PaymentDetails.PaymentMethod = "Cash"
			return in
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), tt.input())
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}
	assert.Equal(t, 3, f.products.products[p.ID].Stock)
	assert.Equal(t, 0, f.tx.commits+f.tx.rollbacks, "Validation happens before the transaction")
}

func TestOrderService_PlaceOrder_TotalMismatch(t *testing.T) {
	f := newOrderFixture()
	p := f.products.add("Go book", 19.99, 3)

	in := orderInput(service.OrderLine{ProductID: p.ID.Hex(), Quantity: 2})
	wrong := 20.0
	in.TotalAmount = &wrong

	_, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), in)
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Contains(t, service.Message(err, ""), "39.98")
	assert.Equal(t, 3, f.products.products[p.ID].Stock)

	right := 39.98
	in.TotalAmount = &right
	_, err = f.svc.PlaceOrder(context.Background(), f.userID.Hex(), in)
	assert.NoError(t, err, "Matching total should be accepted")
}

func TestOrderService_PlaceOrder_PendingPayment(t *testing.T) {
	f := newOrderFixture()
	p := f.products.add("Go book", 10, 3)

	in := orderInput(service.OrderLine{ProductID: p.ID.Hex(), Quantity: 1})
	in.PaymentDetails.Status = "APPROVED"

	order, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), in)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)
}

func TestOrderService_PlaceOrder_ReconcilesPaymentIntent(t *testing.T) {
	f := newOrderFixture()
	p := f.products.add("Go book", 10, 3)
	intent, _ := f.payments.CreateIntent(context.Background(), &models.PaymentIntent{
		UserID: f.userID,
		Amount: 10,
		Status: models.PaymentIntentCaptured,
	})

	in := orderInput(service.OrderLine{ProductID: p.ID.Hex(), Quantity: 1})
	in.PaymentIntentID = intent.ID.Hex()

	order, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), in)
	require.NoError(t, err)

	stored := f.payments.intents[intent.ID]
	assert.Equal(t, models.PaymentIntentReconciled, stored.Status)
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, order.ID, *stored.OrderID, "Intent should point at the created order")
	require.NotNil(t, order.PaymentIntentID)
	assert.Equal(t, intent.ID, *order.PaymentIntentID)

	// повторное использование той же записи
	_, err = f.svc.PlaceOrder(context.Background(), f.userID.Hex(), in)
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, 2, f.products.products[p.ID].Stock, "Rejected reuse must not touch stock")
}

func TestOrderService_PlaceOrder_CreateFailureRollsBack(t *testing.T) {
	f := newOrderFixture()
	p := f.products.add("Go book", 10, 3)
	intent, _ := f.payments.CreateIntent(context.Background(), &models.PaymentIntent{
		UserID: f.userID,
		Amount: 20,
		Status: models.PaymentIntentCaptured,
	})
	f.orders.createErr = errDB

	in := orderInput(service.OrderLine{ProductID: p.ID.Hex(), Quantity: 2})
	in.PaymentIntentID = intent.ID.Hex()

	_, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), in)
	assert.ErrorIs(t, err, service.ErrPersistence)
	assert.ErrorIs(t, err, errDB)
	assert.Equal(t, 3, f.products.products[p.ID].Stock)
	assert.Equal(t, models.PaymentIntentCaptured, f.payments.intents[intent.ID].Status, "Intent stays captured for reconciliation")
}

func TestOrderService_PlaceOrder_IntentAmountMismatch(t *testing.T) {
	f := newOrderFixture()
	p := f.products.add("Laptop", 1000, 3)
	intent, _ := f.payments.CreateIntent(context.Background(), &models.PaymentIntent{
		UserID: f.userID,
		Amount: 0.01,
		Status: models.PaymentIntentCaptured,
	})

	in := orderInput(service.OrderLine{ProductID: p.ID.Hex(), Quantity: 1})
	in.PaymentIntentID = intent.ID.Hex()

	_, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Contains(t, service.Message(err, ""), "paid 0.01, order total 1000.00")

	assert.Equal(t, 3, f.products.products[p.ID].Stock, "Stock is restored")
	assert.Empty(t, f.orders.orders)
	stored := f.payments.intents[intent.ID]
	assert.Equal(t, models.PaymentIntentCaptured, stored.Status)
	assert.Nil(t, stored.OrderID)
}

func TestOrderService_PlaceOrder_IntentOfAnotherUser(t *testing.T) {
	f := newOrderFixture()
	p := f.products.add("Go book", 10, 3)
	intent, _ := f.payments.CreateIntent(context.Background(), &models.PaymentIntent{
		UserID: primitive.NewObjectID(),
		Amount: 10,
		Status: models.PaymentIntentCaptured,
	})

	in := orderInput(service.OrderLine{ProductID: p.ID.Hex(), Quantity: 1})
	in.PaymentIntentID = intent.ID.Hex()

	_, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), in)
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, 3, f.products.products[p.ID].Stock)
	assert.Equal(t, models.PaymentIntentCaptured, f.payments.intents[intent.ID].Status)
}

func TestOrderService_GetOrder_Ownership(t *testing.T) {
	f := newOrderFixture()
	p := f.products.add("Go book", 10, 3)
	order, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), orderInput(service.OrderLine{ProductID: p.ID.Hex(), Quantity: 1}))
	require.NoError(t, err)

	got, err := f.svc.GetOrder(context.Background(), f.userID.Hex(), false, order.ID.Hex())
	assert.NoError(t, err, "Owner can view the order")
	assert.Equal(t, order.ID, got.ID)

	_, err = f.svc.GetOrder(context.Background(), primitive.NewObjectID().Hex(), false, order.ID.Hex())
	assert.ErrorIs(t, err, service.ErrForbidden, "Other users cannot view the order")

	_, err = f.svc.GetOrder(context.Background(), primitive.NewObjectID().Hex(), true, order.ID.Hex())
	assert.NoError(t, err, "Admin can view any order")

	_, err = f.svc.GetOrder(context.Background(), f.userID.Hex(), false, "not-an-id")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestOrderService_MyOrders(t *testing.T) {
	f := newOrderFixture()
	p := f.products.add("Go book", 10, 5)
	_, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), orderInput(service.OrderLine{ProductID: p.ID.Hex(), Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.PlaceOrder(context.Background(), primitive.NewObjectID().Hex(), orderInput(service.OrderLine{ProductID: p.ID.Hex(), Quantity: 1}))
	require.NoError(t, err)

	mine, err := f.svc.MyOrders(context.Background(), f.userID.Hex())
	assert.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := f.svc.ListOrders(context.Background())
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.MyOrders(context.Background(), "garbage")
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestOrderService_UpdateStatus_Transitions(t *testing.T) {
	tests := []struct {
		from    models.OrderStatus
		to      models.OrderStatus
		allowed bool
	}{
		{models.OrderPending, models.OrderProcessing, true},
		{models.OrderPending, models.OrderCancelled, true},
		{models.OrderProcessing, models.OrderShipped, true},
		{models.OrderProcessing, models.OrderCancelled, true},
		{models.OrderShipped, models.OrderDelivered, true},
		{models.OrderPending, models.OrderDelivered, false},
		{models.OrderShipped, models.OrderCancelled, false},
		{models.OrderDelivered, models.OrderPending, false},
		{models.OrderCancelled, models.OrderProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			f := newOrderFixture()
			order, _ := f.orders.CreateOrder(context.Background(), &models.Order{UserID: f.userID, Status: tt.from})

			updated, err := f.svc.UpdateStatus(context.Background(), order.ID.Hex(), tt.to)
			if tt.allowed {
				assert.NoError(t, err)
				assert.Equal(t, tt.to, updated.Status)
				return
			}
			assert.ErrorIs(t, err, service.ErrInvalidTransition)
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}
}

func TestOrderService_UpdateStatus_CancelRestocks(t *testing.T) {
	f := newOrderFixture()
	book := f.products.add("Go book", 10, 5)
	mug := f.products.add("Go mug", 5, 2)

	order, err := f.svc.PlaceOrder(context.Background(), f.userID.Hex(), orderInput(
		service.OrderLine{ProductID: book.ID.Hex(), Quantity: 3},
		service.OrderLine{ProductID: mug.ID.Hex(), Quantity: 2},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, f.products.products[book.ID].Stock)
	// товар удалён из каталога после заказа
	delete(f.products.products, mug.ID)

	updated, err := f.svc.UpdateStatus(context.Background(), order.ID.Hex(), models.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, updated.Status)
	assert.Equal(t, 5, f.products.products[book.ID].Stock, "Cancelled items return to stock")
}

func TestOrderService_UpdateStatus_UnknownStatus(t *testing.T) {
	f := newOrderFixture()
	_, err := f.svc.UpdateStatus(context.Background(), primitive.NewObjectID().Hex(), "lost")
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = f.svc.UpdateStatus(context.Background(), primitive.NewObjectID().Hex(), models.OrderShipped)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
