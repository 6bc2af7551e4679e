package service_test

import (
	"context"
	"errors"
	"time"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeProductRepo struct {
	products map[primitive.ObjectID]*models.Product
	// reviewConflict эмулирует параллельный отзыв между чтением и записью
	reviewConflict bool
	// beforeReview вызывается перед записью отзыва, эмулирует параллельного писателя
	beforeReview   func(p *models.Product)
	listErr        error
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[primitive.ObjectID]*models.Product)}
}

func (f *fakeProductRepo) add(name string, price float64, stock int) *models.Product {
	p := &models.Product{
		ID:       primitive.NewObjectID(),
		Name:     name,
		Price:    price,
		Category: models.CategoryOther,
		Stock:    stock,
		Reviews:  []models.Review{},
	}
	f.products[p.ID] = p
	return p
}

func (f *fakeProductRepo) List(ctx context.Context, keyword string, page, pageSize int) ([]*models.Product, int64, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	all := []*models.Product{}
	for _, p := range f.products {
		all = append(all, p)
	}
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (f *fakeProductRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	cp := *p
	cp.Reviews = append([]models.Review{}, p.Reviews...)
	return &cp, nil
}

func (f *fakeProductRepo) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	product.ID = primitive.NewObjectID()
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeProductRepo) Update(ctx context.Context, id primitive.ObjectID, upd storage.ProductUpdate) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.Stock != nil {
		p.Stock = *upd.Stock
	}
	if upd.Images != nil {
		p.Images = upd.Images
	}
	return p, nil
}

func (f *fakeProductRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, ok := f.products[id]; !ok {
		return storage.ErrProductNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProductRepo) DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) error {
	p, ok := f.products[id]
	if !ok || p.Stock < quantity {
		return storage.ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

func (f *fakeProductRepo) IncrementStock(ctx context.Context, id primitive.ObjectID, quantity int) error {
	p, ok := f.products[id]
	if !ok {
		return storage.ErrProductNotFound
	}
	p.Stock += quantity
	return nil
}

func (f *fakeProductRepo) AddReview(ctx context.Context, id primitive.ObjectID, review models.Review, rating float64, expectedReviews int) error {
	p, ok := f.products[id]
	if ok && f.beforeReview != nil {
		f.beforeReview(p)
	}
	if !ok || f.reviewConflict || len(p.Reviews) != expectedReviews || p.HasReviewFrom(review.UserID) {
		return storage.ErrReviewConflict
	}
	p.Reviews = append(p.Reviews, review)
	p.NumReviews = expectedReviews + 1
	p.Rating = rating
	return nil
}

func (f *fakeProductRepo) snapshot() map[primitive.ObjectID]models.Product {
	snap := make(map[primitive.ObjectID]models.Product, len(f.products))
	for id, p := range f.products {
		snap[id] = *p
	}
	return snap
}

func (f *fakeProductRepo) restore(snap map[primitive.ObjectID]models.Product) {
	f.products = make(map[primitive.ObjectID]*models.Product, len(snap))
	for id, p := range snap {
		p := p
		f.products[id] = &p
	}
}

type fakeOrderRepo struct {
	orders    []*models.Order
	createErr error
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{}
}

func (f *fakeOrderRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	order.CreatedAt = time.Now()
	f.orders = append(f.orders, order)
	return order, nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	for _, o := range f.orders {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, storage.ErrOrderNotFound
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Order, error) {
	res := []*models.Order{}
	for _, o := range f.orders {
		if o.UserID == userID {
			res = append(res, o)
		}
	}
	return res, nil
}

func (f *fakeOrderRepo) ListOrders(ctx context.Context) ([]*models.Order, error) {
	return f.orders, nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus) (*models.Order, error) {
	for _, o := range f.orders {
		if o.ID == id {
			if o.Status != from {
				return nil, storage.ErrStatusConflict
			}
			o.Status = to
			cp := *o
			return &cp, nil
		}
	}
	return nil, storage.ErrStatusConflict
}

type fakePaymentRepo struct {
	intents map[primitive.ObjectID]*models.PaymentIntent
}

var _ storage.PaymentStorage = (*fakePaymentRepo)(nil)

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{intents: make(map[primitive.ObjectID]*models.PaymentIntent)}
}

func (f *fakePaymentRepo) CreateIntent(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error) {
	intent.ID = primitive.NewObjectID()
	f.intents[intent.ID] = intent
	return intent, nil
}

func (f *fakePaymentRepo) GetIntentByID(ctx context.Context, id primitive.ObjectID) (*models.PaymentIntent, error) {
	intent, ok := f.intents[id]
	if !ok {
		return nil, storage.ErrPaymentIntentNotFound
	}
	return intent, nil
}

func (f *fakePaymentRepo) TransitionIntent(ctx context.Context, id, userID primitive.ObjectID, from []models.PaymentIntentStatus, to models.PaymentIntentStatus, externalID string) (*models.PaymentIntent, error) {
	intent, ok := f.intents[id]
	if !ok || intent.UserID != userID {
		return nil, storage.ErrPaymentIntentNotFound
	}
	for _, st := range from {
		if intent.Status == st {
			intent.Status = to
			if externalID != "" {
				intent.ExternalID = externalID
			}
			return intent, nil
		}
	}
	return nil, storage.ErrPaymentIntentNotFound
}

func (f *fakePaymentRepo) Reconcile(ctx context.Context, id, userID, orderID primitive.ObjectID) error {
	intent, ok := f.intents[id]
	if !ok || intent.UserID != userID {
		return storage.ErrPaymentIntentNotFound
	}
	if intent.Status != models.PaymentIntentPending && intent.Status != models.PaymentIntentCaptured {
		return storage.ErrPaymentIntentNotFound
	}
	intent.Status = models.PaymentIntentReconciled
	intent.OrderID = &orderID
	return nil
}

func (f *fakePaymentRepo) ListIntents(ctx context.Context, status models.PaymentIntentStatus) ([]*models.PaymentIntent, error) {
	res := []*models.PaymentIntent{}
	for _, intent := range f.intents {
		if status == "" || intent.Status == status {
			res = append(res, intent)
		}
	}
	return res, nil
}

func (f *fakePaymentRepo) snapshot() map[primitive.ObjectID]models.PaymentIntent {
	snap := make(map[primitive.ObjectID]models.PaymentIntent, len(f.intents))
	for id, intent := range f.intents {
		snap[id] = *intent
	}
	return snap
}

func (f *fakePaymentRepo) restore(snap map[primitive.ObjectID]models.PaymentIntent) {
	f.intents = make(map[primitive.ObjectID]*models.PaymentIntent, len(snap))
	for id, intent := range snap {
		intent := intent
		f.intents[id] = &intent
	}
}

// fakeTx откатывает состояние фейковых репозиториев, если fn вернула ошибку.
type fakeTx struct {
	products *fakeProductRepo
	orders   *fakeOrderRepo
	payments *fakePaymentRepo

	commits   int
	rollbacks int
}

var _ storage.TxManager = (*fakeTx)(nil)

func (f *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	products := f.products.snapshot()
	orders := append([]*models.Order{}, f.orders.orders...)
	payments := f.payments.snapshot()

	if err := fn(ctx); err != nil {
		f.products.restore(products)
		f.orders.orders = orders
		f.payments.restore(payments)
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

var errDB = errors.New("connection reset")
