package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/linemk/storefront/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrder вставляет новый заказ; внутри транзакции ctx должен быть контекстом сессии.
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	GetOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	// GetOrdersByUserID возвращает заказы пользователя, новые первыми.
	GetOrdersByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Order, error)
	ListOrders(ctx context.Context) ([]*models.Order, error)
	// UpdateStatus меняет статус, только если текущий равен from.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus) (*models.Order, error)
}

// orderRepository конкретная реализация OrderStorage.
type orderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *mongo.Database) OrderStorage {
	return &orderRepository{coll: db.Collection(OrdersCollection)}
}

// CreateOrder вставляет новый заказ в коллекцию orders.
func (r *orderRepository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	ts := now()
	// идентификатор может быть выдан заранее, чтобы сослаться на заказ в той же транзакции
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	order.CreatedAt = ts
	order.UpdatedAt = ts

	if _, err := r.coll.InsertOne(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	order := &models.Order{}
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(order); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Order, error) {
	return r.find(ctx, bson.M{"user": userID})
}

func (r *orderRepository) ListOrders(ctx context.Context) ([]*models.Order, error) {
	return r.find(ctx, bson.M{})
}

func (r *orderRepository) find(ctx context.Context, filter bson.M) ([]*models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer cur.Close(ctx)

	orders := []*models.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus) (*models.Order, error) {
	filter := bson.M{"_id": id, "status": from}
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	order := &models.Order{}
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(order); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	return order, nil
}
