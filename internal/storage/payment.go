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

// PaymentStorage описывает методы для работы с записями об ожидаемых платежах.
type PaymentStorage interface {
	CreateIntent(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error)
	GetIntentByID(ctx context.Context, id primitive.ObjectID) (*models.PaymentIntent, error)
	// TransitionIntent переводит запись пользователя userID из любого статуса from в to.
	// externalID пишется, если не пустой. Если запись не найдена или её статус не из from,
	// возвращается ErrPaymentIntentNotFound.
	TransitionIntent(ctx context.Context, id, userID primitive.ObjectID, from []models.PaymentIntentStatus, to models.PaymentIntentStatus, externalID string) (*models.PaymentIntent, error)
	// Reconcile связывает запись с созданным заказом; вызывается в транзакции создания заказа.
	Reconcile(ctx context.Context, id, userID, orderID primitive.ObjectID) error
	ListIntents(ctx context.Context, status models.PaymentIntentStatus) ([]*models.PaymentIntent, error)
}

type paymentRepository struct {
	coll *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) PaymentStorage {
	return &paymentRepository{coll: db.Collection(PaymentsCollection)}
}

func (r *paymentRepository) CreateIntent(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error) {
	ts := now()
	intent.ID = primitive.NewObjectID()
	intent.CreatedAt = ts
	intent.UpdatedAt = ts

	if _, err := r.coll.InsertOne(ctx, intent); err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return intent, nil
}

func (r *paymentRepository) GetIntentByID(ctx context.Context, id primitive.ObjectID) (*models.PaymentIntent, error) {
	intent := &models.PaymentIntent{}
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(intent); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPaymentIntentNotFound
		}
		return nil, err
	}
	return intent, nil
}

func (r *paymentRepository) TransitionIntent(ctx context.Context, id, userID primitive.ObjectID, from []models.PaymentIntentStatus, to models.PaymentIntentStatus, externalID string) (*models.PaymentIntent, error) {
	filter := bson.M{"_id": id, "user": userID, "status": bson.M{"$in": from}}
	set := bson.M{"status": to, "updatedAt": now()}
	if externalID != "" {
		set["externalId"] = externalID
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	intent := &models.PaymentIntent{}
	if err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(intent); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPaymentIntentNotFound
		}
		return nil, fmt.Errorf("failed to update payment intent: %w", err)
	}
	return intent, nil
}

func (r *paymentRepository) Reconcile(ctx context.Context, id, userID, orderID primitive.ObjectID) error {
	filter := bson.M{
		"_id":    id,
		"user":   userID,
		"status": bson.M{"$in": []models.PaymentIntentStatus{models.PaymentIntentPending, models.PaymentIntentCaptured}},
	}
	update := bson.M{"$set": bson.M{
		"status":    models.PaymentIntentReconciled,
		"order":     orderID,
		"updatedAt": now(),
	}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to reconcile payment intent: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrPaymentIntentNotFound
	}
	return nil
}

func (r *paymentRepository) ListIntents(ctx context.Context, status models.PaymentIntentStatus) ([]*models.PaymentIntent, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment intents: %w", err)
	}
	defer cur.Close(ctx)

	intents := []*models.PaymentIntent{}
	if err := cur.All(ctx, &intents); err != nil {
		return nil, fmt.Errorf("failed to decode payment intents: %w", err)
	}
	return intents, nil
}
