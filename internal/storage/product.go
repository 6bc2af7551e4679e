package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/linemk/storefront/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProductUpdate частичное обновление товара: nil-поля не меняются
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *float64
	Category    *models.Category
	Stock       *int
	Images      []string
}

// ProductStorage описывает методы для работы с коллекцией товаров.
type ProductStorage interface {
	// List возвращает страницу товаров, имя которых содержит keyword (без учёта регистра), и общее число найденных.
	List(ctx context.Context, keyword string, page, pageSize int) ([]*models.Product, int64, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	Update(ctx context.Context, id primitive.ObjectID, upd ProductUpdate) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// DecrementStock списывает quantity единиц, только если на складе их не меньше.
	DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) error
	IncrementStock(ctx context.Context, id primitive.ObjectID, quantity int) error
	// AddReview сохраняет отзыв и новый рейтинг. expectedReviews - число отзывов,
	// от которого считался рейтинг; если оно изменилось, возвращается ErrReviewConflict.
	AddReview(ctx context.Context, id primitive.ObjectID, review models.Review, rating float64, expectedReviews int) error
}

// productRepository конкретная реализация ProductStorage.
type productRepository struct {
	coll *mongo.Collection
}

// NewProductRepository создаёт новый репозиторий товаров.
func NewProductRepository(db *mongo.Database) ProductStorage {
	return &productRepository{coll: db.Collection(ProductsCollection)}
}

func keywordFilter(keyword string) bson.M {
	if keyword == "" {
		return bson.M{}
	}
	return bson.M{"name": bson.M{"$regex": regexp.QuoteMeta(keyword), "$options": "i"}}
}

func (r *productRepository) List(ctx context.Context, keyword string, page, pageSize int) ([]*models.Product, int64, error) {
	filter := keywordFilter(keyword)

	count, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	opts := options.Find().
		SetSkip(int64(pageSize * (page - 1))).
		SetLimit(int64(pageSize)).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query products: %w", err)
	}
	defer cur.Close(ctx)

	products := []*models.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, 0, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, count, nil
}

func (r *productRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	product := &models.Product{}
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(product); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	ts := now()
	product.ID = primitive.NewObjectID()
	product.CreatedAt = ts
	product.UpdatedAt = ts
	// пустые массивы, а не null: на них завязаны фильтры по отзывам
	if product.Reviews == nil {
		product.Reviews = []models.Review{}
	}
	if product.Images == nil {
		product.Images = []string{}
	}

	if _, err := r.coll.InsertOne(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

func (r *productRepository) Update(ctx context.Context, id primitive.ObjectID, upd ProductUpdate) (*models.Product, error) {
	set := bson.M{"updatedAt": now()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Price != nil {
		set["price"] = *upd.Price
	}
	if upd.Category != nil {
		set["category"] = *upd.Category
	}
	if upd.Stock != nil {
		set["stock"] = *upd.Stock
	}
	if upd.Images != nil {
		set["images"] = upd.Images
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	product := &models.Product{}
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

func (r *productRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) error {
	filter := bson.M{"_id": id, "stock": bson.M{"$gte": quantity}}
	update := bson.M{
		"$inc": bson.M{"stock": -quantity},
		"$set": bson.M{"updatedAt": now()},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *productRepository) IncrementStock(ctx context.Context, id primitive.ObjectID, quantity int) error {
	update := bson.M{
		"$inc": bson.M{"stock": quantity},
		"$set": bson.M{"updatedAt": now()},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) AddReview(ctx context.Context, id primitive.ObjectID, review models.Review, rating float64, expectedReviews int) error {
	filter := reviewFilter(id, review.UserID, expectedReviews)
	update := bson.M{
		"$push": bson.M{"reviews": review},
		"$set": bson.M{
			"rating":     rating,
			"numReviews": expectedReviews + 1,
			"updatedAt":  now(),
		},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to add review: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrReviewConflict
	}
	return nil
}

// reviewFilter совпадает, только если пользователь ещё не оставлял отзыв и число
// отзывов не изменилось. Товар без поля reviews считается товаром без отзывов.
func reviewFilter(id, userID primitive.ObjectID, expectedReviews int) bson.M {
	filter := bson.M{
		"_id":          id,
		"reviews.user": bson.M{"$ne": userID},
	}
	if expectedReviews == 0 {
		filter["$or"] = bson.A{
			bson.M{"reviews": bson.M{"$size": 0}},
			bson.M{"reviews": bson.M{"$exists": false}},
		}
		return filter
	}
	filter["reviews"] = bson.M{"$size": expectedReviews}
	return filter
}
