package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/metrics"
	"github.com/linemk/storefront/internal/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultPageSize размер страницы каталога, если в конфиге не задан
const DefaultPageSize = 10

// ProductPage страница каталога
type ProductPage struct {
	Products []*models.Product `json:"products"`
	Page     int               `json:"page"`
	Pages    int               `json:"pages"`
}

// ProductInput данные для создания товара
type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Category    models.Category
	Stock       int
	Images      []string
}

type ProductService interface {
	List(ctx context.Context, keyword string, page int) (*ProductPage, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, in ProductInput) (*models.Product, error)
	Update(ctx context.Context, id string, upd storage.ProductUpdate) (*models.Product, error)
	Delete(ctx context.Context, id string) error
	AddReview(ctx context.Context, userID, productID string, rating int, comment string) error
}

type productService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
	userRepo    storage.UserStorage
	metrics     *metrics.Metrics
	pageSize    int
}

func NewProductService(log *slog.Logger, productRepo storage.ProductStorage, userRepo storage.UserStorage, m *metrics.Metrics, pageSize int) ProductService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &productService{
		log:         log,
		productRepo: productRepo,
		userRepo:    userRepo,
		metrics:     m,
		pageSize:    pageSize,
	}
}

// List возвращает страницу товаров. Номера страниц меньше 1 считаются первой.
func (s *productService) List(ctx context.Context, keyword string, page int) (*ProductPage, error) {
	const op = "service.ProductService.List"
	if page < 1 {
		page = 1
	}
	keyword = strings.TrimSpace(keyword)
	logger := s.log.With(slog.String("op", op), slog.String("keyword", keyword), slog.Int("page", page))

	products, count, err := s.productRepo.List(ctx, keyword, page, s.pageSize)
	if err != nil {
		logger.Error("failed to list products", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list products: %w: %w", op, ErrPersistence, err)
	}

	pages := int((count + int64(s.pageSize) - 1) / int64(s.pageSize))
	logger.Debug("products listed", slog.Int64("count", count), slog.Int("pages", pages))
	return &ProductPage{Products: products, Page: page, Pages: pages}, nil
}

func (s *productService) Get(ctx context.Context, id string) (*models.Product, error) {
	const op = "service.ProductService.Get"
	logger := s.log.With(slog.String("op", op), slog.String("productID", id))

	oid, err := parseID(id, "Product not found")
	if err != nil {
		return nil, err
	}
	product, err := s.productRepo.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, newError(ErrNotFound, "Product not found")
		}
		logger.Error("failed to get product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get product: %w: %w", op, ErrPersistence, err)
	}
	return product, nil
}

func (s *productService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	const op = "service.ProductService.Create"
	logger := s.log.With(slog.String("op", op), slog.String("name", in.Name))

	upd := storage.ProductUpdate{
		Name:     &in.Name,
		Price:    &in.Price,
		Category: &in.Category,
		Stock:    &in.Stock,
	}
	if err := validateProduct(upd); err != nil {
		logger.Warn("invalid product", slog.Any("error", err))
		return nil, err
	}

	product, err := s.productRepo.Create(ctx, &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Stock:       in.Stock,
		Images:      in.Images,
	})
	if err != nil {
		logger.Error("failed to create product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create product: %w: %w", op, ErrPersistence, err)
	}

	logger.Info("product created", slog.String("productID", product.ID.Hex()))
	return product, nil
}

// Update меняет только переданные поля; нулевые цена и остаток допустимы.
func (s *productService) Update(ctx context.Context, id string, upd storage.ProductUpdate) (*models.Product, error) {
	const op = "service.ProductService.Update"
	logger := s.log.With(slog.String("op", op), slog.String("productID", id))

	oid, err := parseID(id, "Product not found")
	if err != nil {
		return nil, err
	}
	if err := validateProduct(upd); err != nil {
		logger.Warn("invalid product update", slog.Any("error", err))
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		upd.Name = &name
	}

	product, err := s.productRepo.Update(ctx, oid, upd)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, newError(ErrNotFound, "Product not found")
		}
		logger.Error("failed to update product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update product: %w: %w", op, ErrPersistence, err)
	}

	logger.Info("product updated")
	return product, nil
}

func (s *productService) Delete(ctx context.Context, id string) error {
	const op = "service.ProductService.Delete"
	logger := s.log.With(slog.String("op", op), slog.String("productID", id))

	oid, err := parseID(id, "Product not found")
	if err != nil {
		return err
	}
	if err := s.productRepo.Delete(ctx, oid); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return newError(ErrNotFound, "Product not found")
		}
		logger.Error("failed to delete product", slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete product: %w: %w", op, ErrPersistence, err)
	}

	logger.Info("product deleted")
	return nil
}

// AddReview сохраняет отзыв пользователя и пересчитывает рейтинг товара.
// Если отзывы товара изменились между чтением и записью, возвращается ErrConflict.
func (s *productService) AddReview(ctx context.Context, userID, productID string, rating int, comment string) error {
	const op = "service.ProductService.AddReview"
	logger := s.log.With(
		slog.String("op", op),
		slog.String("userID", userID),
		slog.String("productID", productID),
	)

	if rating < models.MinRating || rating > models.MaxRating {
		return newError(ErrValidation, "Rating must be between %d and %d", models.MinRating, models.MaxRating)
	}
	if strings.TrimSpace(comment) == "" {
		return newError(ErrValidation, "Comment is required")
	}

	uid, err := parseUserID(userID)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetUserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return newError(ErrUnauthorized, "User not found")
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get user: %w: %w", op, ErrPersistence, err)
	}

	product, err := s.Get(ctx, productID)
	if err != nil {
		return err
	}

	expected := len(product.Reviews)
	review := models.Review{
		UserID:    user.ID,
		Name:      user.Name,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: time.Now().UTC(),
	}
	if err := product.AddReview(review); err != nil {
		logger.Warn("duplicate review")
		return &Error{Kind: ErrAlreadyReviewed, Msg: "Product already reviewed"}
	}

	if err := s.productRepo.AddReview(ctx, product.ID, review, product.Rating, expected); err != nil {
		if errors.Is(err, storage.ErrReviewConflict) {
			// тот же пользователь мог успеть оставить отзыв параллельно
			if current, gerr := s.productRepo.GetByID(ctx, product.ID); gerr == nil && current.HasReviewFrom(user.ID) {
				logger.Warn("duplicate review written concurrently")
				return &Error{Kind: ErrAlreadyReviewed, Msg: "Product already reviewed"}
			}
			logger.Warn("reviews changed concurrently")
			return newError(ErrConflict, "Product reviews changed, please retry")
		}
		logger.Error("failed to store review", slog.Any("error", err))
		return fmt.Errorf("%s: failed to store review: %w: %w", op, ErrPersistence, err)
	}

	s.metrics.ReviewCreated()
	logger.Info("review added", slog.Float64("rating", product.Rating))
	return nil
}

func validateProduct(upd storage.ProductUpdate) error {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return newError(ErrValidation, "Product name is required")
	}
	if upd.Price != nil && *upd.Price < 0 {
		return newError(ErrValidation, "Price must not be negative")
	}
	if upd.Stock != nil && *upd.Stock < 0 {
		return newError(ErrValidation, "Stock must not be negative")
	}
	if upd.Category != nil && !upd.Category.Valid() {
		return newError(ErrValidation, "Unknown category %q", *upd.Category)
	}
	return nil
}

// parseID разбирает hex ObjectID; некорректный идентификатор не может ссылаться
// на существующий документ, поэтому это NotFound.
func parseID(id, notFoundMsg string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, newError(ErrNotFound, "%s", notFoundMsg)
	}
	return oid, nil
}
