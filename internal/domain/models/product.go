package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category категория товара, фиксированный набор значений
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryBooks       Category = "books"
	CategoryHome        Category = "home"
	CategorySports      Category = "sports"
	CategoryOther       Category = "other"
)

// Categories перечисляет все допустимые категории
var Categories = []Category{
	CategoryElectronics,
	CategoryClothing,
	CategoryBooks,
	CategoryHome,
	CategorySports,
	CategoryOther,
}

// Valid проверяет, что категория входит в допустимый набор
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

const (
	MinRating = 0
	MaxRating = 5
)

var ErrDuplicateReview = errors.New("product already reviewed by user")

// Review отзыв пользователя о товаре
type Review struct {
	UserID    primitive.ObjectID `bson:"user" json:"user"`
	Name      string             `bson:"name" json:"name"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment" json:"comment"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Product документ коллекции products
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Price       float64            `bson:"price" json:"price"`
	Category    Category           `bson:"category" json:"category"`
	Stock       int                `bson:"stock" json:"stock"`
	Images      []string           `bson:"images" json:"images"`
	Rating      float64            `bson:"rating" json:"rating"`
	NumReviews  int                `bson:"numReviews" json:"numReviews"`
	Reviews     []Review           `bson:"reviews" json:"reviews"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// HasReviewFrom сообщает, оставлял ли пользователь отзыв на товар
func (p *Product) HasReviewFrom(userID primitive.ObjectID) bool {
	for _, r := range p.Reviews {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// AddReview добавляет отзыв и пересчитывает рейтинг как среднее всех оценок.
// Один пользователь - один отзыв.
func (p *Product) AddReview(r Review) error {
	if p.HasReviewFrom(r.UserID) {
		return ErrDuplicateReview
	}
	p.Reviews = append(p.Reviews, r)
	p.NumReviews = len(p.Reviews)

	sum := 0
	for _, review := range p.Reviews {
		sum += review.Rating
	}
	p.Rating = float64(sum) / float64(len(p.Reviews))
	return nil
}
