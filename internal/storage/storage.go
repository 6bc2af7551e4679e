package storage

import (
	"errors"
	"time"
)

// имена коллекций MongoDB
const (
	ProductsCollection = "products"
	OrdersCollection   = "orders"
	UsersCollection    = "users"
	PaymentsCollection = "payments"
)

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrUserExists            = errors.New("user already exists")
	ErrPaymentIntentNotFound = errors.New("payment intent not found")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrReviewConflict        = errors.New("product reviews changed concurrently")
	ErrStatusConflict        = errors.New("status changed concurrently")
)

func now() time.Time {
	return time.Now().UTC()
}
