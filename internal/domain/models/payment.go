package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentIntentStatus состояние записи об ожидаемом платеже
type PaymentIntentStatus string

const (
	PaymentIntentPending    PaymentIntentStatus = "pending"
	PaymentIntentCaptured   PaymentIntentStatus = "captured"
	PaymentIntentFailed     PaymentIntentStatus = "failed"
	PaymentIntentCancelled  PaymentIntentStatus = "cancelled"
	PaymentIntentReconciled PaymentIntentStatus = "reconciled"
)

// Valid проверяет, что статус известен
func (s PaymentIntentStatus) Valid() bool {
	switch s {
	case PaymentIntentPending, PaymentIntentCaptured, PaymentIntentFailed,
		PaymentIntentCancelled, PaymentIntentReconciled:
		return true
	}
	return false
}

// PaymentIntent создаётся до обращения к платёжному провайдеру. Если платёж
// списан, а заказ создать не удалось, запись остаётся в статусе captured и
// попадает в сверку.
type PaymentIntent struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	UserID     primitive.ObjectID  `bson:"user" json:"user"`
	Amount     float64             `bson:"amount" json:"amount"`
	Currency   string              `bson:"currency" json:"currency"`
	Reference  string              `bson:"reference" json:"reference"`
	Status     PaymentIntentStatus `bson:"status" json:"status"`
	ExternalID string              `bson:"externalId,omitempty" json:"externalId,omitempty"`
	OrderID    *primitive.ObjectID `bson:"order,omitempty" json:"order,omitempty"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}
