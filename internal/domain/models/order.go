package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus статус жизненного цикла заказа
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// допустимые переходы: pending -> processing -> shipped -> delivered, отмена до отгрузки
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
}

// Valid проверяет, что статус известен
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// CanTransitionTo сообщает, разрешён ли переход в статус next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethodPayPal единственный поддерживаемый способ оплаты
const PaymentMethodPayPal = "PayPal"

// PaymentStatusCompleted статус, который провайдер возвращает после списания средств
const PaymentStatusCompleted = "COMPLETED"

// OrderItem позиция заказа. Имя и цена копируются из товара в момент создания
// заказа и дальше не меняются.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product" json:"product"`
	Name      string             `bson:"name" json:"name"`
	Price     float64            `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// ShippingAddress адрес доставки, все семь полей обязательны
type ShippingAddress struct {
	FirstName string `bson:"firstName" json:"firstName"`
	LastName  string `bson:"lastName" json:"lastName"`
	Address   string `bson:"address" json:"address"`
	City      string `bson:"city" json:"city"`
	State     string `bson:"state" json:"state"`
	ZipCode   string `bson:"zipCode" json:"zipCode"`
	Phone     string `bson:"phone" json:"phone"`
}

// MissingFields возвращает json-имена незаполненных (пустых или из пробелов) полей
func (a ShippingAddress) MissingFields() []string {
	fields := []struct {
		name  string
		value string
	}{
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"address", a.Address},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", a.ZipCode},
		{"phone", a.Phone},
	}

	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// PaymentDetails результат оплаты у внешнего провайдера
type PaymentDetails struct {
	ID            string `bson:"id" json:"id"`
	Status        string `bson:"status" json:"status"`
	PaymentMethod string `bson:"paymentMethod" json:"paymentMethod"`
}

// Order документ коллекции orders
type Order struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	UserID          primitive.ObjectID  `bson:"user" json:"user"`
	Items           []OrderItem         `bson:"items" json:"items"`
	ShippingAddress ShippingAddress     `bson:"shippingAddress" json:"shippingAddress"`
	PaymentDetails  PaymentDetails      `bson:"paymentDetails" json:"paymentDetails"`
	PaymentIntentID *primitive.ObjectID `bson:"paymentIntent,omitempty" json:"paymentIntent,omitempty"`
	TotalAmount     float64             `bson:"totalAmount" json:"totalAmount"`
	Status          OrderStatus         `bson:"status" json:"status"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}
