// Package cart корзина покупателя на стороне клиента.
package cart

import (
	"errors"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrOutOfStock   = errors.New("product is out of stock")
	ErrItemNotFound = errors.New("product is not in cart")
)

// Line позиция корзины: снимок товара и количество в пределах [1, Product.Stock]
type Line struct {
	Product  models.Product
	Quantity int
}

// Subtotal стоимость позиции по цене снимка
func (l Line) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(l.Product.Price).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart упорядоченный список позиций, порядок добавления сохраняется.
// Не потокобезопасна, доступ через state.Store.
type Cart struct {
	lines []Line
}

func New() *Cart {
	return &Cart{}
}

// Add добавляет товар. Повторное добавление увеличивает количество той же позиции.
// Итоговое количество ограничивается остатком.
func (c *Cart) Add(product models.Product, quantity int) error {
	if product.Stock < 1 {
		return ErrOutOfStock
	}
	if i := c.index(product.ID); i >= 0 {
		c.lines[i].Product = product
		c.lines[i].Quantity = clamp(c.lines[i].Quantity+quantity, product.Stock)
		return nil
	}
	c.lines = append(c.lines, Line{Product: product, Quantity: clamp(quantity, product.Stock)})
	return nil
}

// Increment увеличивает количество на единицу; на границе остатка ничего не делает
func (c *Cart) Increment(productID primitive.ObjectID) error {
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if c.lines[i].Quantity < c.lines[i].Product.Stock {
		c.lines[i].Quantity++
	}
	return nil
}

// Decrement уменьшает количество на единицу, но не ниже 1. Удалять позицию - Remove.
func (c *Cart) Decrement(productID primitive.ObjectID) error {
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if c.lines[i].Quantity > 1 {
		c.lines[i].Quantity--
	}
	return nil
}

func (c *Cart) SetQuantity(productID primitive.ObjectID, quantity int) error {
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.lines[i].Quantity = clamp(quantity, c.lines[i].Product.Stock)
	return nil
}

func (c *Cart) Remove(productID primitive.ObjectID) error {
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Total сумма корзины, округлённая до центов
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total.Round(2)
}

// Count общее количество единиц товара
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

// Lines копия позиций
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) index(productID primitive.ObjectID) int {
	for i, l := range c.lines {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}

func clamp(quantity, stock int) int {
	if quantity < 1 {
		return 1
	}
	if quantity > stock {
		return stock
	}
	return quantity
}
