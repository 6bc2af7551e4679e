// Package state состояние клиентского приложения: сессия, корзина, каталог, заказы.
// Store создаётся один раз и передаётся компонентам явно.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/service"
	"github.com/linemk/storefront/internal/storefront/cart"
	"github.com/shopspring/decimal"
)

// Session вошедший пользователь
type Session struct {
	UserID  string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	Token   string `json:"token"`
}

func SessionFromAuth(res *service.AuthResult) *Session {
	return &Session{
		UserID:  res.ID.Hex(),
		Name:    res.Name,
		Email:   res.Email,
		IsAdmin: res.IsAdmin,
		Token:   res.Token,
	}
}

type Store struct {
	mu      sync.RWMutex
	session *Session
	cart    *cart.Cart
	catalog *service.ProductPage
	orders  []*models.Order
	lastErr error
}

func New() *Store {
	return &Store{cart: cart.New()}
}

func (s *Store) Session() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

func (s *Store) SetSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

// Logout сбрасывает сессию, корзину и заказы пользователя
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.orders = nil
	s.cart.Clear()
}

// UpdateCart выполняет fn под блокировкой
func (s *Store) UpdateCart(fn func(c *cart.Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.cart)
}

func (s *Store) CartLines() []cart.Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Lines()
}

func (s *Store) CartTotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Total()
}

func (s *Store) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Clear()
}

func (s *Store) SetCatalog(page *service.ProductPage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = page
}

func (s *Store) Catalog() *service.ProductPage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

func (s *Store) SetOrders(orders []*models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = orders
}

// AddOrder добавляет новый заказ в начало истории
func (s *Store) AddOrder(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append([]*models.Order{order}, s.orders...)
}

func (s *Store) Orders() []*models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// SetError запоминает последнюю ошибку для показа пользователю; nil сбрасывает
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// SaveSession сохраняет сессию в файл между запусками CLI
func (s *Store) SaveSession(path string) error {
	sess, ok := s.Session()
	if !ok {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// LoadSession читает сессию; отсутствие файла не ошибка
func (s *Store) LoadSession(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return fmt.Errorf("unmarshal session: %w", err)
	}
	s.SetSession(&sess)
	return nil
}
