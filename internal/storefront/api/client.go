// Package api типизированный клиент REST API магазина.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/service"
)

const defaultTimeout = 30 * time.Second

// Error ответ сервера со статусом >= 400
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap сопоставляет статус с видом ошибки бизнес-слоя
func (e *Error) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return service.ErrNotFound
	case e.StatusCode == http.StatusBadRequest:
		return service.ErrValidation
	case e.StatusCode == http.StatusUnauthorized:
		return service.ErrUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return service.ErrForbidden
	case e.StatusCode == http.StatusConflict:
		return service.ErrConflict
	default:
		return service.ErrUpstream
	}
}

// Client клиент API. Токен, если задан, передаётся в каждом запросе.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithToken(token string) Option {
	return func(cl *Client) {
		cl.token = token
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken меняет токен после входа
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) Token() string {
	return c.token
}

// OrderItem позиция заказа в теле запроса
type OrderItem struct {
	ProductID string `json:"_id"`
	Quantity  int    `json:"quantity"`
}

// OrderRequest тело POST /api/orders
type OrderRequest struct {
	Items           []OrderItem            `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentDetails  models.PaymentDetails  `json:"paymentDetails"`
	TotalAmount     *float64               `json:"totalAmount,omitempty"`
	PaymentIntentID string                 `json:"paymentIntentId,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*service.AuthResult, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	var res service.AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var res service.AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListProducts страница каталога; пустой keyword означает все товары
func (c *Client) ListProducts(ctx context.Context, keyword string, page int) (*service.ProductPage, error) {
	q := url.Values{}
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	path := "/api/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var res service.ProductPage
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var res models.Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) AddReview(ctx context.Context, productID string, rating int, comment string) error {
	body := map[string]any{"rating": rating, "comment": comment}
	return c.do(ctx, http.MethodPost, "/api/products/"+url.PathEscape(productID)+"/reviews", body, &messageResponse{})
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*models.Order, error) {
	var res models.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) MyOrders(ctx context.Context) ([]*models.Order, error) {
	var res []*models.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/myorders", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var res models.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, amount float64) (*models.PaymentIntent, error) {
	body := map[string]float64{"amount": amount}
	var res models.PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/api/orders/create-payment-intent", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdatePaymentIntent(ctx context.Context, id string, status models.PaymentIntentStatus, externalID string) (*models.PaymentIntent, error) {
	body := map[string]string{"status": string(status), "externalId": externalID}
	var res models.PaymentIntent
	if err := c.do(ctx, http.MethodPut, "/api/orders/payment-intents/"+url.PathEscape(id), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w: %w", service.ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w: %w", service.ErrUpstream, err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w: %w", service.ErrUpstream, err)
	}
	return nil
}

// decodeError берёт message из тела ответа, иначе сам текст тела
func decodeError(status int, data []byte) error {
	var msg messageResponse
	if err := json.Unmarshal(data, &msg); err == nil && msg.Message != "" {
		return &Error{StatusCode: status, Message: msg.Message}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		text = http.StatusText(status)
	}
	return &Error{StatusCode: status, Message: text}
}

// IsStatus сообщает, что err ответ сервера с данным статусом
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
