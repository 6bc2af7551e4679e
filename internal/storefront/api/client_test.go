package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/service"
	"github.com/linemk/storefront/internal/storefront/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_LoginSetsNoTokenAutomatically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ann@example.com", body["email"])

		_ = json.NewEncoder(w).Encode(map[string]any{"name": "Ann", "email": "ann@example.com", "token": "tok"})
	}))
	defer srv.Close()

	c := api.NewClient(srv.URL)
	res, err := c.Login(context.Background(), "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Empty(t, c.Token())
}

func TestClient_BearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/orders/myorders", r.URL.Path)
		_, _ = w.Write([]byte(`[{"status":"pending","totalAmount":12.5}]`))
	}))
	defer srv.Close()

	c := api.NewClient(srv.URL+"/", api.WithToken("tok"))
	orders, err := c.MyOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderPending, orders[0].Status)
	assert.Equal(t, 12.5, orders[0].TotalAmount)
}

func TestClient_ListProductsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "phone case", r.URL.Query().Get("keyword"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"products":[{"name":"Case","stock":3}],"page":2,"pages":4}`))
	}))
	defer srv.Close()

	page, err := api.NewClient(srv.URL).ListProducts(context.Background(), "phone case", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 4, page.Pages)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Case", page.Products[0].Name)
}

func TestClient_CreateOrderBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		items := body["items"].([]any)
		require.Len(t, items, 1)
		item := items[0].(map[string]any)
		assert.Equal(t, "p1", item["_id"])
		assert.Equal(t, 2.0, item["quantity"])
		assert.Equal(t, "intent-1", body["paymentIntentId"])
		assert.Equal(t, "Springfield", body["shippingAddress"].(map[string]any)["city"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"processing","totalAmount":40}`))
	}))
	defer srv.Close()

	total := 40.0
	order, err := api.NewClient(srv.URL, api.WithToken("tok")).CreateOrder(context.Background(), api.OrderRequest{
		Items:           []api.OrderItem{{ProductID: "p1", Quantity: 2}},
		ShippingAddress: models.ShippingAddress{City: "Springfield"},
		PaymentDetails:  models.PaymentDetails{ID: "PAY-1", Status: "COMPLETED", PaymentMethod: "PayPal"},
		TotalAmount:     &total,
		PaymentIntentID: "intent-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, order.Status)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"message":"Product not found"}`, wantMsg: "Product not found", wantErr: service.ErrNotFound},
		{name: "validation", status: http.StatusBadRequest, body: `{"message":"Insufficient stock for Mug"}`, wantMsg: "Insufficient stock for Mug", wantErr: service.ErrValidation},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"invalid token"}`, wantMsg: "invalid token", wantErr: service.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, body: `{"message":"not authorized as an admin"}`, wantMsg: "not authorized as an admin", wantErr: service.ErrForbidden},
		{name: "conflict", status: http.StatusConflict, body: `{"message":"retry"}`, wantMsg: "retry", wantErr: service.ErrConflict},
		{name: "server error plain body", status: http.StatusBadGateway, body: "bad gateway\n", wantMsg: "bad gateway", wantErr: service.ErrUpstream},
		{name: "empty body", status: http.StatusInternalServerError, body: "", wantMsg: "Internal Server Error", wantErr: service.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := api.NewClient(srv.URL).GetProduct(context.Background(), "abc")
			require.Error(t, err)

			var apiErr *api.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, api.IsStatus(err, tt.status))
		})
	}
}

func TestClient_TransportErrorIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := api.NewClient(url).GetOrder(context.Background(), "o1")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrUpstream)
}

func TestClient_UpdatePaymentIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/orders/payment-intents/i1", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "captured", body["status"])
		assert.Equal(t, "PAY-9", body["externalId"])
		_, _ = w.Write([]byte(`{"status":"captured","externalId":"PAY-9"}`))
	}))
	defer srv.Close()

	intent, err := api.NewClient(srv.URL).UpdatePaymentIntent(context.Background(), "i1", models.PaymentIntentCaptured, "PAY-9")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentIntentCaptured, intent.Status)
}
