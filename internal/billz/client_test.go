package billz

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAuth struct {
	err error
}

func (a *staticAuth) AuthHeaders(ctx context.Context) (http.Header, error) {
	if a.err != nil {
		return nil, a.err
	}
	headers := http.Header{}
	headers.Set("Authorization", "Bearer test-token")
	return headers, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(&Config{
		BaseURL: server.URL,
		ShopID:  "shop-1",
	}, &staticAuth{}, testLogger())

	return client, server
}

func TestClient_CreateClient(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/client", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(Customer{
			ID:          "cust-1",
			FirstName:   "Aziz",
			LastName:    "Karimov",
			PhoneNumber: "+998901234567",
		})
	}))

	customer, err := client.CreateClient(context.Background(), "+998901234567", "Aziz", "Karimov")
	require.NoError(t, err)

	assert.Equal(t, "cust-1", customer.ID)
	assert.Equal(t, "+998901234567", gotBody["phone_number"])
	assert.Equal(t, "Aziz", gotBody["first_name"])
	assert.Equal(t, "Karimov", gotBody["last_name"])
}

func TestClient_CreateOrder(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "order.create", body["method"])
		params := body["params"].(map[string]any)
		assert.Equal(t, "shop-1", params["shop_id"])

		json.NewEncoder(w).Encode(OrderRef{ID: "remote-1"})
	}))

	ref, err := client.CreateOrder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "remote-1", ref.ID)
}

func TestClient_AddItem(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/order-product/remote-1", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "prod-1", body["product_id"])
		assert.Equal(t, float64(3), body["sold_measurement_value"])
		assert.Equal(t, true, body["use_free_price"])
		assert.Equal(t, []any{"emp-1"}, body["seller_ids"])

		w.WriteHeader(http.StatusOK)
	}))

	err := client.AddItem(context.Background(), AddItemParams{
		ProductID:  "prod-1",
		Qty:        3,
		OrderID:    "remote-1",
		EmployeeID: "emp-1",
	})
	require.NoError(t, err)
}

func TestClient_MakePayment_SkipsWhenAlreadyCompleted(t *testing.T) {
	var paymentCalls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(Order{
				ID:         "remote-1",
				ParkStatus: ParkStatusCompleted,
				TotalPrice: 90,
			})
		default:
			paymentCalls.Add(1)
			w.WriteHeader(http.StatusOK)
		}
	}))

	order, err := client.MakePayment(context.Background(), "remote-1", "card-1", 90)
	require.NoError(t, err)

	assert.Equal(t, ParkStatusCompleted, order.ParkStatus)
	assert.Equal(t, int64(0), paymentCalls.Load())
}

func TestClient_MakePayment_PaysAndRefetches(t *testing.T) {
	var gets atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			status := ""
			if gets.Add(1) > 1 {
				status = ParkStatusCompleted
			}
			json.NewEncoder(w).Encode(Order{ID: "remote-1", ParkStatus: status})
		default:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "order.make_payment", body["method"])
			w.WriteHeader(http.StatusOK)
		}
	}))

	order, err := client.MakePayment(context.Background(), "remote-1", "card-1", 90)
	require.NoError(t, err)

	assert.Equal(t, ParkStatusCompleted, order.ParkStatus)
	assert.Equal(t, int64(2), gets.Load())
}

func TestClient_RejectionSurfacesAPIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"product out of stock"}`))
	}))

	err := client.AddItem(context.Background(), AddItemParams{
		ProductID: "prod-1",
		Qty:       1,
		OrderID:   "remote-1",
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "product out of stock")
}

func TestClient_MissingCredentialShortCircuits(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL},
		&staticAuth{err: errors.New("integration inactive")}, testLogger())

	_, err := client.CreateOrder(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredential)
	assert.Equal(t, int64(0), requests.Load())
}

func TestClient_PostponeOrderSendsWindow(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "order.postpone", body["method"])

		params := body["params"].(map[string]any)
		assert.Equal(t, "remote-1", params["order_id"])
		assert.Equal(t, "Order order-1 (Tashkent)", params["comment"])
		assert.NotEmpty(t, params["time"])

		w.WriteHeader(http.StatusOK)
	}))

	err := client.PostponeOrder(context.Background(), "remote-1", "Order order-1 (Tashkent)")
	require.NoError(t, err)
}
