package billz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultTimeout = 10 * time.Second

	// postponeWindow is how far forward a postponed order is parked.
	postponeWindow = 72 * time.Hour

	// postponeTimeLayout is the timestamp format the postpone endpoint expects.
	postponeTimeLayout = "2006-01-02 15:04:05"
)

// ErrCredential marks an operation that was never attempted because no valid
// bearer credential could be obtained. Callers use it to tell configuration
// issues apart from network failures.
var ErrCredential = errors.New("commerce credential unavailable")

// APIError is a structured rejection from the commerce backend. The body is
// kept verbatim so the caller can log it without re-running the request.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("commerce backend returned %d: %s", e.StatusCode, e.Body)
}

// AuthProvider supplies valid bearer headers on demand. Implementations must
// be safe for concurrent use.
type AuthProvider interface {
	AuthHeaders(ctx context.Context) (http.Header, error)
}

// Config holds commerce client configuration
type Config struct {
	BaseURL string
	ShopID  string
	Timeout time.Duration
}

// Client is a stateless wrapper around the commerce backend. One call is one
// remote operation; it never retries internally.
type Client struct {
	config *Config
	auth   AuthProvider
	httpc  *http.Client
	logger *slog.Logger
}

// NewClient creates a new commerce client
func NewClient(config *Config, auth AuthProvider, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		config: config,
		auth:   auth,
		httpc:  &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// CreateClient registers a customer in the commerce backend and returns the
// remote customer record.
func (c *Client) CreateClient(ctx context.Context, phone, firstName, lastName string) (*Customer, error) {
	body := createClientRequest{
		FirstName:   firstName,
		LastName:    lastName,
		PhoneNumber: phone,
	}

	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/v1/client", body, &customer); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &customer, nil
}

// CreateOrder opens an empty remote order in the configured shop.
func (c *Client) CreateOrder(ctx context.Context) (*OrderRef, error) {
	body := rpcRequest{
		Method: "order.create",
		Params: createOrderParams{ShopID: c.config.ShopID},
	}

	var ref OrderRef
	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, &ref); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return &ref, nil
}

// AddItem adds one product line to a remote order. The optional employee id is
// forwarded as the seller of the line.
func (c *Client) AddItem(ctx context.Context, params AddItemParams) error {
	body := addItemRequest{
		ProductID:            params.ProductID,
		SoldMeasurementValue: params.Qty,
		UseFreePrice:         true,
		IsManual:             true,
		ResponseType:         "HTTP",
	}
	if params.EmployeeID != "" {
		body.SellerIDs = []string{params.EmployeeID}
	}

	if err := c.do(ctx, http.MethodPost, "/v2/order-product/"+params.OrderID, body, nil); err != nil {
		return fmt.Errorf("add item: %w", err)
	}

	return nil
}

// AddClient attaches a remote customer to a remote order.
func (c *Client) AddClient(ctx context.Context, customerID, orderID string) error {
	body := rpcRequest{
		Method: "order.add_customer",
		Params: addCustomerParams{CustomerID: customerID, OrderID: orderID},
	}

	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, nil); err != nil {
		return fmt.Errorf("add client to order: %w", err)
	}

	return nil
}

// PostponeOrder parks a remote order for the fixed forward-dated window,
// carrying a human-readable comment.
func (c *Client) PostponeOrder(ctx context.Context, orderID, comment string) error {
	body := rpcRequest{
		Method: "order.postpone",
		Params: postponeParams{
			OrderID: orderID,
			Comment: comment,
			Time:    time.Now().Add(postponeWindow).Format(postponeTimeLayout),
		},
	}

	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, nil); err != nil {
		return fmt.Errorf("postpone order: %w", err)
	}

	return nil
}

// CancelPostpone returns a parked order to its active state.
func (c *Client) CancelPostpone(ctx context.Context, orderID string) error {
	body := rpcRequest{
		Method: "order.postpone",
		Params: postponeParams{OrderID: orderID},
	}

	if err := c.do(ctx, http.MethodPost, "/v2/order/return-postpone", body, nil); err != nil {
		return fmt.Errorf("cancel postponement: %w", err)
	}

	return nil
}

// CreateDiscount applies a manual currency discount to a remote order.
func (c *Client) CreateDiscount(ctx context.Context, orderID string, value float64) error {
	body := discountRequest{
		DiscountUnit:  "CURRENCY",
		DiscountValue: value,
	}

	if err := c.do(ctx, http.MethodPost, "/v2/order-manual-discount/"+orderID, body, nil); err != nil {
		return fmt.Errorf("create discount: %w", err)
	}

	return nil
}

// MakePayment settles a remote order with a stored card. If the order is
// already marked completed the payment call is skipped and the existing order
// state is returned instead.
func (c *Client) MakePayment(ctx context.Context, orderID, cardID string, amount float64) (*Order, error) {
	order, err := c.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("payment pre-check: %w", err)
	}

	if order.ParkStatus == ParkStatusCompleted {
		c.logger.Info("Order already paid, skipping payment",
			slog.String("order_id", orderID),
		)
		return order, nil
	}

	body := rpcRequest{
		Method: "order.make_payment",
		Params: makePaymentParams{
			Payments: []paymentEntry{
				{ID: cardID, CompanyPaymentTypeID: cardID, PaidAmount: amount},
			},
			OrderID: orderID,
		},
	}

	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, nil); err != nil {
		return nil, fmt.Errorf("make payment: %w", err)
	}

	return c.GetOrder(ctx, orderID)
}

// DeleteOrder removes a remote order.
func (c *Client) DeleteOrder(ctx context.Context, orderID string) error {
	if err := c.do(ctx, http.MethodDelete, "/v2/order/"+orderID, nil, nil); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	return nil
}

// GetOrder fetches a remote order snapshot.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, "/v2/order/"+orderID, nil, &order); err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	return &order, nil
}

// do performs one authenticated request. A missing credential fails the call
// before any request is made; HTTP rejections surface as *APIError with the
// response body verbatim.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	headers, err := c.auth.AuthHeaders(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredential, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header = headers.Clone()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Error("Commerce backend rejected request",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(respBody)),
		)
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
