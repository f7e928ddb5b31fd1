package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the job type carried by a queue message.
type Kind string

const (
	KindCreateClient   Kind = "CREATE_CLIENT"
	KindCreateOrder    Kind = "CREATE_ORDER"
	KindAddItem        Kind = "ADD_ITEM"
	KindAddClient      Kind = "ADD_CLIENT"
	KindPostponeOrder  Kind = "POSTPONE_ORDER"
	KindCancelPostpone Kind = "CANCEL_POSTPONE"
	KindCreateDiscount Kind = "CREATE_DISCOUNT"
	KindMakePayment    Kind = "MAKE_PAYMENT"
	KindDeleteOrder    Kind = "DELETE_ORDER"
	KindGetOrder       Kind = "GET_ORDER"
	KindPlaceOrder     Kind = "PLACE_ORDER"
)

// Kinds lists every job kind the worker knows how to handle.
var Kinds = []Kind{
	KindCreateClient,
	KindCreateOrder,
	KindAddItem,
	KindAddClient,
	KindPostponeOrder,
	KindCancelPostpone,
	KindCreateDiscount,
	KindMakePayment,
	KindDeleteOrder,
	KindGetOrder,
	KindPlaceOrder,
}

// Envelope is the tagged job record carried on the queue. The payload stays
// raw until the kind is known; DecodePayload turns it into the typed variant.
type Envelope struct {
	Kind          Kind            `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlation_id"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
}

// CreateClientPayload registers a customer in the commerce backend.
type CreateClientPayload struct {
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CreateOrderPayload opens an empty remote order.
type CreateOrderPayload struct {
	ShopID string `json:"shop_id,omitempty"`
}

// AddItemPayload adds one product line to a remote order.
type AddItemPayload struct {
	ProductID  string  `json:"product_id"`
	Qty        float64 `json:"qty"`
	OrderID    string  `json:"order_id"`
	EmployeeID string  `json:"employee_id,omitempty"`
}

// AddClientPayload attaches a remote customer to a remote order.
type AddClientPayload struct {
	CustomerID string `json:"customer_id"`
	OrderID    string `json:"order_id"`
}

// PostponeOrderPayload parks a remote order for later payment.
type PostponeOrderPayload struct {
	OrderID string `json:"order_id"`
	Comment string `json:"comment,omitempty"`
}

// CancelPostponePayload returns a parked order to its active state.
type CancelPostponePayload struct {
	OrderID string `json:"order_id"`
}

// CreateDiscountPayload applies a manual discount to a remote order.
// The remote receives total_price - amount as the discount value.
type CreateDiscountPayload struct {
	OrderID    string  `json:"order_id"`
	Amount     float64 `json:"amount"`
	TotalPrice float64 `json:"total_price"`
}

// MakePaymentPayload settles a remote order with a stored card.
type MakePaymentPayload struct {
	OrderID    string  `json:"order_id"`
	CardID     string  `json:"card_id"`
	TotalPrice float64 `json:"total_price"`
}

// DeleteOrderPayload removes a remote order.
type DeleteOrderPayload struct {
	OrderID string `json:"order_id"`
}

// GetOrderPayload fetches a remote order snapshot.
type GetOrderPayload struct {
	OrderID string `json:"order_id"`
}

// ProductLine is one order line inside a PlaceOrderPayload. Lines without a
// BillzProductID have no remote counterpart and are skipped by the saga.
type ProductLine struct {
	ProductID      string  `json:"product_id"`
	BillzProductID string  `json:"billz_product_id,omitempty"`
	Qty            float64 `json:"qty"`
	SubTotalPrice  float64 `json:"sub_total_price"`
	TotalPrice     float64 `json:"total_price"`
}

// PlaceOrderPayload carries the full order snapshot for the placement saga.
type PlaceOrderPayload struct {
	OrderID        string        `json:"order_id"`
	ClientID       string        `json:"client_id"`
	Products       []ProductLine `json:"products"`
	SubTotalPrice  float64       `json:"sub_total_price"`
	TotalPrice     float64       `json:"total_price"`
	DiscountAmount float64       `json:"discount_amount"`
	Region         string        `json:"region"`
	EmployeeID     string        `json:"employee_id,omitempty"`
	CreatedBy      string        `json:"created_by,omitempty"`
}

// DecodePayload decodes the raw payload of an envelope into the typed variant
// for its kind. An unrecognized kind is rejected before any remote call is made.
func DecodePayload(kind Kind, raw json.RawMessage) (any, error) {
	decode := func(dst any) (any, error) {
		if len(raw) == 0 {
			return dst, nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return dst, nil
	}

	switch kind {
	case KindCreateClient:
		return decode(&CreateClientPayload{})
	case KindCreateOrder:
		return decode(&CreateOrderPayload{})
	case KindAddItem:
		return decode(&AddItemPayload{})
	case KindAddClient:
		return decode(&AddClientPayload{})
	case KindPostponeOrder:
		return decode(&PostponeOrderPayload{})
	case KindCancelPostpone:
		return decode(&CancelPostponePayload{})
	case KindCreateDiscount:
		return decode(&CreateDiscountPayload{})
	case KindMakePayment:
		return decode(&MakePaymentPayload{})
	case KindDeleteOrder:
		return decode(&DeleteOrderPayload{})
	case KindGetOrder:
		return decode(&GetOrderPayload{})
	case KindPlaceOrder:
		return decode(&PlaceOrderPayload{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
