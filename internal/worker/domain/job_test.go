package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		raw     string
		want    any
		wantErr error
	}{
		{
			name: "create client",
			kind: KindCreateClient,
			raw:  `{"phone":"+998901234567","first_name":"Aziz","last_name":"Karimov"}`,
			want: &CreateClientPayload{Phone: "+998901234567", FirstName: "Aziz", LastName: "Karimov"},
		},
		{
			name: "create order",
			kind: KindCreateOrder,
			raw:  `{"shop_id":"shop-1"}`,
			want: &CreateOrderPayload{ShopID: "shop-1"},
		},
		{
			name: "add item",
			kind: KindAddItem,
			raw:  `{"product_id":"p1","qty":2.5,"order_id":"o1","employee_id":"e1"}`,
			want: &AddItemPayload{ProductID: "p1", Qty: 2.5, OrderID: "o1", EmployeeID: "e1"},
		},
		{
			name: "add client",
			kind: KindAddClient,
			raw:  `{"customer_id":"c1","order_id":"o1"}`,
			want: &AddClientPayload{CustomerID: "c1", OrderID: "o1"},
		},
		{
			name: "postpone order",
			kind: KindPostponeOrder,
			raw:  `{"order_id":"o1","comment":"hold"}`,
			want: &PostponeOrderPayload{OrderID: "o1", Comment: "hold"},
		},
		{
			name: "cancel postpone",
			kind: KindCancelPostpone,
			raw:  `{"order_id":"o1"}`,
			want: &CancelPostponePayload{OrderID: "o1"},
		},
		{
			name: "create discount",
			kind: KindCreateDiscount,
			raw:  `{"order_id":"o1","amount":90,"total_price":100}`,
			want: &CreateDiscountPayload{OrderID: "o1", Amount: 90, TotalPrice: 100},
		},
		{
			name: "make payment",
			kind: KindMakePayment,
			raw:  `{"order_id":"o1","card_id":"card-1","total_price":90}`,
			want: &MakePaymentPayload{OrderID: "o1", CardID: "card-1", TotalPrice: 90},
		},
		{
			name: "delete order",
			kind: KindDeleteOrder,
			raw:  `{"order_id":"o1"}`,
			want: &DeleteOrderPayload{OrderID: "o1"},
		},
		{
			name: "get order",
			kind: KindGetOrder,
			raw:  `{"order_id":"o1"}`,
			want: &GetOrderPayload{OrderID: "o1"},
		},
		{
			name: "place order",
			kind: KindPlaceOrder,
			raw: `{
				"order_id":"o1","client_id":"c1",
				"products":[{"product_id":"p1","billz_product_id":"bp1","qty":1,"sub_total_price":50,"total_price":45}],
				"sub_total_price":50,"total_price":45,"discount_amount":5,
				"region":"Tashkent","employee_id":"e1"
			}`,
			want: &PlaceOrderPayload{
				OrderID:  "o1",
				ClientID: "c1",
				Products: []ProductLine{
					{ProductID: "p1", BillzProductID: "bp1", Qty: 1, SubTotalPrice: 50, TotalPrice: 45},
				},
				SubTotalPrice:  50,
				TotalPrice:     45,
				DiscountAmount: 5,
				Region:         "Tashkent",
				EmployeeID:     "e1",
			},
		},
		{
			name:    "unknown kind",
			kind:    Kind("REBUILD_INDEX"),
			raw:     `{}`,
			wantErr: ErrUnknownKind,
		},
		{
			name:    "malformed payload",
			kind:    KindCreateClient,
			raw:     `{"phone":`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "payload of wrong shape",
			kind:    KindAddItem,
			raw:     `{"qty":"two"}`,
			wantErr: ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(tt.kind, json.RawMessage(tt.raw))

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKindsCoverEveryDecodeBranch(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			_, err := DecodePayload(kind, json.RawMessage(`{}`))
			require.NoError(t, err)
		})
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	raw := `{"kind":"ADD_ITEM","payload":{"product_id":"p1","qty":1,"order_id":"o1"},"correlation_id":"corr-1","enqueued_at":"2026-08-01T10:00:00Z"}`

	var envelope Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &envelope))

	assert.Equal(t, KindAddItem, envelope.Kind)
	assert.Equal(t, "corr-1", envelope.CorrelationID)

	payload, err := DecodePayload(envelope.Kind, envelope.Payload)
	require.NoError(t, err)
	assert.Equal(t, &AddItemPayload{ProductID: "p1", Qty: 1, OrderID: "o1"}, payload)
}
