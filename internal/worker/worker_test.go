package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/orzulab/billz-worker/internal/audit"
	"github.com/orzulab/billz-worker/internal/billz"
	"github.com/orzulab/billz-worker/internal/saga"
	"github.com/orzulab/billz-worker/internal/worker/domain"
)

type fakeCommerce struct {
	calls   []string
	failAll error
}

func (f *fakeCommerce) record(name string) error {
	f.calls = append(f.calls, name)
	return f.failAll
}

func (f *fakeCommerce) CreateClient(ctx context.Context, phone, firstName, lastName string) (*billz.Customer, error) {
	if err := f.record("CreateClient"); err != nil {
		return nil, err
	}
	return &billz.Customer{ID: "cust-1"}, nil
}

func (f *fakeCommerce) CreateOrder(ctx context.Context) (*billz.OrderRef, error) {
	if err := f.record("CreateOrder"); err != nil {
		return nil, err
	}
	return &billz.OrderRef{ID: "remote-1"}, nil
}

func (f *fakeCommerce) AddItem(ctx context.Context, params billz.AddItemParams) error {
	return f.record("AddItem")
}

func (f *fakeCommerce) AddClient(ctx context.Context, customerID, orderID string) error {
	return f.record("AddClient")
}

func (f *fakeCommerce) PostponeOrder(ctx context.Context, orderID, comment string) error {
	return f.record("PostponeOrder")
}

func (f *fakeCommerce) CancelPostpone(ctx context.Context, orderID string) error {
	return f.record("CancelPostpone")
}

func (f *fakeCommerce) CreateDiscount(ctx context.Context, orderID string, value float64) error {
	return f.record("CreateDiscount")
}

func (f *fakeCommerce) MakePayment(ctx context.Context, orderID, cardID string, amount float64) (*billz.Order, error) {
	if err := f.record("MakePayment"); err != nil {
		return nil, err
	}
	return &billz.Order{ID: orderID, ParkStatus: billz.ParkStatusCompleted}, nil
}

func (f *fakeCommerce) DeleteOrder(ctx context.Context, orderID string) error {
	return f.record("DeleteOrder")
}

func (f *fakeCommerce) GetOrder(ctx context.Context, orderID string) (*billz.Order, error) {
	if err := f.record("GetOrder"); err != nil {
		return nil, err
	}
	return &billz.Order{ID: orderID}, nil
}

type fakePlacer struct {
	calls int
	err   error
}

func (f *fakePlacer) PlaceOrder(ctx context.Context, payload domain.PlaceOrderPayload, correlationID string) (*saga.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &saga.Result{BillzOrderID: "remote-1"}, nil
}

type memAppendStore struct {
	records []*audit.Record
}

func (m *memAppendStore) Append(ctx context.Context, record *audit.Record) error {
	m.records = append(m.records, record)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(commerce Commerce, placer OrderPlacer, store *memAppendStore) *Worker {
	return NewWorker(&Config{
		Logger:   testLogger(),
		Audit:    audit.NewLogger(store, testLogger()),
		Commerce: commerce,
		Saga:     placer,
	})
}

func message(kind domain.Kind, payload string) *jobMessage {
	return &jobMessage{
		envelope: &domain.Envelope{
			Kind:          kind,
			Payload:       json.RawMessage(payload),
			CorrelationID: "corr-1",
		},
	}
}

func TestProcessJob_RoutesSimpleKinds(t *testing.T) {
	tests := []struct {
		name     string
		kind     domain.Kind
		payload  string
		wantCall string
	}{
		{"create client", domain.KindCreateClient, `{"phone":"+998901234567","first_name":"Aziz"}`, "CreateClient"},
		{"create order", domain.KindCreateOrder, `{}`, "CreateOrder"},
		{"add item", domain.KindAddItem, `{"product_id":"p1","qty":1,"order_id":"o1"}`, "AddItem"},
		{"add client", domain.KindAddClient, `{"customer_id":"c1","order_id":"o1"}`, "AddClient"},
		{"postpone order", domain.KindPostponeOrder, `{"order_id":"o1"}`, "PostponeOrder"},
		{"cancel postpone", domain.KindCancelPostpone, `{"order_id":"o1"}`, "CancelPostpone"},
		{"create discount", domain.KindCreateDiscount, `{"order_id":"o1","amount":90,"total_price":100}`, "CreateDiscount"},
		{"delete order", domain.KindDeleteOrder, `{"order_id":"o1"}`, "DeleteOrder"},
		{"get order", domain.KindGetOrder, `{"order_id":"o1"}`, "GetOrder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commerce := &fakeCommerce{}
			store := &memAppendStore{}
			w := newTestWorker(commerce, &fakePlacer{}, store)

			err := w.processJob(context.Background(), message(tt.kind, tt.payload))
			require.NoError(t, err)

			assert.Contains(t, commerce.calls, tt.wantCall)

			// Every handled job leaves exactly one success record
			require.Len(t, store.records, 1)
			assert.True(t, store.records[0].Success)
			assert.Equal(t, "corr-1", store.records[0].CorrelationID)
		})
	}
}

func TestProcessJob_MakePaymentAuditsParkStatus(t *testing.T) {
	commerce := &fakeCommerce{}
	store := &memAppendStore{}
	w := newTestWorker(commerce, &fakePlacer{}, store)

	err := w.processJob(context.Background(), message(domain.KindMakePayment,
		`{"order_id":"o1","card_id":"card-1","total_price":90}`))
	require.NoError(t, err)

	require.Len(t, store.records, 1)
	assert.Equal(t, billz.ParkStatusCompleted, store.records[0].Description["park_status"])
}

func TestProcessJob_PlaceOrderDelegatesToSaga(t *testing.T) {
	commerce := &fakeCommerce{}
	placer := &fakePlacer{}
	store := &memAppendStore{}
	w := newTestWorker(commerce, placer, store)

	err := w.processJob(context.Background(),
		message(domain.KindPlaceOrder, `{"order_id":"o1","client_id":"c1"}`))
	require.NoError(t, err)

	assert.Equal(t, 1, placer.calls)
	// The saga audits its own steps; the dispatcher adds nothing on success
	assert.Empty(t, store.records)
	assert.Empty(t, commerce.calls)
}

func TestProcessJob_SagaStepFailureNotAuditedTwice(t *testing.T) {
	placer := &fakePlacer{err: &saga.StepError{Step: "add_items", Err: errors.New("rejected")}}
	store := &memAppendStore{}
	w := newTestWorker(&fakeCommerce{}, placer, store)

	err := w.processJob(context.Background(),
		message(domain.KindPlaceOrder, `{"order_id":"o1","client_id":"c1"}`))
	require.Error(t, err)

	// The failing step was already audited inside the saga
	assert.Empty(t, store.records)
}

func TestProcessJob_HandlerFailureAudited(t *testing.T) {
	commerce := &fakeCommerce{failAll: errors.New("backend unavailable")}
	store := &memAppendStore{}
	w := newTestWorker(commerce, &fakePlacer{}, store)

	err := w.processJob(context.Background(),
		message(domain.KindDeleteOrder, `{"order_id":"o1"}`))
	require.Error(t, err)

	require.Len(t, store.records, 1)
	record := store.records[0]
	assert.False(t, record.Success)
	assert.Equal(t, audit.ActionDelete, record.Action)
	assert.Equal(t, "o1", record.OrderID)
	assert.Contains(t, record.ErrorMessage, "backend unavailable")
}

func TestProcessJob_UnknownKindIsNotRetryable(t *testing.T) {
	store := &memAppendStore{}
	w := newTestWorker(&fakeCommerce{}, &fakePlacer{}, store)

	err := w.processJob(context.Background(), message(domain.Kind("REBUILD_INDEX"), `{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
	assert.False(t, w.shouldRequeueJob(err))

	// The rejection itself is audited so the job leaves a trace
	require.Len(t, store.records, 1)
	assert.False(t, store.records[0].Success)
}

func TestShouldRequeueJob(t *testing.T) {
	w := newTestWorker(&fakeCommerce{}, &fakePlacer{}, &memAppendStore{})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unknown kind", fmt.Errorf("%w: %q", domain.ErrUnknownKind, "NOPE"), false},
		{"invalid payload", fmt.Errorf("%w: bad json", domain.ErrInvalidPayload), false},
		{"data integrity", fmt.Errorf("%w: order missing", domain.ErrDataIntegrity), false},
		{"retryable transport failure", domain.NewRetryableError(errors.New("timeout")), true},
		{"wrapped retryable", fmt.Errorf("job: %w", domain.NewRetryableError(errors.New("refused"))), true},
		{"plain error", errors.New("something odd"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.shouldRequeueJob(tt.err))
		})
	}
}

func TestProcessJob_TransientFailureClassifiedRetryable(t *testing.T) {
	commerce := &fakeCommerce{failAll: errors.New("connection reset")}
	w := newTestWorker(commerce, &fakePlacer{}, &memAppendStore{})

	err := w.processJob(context.Background(),
		message(domain.KindCreateOrder, `{}`))
	require.Error(t, err)
	assert.True(t, w.shouldRequeueJob(err))
}

func TestProcessJob_DataIntegrityFailureNotRequeued(t *testing.T) {
	placer := &fakePlacer{err: &saga.StepError{
		Step: "resolve_client",
		Err:  fmt.Errorf("%w: client missing", domain.ErrDataIntegrity),
	}}
	w := newTestWorker(&fakeCommerce{}, placer, &memAppendStore{})

	err := w.processJob(context.Background(),
		message(domain.KindPlaceOrder, `{"order_id":"o1","client_id":"c1"}`))
	require.Error(t, err)
	assert.False(t, w.shouldRequeueJob(err))
}

func TestAttemptCount(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		want    int64
	}{
		{"no headers", nil, 0},
		{"no x-death", amqp.Table{"other": "value"}, 0},
		{
			"single death entry",
			amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(2)}}},
			2,
		},
		{
			"multiple death entries",
			amqp.Table{"x-death": []interface{}{
				amqp.Table{"count": int64(2)},
				amqp.Table{"count": int64(1)},
			}},
			3,
		},
		{
			"malformed entries ignored",
			amqp.Table{"x-death": []interface{}{"garbage", amqp.Table{"count": "NaN"}}},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delivery := amqp.Delivery{Headers: tt.headers}
			assert.Equal(t, tt.want, attemptCount(delivery))
		})
	}
}
