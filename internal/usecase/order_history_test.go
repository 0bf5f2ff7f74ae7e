package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
)

type memoryStorage struct {
	stored []models.OrderRecord
	err    error
}

func (m *memoryStorage) Init(context.Context) error { return nil }

func (m *memoryStorage) Store(_ context.Context, o *models.OrderRecord) error {
	if m.err != nil {
		return m.err
	}
	m.stored = append(m.stored, *o)
	return nil
}

func (m *memoryStorage) StoreBatch(ctx context.Context, orders []models.OrderRecord) error {
	for i := range orders {
		if err := m.Store(ctx, &orders[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryStorage) Health(context.Context) error { return nil }
func (m *memoryStorage) Close() error                 { return nil }

func TestOrderHistoryHandlerStoresDeliveredOrders(t *testing.T) {
	store := &memoryStorage{}
	h := NewOrderHistoryHandler("delivery.orders", store, nil, nil)
	if h.Topic() != "delivery.orders" {
		t.Fatalf("unexpected topic %s", h.Topic())
	}

	payload := []byte(`{
		"order_id": "e481f51c",
		"order_purchase_timestamp": "2017-10-02T10:56:33Z",
		"order_approved_at": "2017-10-02T11:07:15Z",
		"order_delivered_customer_date": "2017-10-10T21:25:13Z",
		"product_weight_g": 500,
		"freight_value": 8.72,
		"customer_lat": -23.57, "customer_lng": -46.58,
		"seller_lat": -23.48, "seller_lng": -46.37
	}`)
	if err := h.Handle(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.stored) != 1 || store.stored[0].OrderID != "e481f51c" || store.stored[0].WeightG != 500 {
		t.Fatalf("unexpected stored orders %+v", store.stored)
	}
}

func TestOrderHistoryHandlerRejectsInvalidEvents(t *testing.T) {
	store := &memoryStorage{}
	h := NewOrderHistoryHandler("t", store, nil, nil)

	for _, payload := range []string{
		`not json`,
		`{"order_id": "x", "order_purchase_timestamp": "2017-10-02T10:56:33Z"}`,
		`{"order_id": "x", "order_purchase_timestamp": "2017-10-02T10:56:33Z", "order_delivered_customer_date": "2017-09-01T00:00:00Z"}`,
		`{"order_purchase_timestamp": "2017-10-02T10:56:33Z", "order_delivered_customer_date": "2017-10-09T00:00:00Z"}`,
	} {
		if err := h.Handle(context.Background(), []byte(payload)); !errors.Is(err, ErrInvalidOrderEvent) {
			t.Fatalf("payload %s: expected ErrInvalidOrderEvent, got %v", payload, err)
		}
	}
	if len(store.stored) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestOrderHistoryHandlerPropagatesStorageErrors(t *testing.T) {
	boom := errors.New("clickhouse down")
	h := NewOrderHistoryHandler("t", &memoryStorage{err: boom}, nil, nil)
	payload := `{"order_id": "x", "order_purchase_timestamp": "2017-10-02T10:56:33Z", "order_delivered_customer_date": "2017-10-09T00:00:00Z"}`
	if err := h.Handle(context.Background(), []byte(payload)); !errors.Is(err, boom) {
		t.Fatalf("expected storage error for retry, got %v", err)
	}
}
