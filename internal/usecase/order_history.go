package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	domrepo "github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
	pkgkafka "github.com/GabrielWalak/delivery-prediction/pkg/kafka"
	applogger "github.com/GabrielWalak/delivery-prediction/pkg/logger"
)

var ErrInvalidOrderEvent = errors.New("invalid order event")

// OrderHistoryHandler consumes delivered-order events and stores them for
// the next training run.
type OrderHistoryHandler struct {
	topic   string
	storage domrepo.OrderStorage
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewOrderHistoryHandler(topic string, storage domrepo.OrderStorage, metrics domrepo.Metrics, log *applogger.Logger) *OrderHistoryHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &OrderHistoryHandler{topic: topic, storage: storage, metrics: metrics, log: log}
}

func (h *OrderHistoryHandler) Topic() string { return h.topic }

// Handle expects an OrderRecord JSON document with purchase and delivery timestamps.
func (h *OrderHistoryHandler) Handle(ctx context.Context, b []byte) error {
	var o models.OrderRecord
	if err := json.Unmarshal(b, &o); err != nil {
		h.metrics.RecordIngest(false)
		return fmt.Errorf("%w: %v", ErrInvalidOrderEvent, err)
	}
	if o.OrderID == "" || !o.Delivered() {
		h.metrics.RecordIngest(false)
		return fmt.Errorf("%w: order_id, purchase and delivery timestamps are required", ErrInvalidOrderEvent)
	}
	if o.DeliveredAt.Before(o.PurchasedAt) {
		h.metrics.RecordIngest(false)
		return fmt.Errorf("%w: delivered before purchase", ErrInvalidOrderEvent)
	}

	start := time.Now()
	err := h.storage.Store(ctx, &o)
	h.metrics.RecordLatency("order_store", domrepo.Since(start))
	if err != nil {
		h.metrics.RecordError("order_store")
		return err
	}
	h.metrics.RecordIngest(true)

	h.log.Debug("Stored delivered order",
		applogger.String("order_id", o.OrderID),
		applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*OrderHistoryHandler)(nil)
