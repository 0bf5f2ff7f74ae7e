package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	domrepo "github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
	applogger "github.com/GabrielWalak/delivery-prediction/pkg/logger"
)

var ErrBatcherClosed = errors.New("order batcher is closed")

type storeRequest struct {
	order models.OrderRecord
	errc  chan error
}

// OrderBatcher sits between the order consumer and the order store. Store
// calls from concurrent workers are grouped into one StoreBatch, and each
// caller blocks until its batch is written, so a committed Kafka offset always
// means a persisted row.
type OrderBatcher struct {
	next     domrepo.OrderStorage
	metrics  domrepo.Metrics
	log      *applogger.Logger
	maxBatch int
	linger   time.Duration
	attempts int

	reqCh     chan storeRequest
	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type BatcherOption func(*OrderBatcher)

// WithMaxBatch caps the rows written per StoreBatch call.
func WithMaxBatch(n int) BatcherOption {
	return func(b *OrderBatcher) {
		if n > 0 {
			b.maxBatch = n
		}
	}
}

// WithLinger sets how long the first order of a batch waits for company.
func WithLinger(d time.Duration) BatcherOption {
	return func(b *OrderBatcher) {
		if d >= 0 {
			b.linger = d
		}
	}
}

// WithFlushAttempts sets how many times a failed batch is retried.
func WithFlushAttempts(n int) BatcherOption {
	return func(b *OrderBatcher) {
		if n > 0 {
			b.attempts = n
		}
	}
}

func WithBatcherLogger(l *applogger.Logger) BatcherOption {
	return func(b *OrderBatcher) {
		if l != nil {
			b.log = l
		}
	}
}

// NewOrderBatcher starts the flush loop; Close stops it.
func NewOrderBatcher(next domrepo.OrderStorage, metrics domrepo.Metrics, opts ...BatcherOption) *OrderBatcher {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	b := &OrderBatcher{
		next:     next,
		metrics:  metrics,
		log:      applogger.Nop(),
		maxBatch: 500,
		linger:   200 * time.Millisecond,
		attempts: 3,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.reqCh = make(chan storeRequest, b.maxBatch)
	go b.loop()
	return b
}

func (b *OrderBatcher) Init(ctx context.Context) error {
	return b.next.Init(ctx)
}

// Store queues o for the next batch and waits for that batch's result.
func (b *OrderBatcher) Store(ctx context.Context, o *models.OrderRecord) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}
	req := storeRequest{order: *o, errc: make(chan error, 1)}
	select {
	case b.reqCh <- req:
	case <-b.stopCh:
		return ErrBatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.errc:
		return err
	case <-b.done:
		select {
		case err := <-req.errc:
			return err
		default:
			return ErrBatcherClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StoreBatch bypasses the buffer.
func (b *OrderBatcher) StoreBatch(ctx context.Context, orders []models.OrderRecord) error {
	return b.next.StoreBatch(ctx, orders)
}

func (b *OrderBatcher) Health(ctx context.Context) error {
	return b.next.Health(ctx)
}

// Close flushes queued orders and stops the loop. The wrapped store stays
// open; its owner closes it.
func (b *OrderBatcher) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.done
	})
	return nil
}

func (b *OrderBatcher) loop() {
	defer close(b.done)

	for {
		select {
		case <-b.stopCh:
			b.drain()
			return
		case first := <-b.reqCh:
			batch := b.collect(first)
			b.flush(batch)
		}
	}
}

func (b *OrderBatcher) collect(first storeRequest) []storeRequest {
	batch := []storeRequest{first}
	timer := time.NewTimer(b.linger)
	defer timer.Stop()

	for len(batch) < b.maxBatch {
		select {
		case req := <-b.reqCh:
			batch = append(batch, req)
		case <-timer.C:
			return batch
		case <-b.stopCh:
			return batch
		}
	}
	return batch
}

// drain writes whatever was queued before Close without waiting for linger.
func (b *OrderBatcher) drain() {
	for {
		var batch []storeRequest
	fill:
		for len(batch) < b.maxBatch {
			select {
			case req := <-b.reqCh:
				batch = append(batch, req)
			default:
				break fill
			}
		}
		if len(batch) == 0 {
			return
		}
		b.flush(batch)
	}
}

func (b *OrderBatcher) flush(batch []storeRequest) {
	orders := make([]models.OrderRecord, len(batch))
	for i, req := range batch {
		orders[i] = req.order
	}

	start := time.Now()
	backoff := 50 * time.Millisecond
	var err error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = b.next.StoreBatch(ctx, orders)
		cancel()
		if err == nil {
			break
		}
		b.metrics.RecordError("order_batch_flush")
		if attempt < b.attempts {
			time.Sleep(backoff)
			if backoff < 2*time.Second {
				backoff *= 2
			}
		}
	}
	b.metrics.RecordLatency("order_batch_flush", domrepo.Since(start))

	if err != nil {
		b.log.Error("Order batch not stored",
			applogger.Int("orders", len(orders)),
			applogger.Error(err),
		)
	} else {
		b.log.Debug("Order batch stored", applogger.Int("orders", len(orders)))
	}
	for _, req := range batch {
		req.errc <- err
	}
}

var _ domrepo.OrderStorage = (*OrderBatcher)(nil)
