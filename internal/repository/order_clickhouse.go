package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
)

// ClickHouseOrderStore keeps delivered orders in ClickHouse. It is both the
// sink for streamed orders and a training source.
type ClickHouseOrderStore struct {
	db    *sqlx.DB
	table string
	limit int
}

// NewClickHouseOrderStore creates the store over database.orders.
func NewClickHouseOrderStore(db *sqlx.DB, database string, limit int) (*ClickHouseOrderStore, error) {
	table := database + ".orders"
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 200000
	}
	return &ClickHouseOrderStore{db: db, table: table, limit: limit}, nil
}

// SchemaStatements returns the DDL the store needs.
func (s *ClickHouseOrderStore) SchemaStatements() []string {
	database := strings.SplitN(s.table, ".", 2)[0]
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	order_id String,
	purchased_at DateTime,
	approved_at Nullable(DateTime),
	delivered_at Nullable(DateTime),
	product_weight_g Float64,
	product_length_cm Float64,
	product_height_cm Float64,
	product_width_cm Float64,
	freight_value Float64,
	customer_lat Float64,
	customer_lng Float64,
	seller_lat Float64,
	seller_lng Float64,
	ingested_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY (purchased_at, order_id)`, s.table),
	}
}

func (s *ClickHouseOrderStore) Init(ctx context.Context) error {
	for _, stmt := range s.SchemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init orders schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseOrderStore) Name() string { return "clickhouse" }

func (s *ClickHouseOrderStore) FetchOrders(ctx context.Context) ([]models.OrderRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL
WHERE delivered_at IS NOT NULL
ORDER BY purchased_at DESC
LIMIT ?`, orderColumns, s.table)

	var orders []models.OrderRecord
	if err := s.db.SelectContext(ctx, &orders, q, s.limit); err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrNoOrders
	}
	return orders, nil
}

func (s *ClickHouseOrderStore) Store(ctx context.Context, o *models.OrderRecord) error {
	return s.StoreBatch(ctx, []models.OrderRecord{*o})
}

// StoreBatch inserts with multi-row VALUES in chunks.
func (s *ClickHouseOrderStore) StoreBatch(ctx context.Context, orders []models.OrderRecord) error {
	const chunkSize = 2000
	for start := 0; start < len(orders); start += chunkSize {
		end := start + chunkSize
		if end > len(orders) {
			end = len(orders)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*13)
		for _, o := range orders[start:end] {
			if o.OrderID == "" || o.PurchasedAt.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				o.OrderID, o.PurchasedAt.UTC(), o.ApprovedAt, o.DeliveredAt,
				o.WeightG, o.LengthCm, o.HeightCm, o.WidthCm,
				o.FreightValue, o.CustomerLat, o.CustomerLng, o.SellerLat, o.SellerLng,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, orderColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseOrderStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.
func (s *ClickHouseOrderStore) Close() error {
	return nil
}

var (
	_ repository.OrderSource  = (*ClickHouseOrderStore)(nil)
	_ repository.OrderStorage = (*ClickHouseOrderStore)(nil)
)
