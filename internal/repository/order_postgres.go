package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
)

// OpenPostgres connects and pings a Postgres pool.
func OpenPostgres(ctx context.Context, dsn string, maxOpen int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// PostgresOrderSource reads delivered orders from an operational table.
type PostgresOrderSource struct {
	db    *sqlx.DB
	table string
	limit int
}

func NewPostgresOrderSource(db *sqlx.DB, table string, limit int) (*PostgresOrderSource, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 200000
	}
	return &PostgresOrderSource{db: db, table: table, limit: limit}, nil
}

func (s *PostgresOrderSource) Name() string { return "postgres" }

func (s *PostgresOrderSource) FetchOrders(ctx context.Context) ([]models.OrderRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s
WHERE delivered_at IS NOT NULL
ORDER BY purchased_at DESC
LIMIT $1`, orderColumns, s.table)

	var orders []models.OrderRecord
	if err := s.db.SelectContext(ctx, &orders, q, s.limit); err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrNoOrders
	}
	return orders, nil
}

var _ repository.OrderSource = (*PostgresOrderSource)(nil)
