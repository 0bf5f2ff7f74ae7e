package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
	xhttp "github.com/GabrielWalak/delivery-prediction/pkg/http"
	applogger "github.com/GabrielWalak/delivery-prediction/pkg/logger"
	"github.com/GabrielWalak/delivery-prediction/pkg/util"
)

var requiredCSVColumns = []string{
	"order_purchase_timestamp",
	"order_delivered_customer_date",
	"product_weight_g",
	"product_length_cm",
	"product_height_cm",
	"product_width_cm",
	"freight_value",
	"customer_lat",
	"customer_lng",
	"seller_lat",
	"seller_lng",
}

// CSVOrderSource reads a flattened orders export, addressed by header name,
// from a local file or an HTTP(S) URL.
type CSVOrderSource struct {
	path   string
	url    string
	client *xhttp.Client
	log    *applogger.Logger
	loc    *time.Location
}

// CSVOption configures CSVOrderSource.
type CSVOption func(*CSVOrderSource)

// WithCSVLocation sets the zone of timestamps written without an offset.
func WithCSVLocation(loc *time.Location) CSVOption {
	return func(s *CSVOrderSource) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewCSVOrderSource(path, url string, client *xhttp.Client, log *applogger.Logger, opts ...CSVOption) (*CSVOrderSource, error) {
	if path == "" && url == "" {
		return nil, errors.New("csv source needs a path or a url")
	}
	if client == nil {
		client = xhttp.NewClient()
	}
	if log == nil {
		log = applogger.Nop()
	}
	s := &CSVOrderSource{path: path, url: url, client: client, log: log, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *CSVOrderSource) Name() string { return "csv" }

func (s *CSVOrderSource) FetchOrders(ctx context.Context) ([]models.OrderRecord, error) {
	r, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	orders, skipped, err := ReadOrdersCSV(r, s.loc)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.log.Warn("Skipped unparsable CSV rows", applogger.Int("skipped", skipped), applogger.Int("parsed", len(orders)))
	}
	if len(orders) == 0 {
		return nil, ErrNoOrders
	}
	return orders, nil
}

func (s *CSVOrderSource) open(ctx context.Context) (io.ReadCloser, error) {
	if s.path != "" {
		f, err := os.Open(s.path)
		if err == nil {
			return f, nil
		}
		if s.url == "" {
			return nil, fmt.Errorf("open csv: %w", err)
		}
		s.log.Warn("CSV file unavailable, downloading", applogger.String("path", s.path), applogger.Error(err))
	}
	body, err := s.client.Open(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("download csv: %w", err)
	}
	return body, nil
}

// ReadOrdersCSV parses orders and returns how many data rows were skipped.
// Timestamps without an offset are read in loc, or UTC when loc is nil.
func ReadOrdersCSV(r io.Reader, loc *time.Location) ([]models.OrderRecord, int, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, name := range requiredCSVColumns {
		if _, ok := col[name]; !ok {
			return nil, 0, fmt.Errorf("csv is missing column %q", name)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var (
		orders  []models.OrderRecord
		skipped int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("read csv: %w", err)
		}

		o, ok := parseOrderRow(func(name string) string { return field(rec, name) }, loc)
		if !ok {
			skipped++
			continue
		}
		orders = append(orders, o)
	}
	return orders, skipped, nil
}

func parseOrderRow(get func(string) string, loc *time.Location) (models.OrderRecord, bool) {
	purchased, ok := util.ParseTimeIn(get("order_purchase_timestamp"), loc)
	if !ok {
		return models.OrderRecord{}, false
	}
	o := models.OrderRecord{
		OrderID:     get("order_id"),
		PurchasedAt: purchased,
		ApprovedAt:  util.ParseTimePtr(get("order_approved_at"), loc),
		DeliveredAt: util.ParseTimePtr(get("order_delivered_customer_date"), loc),
	}

	nums := []struct {
		name string
		dst  *float64
	}{
		{"product_weight_g", &o.WeightG},
		{"product_length_cm", &o.LengthCm},
		{"product_height_cm", &o.HeightCm},
		{"product_width_cm", &o.WidthCm},
		{"freight_value", &o.FreightValue},
		{"customer_lat", &o.CustomerLat},
		{"customer_lng", &o.CustomerLng},
		{"seller_lat", &o.SellerLat},
		{"seller_lng", &o.SellerLng},
	}
	for _, n := range nums {
		v, ok := util.ParseFloat(get(n.name))
		if !ok {
			return models.OrderRecord{}, false
		}
		*n.dst = v
	}
	return o, true
}

var _ repository.OrderSource = (*CSVOrderSource)(nil)
