package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
)

func ptr(t time.Time) *time.Time { return &t }

func order(purchased time.Time) models.OrderRecord {
	return models.OrderRecord{
		OrderID:      "o1",
		PurchasedAt:  purchased,
		ApprovedAt:   ptr(purchased.Add(12 * time.Hour)),
		DeliveredAt:  ptr(purchased.Add(8 * 24 * time.Hour)),
		WeightG:      1200,
		LengthCm:     10,
		HeightCm:     15,
		WidthCm:      30,
		FreightValue: 29.9,
		CustomerLat:  -23.55,
		CustomerLng:  -46.63,
		SellerLat:    -22.90,
		SellerLng:    -43.17,
	}
}

func TestHaversine(t *testing.T) {
	// Sao Paulo to Rio de Janeiro is roughly 360 km.
	d := Haversine(-23.55, -46.63, -22.90, -43.17)
	if d < 340 || d > 380 {
		t.Fatalf("unexpected distance %v", d)
	}
	if Haversine(10, 10, 10, 10) != 0 {
		t.Fatalf("same point should be 0")
	}
}

func TestProcessBuildsOrderedRow(t *testing.T) {
	saturday := time.Date(2017, 11, 25, 10, 0, 0, 0, time.UTC)
	ds, err := NewProcessor().Process([]models.OrderRecord{order(saturday)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Len() != 1 || len(ds.Rows[0]) != len(models.FeatureNames()) {
		t.Fatalf("unexpected shape %d x %d", ds.Len(), len(ds.Rows[0]))
	}

	row := ds.Rows[0]
	want := map[int]float64{
		0:  1200,
		1:  4500,
		7:  0.5,
		8:  1,
		9:  29.9,
		10: 11,
	}
	for i, v := range want {
		if math.Abs(row[i]-v) > 1e-9 {
			t.Fatalf("column %s: expected %v, got %v", ds.Features[i], v, row[i])
		}
	}
	if math.Abs(ds.Target[0]-8) > 1e-9 {
		t.Fatalf("expected 8 delivery days, got %v", ds.Target[0])
	}
}

func TestRowReadsCalendarInLocation(t *testing.T) {
	// Saturday 1 September 01:00 UTC is still Friday 31 August in Sao Paulo.
	instant := time.Date(2018, 9, 1, 1, 0, 0, 0, time.UTC)
	brt := time.FixedZone("BRT", -3*3600)

	utc, _, ok := NewProcessor().Row(order(instant))
	if !ok || !utc.IsWeekendOrder || utc.PurchaseMonth != 9 {
		t.Fatalf("unexpected UTC row %+v", utc)
	}
	local, _, ok := NewProcessor(WithLocation(brt)).Row(order(instant))
	if !ok || local.IsWeekendOrder || local.PurchaseMonth != 8 {
		t.Fatalf("unexpected local row %+v", local)
	}
}

func TestProcessDropsUnusableOrders(t *testing.T) {
	base := time.Date(2018, 3, 5, 9, 0, 0, 0, time.UTC)

	undelivered := order(base)
	undelivered.DeliveredAt = nil

	badGeo := order(base)
	badGeo.CustomerLat = 120

	negativeLag := order(base)
	negativeLag.ApprovedAt = ptr(base.Add(-time.Hour))

	good := order(base)

	ds, err := NewProcessor().Process([]models.OrderRecord{undelivered, badGeo, negativeLag, good})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Len() != 1 {
		t.Fatalf("expected one usable row, got %d", ds.Len())
	}
	if ds.Rows[0][8] != 0 {
		t.Fatalf("monday should not be a weekend order")
	}
}

func TestProcessEmpty(t *testing.T) {
	if _, err := NewProcessor().Process(nil); !errors.Is(err, ErrNoUsableRows) {
		t.Fatalf("expected ErrNoUsableRows, got %v", err)
	}
}
