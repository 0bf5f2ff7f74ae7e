package repository

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
	"github.com/GabrielWalak/delivery-prediction/internal/services/features"
)

// SyntheticOrderSource generates a reproducible order history shaped like a
// Brazilian marketplace: sellers concentrated in the south-east, customers
// spread across the country, delivery time driven by distance, weight,
// freight and seasonality. Used for local runs and tests.
type SyntheticOrderSource struct {
	orders int
	seed   int64
	start  time.Time
}

func NewSyntheticOrderSource(orders int, seed int64) *SyntheticOrderSource {
	if orders <= 0 {
		orders = 5000
	}
	return &SyntheticOrderSource{
		orders: orders,
		seed:   seed,
		start:  time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *SyntheticOrderSource) Name() string { return "synthetic" }

func (s *SyntheticOrderSource) FetchOrders(ctx context.Context) ([]models.OrderRecord, error) {
	rng := rand.New(rand.NewSource(s.seed))
	out := make([]models.OrderRecord, 0, s.orders)
	span := float64(2 * 365 * 24 * time.Hour)

	for i := 0; i < s.orders; i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		purchased := s.start.Add(time.Duration(rng.Float64() * span)).Truncate(time.Second)
		approved := purchased.Add(time.Duration(rng.ExpFloat64() * 0.6 * 24 * float64(time.Hour)))

		sellerLat := -23.5 + rng.NormFloat64()*1.5
		sellerLng := -46.6 + rng.NormFloat64()*1.5
		customerLat := clamp(-15+rng.NormFloat64()*8, -33, 4)
		customerLng := clamp(-47+rng.NormFloat64()*6, -73, -35)

		weight := math.Max(50, math.Exp(6.5+rng.NormFloat64()*1.1))
		length := 10 + rng.Float64()*60
		height := 2 + rng.Float64()*40
		width := 8 + rng.Float64()*50
		dist := features.Haversine(sellerLat, sellerLng, customerLat, customerLng)
		freight := 8 + dist*0.012 + weight*0.0015 + rng.Float64()*6

		days := 3 + dist/220 + weight/9000 + 0.4*rng.ExpFloat64()
		switch purchased.Month() {
		case time.November, time.December:
			days += 2.5
		case time.February, time.March:
			days += 1
		}
		if wd := purchased.Weekday(); wd == time.Saturday || wd == time.Sunday {
			days += 0.8
		}
		days += approved.Sub(purchased).Hours() / 24
		days *= math.Exp(rng.NormFloat64() * 0.12)

		o := models.OrderRecord{
			OrderID:      fmt.Sprintf("syn-%06d", i),
			PurchasedAt:  purchased,
			ApprovedAt:   &approved,
			WeightG:      math.Round(weight),
			LengthCm:     math.Round(length),
			HeightCm:     math.Round(height),
			WidthCm:      math.Round(width),
			FreightValue: math.Round(freight*100) / 100,
			CustomerLat:  customerLat,
			CustomerLng:  customerLng,
			SellerLat:    sellerLat,
			SellerLng:    sellerLng,
		}
		// About 3% of orders never arrive.
		if rng.Float64() >= 0.03 {
			delivered := purchased.Add(time.Duration(days * 24 * float64(time.Hour))).Truncate(time.Second)
			o.DeliveredAt = &delivered
		}
		out = append(out, o)
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

var _ repository.OrderSource = (*SyntheticOrderSource)(nil)
