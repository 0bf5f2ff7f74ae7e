package features

import (
	"errors"
	"math"
	"time"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/domain/service"
	"github.com/GabrielWalak/delivery-prediction/pkg/util"
)

const (
	earthRadiusKm     = 6371.0
	maxPaymentLagDays = 60
)

var ErrNoUsableRows = errors.New("no usable rows after feature processing")

// Processor derives the request-schema features and the delivery-days target
// from raw orders.
type Processor struct {
	loc *time.Location
}

// Option configures Processor.
type Option func(*Processor)

// WithLocation sets the zone used for weekday and month extraction.
func WithLocation(loc *time.Location) Option {
	return func(p *Processor) {
		if loc != nil {
			p.loc = loc
		}
	}
}

func NewProcessor(opts ...Option) *Processor {
	p := &Processor{loc: time.UTC}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process drops orders that were never delivered or whose values are out of
// range, then builds one row per remaining order.
func (p *Processor) Process(orders []models.OrderRecord) (models.Dataset, error) {
	ds := models.Dataset{
		Features: models.FeatureNames(),
		Rows:     make([][]float64, 0, len(orders)),
		Target:   make([]float64, 0, len(orders)),
	}

	for i := range orders {
		f, target, ok := p.Row(orders[i])
		if !ok {
			continue
		}
		ds.Rows = append(ds.Rows, f.Vector())
		ds.Target = append(ds.Target, target)
	}

	if ds.Len() == 0 {
		return ds, ErrNoUsableRows
	}
	return ds, nil
}

// Row computes features and target for a single order.
func (p *Processor) Row(o models.OrderRecord) (models.DeliveryFeatures, float64, bool) {
	if !o.Delivered() || o.ApprovedAt == nil {
		return models.DeliveryFeatures{}, 0, false
	}
	if !validCoord(o.CustomerLat, o.CustomerLng) || !validCoord(o.SellerLat, o.SellerLng) {
		return models.DeliveryFeatures{}, 0, false
	}
	if o.WeightG < 0 || o.LengthCm < 0 || o.HeightCm < 0 || o.WidthCm < 0 || o.FreightValue < 0 {
		return models.DeliveryFeatures{}, 0, false
	}

	lag := util.DaysBetween(o.PurchasedAt, *o.ApprovedAt)
	target := util.DaysBetween(o.PurchasedAt, *o.DeliveredAt)
	if lag < 0 || lag > maxPaymentLagDays || target < 0 {
		return models.DeliveryFeatures{}, 0, false
	}

	purchased := o.PurchasedAt.In(p.loc)
	wd := purchased.Weekday()

	return models.DeliveryFeatures{
		WeightG:        o.WeightG,
		VolCm3:         o.LengthCm * o.HeightCm * o.WidthCm,
		DistanceKm:     Haversine(o.SellerLat, o.SellerLng, o.CustomerLat, o.CustomerLng),
		CustomerLat:    o.CustomerLat,
		CustomerLng:    o.CustomerLng,
		SellerLat:      o.SellerLat,
		SellerLng:      o.SellerLng,
		PaymentLagDays: lag,
		IsWeekendOrder: wd == time.Saturday || wd == time.Sunday,
		FreightValue:   o.FreightValue,
		PurchaseMonth:  int(purchased.Month()),
	}, target, true
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func validCoord(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

var _ service.FeatureProcessor = (*Processor)(nil)
