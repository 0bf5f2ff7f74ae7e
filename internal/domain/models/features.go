package models

// Feature column names, in the order the request schema declares them.
const (
	FeatureWeightG        = "product_weight_g"
	FeatureVolCm3         = "product_vol_cm3"
	FeatureDistanceKm     = "distance_km"
	FeatureCustomerLat    = "customer_lat"
	FeatureCustomerLng    = "customer_lng"
	FeatureSellerLat      = "seller_lat"
	FeatureSellerLng      = "seller_lng"
	FeaturePaymentLagDays = "payment_lag_days"
	FeatureIsWeekendOrder = "is_weekend_order"
	FeatureFreightValue   = "freight_value"
	FeaturePurchaseMonth  = "purchase_month"

	TargetDeliveryDays = "delivery_days"
)

// FeatureNames returns the canonical ordered feature list.
func FeatureNames() []string {
	return []string{
		FeatureWeightG,
		FeatureVolCm3,
		FeatureDistanceKm,
		FeatureCustomerLat,
		FeatureCustomerLng,
		FeatureSellerLat,
		FeatureSellerLng,
		FeaturePaymentLagDays,
		FeatureIsWeekendOrder,
		FeatureFreightValue,
		FeaturePurchaseMonth,
	}
}

// DeliveryFeatures is a fully populated feature vector for one order.
type DeliveryFeatures struct {
	WeightG        float64 `json:"product_weight_g"`
	VolCm3         float64 `json:"product_vol_cm3"`
	DistanceKm     float64 `json:"distance_km"`
	CustomerLat    float64 `json:"customer_lat"`
	CustomerLng    float64 `json:"customer_lng"`
	SellerLat      float64 `json:"seller_lat"`
	SellerLng      float64 `json:"seller_lng"`
	PaymentLagDays float64 `json:"payment_lag_days"`
	IsWeekendOrder bool    `json:"is_weekend_order"`
	FreightValue   float64 `json:"freight_value"`
	PurchaseMonth  int     `json:"purchase_month"`
}

// Value returns the numeric encoding of a named feature. The weekend flag is 0/1.
func (f DeliveryFeatures) Value(name string) (float64, bool) {
	switch name {
	case FeatureWeightG:
		return f.WeightG, true
	case FeatureVolCm3:
		return f.VolCm3, true
	case FeatureDistanceKm:
		return f.DistanceKm, true
	case FeatureCustomerLat:
		return f.CustomerLat, true
	case FeatureCustomerLng:
		return f.CustomerLng, true
	case FeatureSellerLat:
		return f.SellerLat, true
	case FeatureSellerLng:
		return f.SellerLng, true
	case FeaturePaymentLagDays:
		return f.PaymentLagDays, true
	case FeatureIsWeekendOrder:
		if f.IsWeekendOrder {
			return 1, true
		}
		return 0, true
	case FeatureFreightValue:
		return f.FreightValue, true
	case FeaturePurchaseMonth:
		return float64(f.PurchaseMonth), true
	}
	return 0, false
}

// Vector lays the features out in FeatureNames order.
func (f DeliveryFeatures) Vector() []float64 {
	names := FeatureNames()
	out := make([]float64, len(names))
	for i, name := range names {
		out[i], _ = f.Value(name)
	}
	return out
}

// Dataset is a dense training table. Rows[i] follows Features; Target[i] is
// the observed delivery duration in days.
type Dataset struct {
	Features []string
	Rows     [][]float64
	Target   []float64
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.Rows)
}

// Subset returns the rows at idx, sharing the underlying row slices.
func (d Dataset) Subset(idx []int) Dataset {
	out := Dataset{
		Features: d.Features,
		Rows:     make([][]float64, len(idx)),
		Target:   make([]float64, len(idx)),
	}
	for i, j := range idx {
		out.Rows[i] = d.Rows[j]
		out.Target[i] = d.Target[j]
	}
	return out
}
