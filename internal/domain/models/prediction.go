package models

import "time"

// DeliveryEstimateRequest is the body of POST /predict. Pointer fields let the
// validator tell a missing field from a zero value.
type DeliveryEstimateRequest struct {
	ProductWeightG *float64 `json:"product_weight_g" validate:"required,gte=0" example:"1200"`
	ProductVolCm3  *float64 `json:"product_vol_cm3" validate:"required,gte=0" example:"4500"`
	DistanceKm     *float64 `json:"distance_km" validate:"required,gte=0" example:"800"`
	CustomerLat    *float64 `json:"customer_lat" validate:"required,gte=-90,lte=90" example:"-23.55"`
	CustomerLng    *float64 `json:"customer_lng" validate:"required,gte=-180,lte=180" example:"-46.63"`
	SellerLat      *float64 `json:"seller_lat" validate:"required,gte=-90,lte=90" example:"-23.95"`
	SellerLng      *float64 `json:"seller_lng" validate:"required,gte=-180,lte=180" example:"-46.33"`
	PaymentLagDays *float64 `json:"payment_lag_days" validate:"required,gte=0,lte=60" example:"2"`
	IsWeekendOrder *bool    `json:"is_weekend_order" validate:"required" example:"false"`
	FreightValue   *float64 `json:"freight_value" validate:"required,gte=0" example:"29.9"`
	PurchaseMonth  *int     `json:"purchase_month" validate:"required,gte=1,lte=12" example:"11"`
}

// Features converts a validated request. Call only after validation passed.
func (r DeliveryEstimateRequest) Features() DeliveryFeatures {
	return DeliveryFeatures{
		WeightG:        deref(r.ProductWeightG),
		VolCm3:         deref(r.ProductVolCm3),
		DistanceKm:     deref(r.DistanceKm),
		CustomerLat:    deref(r.CustomerLat),
		CustomerLng:    deref(r.CustomerLng),
		SellerLat:      deref(r.SellerLat),
		SellerLng:      deref(r.SellerLng),
		PaymentLagDays: deref(r.PaymentLagDays),
		IsWeekendOrder: deref(r.IsWeekendOrder),
		FreightValue:   deref(r.FreightValue),
		PurchaseMonth:  deref(r.PurchaseMonth),
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// PredictionResponse is returned by POST /predict.
type PredictionResponse struct {
	PredictedDays float64  `json:"predicted_days" example:"9.4"`
	R2Score       float64  `json:"r2_score" example:"0.41"`
	MAE           float64  `json:"mae" example:"3.7"`
	Warnings      []string `json:"warnings"`
	Message       string   `json:"message" example:"Validated prediction available"`
}

// HealthResponse is returned by GET /health when the engine is warm.
// Metrics are null when they could not be computed.
type HealthResponse struct {
	Status  string   `json:"status" example:"ready"`
	Records int      `json:"records" example:"95000"`
	R2Score *float64 `json:"r2_score"`
	MAE     *float64 `json:"mae"`
}

// ServiceInfo is returned by GET /.
type ServiceInfo struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

// PredictionEvent is published after every served prediction.
type PredictionEvent struct {
	Features      DeliveryFeatures `json:"features"`
	PredictedDays float64          `json:"predicted_days"`
	Warnings      []string         `json:"warnings"`
	ModelVersion  string           `json:"model_version"`
	Cached        bool             `json:"cached"`
	At            time.Time        `json:"at"`
}
