package models

import "time"

// OrderRecord is one historical order as read from a source, before feature
// engineering. Nil timestamps mean the order never reached that stage.
type OrderRecord struct {
	OrderID      string     `json:"order_id" db:"order_id"`
	PurchasedAt  time.Time  `json:"order_purchase_timestamp" db:"purchased_at"`
	ApprovedAt   *time.Time `json:"order_approved_at,omitempty" db:"approved_at"`
	DeliveredAt  *time.Time `json:"order_delivered_customer_date,omitempty" db:"delivered_at"`
	WeightG      float64    `json:"product_weight_g" db:"product_weight_g"`
	LengthCm     float64    `json:"product_length_cm" db:"product_length_cm"`
	HeightCm     float64    `json:"product_height_cm" db:"product_height_cm"`
	WidthCm      float64    `json:"product_width_cm" db:"product_width_cm"`
	FreightValue float64    `json:"freight_value" db:"freight_value"`
	CustomerLat  float64    `json:"customer_lat" db:"customer_lat"`
	CustomerLng  float64    `json:"customer_lng" db:"customer_lng"`
	SellerLat    float64    `json:"seller_lat" db:"seller_lat"`
	SellerLng    float64    `json:"seller_lng" db:"seller_lng"`
}

// Delivered reports whether the order has both a purchase and a delivery time.
func (o OrderRecord) Delivered() bool {
	return !o.PurchasedAt.IsZero() && o.DeliveredAt != nil && !o.DeliveredAt.IsZero()
}
