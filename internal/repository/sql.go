package repository

import (
	"errors"
	"fmt"
	"regexp"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// checkIdent guards table names that are spliced into SQL text.
func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

const orderColumns = `order_id, purchased_at, approved_at, delivered_at,
	product_weight_g, product_length_cm, product_height_cm, product_width_cm,
	freight_value, customer_lat, customer_lng, seller_lat, seller_lng`

var ErrNoOrders = errors.New("order source returned no rows")
