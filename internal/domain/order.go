package domain

import (
	"math"
	"time"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
)

// OrderItem is a copy of the catalog entry taken when the order was created.
type OrderItem struct {
	ProductID string `json:"productId" bson:"product_id"`
	Name      string `json:"name" bson:"name"`
	UnitPrice int64  `json:"unitPrice" bson:"unit_price"`
	Qty       int    `json:"qty" bson:"qty"`
}

func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Qty)
}

type Order struct {
	OrderID         string      `json:"orderId" bson:"_id"`
	ExternalOrderID string      `json:"externalOrderId" bson:"external_order_id"`
	CustomerEmail   string      `json:"customerEmail" bson:"customer_email"`
	Items           []OrderItem `json:"items" bson:"items"`
	AmountTotal     int64       `json:"amountTotal" bson:"amount_total"`
	Currency        string      `json:"currency" bson:"currency"`
	Status          OrderStatus `json:"status" bson:"status"`
	CreatedAt       time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time   `json:"updatedAt" bson:"updated_at"`
}

// MaxLineQty caps the quantity of one product in an order.
const MaxLineQty = 10000

// SumItems is the order total for the given snapshot. ok is false when a
// line is negative or the total does not fit in int64.
func SumItems(items []OrderItem) (total int64, ok bool) {
	for _, it := range items {
		if it.UnitPrice < 0 || it.Qty < 0 {
			return 0, false
		}
		if it.UnitPrice > 0 && int64(it.Qty) > (math.MaxInt64-total)/it.UnitPrice {
			return 0, false
		}
		total += it.LineTotal()
	}
	return total, true
}
