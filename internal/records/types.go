package records

import (
	"time"
)

// Order status values used by the engine's filters. Revenue metrics only
// count StatusDelivered; retention activity counts everything except
// StatusCanceled. The asymmetry is intentional and mirrors how the reports
// are consumed downstream.
const (
	StatusDelivered = "delivered"
	StatusShipped   = "shipped"
	StatusCanceled  = "canceled"
)

// MonthKeyFormat is the calendar-month bucket key ("2018-03"). Keys sort
// lexicographically in chronological order.
const MonthKeyFormat = "2006-01"

// MonthKey returns the calendar-month bucket for a timestamp.
func MonthKey(t time.Time) string {
	return t.Format(MonthKeyFormat)
}

// MonthsBetween returns the integer number of calendar months from one
// month key to another (positive when to is later). Calendar arithmetic,
// not elapsed-day division, so variable month lengths cannot drift the
// offset.
func MonthsBetween(from, to string) (int, error) {
	f, err := time.Parse(MonthKeyFormat, from)
	if err != nil {
		return 0, err
	}
	t, err := time.Parse(MonthKeyFormat, to)
	if err != nil {
		return 0, err
	}
	return 12*(t.Year()-f.Year()) + int(t.Month()) - int(f.Month()), nil
}

// Customer is the order-level customer identity. CustomerID is unique per
// order; UniqueID identifies the person behind possibly many CustomerIDs.
type Customer struct {
	CustomerID string `json:"customer_id"`
	UniqueID   string `json:"customer_unique_id"`
	City       string `json:"customer_city"`
	State      string `json:"customer_state"`
	ZipPrefix  string `json:"customer_zip_code_prefix"`
}

// Order is a single marketplace order. ApprovedAt, DeliveredAt and
// EstimatedDelivery may be zero when the source row is incomplete.
type Order struct {
	OrderID           string    `json:"order_id"`
	CustomerID        string    `json:"customer_id"`
	Status            string    `json:"order_status"`
	PurchasedAt       time.Time `json:"order_purchase_timestamp"`
	ApprovedAt        time.Time `json:"order_approved_at"`
	DeliveredAt       time.Time `json:"order_delivered_customer_date"`
	EstimatedDelivery time.Time `json:"order_estimated_delivery_date"`
}

// IsDelivered reports whether the order reached the customer.
func (o Order) IsDelivered() bool {
	return o.Status == StatusDelivered
}

// IsCanceled reports whether the order was canceled.
func (o Order) IsCanceled() bool {
	return o.Status == StatusCanceled
}

// HasDeliveryDates reports whether all three dates needed for delivery
// metrics are present. Orders failing this check are excluded from delivery
// metrics entirely, never treated as on-time.
func (o Order) HasDeliveryDates() bool {
	return !o.PurchasedAt.IsZero() && !o.DeliveredAt.IsZero() && !o.EstimatedDelivery.IsZero()
}

// PurchaseMonth returns the calendar-month key of the purchase timestamp.
func (o Order) PurchaseMonth() string {
	return MonthKey(o.PurchasedAt)
}

// OrderItem is a single line item. An order can carry items from several
// sellers; (OrderID, ItemSeq) is the composite key.
type OrderItem struct {
	OrderID      string  `json:"order_id"`
	ItemSeq      int     `json:"order_item_id"`
	ProductID    string  `json:"product_id"`
	SellerID     string  `json:"seller_id"`
	Price        float64 `json:"price"`
	FreightValue float64 `json:"freight_value"`
}

// ItemValue returns the revenue attributable to the line item.
func (oi OrderItem) ItemValue() float64 {
	return oi.Price + oi.FreightValue
}

// Payment is one payment record. Split payments produce several rows per
// order; the paid amount of an order is the sum of its Values.
type Payment struct {
	OrderID      string  `json:"order_id"`
	Seq          int     `json:"payment_sequential"`
	Type         string  `json:"payment_type"`
	Installments int     `json:"payment_installments"`
	Value        float64 `json:"payment_value"`
}

// Review is a customer review. At most one per order is used; orders
// without a review are normal, not an error.
type Review struct {
	ReviewID  string    `json:"review_id"`
	OrderID   string    `json:"order_id"`
	Score     int       `json:"review_score"`
	CreatedAt time.Time `json:"review_creation_date"`
}

// HasValidScore reports whether the score is on the 1-5 scale.
func (r Review) HasValidScore() bool {
	return r.Score >= 1 && r.Score <= 5
}

// Product carries the catalog attributes the engine needs. CategoryName may
// be empty.
type Product struct {
	ProductID    string  `json:"product_id"`
	CategoryName string  `json:"product_category_name"`
	WeightG      float64 `json:"product_weight_g"`
	PhotosQty    int     `json:"product_photos_qty"`
}

// Seller is a marketplace seller.
type Seller struct {
	SellerID string `json:"seller_id"`
	City     string `json:"seller_city"`
	State    string `json:"seller_state"`
}

// CategoryTranslation maps a raw category name to its English label.
type CategoryTranslation struct {
	Name    string `json:"product_category_name"`
	English string `json:"product_category_name_english"`
}
