package store

import (
	"fmt"

	"ecomcli/internal/records"
)

// FallbackCategory labels products whose category has no translation and no
// raw name. A missing reference resolves to this label, never to an error.
const FallbackCategory = "Uncategorized"

// Snapshot is an immutable copy of the input tables plus derived join
// indexes. Build one, call Index once, then share it read-only across
// stages.
type Snapshot struct {
	Customers    []records.Customer
	Orders       []records.Order
	Items        []records.OrderItem
	Payments     []records.Payment
	Reviews      []records.Review
	Products     []records.Product
	Sellers      []records.Seller
	Translations []records.CategoryTranslation

	paymentByOrder   map[string]float64
	reviewByOrder    map[string]records.Review
	personByCustomer map[string]string
	customerByID     map[string]records.Customer
	categoryEnglish  map[string]string
	productByID      map[string]records.Product
	sellerByID       map[string]records.Seller
	orderByID        map[string]records.Order
	indexed          bool
}

// Index builds the join indexes. It must be called exactly once, before the
// snapshot is handed to any analysis stage.
func (s *Snapshot) Index() error {
	if s.indexed {
		return fmt.Errorf("snapshot already indexed")
	}

	s.paymentByOrder = make(map[string]float64, len(s.Orders))
	for _, p := range s.Payments {
		s.paymentByOrder[p.OrderID] += p.Value
	}

	// First review per order wins; duplicates exist in the source data.
	s.reviewByOrder = make(map[string]records.Review, len(s.Reviews))
	for _, r := range s.Reviews {
		if _, ok := s.reviewByOrder[r.OrderID]; !ok {
			s.reviewByOrder[r.OrderID] = r
		}
	}

	s.personByCustomer = make(map[string]string, len(s.Customers))
	s.customerByID = make(map[string]records.Customer, len(s.Customers))
	for _, c := range s.Customers {
		s.personByCustomer[c.CustomerID] = c.UniqueID
		s.customerByID[c.CustomerID] = c
	}

	s.categoryEnglish = make(map[string]string, len(s.Translations))
	for _, t := range s.Translations {
		s.categoryEnglish[t.Name] = t.English
	}

	s.productByID = make(map[string]records.Product, len(s.Products))
	for _, p := range s.Products {
		s.productByID[p.ProductID] = p
	}

	s.sellerByID = make(map[string]records.Seller, len(s.Sellers))
	for _, sel := range s.Sellers {
		s.sellerByID[sel.SellerID] = sel
	}

	s.orderByID = make(map[string]records.Order, len(s.Orders))
	for _, o := range s.Orders {
		s.orderByID[o.OrderID] = o
	}

	s.indexed = true
	return nil
}

// OrderPayment returns the summed paid value of an order. Orders with no
// payment rows pay zero.
func (s *Snapshot) OrderPayment(orderID string) float64 {
	return s.paymentByOrder[orderID]
}

// ReviewFor returns the (first) review of an order. A missing review is
// normal, not an error.
func (s *Snapshot) ReviewFor(orderID string) (records.Review, bool) {
	r, ok := s.reviewByOrder[orderID]
	return r, ok
}

// PersonFor resolves an order-level customer id to the person identity.
// Unknown customer ids fall back to the order-level id itself so the row
// stays attributable.
func (s *Snapshot) PersonFor(customerID string) string {
	if unique, ok := s.personByCustomer[customerID]; ok && unique != "" {
		return unique
	}
	return customerID
}

// CategoryFor resolves a product id to its English category label. Missing
// translation falls back to the raw category name; a missing or uncategorized
// product falls back to FallbackCategory.
func (s *Snapshot) CategoryFor(productID string) string {
	p, ok := s.productByID[productID]
	if !ok || p.CategoryName == "" {
		return FallbackCategory
	}
	if english, ok := s.categoryEnglish[p.CategoryName]; ok && english != "" {
		return english
	}
	return p.CategoryName
}

// CustomerFor returns the customer row behind an order-level customer id.
func (s *Snapshot) CustomerFor(customerID string) (records.Customer, bool) {
	c, ok := s.customerByID[customerID]
	return c, ok
}

// OrderByID returns an order by id.
func (s *Snapshot) OrderByID(orderID string) (records.Order, bool) {
	o, ok := s.orderByID[orderID]
	return o, ok
}

// SellerByID returns a seller by id.
func (s *Snapshot) SellerByID(sellerID string) (records.Seller, bool) {
	sel, ok := s.sellerByID[sellerID]
	return sel, ok
}

// DeliveredOrders returns the orders that reached the customer.
func (s *Snapshot) DeliveredOrders() []records.Order {
	out := make([]records.Order, 0, len(s.Orders))
	for _, o := range s.Orders {
		if o.IsDelivered() {
			out = append(out, o)
		}
	}
	return out
}

// NonCanceledOrders returns every order that was not canceled. Retention
// activity counts these, while revenue counts only delivered orders; the
// asymmetry is deliberate and mirrored from the reporting queries.
func (s *Snapshot) NonCanceledOrders() []records.Order {
	out := make([]records.Order, 0, len(s.Orders))
	for _, o := range s.Orders {
		if !o.IsCanceled() {
			out = append(out, o)
		}
	}
	return out
}
